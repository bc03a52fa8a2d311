package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"digistation/internal/capture"
	"digistation/internal/config"
	"digistation/internal/logging"
)

func newCommitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "commit DIR",
		Short: "Re-run the rename protocol over the snapshots of a finished session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.processLogger()
			if err != nil {
				return err
			}
			dir, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			snapshots, readErr := capture.ReadSnapshots(dir)
			if readErr != nil {
				logging.WarnWithContext(logger, "some snapshots could not be read", "snapshot_read_failed",
					logging.String(logging.FieldPath, dir),
					logging.Error(readErr),
					logging.String(logging.FieldImpact, "unreadable snapshots are not committed"),
				)
			}
			out := cmd.OutOrStdout()
			if len(snapshots) == 0 {
				fmt.Fprintf(out, "No capture events found in %s\n", dir)
				return nil
			}

			writer := capture.NewSnapshotWriter(logger)
			first := snapshots[0].Record.Event()
			sess := capture.NewSession(first.Session, first.CreatedAt)
			sess.Info.Path = dir
			for _, s := range snapshots {
				e := s.Record.Event()
				rebaseEvent(e, dir)
				writer.Track(e.ID, s.Path)
				sess.Restore(e)
			}

			committer := capture.NewCommitter(writer, logger)
			failed, collisions := committer.CommitAll(cmd.Context(), sess)

			renamed := 0
			for _, e := range sess.Events() {
				if e.RawRename.Done() {
					renamed++
				}
				if e.DerivedRename.Done() {
					renamed++
				}
			}
			fmt.Fprintf(out, "%d events, %d files at their catalog name, %d failed\n", sess.Len(), renamed, failed)
			for _, ce := range collisions {
				fmt.Fprintf(out, "collision: %s (%s and %s exist)\n", ce.Source, filepath.Base(ce.Desired), filepath.Base(ce.Fallback))
			}
			if failed > 0 {
				return errors.New("some events could not be committed; see the log for details")
			}
			return nil
		},
	}
}

// rebaseEvent points a restored event at dir when the session folder was
// moved after capture. Image paths outside the old session folder are kept.
func rebaseEvent(e *capture.Event, dir string) {
	old := e.Session.Path
	e.Session.Path = dir
	if old == "" || old == dir {
		return
	}
	for _, p := range []*string{e.OriginalRawImage, e.NewRawImage, e.OriginalDerivedImage, e.NewDerivedImage} {
		if p != nil && filepath.Dir(*p) == old {
			*p = filepath.Join(dir, filepath.Base(*p))
		}
	}
	for _, state := range []*capture.RenameState{&e.RawRename, &e.DerivedRename} {
		if state.Path != "" && filepath.Dir(state.Path) == old {
			state.Path = filepath.Join(dir, filepath.Base(state.Path))
		}
	}
}
