package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"digistation/internal/capture"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect persisted capture events",
	}
	eventsCmd.AddCommand(newEventsListCommand(ctx))
	eventsCmd.AddCommand(newEventsLogCommand())
	return eventsCmd
}

func newEventsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list DIR",
		Short: "List the event snapshots in a session directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshots, readErr := capture.ReadSnapshots(args[0])
			if readErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warn: some snapshots could not be read: %v\n", readErr)
			}

			if asJSON {
				records := make([]capture.Record, 0, len(snapshots))
				for _, s := range snapshots {
					records = append(records, s.Record)
				}
				return writeJSON(cmd, records)
			}

			out := cmd.OutOrStdout()
			if len(snapshots) == 0 {
				fmt.Fprintln(out, "No capture events found")
				return nil
			}
			now := time.Now()
			tbl := newStatusTable(shouldColorize(out),
				rightCol("#"), leftCol("Stem"), leftCol("Catalog Number"), severityCol("Status"), leftCol("Raw"), leftCol("Derived"), leftCol("Updated"))
			for _, s := range snapshots {
				e := s.Record.Event()
				raw, _ := e.CurrentPath(capture.KindRaw)
				derived, _ := e.CurrentPath(capture.KindDerived)
				tbl.row(e.StatusLevel,
					fmt.Sprintf("%d", e.Sequence),
					e.OriginalFilename,
					dashIfEmpty(capture.StringValue(e.CatalogNumber)),
					e.Status,
					dashIfEmpty(baseName(raw)),
					dashIfEmpty(baseName(derived)),
					updatedLabel(e.UpdatedAt, now),
				)
			}
			fmt.Fprintln(out, tbl.render())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func updatedLabel(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
