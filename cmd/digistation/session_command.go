package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"digistation/internal/capture"
	"digistation/internal/notifications"
	"digistation/internal/session"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Run capture sessions",
	}
	sessionCmd.AddCommand(newSessionRunCommand(ctx))
	return sessionCmd
}

func newSessionRunCommand(ctx *commandContext) *cobra.Command {
	var opts session.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch a directory and correlate captures until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.processLogger()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			out := cmd.OutOrStdout()
			lc := session.New(cfg, logger, notifications.NewService(cfg))
			observer := newConsoleObserver(out, shouldColorize(out), lc.Metrics)
			opts.Observers = []capture.Observer{observer}

			sess, err := lc.Start(signalCtx, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Session %s watching %s\n", sess.Info.ID, sess.Info.Path)
			fmt.Fprintln(out, "Press Ctrl+C to stop and rename captured files.")

			if err := lc.Run(signalCtx); err != nil {
				return err
			}
			summary, stopErr := lc.Stop(context.WithoutCancel(cmd.Context()))
			printSessionSummary(out, summary, shouldColorize(out))
			return stopErr
		},
	}

	cmd.Flags().StringVarP(&opts.Dir, "dir", "d", "", "Directory the camera writes into")
	cmd.Flags().StringVarP(&opts.Username, "username", "u", "", "Operator name")
	cmd.Flags().StringVarP(&opts.CollectionCode, "collection", "c", "", "Collection code")
	cmd.Flags().StringVarP(&opts.ProjectCode, "project", "p", "", "Project code")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "Free-text session notes")
	cmd.Flags().StringVar(&opts.Taxa, "taxa", "", "Taxa imaged in this session")
	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// consoleObserver prints one line per event change.
type consoleObserver struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
	metrics  func(time.Time) capture.Metrics
}

func newConsoleObserver(out io.Writer, colorize bool, metrics func(time.Time) capture.Metrics) *consoleObserver {
	return &consoleObserver{out: out, colorize: colorize, metrics: metrics}
}

func (o *consoleObserver) EventCreated(e capture.Event) {
	o.print("new", e)
}

func (o *consoleObserver) EventUpdated(e capture.Event) {
	o.print("upd", e)
}

func (o *consoleObserver) print(tag string, e capture.Event) {
	line := formatEventLine(tag, e)
	if o.metrics != nil {
		if rate := o.metrics(time.Now()).ImagingRate; rate != nil {
			line += fmt.Sprintf("  [%.1f/min]", *rate)
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.out, colorizeSeverity(e.StatusLevel, line, o.colorize))
}

func formatEventLine(tag string, e capture.Event) string {
	catalogNumber := capture.StringValue(e.CatalogNumber)
	if catalogNumber == "" {
		catalogNumber = "-"
	}
	return fmt.Sprintf("%s %-6s %-20s %-16s %s", tag, fmt.Sprintf("#%d", e.Sequence), e.OriginalFilename, catalogNumber, e.Status)
}

func printSessionSummary(out io.Writer, summary session.Summary, colorize bool) {
	tbl := newStatusTable(colorize,
		rightCol("#"), leftCol("Stem"), leftCol("Catalog Number"), severityCol("Level"), leftCol("Status"))
	for _, r := range summary.Rows {
		tbl.row(r.Level,
			fmt.Sprintf("%d", r.Sequence),
			r.Stem,
			dashIfEmpty(r.CatalogNumber),
			string(r.Level),
			r.Status,
		)
	}
	fmt.Fprintln(out)
	if tbl.rowCount() > 0 {
		fmt.Fprintln(out, tbl.render())
	}
	fmt.Fprintf(out, "Session %s (%s) by %s\n", summary.SessionID, summary.Path, dashIfEmpty(summary.Username))
	fmt.Fprintf(out, "%d captures, %d files renamed, %d failed, %d collisions in %s\n",
		summary.Events, summary.Renamed, summary.Failed, summary.Collisions, summary.Elapsed.Round(time.Second))
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
