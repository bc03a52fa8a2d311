package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"digistation/internal/capture"
	"digistation/internal/catalogdb"
	"digistation/internal/config"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the catalog database of loaded capture records",
	}
	dbCmd.AddCommand(newDBLoadCommand(ctx))
	dbCmd.AddCommand(newDBListCommand(ctx))
	return dbCmd
}

func newDBLoadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "load DIR",
		Short: "Load every *.JSON snapshot in a session directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.processLogger()
			if err != nil {
				return err
			}
			dir, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			store, err := catalogdb.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := store.LoadDir(cmd.Context(), dir, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %s of %s snapshots into %s\n",
				humanize.Comma(int64(result.Loaded)), humanize.Comma(int64(result.Scanned)), store.Path())
			for _, f := range result.Failures {
				fmt.Fprintf(out, "failed: %s: %v\n", f.Path, f.Err)
			}
			if len(result.Failures) > 0 {
				return fmt.Errorf("%d snapshots failed to load", len(result.Failures))
			}
			return nil
		},
	}
}

func newDBListCommand(ctx *commandContext) *cobra.Command {
	var (
		opts   catalogdb.ListOptions
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded capture records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := catalogdb.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			images, err := store.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if asJSON {
				records := make([]capture.Record, 0, len(images))
				for _, img := range images {
					records = append(records, img.Record)
				}
				return writeJSON(cmd, records)
			}

			out := cmd.OutOrStdout()
			if len(images) == 0 {
				fmt.Fprintln(out, "No records loaded")
				return nil
			}
			tbl := newStatusTable(false,
				leftCol("Session"), rightCol("#"), leftCol("Stem"), leftCol("Catalog Number"), leftCol("Status"), leftCol("Station"))
			for _, img := range images {
				tbl.row("",
					shortSessionID(img.SessionUUID),
					fmt.Sprintf("%d", img.Sequence),
					img.OriginalFilename,
					dashIfEmpty(capture.StringValue(img.CatalogNumber)),
					dashIfEmpty(img.Status),
					dashIfEmpty(capture.StringValue(img.StationID)),
				)
			}
			fmt.Fprintln(out, tbl.render())
			fmt.Fprintf(out, "%s records\n", humanize.Comma(int64(len(images))))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.SessionUUID, "session", "", "Only records from this session id")
	cmd.Flags().StringVar(&opts.CatalogNumber, "catalog-number", "", "Only records with this catalog number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of records (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func shortSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return dashIfEmpty(id)
}
