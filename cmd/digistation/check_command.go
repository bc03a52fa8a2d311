package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"digistation/internal/capture"
	"digistation/internal/deps"
	"digistation/internal/preflight"
	"digistation/internal/station"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that this station is ready to run capture sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tbl := newStatusTable(shouldColorize(out), leftCol("Check"), leftCol("Target"), severityCol("State"), leftCol("Detail"))

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			for _, s := range statuses {
				tbl.row(checkLevel(s.Available), s.Name, dashIfEmpty(s.Command), stateText(s.Available, "ok", "missing"), dashIfEmpty(s.Detail))
			}

			dirsOK := true
			for _, r := range preflight.RunAll(cfg) {
				dirsOK = dirsOK && r.Passed
				tbl.row(checkLevel(r.Passed), r.Name, "-", stateText(r.Passed, "ok", "failed"), r.Detail)
			}

			id, idErr := station.Load(cfg.Station.IdentityPath)
			switch {
			case idErr == nil:
				tbl.row(capture.SeverityOK, "Station identity", cfg.Station.IdentityPath, "ok", id.StationID)
			case errors.Is(idErr, station.ErrNotConfigured):
				tbl.row(capture.SeverityWarning, "Station identity", cfg.Station.IdentityPath, "unset", "run digistation station init --id NAME")
			default:
				tbl.row(capture.SeverityWarning, "Station identity", cfg.Station.IdentityPath, "invalid", idErr.Error())
			}

			fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			fmt.Fprintln(out, tbl.render())

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required programs missing", len(missing))
			}
			if !dirsOK {
				return errors.New("station directories are not writable")
			}
			return nil
		},
	}
}

func checkLevel(ok bool) capture.Severity {
	if ok {
		return capture.SeverityOK
	}
	return capture.SeverityWarning
}

func stateText(ok bool, okText, badText string) string {
	if ok {
		return okText
	}
	return badText
}
