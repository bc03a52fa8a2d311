package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"digistation/internal/station"
)

func newStationCommand(ctx *commandContext) *cobra.Command {
	stationCmd := &cobra.Command{
		Use:   "station",
		Short: "Manage this imaging station's identity",
	}
	stationCmd.AddCommand(newStationInitCommand(ctx))
	stationCmd.AddCommand(newStationShowCommand(ctx))
	return stationCmd
}

func newStationInitCommand(ctx *commandContext) *cobra.Command {
	var (
		stationID string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the station identity with a new uuid",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			id, err := station.Init(cfg.Station.IdentityPath, stationID, force)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote station identity to %s\n", cfg.Station.IdentityPath)
			fmt.Fprintf(out, "station_id:   %s\n", id.StationID)
			fmt.Fprintf(out, "station_uuid: %s\n", id.StationUUID)
			return nil
		},
	}
	cmd.Flags().StringVar(&stationID, "id", "", "Short unique station identifier, e.g. S1")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing identity (generates a new uuid)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newStationShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the station identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			id, err := station.Load(cfg.Station.IdentityPath)
			if err != nil {
				return fmt.Errorf("%w (run digistation station init --id NAME)", err)
			}
			if asJSON {
				return writeJSON(cmd, map[string]string{
					"station_id":   id.StationID,
					"station_uuid": id.StationUUID,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Identity file: %s\n", cfg.Station.IdentityPath)
			fmt.Fprintf(out, "station_id:   %s\n", id.StationID)
			fmt.Fprintf(out, "station_uuid: %s\n", id.StationUUID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
