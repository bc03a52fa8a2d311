package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"digistation/internal/catalog"
)

type resolveOutput struct {
	CatalogNumber *string  `json:"catalog_number"`
	Others        []string `json:"other_catalog_numbers"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve BARCODE...",
		Short: "Resolve barcode values to a catalog number using the configured patterns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			resolver, err := catalog.NewResolver(cfg.Capture.CatalogPatterns, cfg.Capture.RequiredPrefix)
			if err != nil {
				return err
			}
			res := resolver.Resolve(args)
			if asJSON {
				others := res.Others
				if others == nil {
					others = []string{}
				}
				return writeJSON(cmd, resolveOutput{CatalogNumber: res.CatalogNumber, Others: others})
			}

			out := cmd.OutOrStdout()
			if res.CatalogNumber == nil {
				fmt.Fprintln(out, "Catalog number: (none)")
			} else {
				fmt.Fprintf(out, "Catalog number: %s\n", *res.CatalogNumber)
			}
			if len(res.Others) > 0 {
				fmt.Fprintf(out, "Others: %s\n", strings.Join(res.Others, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
