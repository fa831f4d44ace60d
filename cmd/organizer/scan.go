package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/store"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Fetch the library once and regenerate suggestions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.app.Scan.Run(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, res)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanned %d items, %d suggestions (dry-run: %t)\n", res.Items, res.Suggestions, res.DryRun)

			suggestions, err := s.app.Store.ListSuggestions(cmd.Context(), store.ListOptions{})
			if err != nil {
				return err
			}
			printSuggestions(out, suggestions)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the scan result as JSON")
	return cmd
}
