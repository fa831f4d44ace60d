package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/store"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/suggest"
)

func newSuggestionsCommand(ctx *commandContext) *cobra.Command {
	var kind string
	var pending bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "suggestions",
		Aliases: []string{"ls"},
		Short:   "List stored suggestions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k := suggest.Kind(kind)
			if k != "" && !k.Valid() {
				return fmt.Errorf("invalid kind %q (want collection or tag)", kind)
			}

			s, err := ctx.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			suggestions, err := s.app.Store.ListSuggestions(cmd.Context(), store.ListOptions{Kind: k, Pending: pending})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, suggestions)
			}
			printSuggestions(cmd.OutOrStdout(), suggestions)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only show collection or tag suggestions")
	cmd.Flags().BoolVar(&pending, "pending", false, "Hide applied suggestions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print suggestions as JSON")
	return cmd
}
