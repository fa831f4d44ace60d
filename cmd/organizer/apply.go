package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/apply"
)

func newApplyCommand(ctx *commandContext) *cobra.Command {
	var execute bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "apply <suggestion-id>",
		Short: "Preview or create the collection for a suggestion",
		Long: "Preview or create the collection for a suggestion.\n\n" +
			"Without --execute the command only reports what would be created.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			mode := apply.ModePreview
			if execute {
				mode = apply.ModeExecute
			}

			res, err := s.app.Apply.Apply(cmd.Context(), args[0], mode)
			if err != nil && !errors.Is(err, apply.ErrApplyFailed) {
				return err
			}

			if asJSON {
				if jerr := writeJSON(cmd, res); jerr != nil {
					return jerr
				}
			} else {
				printApplyResult(cmd.OutOrStdout(), res)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&execute, "execute", false, "Create the collection on the Jellyfin server")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the apply result as JSON")
	return cmd
}
