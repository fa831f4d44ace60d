package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/apply"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/suggest"
)

const maxReasonWidth = 48

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSuggestions(out io.Writer, suggestions []suggest.Suggestion) {
	if len(suggestions) == 0 {
		fmt.Fprintln(out, "No suggestions.")
		return
	}

	rows := make([][]string, 0, len(suggestions))
	for _, sg := range suggestions {
		applied := "no"
		if sg.Applied {
			applied = "yes"
		}
		rows = append(rows, []string{
			sg.ID,
			string(sg.Kind),
			sg.Title,
			strconv.FormatFloat(sg.Confidence, 'f', 2, 64),
			strconv.Itoa(len(sg.ItemIDs)),
			applied,
			truncate(sg.Reason, maxReasonWidth),
		})
	}

	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Type", "Title", "Confidence", "Items", "Applied", "Reason"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
		shouldColorize(out),
	))
}

func printApplyResult(out io.Writer, res apply.Result) {
	switch {
	case res.AlreadyApplied:
		fmt.Fprintf(out, "Already applied (collection %s)\n", res.AppliedCollectionID)
	case res.DryRun:
		fmt.Fprintf(out, "Would create collection %q with %d items\n", res.WouldCreateCollection, res.WouldAddItems)
		if res.Note != "" {
			fmt.Fprintln(out, res.Note)
		}
	case res.OK:
		fmt.Fprintf(out, "Created collection %s with %d items\n", res.CollectionID, res.AddedItems)
	default:
		fmt.Fprintf(out, "Apply failed: %s\n", res.Error)
		if res.Status != 0 {
			fmt.Fprintf(out, "Jellyfin responded %d: %s\n", res.Status, strings.TrimSpace(res.Body))
		}
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
