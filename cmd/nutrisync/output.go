package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hyperengineering/nutrisync/internal/types"
)

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// entryID returns the server ID, or the temporary ID marked with an asterisk.
func entryID[T any](e types.Entry[T]) string {
	if e.IsPending() {
		return e.TempID + "*"
	}
	return e.ID
}

func entryStatus[T any](e types.Entry[T]) string {
	if e.IsPending() {
		return "pending sync"
	}
	return "synced"
}

func formatAmount(v float64, unit string) string {
	return fmt.Sprintf("%g %s", v, unit)
}

func printGoals(w io.Writer, g types.NutritionGoals) error {
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "Calories:\t%s\n", formatAmount(g.Calories, "kcal"))
	fmt.Fprintf(tw, "Water:\t%s\n", formatAmount(g.Water, "ml"))
	fmt.Fprintf(tw, "Carbs:\t%s\n", formatAmount(g.Carbs, "g"))
	fmt.Fprintf(tw, "Protein:\t%s\n", formatAmount(g.Protein, "g"))
	fmt.Fprintf(tw, "Fat:\t%s\n", formatAmount(g.Fat, "g"))
	fmt.Fprintf(tw, "Fiber:\t%s\n", formatAmount(g.Fiber, "g"))
	return tw.Flush()
}
