package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/hyperengineering/nutrisync/internal/types"
	"github.com/hyperengineering/nutrisync/internal/water"
	"github.com/hyperengineering/nutrisync/pkg/nutrisync"
	"github.com/spf13/cobra"
)

var (
	waterGlasses int
	waterNotes   string
)

var waterCmd = &cobra.Command{
	Use:   "water",
	Short: "Log and list today's water intake",
}

var waterAddCmd = &cobra.Command{
	Use:   "add [ml]",
	Short: "Log water in millilitres or glasses",
	Example: `  nutrisync water add 500
  nutrisync water add --glasses 2`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWaterAdd,
}

var waterListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List today's water intake",
	Args:    cobra.NoArgs,
	RunE:    runWaterList,
}

var waterDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an intake by server or temporary ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
			if err := c.Water().Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Intake %q deleted.\n", args[0])
			return nil
		})
	},
}

var waterSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending water intake to the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, func(ctx context.Context, c *nutrisync.Client) ([]types.SyncResult, error) {
			res, err := c.Water().Sync(ctx)
			return []types.SyncResult{res}, err
		})
	},
}

func init() {
	waterAddCmd.Flags().IntVar(&waterGlasses, "glasses", 0, "Number of glasses to log")
	waterAddCmd.Flags().StringVar(&waterNotes, "notes", "", "Optional note")

	waterCmd.AddCommand(waterAddCmd)
	waterCmd.AddCommand(waterListCmd)
	waterCmd.AddCommand(waterDeleteCmd)
	waterCmd.AddCommand(waterSyncCmd)
}

func runWaterAdd(cmd *cobra.Command, args []string) error {
	var amount float64
	switch {
	case len(args) == 1 && waterGlasses > 0:
		return fmt.Errorf("give an amount or --glasses, not both")
	case len(args) == 1:
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[0], err)
		}
		amount = v
	case waterGlasses > 0:
		amount = float64(waterGlasses * water.GlassML)
	default:
		return fmt.Errorf("give an amount in ml or --glasses")
	}

	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		e, err := c.Water().Create(ctx, types.WaterIntake{Amount: amount, Notes: waterNotes})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), e)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged %g ml of water, id %s, %s. Today: %g / %g ml.\n",
			e.Data.Amount, e.Key(), entryStatus(e), c.Water().Totals().Total, c.Goals().Current().Water)
		return nil
	})
}

func runWaterList(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		entries := c.Water().All()
		totals := c.Water().Totals()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), struct {
				Entries []types.Entry[types.WaterIntake] `json:"entries"`
				Totals  types.WaterTotals                `json:"totals"`
			}{entries, totals})
		}
		return printWater(cmd.OutOrStdout(), entries, totals, c.Goals().Current().Water)
	})
}

func printWater(w io.Writer, entries []types.Entry[types.WaterIntake], totals types.WaterTotals, goal float64) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No water logged today.")
		return nil
	}
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "ID\tAMOUNT\tTIME\tNOTES")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			entryID(e), formatAmount(e.Data.Amount, "ml"),
			e.Data.CreatedAt.Local().Format("15:04"), e.Data.Notes)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Total: %g / %g ml\n", totals.Total, goal)
	if hasPending(entries) {
		fmt.Fprintln(w, "* pending sync")
	}
	return nil
}
