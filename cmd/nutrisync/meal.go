package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperengineering/nutrisync/internal/assistant"
	"github.com/hyperengineering/nutrisync/internal/types"
	"github.com/hyperengineering/nutrisync/pkg/nutrisync"
	"github.com/spf13/cobra"
)

var (
	mealType        string
	mealDescription string
	mealFoods       []string
	mealCalories    float64
	mealProtein     float64
	mealCarbs       float64
	mealFats        float64
	mealFiber       float64
)

var mealCmd = &cobra.Command{
	Use:     "meal",
	Aliases: []string{"meals"},
	Short:   "Log and list today's meals",
}

var mealAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Log a meal",
	Long: `Log a meal for today. The meal is sent to the backend when it is
reachable and kept locally as pending otherwise.`,
	Example: `  nutrisync meal add "Oatmeal" --calories 300 --carbs 54 --type breakfast`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runMealAdd,
}

var mealListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List today's meals",
	Args:    cobra.NoArgs,
	RunE:    runMealList,
}

var mealDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a meal by server or temporary ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
			if err := c.Meals().Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Meal %q deleted.\n", args[0])
			return nil
		})
	},
}

var mealSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending meals to the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, func(ctx context.Context, c *nutrisync.Client) ([]types.SyncResult, error) {
			res, err := c.Meals().Sync(ctx)
			return []types.SyncResult{res}, err
		})
	},
}

func init() {
	f := mealAddCmd.Flags()
	f.StringVar(&mealType, "type", "", "Meal type: breakfast, lunch, dinner or snack (default from time of day)")
	f.StringVar(&mealDescription, "description", "", "Free-text description")
	f.StringSliceVar(&mealFoods, "foods", nil, "Comma-separated food items")
	f.Float64Var(&mealCalories, "calories", 0, "Calories (kcal)")
	f.Float64Var(&mealProtein, "protein", 0, "Protein (g)")
	f.Float64Var(&mealCarbs, "carbs", 0, "Carbohydrates (g)")
	f.Float64Var(&mealFats, "fats", 0, "Fat (g)")
	f.Float64Var(&mealFiber, "fiber", 0, "Fiber (g)")

	mealCmd.AddCommand(mealAddCmd)
	mealCmd.AddCommand(mealListCmd)
	mealCmd.AddCommand(mealDeleteCmd)
	mealCmd.AddCommand(mealSyncCmd)
}

func runMealAdd(cmd *cobra.Command, args []string) error {
	m := types.Meal{
		Name:        strings.Join(args, " "),
		Description: mealDescription,
		MealType:    types.ParseMealType(mealType),
		Foods:       mealFoods,
		Calories:    mealCalories,
		Protein:     mealProtein,
		Carbs:       mealCarbs,
		Fats:        mealFats,
		Fiber:       mealFiber,
	}
	if mealType == "" {
		m.MealType = assistant.MealTimeFor(time.Now())
	}

	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		e, err := c.Meals().Create(ctx, m)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), e)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged %s %q (%g kcal), id %s, %s.\n",
			strings.ToLower(string(e.Data.MealType)), e.Data.Name, e.Data.Calories, e.Key(), entryStatus(e))
		return nil
	})
}

func runMealList(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		entries := c.Meals().All()
		totals := c.Meals().Totals()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), struct {
				Entries []types.Entry[types.Meal] `json:"entries"`
				Totals  types.MealTotals          `json:"totals"`
			}{entries, totals})
		}
		return printMeals(cmd.OutOrStdout(), entries, totals)
	})
}

func printMeals(w io.Writer, entries []types.Entry[types.Meal], totals types.MealTotals) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No meals logged today.")
		return nil
	}
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "ID\tTYPE\tNAME\tCALORIES\tCARBS\tPROTEIN\tFATS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\t%g\t%g\n",
			entryID(e), e.Data.MealType, e.Data.Name,
			e.Data.Calories, e.Data.Carbs, e.Data.Protein, e.Data.Fats)
	}
	fmt.Fprintf(tw, "\tTOTAL\t%d meals\t%g\t%g\t%g\t%g\n",
		totals.Count, totals.Calories, totals.Carbs, totals.Protein, totals.Fats)
	if err := tw.Flush(); err != nil {
		return err
	}
	if hasPending(entries) {
		fmt.Fprintln(w, "* pending sync")
	}
	return nil
}

func hasPending[T any](entries []types.Entry[T]) bool {
	for _, e := range entries {
		if e.IsPending() {
			return true
		}
	}
	return false
}
