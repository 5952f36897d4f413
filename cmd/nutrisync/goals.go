package main

import (
	"context"
	"fmt"

	"github.com/hyperengineering/nutrisync/internal/types"
	"github.com/hyperengineering/nutrisync/pkg/nutrisync"
	"github.com/spf13/cobra"
)

var (
	goalsCalories float64
	goalsWater    float64
	goalsCarbs    float64
	goalsProtein  float64
	goalsFat      float64
	goalsFiber    float64
	goalsReason   string
	goalsApply    bool
	goalsAccept   bool
	historyClear  bool
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Show and change nutrition goals",
	Args:  cobra.NoArgs,
	RunE:  runGoalsShow,
}

var goalsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current goals",
	Args:  cobra.NoArgs,
	RunE:  runGoalsShow,
}

var goalsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change one or more goals",
	Long:  "Change goals with flags. Unset flags leave the goal unchanged. Values outside the safety limits are rejected.",
	Example: `  nutrisync goals set --calories 1800 --water 3000
  nutrisync goals set --carbs 130 --reason "Doctor's advice"`,
	Args: cobra.NoArgs,
	RunE: runGoalsSet,
}

var goalsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default goals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
			return outputGoals(cmd, c.Goals().ResetToDefaults(ctx))
		})
	},
}

var goalsCalcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Calculate goals from the stored profile",
	Args:  cobra.NoArgs,
	RunE:  runGoalsCalc,
}

var goalsSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Ask the assistant for a goal suggestion",
	Args:  cobra.NoArgs,
	RunE:  runGoalsSuggest,
}

var goalsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded goal changes",
	Args:  cobra.NoArgs,
	RunE:  runGoalsHistory,
}

func init() {
	f := goalsSetCmd.Flags()
	f.Float64Var(&goalsCalories, "calories", 0, "Daily calories (kcal)")
	f.Float64Var(&goalsWater, "water", 0, "Daily water (ml)")
	f.Float64Var(&goalsCarbs, "carbs", 0, "Daily carbohydrates (g)")
	f.Float64Var(&goalsProtein, "protein", 0, "Daily protein (g)")
	f.Float64Var(&goalsFat, "fat", 0, "Daily fat (g)")
	f.Float64Var(&goalsFiber, "fiber", 0, "Daily fiber (g)")
	f.StringVar(&goalsReason, "reason", "Updated from CLI", "Reason recorded in the goal history")

	goalsCalcCmd.Flags().BoolVar(&goalsApply, "apply", false, "Apply the calculated goals")
	goalsSuggestCmd.Flags().BoolVar(&goalsAccept, "accept", false, "Accept and apply the suggestion")
	goalsHistoryCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete the goal history")

	goalsCmd.AddCommand(goalsShowCmd)
	goalsCmd.AddCommand(goalsSetCmd)
	goalsCmd.AddCommand(goalsResetCmd)
	goalsCmd.AddCommand(goalsCalcCmd)
	goalsCmd.AddCommand(goalsSuggestCmd)
	goalsCmd.AddCommand(goalsHistoryCmd)
}

func outputGoals(cmd *cobra.Command, g types.NutritionGoals) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), g)
	}
	return printGoals(cmd.OutOrStdout(), g)
}

func runGoalsShow(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		return outputGoals(cmd, c.Goals().Current())
	})
}

// goalsPatchFromFlags builds a patch from the flags the user actually set.
func goalsPatchFromFlags(cmd *cobra.Command) types.GoalsPatch {
	var p types.GoalsPatch
	set := func(name string, v float64, dst **float64) {
		if cmd.Flags().Changed(name) {
			*dst = &v
		}
	}
	set("calories", goalsCalories, &p.Calories)
	set("water", goalsWater, &p.Water)
	set("carbs", goalsCarbs, &p.Carbs)
	set("protein", goalsProtein, &p.Protein)
	set("fat", goalsFat, &p.Fat)
	set("fiber", goalsFiber, &p.Fiber)
	return p
}

func runGoalsSet(cmd *cobra.Command, args []string) error {
	patch := goalsPatchFromFlags(cmd)
	if patch.IsEmpty() {
		return fmt.Errorf("no goals given; set at least one of --calories, --water, --carbs, --protein, --fat, --fiber")
	}
	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		g, err := c.Goals().Update(ctx, patch, goalsReason)
		if err != nil {
			return err
		}
		return outputGoals(cmd, g)
	})
}

func runGoalsCalc(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		g := c.Goals().CalculateFromProfile(c.Profile().Get())
		if goalsApply {
			var err error
			g, err = c.Goals().Apply(ctx, types.PatchFromGoals(g), "Calculated from profile", types.SourceProfileUpdate)
			if err != nil {
				return err
			}
		}
		return outputGoals(cmd, g)
	})
}

func runGoalsSuggest(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		s, err := c.Agent().SuggestGoals(ctx)
		if err != nil {
			return err
		}
		if goalsAccept {
			if _, err := c.Agent().RespondToSuggestion(ctx, s.Goals, true, ""); err != nil {
				return err
			}
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), s)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Suggested goals (source: %s, confidence %.0f%%):\n", s.Source, s.Confidence*100)
		if err := printGoals(w, s.Goals); err != nil {
			return err
		}
		if s.Explanation != "" {
			fmt.Fprintf(w, "\n%s\n", s.Explanation)
		}
		for _, r := range s.Recommendations {
			fmt.Fprintf(w, "  - %s\n", r)
		}
		if goalsAccept {
			fmt.Fprintln(w, "\nSuggestion applied.")
		}
		return nil
	})
}

func runGoalsHistory(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		if historyClear {
			c.Goals().ClearHistory(ctx)
			if !jsonOutput {
				fmt.Fprintln(cmd.OutOrStdout(), "Goal history cleared.")
				return nil
			}
		}

		history := c.Goals().History()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), history)
		}
		if len(history) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No goal changes recorded.")
			return nil
		}

		tw := newTabWriter(cmd.OutOrStdout())
		fmt.Fprintln(tw, "TIME\tSOURCE\tCALORIES\tWATER\tREASON")
		for _, r := range history {
			fmt.Fprintf(tw, "%s\t%s\t%g -> %g\t%g -> %g\t%s\n",
				r.Timestamp.Local().Format("2006-01-02 15:04"),
				r.Source,
				r.PreviousGoals.Calories, r.NewGoals.Calories,
				r.PreviousGoals.Water, r.NewGoals.Water,
				r.Reason,
			)
		}
		return tw.Flush()
	})
}
