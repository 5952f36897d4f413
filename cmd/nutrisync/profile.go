package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperengineering/nutrisync/internal/types"
	"github.com/hyperengineering/nutrisync/pkg/nutrisync"
	"github.com/spf13/cobra"
)

var (
	profileAge          int
	profileWeight       float64
	profileHeight       float64
	profileGender       string
	profileActivity     string
	profileConditions   []string
	profileRestrictions []string
	profileGoals        []string
	profileCalorieGoal  float64
	profileWaterGoal    float64
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show and change the health profile",
	Args:  cobra.NoArgs,
	RunE:  runProfileShow,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored profile",
	Args:  cobra.NoArgs,
	RunE:  runProfileShow,
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change profile fields",
	Long: `Change profile fields with flags. Unset flags leave the field unchanged.
Adding a diabetes condition fixes the daily carb limit and updates the goals.`,
	Example: `  nutrisync profile set --age 34 --weight 70 --height 175 --gender male --activity moderate
  nutrisync profile set --conditions "type 2 diabetes"`,
	Args: cobra.NoArgs,
	RunE: runProfileSet,
}

func init() {
	f := profileSetCmd.Flags()
	f.IntVar(&profileAge, "age", 0, "Age in years")
	f.Float64Var(&profileWeight, "weight", 0, "Weight (kg)")
	f.Float64Var(&profileHeight, "height", 0, "Height (cm)")
	f.StringVar(&profileGender, "gender", "", "Gender: male or female")
	f.StringVar(&profileActivity, "activity", "", "Activity: sedentary, light, moderate, active, very_active")
	f.StringSliceVar(&profileConditions, "conditions", nil, "Health conditions (replaces the list)")
	f.StringSliceVar(&profileRestrictions, "restrictions", nil, "Dietary restrictions (replaces the list)")
	f.StringSliceVar(&profileGoals, "goals", nil, "Personal health goals (replaces the list)")
	f.Float64Var(&profileCalorieGoal, "calorie-goal", 0, "Daily calorie goal (kcal)")
	f.Float64Var(&profileWaterGoal, "water-goal", 0, "Daily water goal (ml)")

	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		return outputProfile(cmd, c.Profile().Get())
	})
}

func profilePatchFromFlags(cmd *cobra.Command) types.ProfilePatch {
	var p types.ProfilePatch
	changed := cmd.Flags().Changed
	if changed("age") {
		p.Age = &profileAge
	}
	if changed("weight") {
		p.Weight = &profileWeight
	}
	if changed("height") {
		p.Height = &profileHeight
	}
	if changed("gender") {
		g := types.Gender(strings.ToUpper(profileGender))
		p.Gender = &g
	}
	if changed("activity") {
		a := types.ActivityLevel(strings.ToUpper(profileActivity))
		p.ActivityLevel = &a
	}
	if changed("conditions") {
		p.HealthConditions = &profileConditions
	}
	if changed("restrictions") {
		p.DietaryRestrictions = &profileRestrictions
	}
	if changed("goals") {
		p.Goals = &profileGoals
	}
	if changed("calorie-goal") {
		p.DailyCalorieGoal = &profileCalorieGoal
	}
	if changed("water-goal") {
		p.DailyWaterGoal = &profileWaterGoal
	}
	return p
}

func runProfileSet(cmd *cobra.Command, args []string) error {
	patch := profilePatchFromFlags(cmd)
	if patch.IsEmpty() {
		return fmt.Errorf("no profile fields given")
	}
	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		p, err := c.Profile().Update(ctx, patch)
		if err != nil {
			return err
		}
		return outputProfile(cmd, p)
	})
}

func outputProfile(cmd *cobra.Command, p types.UserProfile) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), p)
	}

	tw := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintf(tw, "Age:\t%s\n", orDash(p.Age > 0, fmt.Sprint(p.Age)))
	fmt.Fprintf(tw, "Weight:\t%s\n", orDash(p.Weight > 0, formatAmount(p.Weight, "kg")))
	fmt.Fprintf(tw, "Height:\t%s\n", orDash(p.Height > 0, formatAmount(p.Height, "cm")))
	fmt.Fprintf(tw, "Gender:\t%s\n", orDash(p.Gender != "", string(p.Gender)))
	fmt.Fprintf(tw, "Activity:\t%s\n", orDash(p.ActivityLevel != "", string(p.ActivityLevel)))
	fmt.Fprintf(tw, "Conditions:\t%s\n", orDash(len(p.HealthConditions) > 0, strings.Join(p.HealthConditions, ", ")))
	fmt.Fprintf(tw, "Restrictions:\t%s\n", orDash(len(p.DietaryRestrictions) > 0, strings.Join(p.DietaryRestrictions, ", ")))
	fmt.Fprintf(tw, "Goals:\t%s\n", orDash(len(p.Goals) > 0, strings.Join(p.Goals, ", ")))
	if p.DailyCarbLimit > 0 {
		fmt.Fprintf(tw, "Carb limit:\t%s\n", formatAmount(p.DailyCarbLimit, "g"))
	}
	return tw.Flush()
}

func orDash(ok bool, s string) string {
	if ok {
		return s
	}
	return "-"
}
