package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperengineering/nutrisync/pkg/nutrisync"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Talk to the nutrition assistant",
	Long: `Send a message to the assistant. Messages that describe a meal or a
drink are logged automatically.`,
	Example: `  nutrisync chat "I had two eggs and toast for breakfast"
  nutrisync chat "drank 500ml of water"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze today's progress",
	Args:  cobra.NoArgs,
	RunE:  runAnalyze,
}

func runChat(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		res, err := c.Agent().Chat(ctx, message)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, res.Reply)
		if res.Meal != nil {
			fmt.Fprintf(w, "\nLogged meal %q (%g kcal), %s.\n", res.Meal.Data.Name, res.Meal.Data.Calories, entryStatus(*res.Meal))
		}
		if res.Preview != nil {
			fmt.Fprintf(w, "\nMeal preview: %q (%g kcal). Log it with: nutrisync meal add %q --calories %g\n",
				res.Preview.Name, res.Preview.Calories, res.Preview.Name, res.Preview.Calories)
		}
		if res.Water != nil {
			fmt.Fprintf(w, "\nLogged %g ml of water, %s.\n", res.Water.Data.Amount, entryStatus(*res.Water))
		}
		if res.ActionError != "" {
			fmt.Fprintf(w, "\nCould not log entry: %s\n", res.ActionError)
		}
		return nil
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		a, err := c.Agent().Analyze(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), a)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Health score: %d/100 (source: %s)\n", a.HealthScore, a.Source)
		if len(a.Alerts) > 0 {
			fmt.Fprintln(w, "\nAlerts:")
			for _, al := range a.Alerts {
				fmt.Fprintf(w, "  [%s] %s: %s\n", al.Priority, al.Title, al.Message)
			}
		}
		if len(a.Insights) > 0 {
			fmt.Fprintln(w, "\nInsights:")
			for _, in := range a.Insights {
				fmt.Fprintf(w, "  - %s\n", in)
			}
		}
		if len(a.Recommendations) > 0 {
			fmt.Fprintln(w, "\nRecommendations:")
			for _, r := range a.Recommendations {
				fmt.Fprintf(w, "  - %s\n", r)
			}
		}
		if a.MotivationalMessage != "" {
			fmt.Fprintf(w, "\n%s\n", a.MotivationalMessage)
		}
		return nil
	})
}
