package assistant

import (
	"context"
	"time"

	"github.com/hyperengineering/nutrisync/internal/goals"
	"github.com/hyperengineering/nutrisync/internal/types"
)

// Compile-time interface check
var _ Provider = (*Local)(nil)

// Local answers everything with the package heuristics. It never fails.
type Local struct {
	now func() time.Time
}

// NewLocal creates a Local provider.
func NewLocal() *Local {
	return &Local{now: time.Now}
}

// Name returns "local".
func (l *Local) Name() string { return "local" }

// Chat replies from keyword rules and extracts a meal or water amount.
func (l *Local) Chat(_ context.Context, req ChatRequest) (*ChatReply, error) {
	now := l.now()
	reply := &ChatReply{
		Response: LocalReply(req.Message, req.Profile.IsDiabetic(), now),
		Intent:   DetectIntent(req.Message),
		Source:   SourceLocal,
	}
	switch reply.Intent {
	case IntentLogMeal:
		if meal, ok := MealFromMessage(req.Message, now); ok {
			reply.ActionData = &ActionData{
				MealName: meal.Name,
				Foods:    meal.Foods,
				Calories: meal.Calories,
				Protein:  meal.Protein,
				Carbs:    meal.Carbs,
				Fats:     meal.Fats,
			}
		}
	case IntentLogWater:
		amount := ExtractWater(req.Message)
		if amount == 0 {
			amount = glassML
		}
		reply.ActionData = &ActionData{WaterAmount: amount}
	}
	return reply, nil
}

// SuggestGoals returns the goals calculated from the profile.
func (l *Local) SuggestGoals(_ context.Context, profile types.UserProfile, _ types.DaySummary) (*types.GoalSuggestion, error) {
	return LocalSuggestion(profile), nil
}

// SubmitGoalFeedback does nothing.
func (l *Local) SubmitGoalFeedback(context.Context, types.NutritionGoals, bool, string) error {
	return nil
}

// Analyze scores the day locally.
func (l *Local) Analyze(_ context.Context, req AnalysisRequest) (*Analysis, error) {
	return LocalAnalysis(req), nil
}

// LocalSuggestion proposes the goals calculated from the profile.
func LocalSuggestion(profile types.UserProfile) *types.GoalSuggestion {
	s := &types.GoalSuggestion{
		Goals:       goals.Calculate(profile),
		Explanation: "Calculated from your profile with the Mifflin-St Jeor equation and your activity level.",
		Confidence:  SuggestionConfidence(profile),
		Source:      SourceLocal,
	}
	if profile.IsDiabetic() {
		s.Recommendations = append(s.Recommendations,
			"Carbohydrates are capped at 130g for blood sugar control",
			"Fiber is raised to 35g to slow glucose absorption")
	}
	return s
}
