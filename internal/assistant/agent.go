package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hyperengineering/nutrisync/internal/events"
	"github.com/hyperengineering/nutrisync/internal/types"
)

// MealLogger records meals.
type MealLogger interface {
	Create(ctx context.Context, m types.Meal) (types.Entry[types.Meal], error)
	Totals() types.MealTotals
}

// WaterLogger records water intakes.
type WaterLogger interface {
	Create(ctx context.Context, w types.WaterIntake) (types.Entry[types.WaterIntake], error)
	Totals() types.WaterTotals
}

// GoalsAdvisor is the part of the goals store the agent uses.
type GoalsAdvisor interface {
	Current() types.NutritionGoals
	RequestRemoteSuggestion(ctx context.Context, profile types.UserProfile, current types.DaySummary) (*types.GoalSuggestion, error)
	ApplyRemoteSuggestion(ctx context.Context, g types.NutritionGoals, accepted bool, feedback string) (types.NutritionGoals, error)
}

// ProfileReader returns the current user profile.
type ProfileReader interface {
	Get() types.UserProfile
}

// Options configures an Agent. Provider defaults to the local heuristics
// and Bus to a no-op emitter.
type Options struct {
	Provider Provider
	Meals    MealLogger
	Water    WaterLogger
	Goals    GoalsAdvisor
	Profile  ProfileReader
	Bus      events.Emitter
	// Preview makes LOG_MEAL replies emit SHOW_MEAL_PREVIEW instead of
	// creating the meal. ConfirmPreview creates it later.
	Preview bool
	Now     func() time.Time
}

// Agent applies assistant replies to the stores.
type Agent struct {
	provider Provider
	local    *Local
	meals    MealLogger
	water    WaterLogger
	goals    GoalsAdvisor
	profile  ProfileReader
	bus      events.Emitter
	preview  bool
	now      func() time.Time
}

// NewAgent creates an Agent.
func NewAgent(opts Options) *Agent {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	local := &Local{now: now}
	a := &Agent{
		provider: opts.Provider,
		local:    local,
		meals:    opts.Meals,
		water:    opts.Water,
		goals:    opts.Goals,
		profile:  opts.Profile,
		bus:      opts.Bus,
		preview:  opts.Preview,
		now:      now,
	}
	if a.provider == nil {
		a.provider = local
	}
	if a.bus == nil {
		a.bus = events.Nop{}
	}
	return a
}

// ProviderName returns the name of the configured provider.
func (a *Agent) ProviderName() string { return a.provider.Name() }

// Summary returns today's goals and totals.
func (a *Agent) Summary() types.DaySummary {
	s := types.DaySummary{
		Date:  a.now().Format(types.DateLayout),
		Goals: types.DefaultGoals(),
	}
	if a.goals != nil {
		s.Goals = a.goals.Current()
	}
	if a.meals != nil {
		s.Meals = a.meals.Totals()
	}
	if a.water != nil {
		s.Water = a.water.Totals()
	}
	return s
}

func (a *Agent) currentProfile() types.UserProfile {
	if a.profile == nil {
		return types.UserProfile{}
	}
	return a.profile.Get()
}

// Chat answers message and carries out the meal or water action it asks
// for. Provider failures fall back to the local heuristics; the only error
// returned is ErrEmptyMessage.
func (a *Agent) Chat(ctx context.Context, message string) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	summary := a.Summary()
	req := ChatRequest{Message: message, Context: &summary, Profile: a.currentProfile()}

	reply, err := a.provider.Chat(ctx, req)
	if err != nil || reply == nil {
		slog.Warn("assistant chat fell back to local",
			"component", "assistant",
			"provider", a.provider.Name(),
			"error", err,
		)
		reply, _ = a.local.Chat(ctx, req)
	}

	result := &ChatResult{Reply: reply.Response, Intent: reply.Intent, Source: reply.Source}
	switch reply.Intent {
	case IntentLogMeal:
		a.logMeal(ctx, message, reply, result)
	case IntentLogWater:
		a.logWater(ctx, message, reply, result)
	}

	if insights := ParseInsights(reply.Response); len(insights) > 0 {
		result.Insights = insights
		a.bus.Emit(types.DashboardEvent{Type: types.EventUpdateInsights, Data: insights})
	}
	return result, nil
}

// logMeal logs the meal described by the reply's action data, or by the
// message itself when the action data names no food.
func (a *Agent) logMeal(ctx context.Context, message string, reply *ChatReply, result *ChatResult) {
	meal, ok := a.mealFromAction(reply.ActionData)
	if !ok {
		meal, ok = MealFromMessage(message, a.now())
	}
	if !ok {
		result.ActionError = "no foods recognized in message"
		return
	}
	if a.preview {
		result.Preview = &meal
		a.bus.Emit(types.DashboardEvent{Type: types.EventShowMealPreview, Data: meal})
		return
	}
	if a.meals == nil {
		result.ActionError = "meal logging not available"
		return
	}
	entry, err := a.meals.Create(ctx, meal)
	if err != nil {
		slog.Warn("assistant meal not logged",
			"component", "assistant",
			"meal", meal.Name,
			"error", err,
		)
		result.ActionError = err.Error()
		return
	}
	result.Meal = &entry
}

// mealFromAction builds a meal from a reply's action data. Missing
// calories default to a typical meal; missing macros are estimated from
// the foods.
func (a *Agent) mealFromAction(d *ActionData) (types.Meal, bool) {
	if d == nil || (d.MealName == "" && len(d.Foods) == 0) {
		return types.Meal{}, false
	}
	now := a.now()
	m := types.Meal{
		Name:      d.MealName,
		MealType:  MealTimeFor(now),
		Foods:     d.Foods,
		Calories:  d.Calories,
		Protein:   d.Protein,
		Carbs:     d.Carbs,
		Fats:      d.Fats,
		Fiber:     d.Fiber,
		Date:      now.Format(types.DateLayout),
		CreatedAt: now.UTC(),
	}
	if m.Name == "" {
		m.Name = strings.Join(d.Foods, ", ")
	}
	if m.Calories <= 0 {
		m.Calories = defaultActionCalories
	}
	if m.Protein == 0 && m.Carbs == 0 && m.Fats == 0 && len(m.Foods) > 0 {
		m.Protein = EstimateProtein(m.Foods)
		m.Carbs = EstimateCarbs(m.Foods)
		m.Fats = EstimateFat(m.Foods)
	}
	return m, true
}

func (a *Agent) logWater(ctx context.Context, message string, reply *ChatReply, result *ChatResult) {
	if a.water == nil {
		result.ActionError = "water logging not available"
		return
	}
	var amount float64
	if d := reply.ActionData; d != nil {
		switch {
		case d.WaterAmount > 0:
			amount = d.WaterAmount
		case d.Glasses > 0:
			amount = float64(d.Glasses) * glassML
		}
	}
	if amount <= 0 {
		amount = ExtractWater(message)
	}
	if amount <= 0 {
		amount = glassML
	}
	now := a.now()
	entry, err := a.water.Create(ctx, types.WaterIntake{
		Amount:    amount,
		Date:      now.Format(types.DateLayout),
		CreatedAt: now.UTC(),
	})
	if err != nil {
		slog.Warn("assistant water not logged",
			"component", "assistant",
			"amount", amount,
			"error", err,
		)
		result.ActionError = err.Error()
		return
	}
	result.Water = &entry
}

// ConfirmPreview creates a meal previously offered with SHOW_MEAL_PREVIEW.
func (a *Agent) ConfirmPreview(ctx context.Context, m types.Meal) (types.Entry[types.Meal], error) {
	if a.meals == nil {
		return types.Entry[types.Meal]{}, errors.New("meal logging not available")
	}
	return a.meals.Create(ctx, m)
}

// Analyze assesses today's progress, emitting UPDATE_INSIGHTS and one
// SHOW_ALERT per alert. A failing provider is replaced by the local analysis.
func (a *Agent) Analyze(ctx context.Context) (*Analysis, error) {
	req := AnalysisRequest{Profile: a.currentProfile(), Summary: a.Summary()}

	analysis, err := a.provider.Analyze(ctx, req)
	if err != nil || analysis == nil {
		slog.Warn("assistant analysis fell back to local",
			"component", "assistant",
			"provider", a.provider.Name(),
			"error", err,
		)
		analysis = LocalAnalysis(req)
	}

	if len(analysis.Insights) > 0 {
		a.bus.Emit(types.DashboardEvent{Type: types.EventUpdateInsights, Data: analysis.Insights})
	}
	for _, alert := range analysis.Alerts {
		a.bus.Emit(types.DashboardEvent{Type: types.EventShowAlert, Data: alert})
	}
	return analysis, nil
}

// SuggestGoals returns a remote goal suggestion, or the goals calculated
// from the profile when none is available.
func (a *Agent) SuggestGoals(ctx context.Context) (*types.GoalSuggestion, error) {
	profile := a.currentProfile()
	if a.goals == nil {
		return LocalSuggestion(profile), nil
	}
	s, err := a.goals.RequestRemoteSuggestion(ctx, profile, a.Summary())
	if err != nil {
		slog.Info("offering locally calculated goals",
			"component", "assistant",
			"error", err,
		)
		return LocalSuggestion(profile), nil
	}
	return s, nil
}

// RespondToSuggestion accepts or declines a suggested goal set.
func (a *Agent) RespondToSuggestion(ctx context.Context, g types.NutritionGoals, accepted bool, feedback string) (types.NutritionGoals, error) {
	if a.goals == nil {
		return types.NutritionGoals{}, errors.New("goals not available")
	}
	return a.goals.ApplyRemoteSuggestion(ctx, g, accepted, feedback)
}
