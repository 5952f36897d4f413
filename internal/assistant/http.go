package assistant

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hyperengineering/nutrisync/internal/backend"
	"github.com/hyperengineering/nutrisync/internal/types"
)

// Compile-time interface check
var _ Provider = (*HTTPProvider)(nil)

// HTTPProvider talks to the AI backend REST API.
type HTTPProvider struct {
	c      *backend.Client
	userID string
}

// NewHTTPProvider creates a provider that sends requests through c.
func NewHTTPProvider(c *backend.Client) *HTTPProvider {
	return &HTTPProvider{c: c, userID: c.UserID()}
}

// Name returns "http".
func (p *HTTPProvider) Name() string { return "http" }

type smartChatResponse struct {
	Response   string      `json:"response"`
	Intent     string      `json:"intent"`
	ActionData *ActionData `json:"actionData"`
}

// Chat posts the message to /smart/chat.
func (p *HTTPProvider) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	var resp smartChatResponse
	body := struct {
		Message string            `json:"message"`
		Context *types.DaySummary `json:"context,omitempty"`
	}{req.Message, req.Context}
	if err := p.c.Do(ctx, http.MethodPost, "/smart/chat", body, &resp); err != nil {
		return nil, fmt.Errorf("smart chat: %w", err)
	}
	if strings.TrimSpace(resp.Response) == "" {
		return nil, fmt.Errorf("smart chat: %w: empty response", ErrMalformedReply)
	}
	return &ChatReply{
		Response:   resp.Response,
		Intent:     Intent(strings.ToUpper(resp.Intent)),
		ActionData: resp.ActionData,
		Source:     SourceRemote,
	}, nil
}

// wireProfile is the profile shape the AI backend expects.
type wireProfile struct {
	HealthConditions    []string `json:"healthConditions"`
	DietaryRestrictions []string `json:"dietaryRestrictions"`
	Goals               []string `json:"goals"`
	Age                 int      `json:"age,omitempty"`
	Weight              float64  `json:"weight,omitempty"`
	Height              float64  `json:"height,omitempty"`
	Gender              string   `json:"gender,omitempty"`
	ActivityLevel       string   `json:"activityLevel,omitempty"`
	DailyCalorieGoal    float64  `json:"dailyCalorieGoal,omitempty"`
	DailyWaterGoal      float64  `json:"dailyWaterGoal,omitempty"`
	DailyCarbLimit      float64  `json:"dailyCarbLimit,omitempty"`
}

func toWireProfile(p types.UserProfile) wireProfile {
	p = p.Clone()
	return wireProfile{
		HealthConditions:    p.HealthConditions,
		DietaryRestrictions: p.DietaryRestrictions,
		Goals:               p.Goals,
		Age:                 p.Age,
		Weight:              p.Weight,
		Height:              p.Height,
		Gender:              string(p.Gender),
		ActivityLevel:       string(p.ActivityLevel),
		DailyCalorieGoal:    p.DailyCalorieGoal,
		DailyWaterGoal:      p.DailyWaterGoal,
		DailyCarbLimit:      p.DailyCarbLimit,
	}
}

type analyzeProfileResponse struct {
	Success         bool                  `json:"success"`
	SuggestedGoals  *types.NutritionGoals `json:"suggestedGoals"`
	Explanation     string                `json:"explanation"`
	Confidence      float64               `json:"confidence"`
	Recommendations []string              `json:"recommendations"`
}

// SuggestGoals posts the profile to /agent/analyze-profile.
func (p *HTTPProvider) SuggestGoals(ctx context.Context, profile types.UserProfile, current types.DaySummary) (*types.GoalSuggestion, error) {
	var resp analyzeProfileResponse
	body := struct {
		UserProfile wireProfile      `json:"userProfile"`
		CurrentData types.DaySummary `json:"currentData"`
	}{toWireProfile(profile), current}
	if err := p.c.Do(ctx, http.MethodPost, "/agent/analyze-profile", body, &resp); err != nil {
		return nil, fmt.Errorf("analyze profile: %w", err)
	}
	if !resp.Success || resp.SuggestedGoals == nil {
		return nil, fmt.Errorf("analyze profile: %w: no suggested goals", ErrMalformedReply)
	}
	return &types.GoalSuggestion{
		Goals:           *resp.SuggestedGoals,
		Explanation:     resp.Explanation,
		Confidence:      resp.Confidence,
		Recommendations: resp.Recommendations,
		Source:          SourceRemote,
	}, nil
}

// SubmitGoalFeedback posts the decision on a suggestion to /agent/update-goals.
func (p *HTTPProvider) SubmitGoalFeedback(ctx context.Context, g types.NutritionGoals, accepted bool, feedback string) error {
	body := struct {
		UserID   string               `json:"userId"`
		NewGoals types.NutritionGoals `json:"newGoals"`
		Accepted bool                 `json:"accepted"`
		Feedback string               `json:"feedback,omitempty"`
	}{p.userID, g, accepted, feedback}
	if err := p.c.Do(ctx, http.MethodPost, "/agent/update-goals", body, nil); err != nil {
		return fmt.Errorf("update goals feedback: %w", err)
	}
	return nil
}

// Analyze posts the day's totals to /agent/analyze.
func (p *HTTPProvider) Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	body := struct {
		UserProfile   wireProfile          `json:"userProfile"`
		Goals         types.NutritionGoals `json:"goals"`
		TodayCalories float64              `json:"todayCalories"`
		TodayCarbs    float64              `json:"todayCarbs"`
		TodayProtein  float64              `json:"todayProtein"`
		TodayWater    float64              `json:"todayWater"`
	}{
		UserProfile:   toWireProfile(req.Profile),
		Goals:         req.Summary.Goals,
		TodayCalories: req.Summary.Meals.Calories,
		TodayCarbs:    req.Summary.Meals.Carbs,
		TodayProtein:  req.Summary.Meals.Protein,
		TodayWater:    req.Summary.Water.Total,
	}
	var resp Analysis
	if err := p.c.Do(ctx, http.MethodPost, "/agent/analyze", body, &resp); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("analyze: %w: success=false", ErrMalformedReply)
	}
	resp.Source = SourceRemote
	return &resp, nil
}
