// Package assistant turns conversational AI replies into store changes.
//
// A Provider talks to an AI backend. When a provider fails or returns
// something unusable, the Agent falls back to the local heuristics in this
// package, so a chat turn always produces a reply.
package assistant

import (
	"context"
	"errors"

	"github.com/hyperengineering/nutrisync/internal/types"
)

// Intent is the action a chat message asks for.
type Intent string

const (
	IntentNone     Intent = ""
	IntentLogMeal  Intent = "LOG_MEAL"
	IntentLogWater Intent = "LOG_WATER"
)

// Reply sources.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

var (
	// ErrEmptyMessage is returned for a blank chat message.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrMalformedReply marks a provider reply that could not be interpreted.
	ErrMalformedReply = errors.New("malformed assistant reply")
)

// ActionData carries the structured part of a chat reply.
type ActionData struct {
	MealName    string   `json:"mealName,omitempty"`
	Foods       []string `json:"foods,omitempty"`
	Calories    float64  `json:"calories,omitempty"`
	Protein     float64  `json:"protein,omitempty"`
	Carbs       float64  `json:"carbs,omitempty"`
	Fats        float64  `json:"fats,omitempty"`
	Fiber       float64  `json:"fiber,omitempty"`
	Glasses     int      `json:"glasses,omitempty"`
	WaterAmount float64  `json:"waterAmount,omitempty"`
}

// ChatRequest is one user turn with the day's progress as context.
type ChatRequest struct {
	Message string            `json:"message"`
	Context *types.DaySummary `json:"context,omitempty"`
	Profile types.UserProfile `json:"-"`
}

// ChatReply is a provider's answer to a ChatRequest.
type ChatReply struct {
	Response   string      `json:"response"`
	Intent     Intent      `json:"intent,omitempty"`
	ActionData *ActionData `json:"actionData,omitempty"`
	Source     string      `json:"source"`
}

// Alert is a health warning produced by an analysis.
type Alert struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// AnalysisRequest is the input of a day analysis.
type AnalysisRequest struct {
	Profile types.UserProfile `json:"profile"`
	Summary types.DaySummary  `json:"summary"`
}

// Analysis is the assessment of a day's progress.
type Analysis struct {
	Success             bool     `json:"success"`
	Insights            []string `json:"insights"`
	Alerts              []Alert  `json:"alerts"`
	Recommendations     []string `json:"recommendations"`
	HealthScore         int      `json:"healthScore"`
	MotivationalMessage string   `json:"motivationalMessage,omitempty"`
	Source              string   `json:"source"`
}

// Provider is an AI backend.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatReply, error)
	// SuggestGoals asks the backend to analyze the profile and propose goals.
	SuggestGoals(ctx context.Context, profile types.UserProfile, current types.DaySummary) (*types.GoalSuggestion, error)
	SubmitGoalFeedback(ctx context.Context, g types.NutritionGoals, accepted bool, feedback string) error
	Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error)
}

// ChatResult is what Agent.Chat did with a message.
type ChatResult struct {
	Reply    string                          `json:"reply"`
	Intent   Intent                          `json:"intent,omitempty"`
	Source   string                          `json:"source"`
	Meal     *types.Entry[types.Meal]        `json:"meal,omitempty"`
	Preview  *types.Meal                     `json:"preview,omitempty"`
	Water    *types.Entry[types.WaterIntake] `json:"water,omitempty"`
	Insights []string                        `json:"insights,omitempty"`
	// ActionError is set when the requested action could not be carried out.
	ActionError string `json:"action_error,omitempty"`
}
