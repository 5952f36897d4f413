package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/nutrisync/internal/assistant"
	"github.com/hyperengineering/nutrisync/internal/events"
	"github.com/hyperengineering/nutrisync/internal/types"
)

// GoalsService is the goals store as seen by the API.
type GoalsService interface {
	Current() types.NutritionGoals
	Update(ctx context.Context, patch types.GoalsPatch, reason string) (types.NutritionGoals, error)
	Apply(ctx context.Context, patch types.GoalsPatch, reason string, source types.GoalSource) (types.NutritionGoals, error)
	ResetToDefaults(ctx context.Context) types.NutritionGoals
	History() []types.GoalUpdateRecord
	ClearHistory(ctx context.Context)
	CalculateFromProfile(profile types.UserProfile) types.NutritionGoals
}

// MealService is the meal stream as seen by the API.
type MealService interface {
	All() []types.Entry[types.Meal]
	Pending() []types.Entry[types.Meal]
	Create(ctx context.Context, m types.Meal) (types.Entry[types.Meal], error)
	Update(ctx context.Context, id string, m types.Meal) (types.Entry[types.Meal], error)
	Delete(ctx context.Context, id string) error
	SyncLocalToRemote(ctx context.Context) ([]types.Entry[types.Meal], error)
	Totals() types.MealTotals
}

// WaterService is the water stream as seen by the API.
type WaterService interface {
	All() []types.Entry[types.WaterIntake]
	Pending() []types.Entry[types.WaterIntake]
	Create(ctx context.Context, w types.WaterIntake) (types.Entry[types.WaterIntake], error)
	Delete(ctx context.Context, id string) error
	SyncLocalToRemote(ctx context.Context) ([]types.Entry[types.WaterIntake], error)
	Totals() types.WaterTotals
}

// ProfileService is the profile store as seen by the API.
type ProfileService interface {
	Get() types.UserProfile
	Update(ctx context.Context, patch types.ProfilePatch) (types.UserProfile, error)
}

// Assistant is the conversational agent as seen by the API.
type Assistant interface {
	Chat(ctx context.Context, message string) (*assistant.ChatResult, error)
	Analyze(ctx context.Context) (*assistant.Analysis, error)
	SuggestGoals(ctx context.Context) (*types.GoalSuggestion, error)
	RespondToSuggestion(ctx context.Context, g types.NutritionGoals, accepted bool, feedback string) (types.NutritionGoals, error)
}

// StatsSource reports local store counters.
type StatsSource interface {
	Stats(ctx context.Context) (*types.StoreStats, error)
}

// EventSource is the dashboard bus as seen by the events stream.
type EventSource interface {
	On(fn events.Handler) (off func())
}

// Options wires a Handler to the client's stores.
type Options struct {
	Goals   GoalsService
	Meals   MealService
	Water   WaterService
	Profile ProfileService
	Agent   Assistant
	Stats   StatsSource
	Events  EventSource
	APIKey  string
	Version string
	// Online reports whether a backend is configured.
	Online bool
}

// Handler implements the API handlers
type Handler struct {
	goals   GoalsService
	meals   MealService
	water   WaterService
	profile ProfileService
	agent   Assistant
	stats   StatsSource
	events  EventSource
	apiKey  string
	version string
	online  bool
}

// NewHandler creates a new Handler.
func NewHandler(opts Options) *Handler {
	return &Handler{
		goals:   opts.Goals,
		meals:   opts.Meals,
		water:   opts.Water,
		profile: opts.Profile,
		agent:   opts.Agent,
		stats:   opts.Stats,
		events:  opts.Events,
		apiKey:  opts.APIKey,
		version: opts.Version,
		online:  opts.Online,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (allowEmpty && err == io.EOF) {
		return true
	}
	WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
	return false
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Mode:    "offline",
	}
	if h.online {
		resp.Mode = "online"
	}
	if h.stats != nil {
		stats, err := h.stats.Stats(r.Context())
		if err != nil {
			MapError(w, r, err)
			return
		}
		resp.PendingMeals = stats.PendingMeals
		resp.PendingWater = stats.PendingWater
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetGoals handles GET /api/v1/goals
func (h *Handler) GetGoals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.goals.Current())
}

type updateGoalsRequest struct {
	types.GoalsPatch
	Reason string `json:"reason,omitempty"`
}

// UpdateGoals handles PATCH /api/v1/goals
func (h *Handler) UpdateGoals(w http.ResponseWriter, r *http.Request) {
	var req updateGoalsRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.Reason == "" {
		req.Reason = "Updated via API"
	}
	g, err := h.goals.Update(r.Context(), req.GoalsPatch, req.Reason)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// ResetGoals handles POST /api/v1/goals/reset
func (h *Handler) ResetGoals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.goals.ResetToDefaults(r.Context()))
}

// GoalsHistory handles GET /api/v1/goals/history
func (h *Handler) GoalsHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.goals.History())
}

// ClearGoalsHistory handles DELETE /api/v1/goals/history
func (h *Handler) ClearGoalsHistory(w http.ResponseWriter, r *http.Request) {
	h.goals.ClearHistory(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type calculateGoalsRequest struct {
	// Profile overrides the stored profile when set.
	Profile *types.UserProfile `json:"profile,omitempty"`
	// Apply stores the calculated goals.
	Apply bool `json:"apply,omitempty"`
}

// CalculateGoals handles POST /api/v1/goals/calculate
func (h *Handler) CalculateGoals(w http.ResponseWriter, r *http.Request) {
	var req calculateGoalsRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	profile := h.profile.Get()
	if req.Profile != nil {
		profile = *req.Profile
	}
	g := h.goals.CalculateFromProfile(profile)
	if req.Apply {
		var err error
		g, err = h.goals.Apply(r.Context(), types.PatchFromGoals(g), "Calculated from profile", types.SourceProfileUpdate)
		if err != nil {
			MapError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, g)
}

// SuggestGoals handles POST /api/v1/goals/suggestion
func (h *Handler) SuggestGoals(w http.ResponseWriter, r *http.Request) {
	s, err := h.agent.SuggestGoals(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type suggestionResponseRequest struct {
	Goals    types.NutritionGoals `json:"goals"`
	Accepted bool                 `json:"accepted"`
	Feedback string               `json:"feedback,omitempty"`
}

// RespondToSuggestion handles POST /api/v1/goals/suggestion/response
func (h *Handler) RespondToSuggestion(w http.ResponseWriter, r *http.Request) {
	var req suggestionResponseRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	g, err := h.agent.RespondToSuggestion(r.Context(), req.Goals, req.Accepted, req.Feedback)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// GetProfile handles GET /api/v1/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.profile.Get())
}

// UpdateProfile handles PATCH /api/v1/profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch types.ProfilePatch
	if !decodeBody(w, r, &patch, false) {
		return
	}
	p, err := h.profile.Update(r.Context(), patch)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat handles POST /api/v1/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	res, err := h.agent.Chat(r.Context(), req.Message)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Analyze handles POST /api/v1/analysis
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	res, err := h.agent.Analyze(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
