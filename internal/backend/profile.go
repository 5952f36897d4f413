package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hyperengineering/nutrisync/internal/types"
)

// ErrNoUser is returned by profile calls when no user id is configured.
var ErrNoUser = errors.New("backend user id not configured")

type goalsBody struct {
	DailyCalorieGoal float64 `json:"dailyCalorieGoal"`
	DailyWaterGoal   float64 `json:"dailyWaterGoal"`
	DailyCarbLimit   float64 `json:"dailyCarbLimit"`
	DailyProteinGoal float64 `json:"dailyProteinGoal"`
	DailyFatGoal     float64 `json:"dailyFatGoal"`
	DailyFiberGoal   float64 `json:"dailyFiberGoal"`
}

type profileResponse struct {
	goalsBody
	Age           int     `json:"age"`
	Weight        float64 `json:"weight"`
	Height        float64 `json:"height"`
	Gender        string  `json:"gender"`
	ActivityLevel string  `json:"activityLevel"`
}

// ProfileRemote exposes the backend user profile endpoints for one user.
type ProfileRemote struct {
	c *Client
}

// Profile returns the profile endpoints of c for its configured user.
func (c *Client) Profile() *ProfileRemote {
	return &ProfileRemote{c: c}
}

func (r *ProfileRemote) path(suffix string) (string, error) {
	if r.c.userID == "" {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, ErrNoUser)
	}
	return "/users/" + url.PathEscape(r.c.userID) + suffix, nil
}

// PushGoals stores goals on the backend profile.
func (r *ProfileRemote) PushGoals(ctx context.Context, g types.NutritionGoals) error {
	path, err := r.path("/goals")
	if err != nil {
		return err
	}
	body := goalsBody{
		DailyCalorieGoal: g.Calories,
		DailyWaterGoal:   g.Water,
		DailyCarbLimit:   g.Carbs,
		DailyProteinGoal: g.Protein,
		DailyFatGoal:     g.Fat,
		DailyFiberGoal:   g.Fiber,
	}
	if err := r.c.Do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("push goals: %w", err)
	}
	return nil
}

// FetchGoals reads the goals stored on the backend profile. Fields the
// backend leaves at zero are filled from the defaults.
func (r *ProfileRemote) FetchGoals(ctx context.Context) (types.NutritionGoals, error) {
	resp, err := r.fetch(ctx)
	if err != nil {
		return types.NutritionGoals{}, err
	}

	g := types.DefaultGoals()
	orDefault := func(v float64, def float64) float64 {
		if v > 0 {
			return v
		}
		return def
	}
	return types.NutritionGoals{
		Calories: orDefault(resp.DailyCalorieGoal, g.Calories),
		Water:    orDefault(resp.DailyWaterGoal, g.Water),
		Carbs:    orDefault(resp.DailyCarbLimit, g.Carbs),
		Protein:  orDefault(resp.DailyProteinGoal, g.Protein),
		Fat:      orDefault(resp.DailyFatGoal, g.Fat),
		Fiber:    orDefault(resp.DailyFiberGoal, g.Fiber),
	}, nil
}

// FetchProfile reads the basic profile fields stored on the backend.
func (r *ProfileRemote) FetchProfile(ctx context.Context) (types.ProfilePatch, error) {
	resp, err := r.fetch(ctx)
	if err != nil {
		return types.ProfilePatch{}, err
	}

	var p types.ProfilePatch
	if resp.Age > 0 {
		p.Age = &resp.Age
	}
	if resp.Weight > 0 {
		p.Weight = &resp.Weight
	}
	if resp.Height > 0 {
		p.Height = &resp.Height
	}
	if resp.Gender != "" {
		g := types.Gender(resp.Gender)
		p.Gender = &g
	}
	if resp.ActivityLevel != "" {
		a := types.ActivityLevel(resp.ActivityLevel)
		p.ActivityLevel = &a
	}
	if resp.DailyCalorieGoal > 0 {
		p.DailyCalorieGoal = &resp.DailyCalorieGoal
	}
	if resp.DailyWaterGoal > 0 {
		p.DailyWaterGoal = &resp.DailyWaterGoal
	}
	if resp.DailyCarbLimit > 0 {
		p.DailyCarbLimit = &resp.DailyCarbLimit
	}
	return p, nil
}

func (r *ProfileRemote) fetch(ctx context.Context) (*profileResponse, error) {
	path, err := r.path("/profile")
	if err != nil {
		return nil, err
	}
	var resp profileResponse
	if err := r.c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return &resp, nil
}
