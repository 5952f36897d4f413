package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperengineering/nutrisync/internal/types"
)

// flexID accepts numeric or string identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// mealRequest is the body sent to POST /meals and PUT /meals/{id}.
type mealRequest struct {
	AuthUserID    string   `json:"authUserId,omitempty"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	MealDate      string   `json:"mealDate"`
	MealType      string   `json:"mealType"`
	FoodIDs       []string `json:"foodIds"`
	TotalCalories float64  `json:"totalCalories"`
	TotalProtein  float64  `json:"totalProtein"`
	TotalCarbs    float64  `json:"totalCarbs"`
	TotalFat      float64  `json:"totalFat"`
	Fiber         float64  `json:"fiber"`
}

// mealResponse is a meal as returned by the backend.
type mealResponse struct {
	ID            flexID   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	MealDate      string   `json:"mealDate"`
	Date          string   `json:"date"`
	MealType      string   `json:"mealType"`
	FoodIDs       []flexID `json:"foodIds"`
	TotalCalories *float64 `json:"totalCalories"`
	Calories      *float64 `json:"calories"`
	TotalProtein  *float64 `json:"totalProtein"`
	Protein       *float64 `json:"protein"`
	TotalCarbs    *float64 `json:"totalCarbs"`
	Carbs         *float64 `json:"carbs"`
	TotalFat      *float64 `json:"totalFat"`
	Fats          *float64 `json:"fats"`
	Fiber         *float64 `json:"fiber"`
	CreatedAt     string   `json:"createdAt"`
}

func mealToRequest(userID string, m types.Meal) mealRequest {
	date := m.Date
	if date == "" {
		date = time.Now().Format(types.DateLayout)
	}
	mealType := string(m.MealType)
	if mealType == "" {
		mealType = string(types.MealLunch)
	}
	foods := m.Foods
	if foods == nil {
		foods = []string{}
	}
	return mealRequest{
		AuthUserID:    userID,
		Name:          m.Name,
		Description:   m.Description,
		MealDate:      date,
		MealType:      strings.ToUpper(mealType),
		FoodIDs:       foods,
		TotalCalories: m.Calories,
		TotalProtein:  m.Protein,
		TotalCarbs:    m.Carbs,
		TotalFat:      m.Fats,
		Fiber:         m.Fiber,
	}
}

func firstOf(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

func (r mealResponse) toEntry() types.Entry[types.Meal] {
	name := r.Name
	if name == "" {
		name = r.MealType
	}
	date := r.MealDate
	if date == "" {
		date = r.Date
	}
	if date == "" && len(r.CreatedAt) >= len(types.DateLayout) {
		date = r.CreatedAt[:len(types.DateLayout)]
	}
	if len(date) > len(types.DateLayout) {
		date = date[:len(types.DateLayout)]
	}

	var created time.Time
	if r.CreatedAt != "" {
		created = parseTimestamp(r.CreatedAt)
	}

	foods := make([]string, 0, len(r.FoodIDs))
	for _, id := range r.FoodIDs {
		foods = append(foods, string(id))
	}

	return types.Confirmed(string(r.ID), types.Meal{
		Name:        name,
		Description: r.Description,
		MealType:    types.ParseMealType(r.MealType),
		Foods:       foods,
		Calories:    firstOf(r.TotalCalories, r.Calories),
		Protein:     firstOf(r.TotalProtein, r.Protein),
		Carbs:       firstOf(r.TotalCarbs, r.Carbs),
		Fats:        firstOf(r.TotalFat, r.Fats),
		Fiber:       firstOf(r.Fiber),
		Date:        date,
		CreatedAt:   created,
	})
}

// parseTimestamp accepts RFC 3339 and the zone-less ISO form used by the backend.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", types.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// MealRemote exposes the backend meal endpoints.
type MealRemote struct {
	c *Client
}

// Meals returns the meal endpoints of c.
func (c *Client) Meals() *MealRemote {
	return &MealRemote{c: c}
}

// Create posts a new meal and returns the confirmed entry.
func (r *MealRemote) Create(ctx context.Context, m types.Meal) (types.Entry[types.Meal], error) {
	var resp mealResponse
	if err := r.c.Do(ctx, http.MethodPost, "/meals", mealToRequest(r.c.userID, m), &resp); err != nil {
		return types.Entry[types.Meal]{}, fmt.Errorf("create meal: %w", err)
	}
	return confirmedOrErr(resp.toEntry(), "create meal")
}

// Update replaces the meal with the given id.
func (r *MealRemote) Update(ctx context.Context, id string, m types.Meal) (types.Entry[types.Meal], error) {
	var resp mealResponse
	path := "/meals/" + url.PathEscape(id)
	if err := r.c.Do(ctx, http.MethodPut, path, mealToRequest(r.c.userID, m), &resp); err != nil {
		return types.Entry[types.Meal]{}, fmt.Errorf("update meal %s: %w", id, err)
	}
	entry := resp.toEntry()
	if entry.ID == "" {
		entry.ID = id
	}
	return entry, nil
}

// Delete removes the meal with the given id.
func (r *MealRemote) Delete(ctx context.Context, id string) error {
	if err := r.c.Do(ctx, http.MethodDelete, "/meals/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete meal %s: %w", id, err)
	}
	return nil
}

// ListToday returns today's meals.
func (r *MealRemote) ListToday(ctx context.Context) ([]types.Entry[types.Meal], error) {
	return r.list(ctx, "/meals/today")
}

// ListByDate returns the meals logged on date (YYYY-MM-DD).
func (r *MealRemote) ListByDate(ctx context.Context, date string) ([]types.Entry[types.Meal], error) {
	return r.list(ctx, "/meals/by-date/"+url.PathEscape(date))
}

func (r *MealRemote) list(ctx context.Context, path string) ([]types.Entry[types.Meal], error) {
	var resp []mealResponse
	if err := r.c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	out := make([]types.Entry[types.Meal], 0, len(resp))
	for _, m := range resp {
		out = append(out, m.toEntry())
	}
	return out, nil
}

// confirmedOrErr rejects replies that carry no server id.
func confirmedOrErr[T any](e types.Entry[T], op string) (types.Entry[T], error) {
	if e.ID == "" {
		return types.Entry[T]{}, fmt.Errorf("%s: %w: reply has no id", op, ErrUnavailable)
	}
	return e, nil
}

