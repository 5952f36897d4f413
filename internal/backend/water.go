package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hyperengineering/nutrisync/internal/types"
)

type waterRequest struct {
	AmountMl   float64 `json:"amountMl"`
	IntakeTime string  `json:"intakeTime"`
	Notes      string  `json:"notes"`
}

type waterResponse struct {
	ID         flexID  `json:"id"`
	AmountMl   float64 `json:"amountMl"`
	IntakeTime string  `json:"intakeTime"`
	Notes      string  `json:"notes"`
	CreatedAt  string  `json:"createdAt"`
}

type waterTodayResponse struct {
	TotalAmount float64         `json:"totalAmount"`
	Intakes     []waterResponse `json:"intakes"`
}

func waterToRequest(w types.WaterIntake) waterRequest {
	var intake time.Time
	switch {
	case !w.CreatedAt.IsZero():
		intake = w.CreatedAt
	case w.Date != "":
		if d, err := time.ParseInLocation(types.DateLayout, w.Date, time.Local); err == nil {
			intake = d.Add(12 * time.Hour)
		}
	}
	if intake.IsZero() {
		intake = time.Now()
	}
	return waterRequest{
		AmountMl:   w.Amount,
		IntakeTime: intake.Format("2006-01-02T15:04:05"),
		Notes:      w.Notes,
	}
}

func (r waterResponse) toEntry() types.Entry[types.WaterIntake] {
	stamp := r.IntakeTime
	if stamp == "" {
		stamp = r.CreatedAt
	}
	date := stamp
	if len(date) > len(types.DateLayout) {
		date = date[:len(types.DateLayout)]
	}
	return types.Confirmed(string(r.ID), types.WaterIntake{
		Amount:    r.AmountMl,
		Date:      date,
		Notes:     r.Notes,
		CreatedAt: parseTimestamp(stamp),
	})
}

// WaterRemote exposes the backend water endpoints.
type WaterRemote struct {
	c *Client
}

// Water returns the water endpoints of c.
func (c *Client) Water() *WaterRemote {
	return &WaterRemote{c: c}
}

// Create posts a water intake and returns the confirmed entry.
func (r *WaterRemote) Create(ctx context.Context, w types.WaterIntake) (types.Entry[types.WaterIntake], error) {
	var resp waterResponse
	if err := r.c.Do(ctx, http.MethodPost, "/water", waterToRequest(w), &resp); err != nil {
		return types.Entry[types.WaterIntake]{}, fmt.Errorf("create water: %w", err)
	}
	return confirmedOrErr(resp.toEntry(), "create water")
}

// Update replaces the intake with the given id.
func (r *WaterRemote) Update(ctx context.Context, id string, w types.WaterIntake) (types.Entry[types.WaterIntake], error) {
	var resp waterResponse
	if err := r.c.Do(ctx, http.MethodPut, "/water/"+url.PathEscape(id), waterToRequest(w), &resp); err != nil {
		return types.Entry[types.WaterIntake]{}, fmt.Errorf("update water %s: %w", id, err)
	}
	entry := resp.toEntry()
	if entry.ID == "" {
		entry.ID = id
	}
	return entry, nil
}

// Delete removes the intake with the given id.
func (r *WaterRemote) Delete(ctx context.Context, id string) error {
	if err := r.c.Do(ctx, http.MethodDelete, "/water/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete water %s: %w", id, err)
	}
	return nil
}

// ListToday returns today's intakes.
func (r *WaterRemote) ListToday(ctx context.Context) ([]types.Entry[types.WaterIntake], error) {
	var resp waterTodayResponse
	if err := r.c.Do(ctx, http.MethodGet, "/water/today", nil, &resp); err != nil {
		return nil, fmt.Errorf("list water: %w", err)
	}
	out := make([]types.Entry[types.WaterIntake], 0, len(resp.Intakes))
	for _, w := range resp.Intakes {
		out = append(out, w.toEntry())
	}
	return out, nil
}
