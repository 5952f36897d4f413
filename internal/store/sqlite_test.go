package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/nutrisync/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// --- Blobs ---

func TestStore_BlobMissing(t *testing.T) {
	s := newTestStore(t)

	var g types.NutritionGoals
	found, err := s.GetBlob(context.Background(), KeyGoals, &g)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("found = true for missing blob")
	}
}

func TestStore_BlobPutGetReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutBlob(ctx, KeyGoals, types.DefaultGoals()); err != nil {
		t.Fatal(err)
	}
	updated := types.DefaultGoals()
	updated.Carbs = 130
	if err := s.PutBlob(ctx, KeyGoals, updated); err != nil {
		t.Fatal(err)
	}

	var got types.NutritionGoals
	found, err := s.GetBlob(ctx, KeyGoals, &got)
	if err != nil || !found {
		t.Fatalf("GetBlob found=%v err=%v", found, err)
	}
	if got != updated {
		t.Errorf("got %+v, want %+v", got, updated)
	}
}

func TestStore_BlobNewerSchemaRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(
		"INSERT INTO blobs (key, schema_version, value, updated_at) VALUES (?, ?, '{}', '')",
		KeyUserProfile, CurrentSchemaVersion+1)
	if err != nil {
		t.Fatal(err)
	}

	var p types.UserProfile
	_, err = s.GetBlob(ctx, KeyUserProfile, &p)
	if !errors.Is(err, ErrSchemaVersion) {
		t.Errorf("err = %v, want ErrSchemaVersion", err)
	}
}

func TestStore_DeleteBlob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutBlob(ctx, KeyGoalsHistory, []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteBlob(ctx, KeyGoalsHistory); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteBlob(ctx, KeyGoalsHistory); err != nil {
		t.Errorf("deleting a missing blob should not fail: %v", err)
	}

	var v []string
	if found, _ := s.GetBlob(ctx, KeyGoalsHistory, &v); found {
		t.Error("blob still present after delete")
	}
}

// --- Pending queue ---

func TestStore_EnqueueAndPendingOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"local-a", "local-b", "local-c"} {
		if err := s.Enqueue(ctx, KindMeal, id, "2025-01-01", types.Meal{Name: id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Enqueue(ctx, KindWater, "local-w", "2025-01-01", types.WaterIntake{Amount: 250}); err != nil {
		t.Fatal(err)
	}

	meals, err := s.Pending(ctx, KindMeal)
	if err != nil {
		t.Fatal(err)
	}
	if len(meals) != 3 {
		t.Fatalf("len(meals) = %d, want 3", len(meals))
	}
	for i, want := range []string{"local-a", "local-b", "local-c"} {
		if meals[i].TempID != want {
			t.Errorf("meals[%d].TempID = %q, want %q", i, meals[i].TempID, want)
		}
	}
	if !strings.Contains(string(meals[0].Payload), `"name":"local-a"`) {
		t.Errorf("payload = %s", meals[0].Payload)
	}
	if meals[0].QueuedAt.IsZero() {
		t.Error("QueuedAt not parsed")
	}
}

func TestStore_EnqueueUnknownKind(t *testing.T) {
	s := newTestStore(t)

	err := s.Enqueue(context.Background(), Kind("food"), "local-x", "2025-01-01", struct{}{})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestStore_PendingForDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Enqueue(ctx, KindWater, "w1", "2025-01-01", types.WaterIntake{Amount: 250})
	s.Enqueue(ctx, KindWater, "w2", "2025-01-02", types.WaterIntake{Amount: 500})
	s.Enqueue(ctx, KindWater, "w3", "2025-01-01T18:30:00Z", types.WaterIntake{Amount: 300})

	got, err := s.PendingForDate(ctx, KindWater, "2025-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].TempID != "w1" || got[1].TempID != "w3" {
		t.Errorf("got %+v, want w1 and w3", got)
	}
}

func TestStore_RemoveIsPerEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Enqueue(ctx, KindMeal, "keep", "2025-01-01", types.Meal{Name: "keep"})
	s.Enqueue(ctx, KindMeal, "drop", "2025-01-01", types.Meal{Name: "drop"})

	if err := s.Remove(ctx, KindMeal, "drop"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, KindMeal, "drop"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove err = %v, want ErrNotFound", err)
	}

	left, _ := s.Pending(ctx, KindMeal)
	if len(left) != 1 || left[0].TempID != "keep" {
		t.Errorf("remaining = %+v", left)
	}
}

func TestStore_MarkFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Enqueue(ctx, KindMeal, "m1", "2025-01-01", types.Meal{Name: "m1"})
	s.MarkFailed(ctx, KindMeal, "m1", errors.New("backend unavailable"))
	s.MarkFailed(ctx, KindMeal, "m1", errors.New("timeout"))

	got, _ := s.Pending(ctx, KindMeal)
	if got[0].Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", got[0].Attempts)
	}
	if got[0].LastError != "timeout" {
		t.Errorf("LastError = %q, want timeout", got[0].LastError)
	}

	if err := s.MarkFailed(ctx, KindMeal, "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkFailed(missing) err = %v, want ErrNotFound", err)
	}
}

// --- Stats and backup ---

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.PendingMeals != 0 || stats.PendingWater != 0 || stats.LastSync != nil {
		t.Errorf("empty store stats = %+v", stats)
	}

	s.Enqueue(ctx, KindMeal, "m1", "2025-01-01", types.Meal{})
	s.Enqueue(ctx, KindWater, "w1", "2025-01-01", types.WaterIntake{})
	s.Enqueue(ctx, KindWater, "w2", "2025-01-01", types.WaterIntake{})
	earlier := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)
	s.RecordSync(ctx, KindMeal, later)
	s.RecordSync(ctx, KindWater, earlier)

	stats, err = s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.PendingMeals != 1 {
		t.Errorf("PendingMeals = %d, want 1", stats.PendingMeals)
	}
	if stats.PendingWater != 2 {
		t.Errorf("PendingWater = %d, want 2", stats.PendingWater)
	}
	if stats.LastSync == nil || !stats.LastSync.Equal(later) {
		t.Errorf("LastSync = %v, want %v", stats.LastSync, later)
	}
}

func TestStore_Backup(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "live.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.PutBlob(ctx, KeyGoals, types.DefaultGoals()); err != nil {
		t.Fatal(err)
	}

	backupPath := filepath.Join(dir, "backup", "copy.db")
	if err := s.Backup(ctx, backupPath); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	// Second backup replaces the first
	if err := s.Backup(ctx, backupPath); err != nil {
		t.Fatalf("second Backup failed: %v", err)
	}

	copyStore, err := NewSQLiteStore(backupPath)
	if err != nil {
		t.Fatal(err)
	}
	defer copyStore.Close()

	var g types.NutritionGoals
	if found, err := copyStore.GetBlob(ctx, KeyGoals, &g); err != nil || !found {
		t.Fatalf("backup missing goals: found=%v err=%v", found, err)
	}
	if info, err := os.Stat(backupPath); err != nil || info.Size() == 0 {
		t.Errorf("backup file not written: %v", err)
	}
}

func TestStore_ClosedReturnsErrClosed(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}

	var g types.NutritionGoals
	if _, err := s.GetBlob(context.Background(), KeyGoals, &g); !errors.Is(err, ErrClosed) {
		t.Errorf("GetBlob after Close err = %v, want ErrClosed", err)
	}
	if err := s.Enqueue(context.Background(), KindMeal, "x", "2025-01-01", g); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue after Close err = %v, want ErrClosed", err)
	}
}
