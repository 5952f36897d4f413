package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperengineering/nutrisync/internal/events"
	"github.com/hyperengineering/nutrisync/internal/goals"
	"github.com/hyperengineering/nutrisync/internal/store"
	"github.com/hyperengineering/nutrisync/internal/types"
	"github.com/hyperengineering/nutrisync/internal/validation"
)

func newTestSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strs(v ...string) *[]string { return &v }

type mockRemote struct {
	patch types.ProfilePatch
	err   error
}

func (m *mockRemote) FetchProfile(context.Context) (types.ProfilePatch, error) {
	return m.patch, m.err
}

func TestUpdate_DiabeticPushesGoals(t *testing.T) {
	db := newTestSQLite(t)
	g := goals.NewStore(db, nil, nil)
	bus := events.NewBus()
	s := NewStore(Options{Blobs: db, Goals: g, Bus: bus})

	var got []types.DashboardEvent
	off := bus.On(func(e types.DashboardEvent) { got = append(got, e) })
	defer off()

	p, err := s.Update(context.Background(), types.ProfilePatch{
		HealthConditions: strs("Type 2 Diabetes"),
	})
	if err != nil {
		t.Fatal(err)
	}

	if p.DailyCarbLimit != DiabeticCarbLimit || p.DailyCalorieGoal != DiabeticCalorieGoal {
		t.Errorf("profile targets = %v/%v", p.DailyCarbLimit, p.DailyCalorieGoal)
	}
	cur := g.Current()
	if cur.Carbs != 130 || cur.Water != 2500 || cur.Calories != 1800 {
		t.Errorf("goals = %+v", cur)
	}
	h := g.History()
	if len(h) != 1 || h[0].Source != types.SourceProfileUpdate {
		t.Errorf("history = %+v", h)
	}
	if len(got) != 1 || got[0].Type != types.EventUpdateGoals {
		t.Fatalf("events = %+v", got)
	}
	if data, ok := got[0].Data.(types.NutritionGoals); !ok || data != cur {
		t.Errorf("event data = %#v", got[0].Data)
	}
	if !s.IsDiabetic() {
		t.Error("IsDiabetic = false")
	}
}

func TestUpdate_DiabeticKeepsCalorieGoal(t *testing.T) {
	g := goals.NewStore(nil, nil, nil)
	s := NewStore(Options{Goals: g})

	goal := 2100.0
	if _, err := s.Update(context.Background(), types.ProfilePatch{
		HealthConditions: strs("diabetic"),
		DailyCalorieGoal: &goal,
	}); err != nil {
		t.Fatal(err)
	}
	if g.Current().Calories != 2100 {
		t.Errorf("Calories = %v, want 2100", g.Current().Calories)
	}
}

func TestUpdate_NonDiabeticLeavesGoals(t *testing.T) {
	g := goals.NewStore(nil, nil, nil)
	bus := events.NewBus()
	s := NewStore(Options{Goals: g, Bus: bus})

	emitted := 0
	off := bus.On(func(types.DashboardEvent) { emitted++ })
	defer off()

	age := 42
	if _, err := s.Update(context.Background(), types.ProfilePatch{Age: &age, DietaryRestrictions: strs("vegan")}); err != nil {
		t.Fatal(err)
	}
	if g.Current() != types.DefaultGoals() {
		t.Errorf("goals changed: %+v", g.Current())
	}
	if emitted != 0 {
		t.Errorf("events = %d, want 0", emitted)
	}
	if p := s.Get(); p.Age != 42 || len(p.DietaryRestrictions) != 1 {
		t.Errorf("profile = %+v", p)
	}
}

func TestUpdate_RejectsInvalid(t *testing.T) {
	s := NewStore(Options{})
	bad := types.ActivityLevel("COUCH")
	_, err := s.Update(context.Background(), types.ProfilePatch{ActivityLevel: &bad})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Errorf("err = %v, want *validation.Error", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(Options{})
	s.Update(context.Background(), types.ProfilePatch{Goals: strs("lose weight")})

	p := s.Get()
	p.Goals[0] = "mutated"
	if s.Get().Goals[0] != "lose weight" {
		t.Error("Get exposed internal slice")
	}
}

func TestLoadFromStorage_RoundTrip(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()
	weight := 82.5
	first := NewStore(Options{Blobs: db})
	first.Update(ctx, types.ProfilePatch{Weight: &weight, HealthConditions: strs("hypertension")})

	second := NewStore(Options{Blobs: db})
	if err := second.LoadFromStorage(ctx); err != nil {
		t.Fatal(err)
	}
	p := second.Get()
	if p.Weight != 82.5 || len(p.HealthConditions) != 1 || p.HealthConditions[0] != "hypertension" {
		t.Errorf("profile = %+v", p)
	}
}

func TestLoadFromStorage_PreferencesWin(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	if err := db.PutBlob(ctx, store.KeyUserProfile, map[string]any{
		"age":               35,
		"health_conditions": []string{"diabetes"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.PutBlob(ctx, store.KeyUserPreferences, map[string]any{
		"health_conditions": []string{},
	}); err != nil {
		t.Fatal(err)
	}

	g := goals.NewStore(nil, nil, nil)
	s := NewStore(Options{Blobs: db, Goals: g})
	if err := s.LoadFromStorage(ctx); err != nil {
		t.Fatal(err)
	}
	p := s.Get()
	if p.Age != 35 {
		t.Errorf("Age = %d, want 35", p.Age)
	}
	if len(p.HealthConditions) != 0 || s.IsDiabetic() {
		t.Errorf("HealthConditions = %v, want preferences fragment", p.HealthConditions)
	}
	if len(g.History()) != 0 {
		t.Error("load changed goals")
	}
}

func TestLoadFromStorage_Empty(t *testing.T) {
	s := NewStore(Options{Blobs: newTestSQLite(t)})
	if err := s.LoadFromStorage(context.Background()); err != nil {
		t.Fatal(err)
	}
	p := s.Get()
	if p.HealthConditions == nil || p.Age != 0 {
		t.Errorf("profile = %+v", p)
	}
}

func TestLoadFromRemote(t *testing.T) {
	age := 51
	s := NewStore(Options{Remote: &mockRemote{patch: types.ProfilePatch{Age: &age}}})
	s.Update(context.Background(), types.ProfilePatch{Goals: strs("energy")})

	p, err := s.LoadFromRemote(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if p.Age != 51 || len(p.Goals) != 1 {
		t.Errorf("profile = %+v", p)
	}

	if _, err := NewStore(Options{}).LoadFromRemote(context.Background()); !errors.Is(err, ErrNoRemote) {
		t.Errorf("err = %v, want ErrNoRemote", err)
	}
}

func TestSubscribe(t *testing.T) {
	s := NewStore(Options{})
	var seen []types.UserProfile
	off := s.Subscribe(func(p types.UserProfile) { seen = append(seen, p) })
	defer off()

	h := 180.0
	s.Update(context.Background(), types.ProfilePatch{Height: &h})
	if len(seen) != 2 || seen[1].Height != 180 {
		t.Errorf("seen = %+v", seen)
	}
}
