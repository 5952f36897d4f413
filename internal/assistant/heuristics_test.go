package assistant

import (
	"reflect"
	"testing"
	"time"

	"github.com/hyperengineering/nutrisync/internal/types"
)

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		message string
		want    Intent
	}{
		{"I drank 2 glasses of water", IntentLogWater},
		{"I had two glasses of water", IntentLogWater},
		{"I ate chicken salad", IntentLogMeal},
		{"Had oatmeal for breakfast", IntentLogMeal},
		{"hello there", IntentNone},
		{"", IntentNone},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := DetectIntent(tt.message); got != tt.want {
				t.Errorf("DetectIntent(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestExtractFoods(t *testing.T) {
	tests := []struct {
		message string
		want    []string
	}{
		{"I ate chicken and rice for lunch", []string{"chicken", "rice"}},
		{"I had a sandwich with cheese.", []string{"sandwich", "cheese"}},
		{"I ate an apple, some nuts and yogurt", []string{"apple", "nuts", "yogurt"}},
		{"Lunch was pizza and salad", []string{"pizza", "salad"}},
		{"Salmon, salmon and more salmon", []string{"salmon"}},
		{"nothing to report", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := ExtractFoods(tt.message)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractFoods(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestEstimates(t *testing.T) {
	foods := []string{"chicken", "rice"}
	if got := EstimateCalories(foods); got != 470 {
		t.Errorf("EstimateCalories = %v, want 470", got)
	}
	if got := EstimateCarbs(foods); got != 45 {
		t.Errorf("EstimateCarbs = %v, want 45", got)
	}
	if got := EstimateProtein(foods); got != 28 {
		t.Errorf("EstimateProtein = %v, want 28", got)
	}
	if got := EstimateFat(foods); got != 4 {
		t.Errorf("EstimateFat = %v, want 4", got)
	}

	// First matching keyword wins.
	if got := EstimateCalories([]string{"chicken salad"}); got != 150 {
		t.Errorf("EstimateCalories(chicken salad) = %v, want 150", got)
	}
	// A zero total falls back to the typical meal value.
	if got := EstimateCarbs([]string{"chicken"}); got != 25 {
		t.Errorf("EstimateCarbs(chicken) = %v, want 25", got)
	}
	if got := EstimateCalories([]string{"kombucha"}); got != 100 {
		t.Errorf("EstimateCalories(unknown) = %v, want 100", got)
	}
}

func TestEstimates_NoFoods(t *testing.T) {
	if got := EstimateCalories(nil); got != 250 {
		t.Errorf("calories = %v", got)
	}
	if got := EstimateCarbs(nil); got != 25 {
		t.Errorf("carbs = %v", got)
	}
	if got := EstimateProtein(nil); got != 20 {
		t.Errorf("protein = %v", got)
	}
	if got := EstimateFat(nil); got != 15 {
		t.Errorf("fat = %v", got)
	}
}

func TestExtractWater(t *testing.T) {
	tests := []struct {
		message string
		want    float64
	}{
		{"I drank 500ml", 500},
		{"had 1.5 liters today", 1500},
		{"2 litres of water", 2000},
		{"3 glasses of water", 750},
		{"2 cups", 500},
		{"a glass of water", 250},
		{"water please", 0},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := ExtractWater(tt.message); got != tt.want {
				t.Errorf("ExtractWater(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestMealTimeFor(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2025, 1, 1, h, m, 0, 0, time.UTC) }
	tests := []struct {
		t    time.Time
		want types.MealType
	}{
		{at(7, 30), types.MealBreakfast},
		{at(10, 59), types.MealBreakfast},
		{at(11, 0), types.MealLunch},
		{at(15, 59), types.MealLunch},
		{at(16, 0), types.MealDinner},
		{at(23, 0), types.MealDinner},
	}
	for _, tt := range tests {
		if got := MealTimeFor(tt.t); got != tt.want {
			t.Errorf("MealTimeFor(%s) = %s, want %s", tt.t.Format("15:04"), got, tt.want)
		}
	}
}

func TestMealFromMessage(t *testing.T) {
	now := time.Date(2025, 1, 1, 19, 0, 0, 0, time.UTC)
	m, ok := MealFromMessage("I ate chicken and rice", now)
	if !ok {
		t.Fatal("no meal")
	}
	if m.Name != "chicken, rice" || m.MealType != types.MealDinner || m.Date != "2025-01-01" || m.Calories != 470 {
		t.Errorf("meal = %+v", m)
	}

	if _, ok := MealFromMessage("what should I do", now); ok {
		t.Error("meal found in message without foods")
	}
}

func TestParseInsights(t *testing.T) {
	text := "Great day. I recommend more water. Try adding fiber! You could consider nuts. Healthy choices help."
	got := ParseInsights(text)
	want := []string{"I recommend more water", "Try adding fiber", "You could consider nuts"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseInsights = %q, want %q", got, want)
	}
	if got := ParseInsights("Logged."); len(got) != 0 {
		t.Errorf("ParseInsights = %q, want none", got)
	}
}

func TestHealthScore(t *testing.T) {
	goals := types.DefaultGoals()
	tests := []struct {
		name     string
		summary  types.DaySummary
		diabetic bool
		want     int
	}{
		{"empty day", types.DaySummary{Goals: goals}, false, 50},
		{"empty day diabetic", types.DaySummary{Goals: goals}, true, 60},
		{
			name: "everything on target",
			summary: types.DaySummary{
				Goals: goals,
				Meals: types.MealTotals{Calories: goals.Calories, Protein: 100, Carbs: 120},
				Water: types.WaterTotals{Total: 2000},
			},
			diabetic: true,
			want:     100,
		},
		{
			name: "diabetic over carbs",
			summary: types.DaySummary{
				Goals: goals,
				Meals: types.MealTotals{Carbs: 200},
			},
			diabetic: true,
			want:     45,
		},
		{
			name: "partial",
			summary: types.DaySummary{
				Goals: goals,
				Meals: types.MealTotals{Calories: goals.Calories * 0.7, Protein: 60},
				Water: types.WaterTotals{Total: 1200},
			},
			want: 70,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HealthScore(tt.summary, tt.diabetic); got != tt.want {
				t.Errorf("HealthScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLocalAnalysis_Alerts(t *testing.T) {
	a := LocalAnalysis(AnalysisRequest{
		Profile: types.UserProfile{HealthConditions: []string{"Type 1 diabetes"}},
		Summary: types.DaySummary{
			Goals: types.DefaultGoals(),
			Meals: types.MealTotals{Calories: 500, Carbs: 200},
		},
	})
	if !a.Success || a.Source != SourceLocal {
		t.Errorf("analysis = %+v", a)
	}
	if len(a.Alerts) != 2 {
		t.Fatalf("alerts = %+v, want 2", a.Alerts)
	}
	if a.Alerts[0].Priority != "high" || a.Alerts[1].Priority != "medium" {
		t.Errorf("alert priorities = %s, %s", a.Alerts[0].Priority, a.Alerts[1].Priority)
	}
	if len(a.Insights) != 4 {
		t.Errorf("insights = %q, want diabetic carb line", a.Insights)
	}
	if a.MotivationalMessage == "" {
		t.Error("no motivational message")
	}
}

func TestSuggestionConfidence(t *testing.T) {
	if got := SuggestionConfidence(types.UserProfile{}); got != 70 {
		t.Errorf("empty profile = %v, want 70", got)
	}
	full := types.UserProfile{
		Age: 40, Weight: 80, Height: 180,
		ActivityLevel:    types.ActivityLight,
		HealthConditions: []string{"hypertension"},
	}
	if got := SuggestionConfidence(full); got != 100 {
		t.Errorf("full profile = %v, want 100", got)
	}
}

func TestLocalReply(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		message string
		want    string
	}{
		{"I drank 500ml of water", "Excellent! I've added 500ml of water to your daily intake. Stay hydrated!"},
		{"I ate pizza", "Great! I've logged your meal: pizza. I've estimated about 285 calories and updated your totals."},
	}
	for _, tt := range tests {
		if got := LocalReply(tt.message, false, now); got != tt.want {
			t.Errorf("LocalReply(%q) = %q", tt.message, got)
		}
	}
	if LocalReply("recommend something", true, now) == LocalReply("recommend something", false, now) {
		t.Error("diabetic suggestions not tailored")
	}
}
