package types

import (
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for meal and water dates.
const DateLayout = "2006-01-02"

// NutritionGoals holds the daily nutrition targets.
// Water is in millilitres; macros are in grams.
type NutritionGoals struct {
	Calories float64 `json:"calories"`
	Water    float64 `json:"water"`
	Carbs    float64 `json:"carbs"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
}

// DefaultGoals returns the goal set used before anything else is known.
func DefaultGoals() NutritionGoals {
	return NutritionGoals{
		Calories: 2000,
		Water:    2500,
		Carbs:    250,
		Protein:  60,
		Fat:      65,
		Fiber:    30,
	}
}

// GoalsPatch is a partial goals update. Nil fields are left unchanged.
type GoalsPatch struct {
	Calories *float64 `json:"calories,omitempty"`
	Water    *float64 `json:"water,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
	Fiber    *float64 `json:"fiber,omitempty"`
}

// Apply merges the patch over g and returns the result.
func (p GoalsPatch) Apply(g NutritionGoals) NutritionGoals {
	if p.Calories != nil {
		g.Calories = *p.Calories
	}
	if p.Water != nil {
		g.Water = *p.Water
	}
	if p.Carbs != nil {
		g.Carbs = *p.Carbs
	}
	if p.Protein != nil {
		g.Protein = *p.Protein
	}
	if p.Fat != nil {
		g.Fat = *p.Fat
	}
	if p.Fiber != nil {
		g.Fiber = *p.Fiber
	}
	return g
}

// IsEmpty reports whether the patch changes nothing.
func (p GoalsPatch) IsEmpty() bool {
	return p.Calories == nil && p.Water == nil && p.Carbs == nil &&
		p.Protein == nil && p.Fat == nil && p.Fiber == nil
}

// PatchFromGoals builds a patch that sets every field of g.
func PatchFromGoals(g NutritionGoals) GoalsPatch {
	return GoalsPatch{
		Calories: &g.Calories,
		Water:    &g.Water,
		Carbs:    &g.Carbs,
		Protein:  &g.Protein,
		Fat:      &g.Fat,
		Fiber:    &g.Fiber,
	}
}

// GoalSource identifies who caused a goal change.
type GoalSource string

const (
	SourceUser          GoalSource = "USER"
	SourceAIAgent       GoalSource = "AI_AGENT"
	SourceProfileUpdate GoalSource = "PROFILE_UPDATE"
)

// GoalUpdateRecord is one entry of the goal change history.
type GoalUpdateRecord struct {
	Timestamp     time.Time      `json:"timestamp"`
	PreviousGoals NutritionGoals `json:"previous_goals"`
	NewGoals      NutritionGoals `json:"new_goals"`
	Reason        string         `json:"reason"`
	Source        GoalSource     `json:"source"`
}

// GoalSuggestion is a goal set proposed by the assistant.
type GoalSuggestion struct {
	Goals           NutritionGoals `json:"goals"`
	Explanation     string         `json:"explanation,omitempty"`
	Confidence      float64        `json:"confidence"`
	Recommendations []string       `json:"recommendations,omitempty"`
	Source          string         `json:"source"`
}

// MealType is the meal slot of the day.
type MealType string

const (
	MealBreakfast MealType = "BREAKFAST"
	MealLunch     MealType = "LUNCH"
	MealDinner    MealType = "DINNER"
	MealSnack     MealType = "SNACK"
)

// MealTypes lists the accepted meal types.
var MealTypes = []string{string(MealBreakfast), string(MealLunch), string(MealDinner), string(MealSnack)}

// ParseMealType normalizes s to a MealType, defaulting to lunch.
func ParseMealType(s string) MealType {
	switch MealType(strings.ToUpper(strings.TrimSpace(s))) {
	case MealBreakfast:
		return MealBreakfast
	case MealDinner:
		return MealDinner
	case MealSnack:
		return MealSnack
	default:
		return MealLunch
	}
}

// Meal is a logged meal.
type Meal struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	MealType    MealType  `json:"meal_type"`
	Foods       []string  `json:"foods,omitempty"`
	Calories    float64   `json:"calories"`
	Protein     float64   `json:"protein"`
	Carbs       float64   `json:"carbs"`
	Fats        float64   `json:"fats"`
	Fiber       float64   `json:"fiber"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// WaterIntake is a logged water intake.
type WaterIntake struct {
	Amount    float64   `json:"amount"`
	Date      string    `json:"date"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EntryState distinguishes confirmed entries from locally pending ones.
type EntryState string

const (
	StateConfirmed    EntryState = "confirmed"
	StatePendingLocal EntryState = "pending_local"
)

// Entry is a stream element: either Confirmed with a server ID, or
// PendingLocal with a temporary ID that only exists on this device.
type Entry[T any] struct {
	State  EntryState `json:"state"`
	ID     string     `json:"id,omitempty"`
	TempID string     `json:"temp_id,omitempty"`
	Data   T          `json:"data"`
}

// Confirmed returns a server-confirmed entry.
func Confirmed[T any](id string, data T) Entry[T] {
	return Entry[T]{State: StateConfirmed, ID: id, Data: data}
}

// PendingLocal returns a local-only entry.
func PendingLocal[T any](tempID string, data T) Entry[T] {
	return Entry[T]{State: StatePendingLocal, TempID: tempID, Data: data}
}

// IsPending reports whether the entry has not been confirmed by the backend.
func (e Entry[T]) IsPending() bool {
	return e.State == StatePendingLocal
}

// Key returns the identifier appropriate for the entry's state.
func (e Entry[T]) Key() string {
	if e.State == StateConfirmed {
		return e.ID
	}
	return e.TempID
}

// Gender used by the BMR formula.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// ActivityLevel selects the TDEE multiplier.
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "SEDENTARY"
	ActivityLight      ActivityLevel = "LIGHT"
	ActivityModerate   ActivityLevel = "MODERATE"
	ActivityActive     ActivityLevel = "ACTIVE"
	ActivityVeryActive ActivityLevel = "VERY_ACTIVE"
)

// ActivityLevels lists the accepted activity levels.
var ActivityLevels = []string{
	string(ActivitySedentary),
	string(ActivityLight),
	string(ActivityModerate),
	string(ActivityActive),
	string(ActivityVeryActive),
}

// UserProfile is the health and dietary profile of the user.
type UserProfile struct {
	HealthConditions    []string      `json:"health_conditions"`
	DietaryRestrictions []string      `json:"dietary_restrictions"`
	Goals               []string      `json:"goals"`
	Age                 int           `json:"age,omitempty"`
	Weight              float64       `json:"weight,omitempty"`
	Height              float64       `json:"height,omitempty"`
	Gender              Gender        `json:"gender,omitempty"`
	ActivityLevel       ActivityLevel `json:"activity_level,omitempty"`
	DailyCalorieGoal    float64       `json:"daily_calorie_goal,omitempty"`
	DailyWaterGoal      float64       `json:"daily_water_goal,omitempty"`
	DailyCarbLimit      float64       `json:"daily_carb_limit,omitempty"`
}

// IsDiabetic reports whether any health condition carries a diabetes marker.
func (p UserProfile) IsDiabetic() bool {
	for _, c := range p.HealthConditions {
		if strings.Contains(strings.ToLower(c), "diabet") {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the profile.
func (p UserProfile) Clone() UserProfile {
	p.HealthConditions = cloneStrings(p.HealthConditions)
	p.DietaryRestrictions = cloneStrings(p.DietaryRestrictions)
	p.Goals = cloneStrings(p.Goals)
	return p
}

// ProfilePatch is a partial profile update. Nil fields are left unchanged.
type ProfilePatch struct {
	HealthConditions    *[]string      `json:"health_conditions,omitempty"`
	DietaryRestrictions *[]string      `json:"dietary_restrictions,omitempty"`
	Goals               *[]string      `json:"goals,omitempty"`
	Age                 *int           `json:"age,omitempty"`
	Weight              *float64       `json:"weight,omitempty"`
	Height              *float64       `json:"height,omitempty"`
	Gender              *Gender        `json:"gender,omitempty"`
	ActivityLevel       *ActivityLevel `json:"activity_level,omitempty"`
	DailyCalorieGoal    *float64       `json:"daily_calorie_goal,omitempty"`
	DailyWaterGoal      *float64       `json:"daily_water_goal,omitempty"`
	DailyCarbLimit      *float64       `json:"daily_carb_limit,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (pp ProfilePatch) IsEmpty() bool {
	return pp.HealthConditions == nil && pp.DietaryRestrictions == nil && pp.Goals == nil &&
		pp.Age == nil && pp.Weight == nil && pp.Height == nil && pp.Gender == nil &&
		pp.ActivityLevel == nil && pp.DailyCalorieGoal == nil && pp.DailyWaterGoal == nil &&
		pp.DailyCarbLimit == nil
}

// Apply merges the patch over p and returns the result.
func (pp ProfilePatch) Apply(p UserProfile) UserProfile {
	p = p.Clone()
	if pp.HealthConditions != nil {
		p.HealthConditions = cloneStrings(*pp.HealthConditions)
	}
	if pp.DietaryRestrictions != nil {
		p.DietaryRestrictions = cloneStrings(*pp.DietaryRestrictions)
	}
	if pp.Goals != nil {
		p.Goals = cloneStrings(*pp.Goals)
	}
	if pp.Age != nil {
		p.Age = *pp.Age
	}
	if pp.Weight != nil {
		p.Weight = *pp.Weight
	}
	if pp.Height != nil {
		p.Height = *pp.Height
	}
	if pp.Gender != nil {
		p.Gender = *pp.Gender
	}
	if pp.ActivityLevel != nil {
		p.ActivityLevel = *pp.ActivityLevel
	}
	if pp.DailyCalorieGoal != nil {
		p.DailyCalorieGoal = *pp.DailyCalorieGoal
	}
	if pp.DailyWaterGoal != nil {
		p.DailyWaterGoal = *pp.DailyWaterGoal
	}
	if pp.DailyCarbLimit != nil {
		p.DailyCarbLimit = *pp.DailyCarbLimit
	}
	return p
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// EventType identifies a dashboard event.
type EventType string

const (
	EventRefreshData     EventType = "REFRESH_DATA"
	EventUpdateGoals     EventType = "UPDATE_GOALS"
	EventAddMeal         EventType = "ADD_MEAL"
	EventAddWater        EventType = "ADD_WATER"
	EventShowAlert       EventType = "SHOW_ALERT"
	EventUpdateInsights  EventType = "UPDATE_INSIGHTS"
	EventShowMealPreview EventType = "SHOW_MEAL_PREVIEW"
)

// DashboardEvent is a transient notification for views.
type DashboardEvent struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// MealTotals are the summed nutrients of a set of meals.
type MealTotals struct {
	Count    int     `json:"count"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
	Fiber    float64 `json:"fiber"`
}

// WaterTotals are the summed water intakes.
type WaterTotals struct {
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// HealthResponse is returned by the companion API health endpoint.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Mode         string `json:"mode"`
	PendingMeals int64  `json:"pending_meals"`
	PendingWater int64  `json:"pending_water"`
}

// StoreStats reports local store counters.
type StoreStats struct {
	PendingMeals int64      `json:"pending_meals"`
	PendingWater int64      `json:"pending_water"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
}

// SyncResult summarizes one local-to-remote sync pass.
type SyncResult struct {
	Kind     string        `json:"kind"`
	Pushed   int           `json:"pushed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// DaySummary is the day's progress sent with analysis and suggestion requests.
type DaySummary struct {
	Date  string         `json:"date"`
	Goals NutritionGoals `json:"goals"`
	Meals MealTotals     `json:"meals"`
	Water WaterTotals    `json:"water"`
}
