package validation

import (
	"fmt"

	"github.com/hyperengineering/nutrisync/internal/types"
)

const (
	// MaxMealNameLength bounds meal names.
	MaxMealNameLength = 200
	// MaxNotesLength bounds free-text descriptions and notes.
	MaxNotesLength = 1000
	// MaxWaterPerEntry bounds a single water intake in millilitres.
	MaxWaterPerEntry = 5000
)

// ValidateGoalsPatch checks that every set field is non-negative.
func ValidateGoalsPatch(p types.GoalsPatch) []ValidationError {
	var c Collector
	fields := []struct {
		name  string
		value *float64
	}{
		{"calories", p.Calories},
		{"water", p.Water},
		{"carbs", p.Carbs},
		{"protein", p.Protein},
		{"fat", p.Fat},
		{"fiber", p.Fiber},
	}
	for _, f := range fields {
		if f.value != nil {
			c.Add(ValidateNonNegative(f.name, *f.value))
		}
	}
	return c.Errors()
}

// ValidateMeal checks a meal before it is sent to the backend.
func ValidateMeal(m types.Meal) []ValidationError {
	var c Collector
	c.Add(ValidateRequired("name", m.Name))
	c.Add(ValidateMaxLength("name", m.Name, MaxMealNameLength))
	c.Add(ValidateNoNullBytes("name", m.Name))
	c.Add(ValidateUTF8("name", m.Name))
	c.Add(ValidateMaxLength("description", m.Description, MaxNotesLength))
	c.Add(ValidateEnum("meal_type", string(m.MealType), types.MealTypes))
	c.Add(ValidateNonNegative("calories", m.Calories))
	c.Add(ValidateNonNegative("protein", m.Protein))
	c.Add(ValidateNonNegative("carbs", m.Carbs))
	c.Add(ValidateNonNegative("fats", m.Fats))
	c.Add(ValidateNonNegative("fiber", m.Fiber))
	c.Add(ValidateDate("date", m.Date))
	for i, f := range m.Foods {
		c.Add(ValidateRequired(fmt.Sprintf("foods[%d]", i), f))
	}
	return c.Errors()
}

// ValidateWater checks a water intake before it is sent to the backend.
func ValidateWater(w types.WaterIntake) []ValidationError {
	var c Collector
	c.Add(ValidatePositive("amount", w.Amount))
	if w.Amount > 0 {
		c.Add(ValidateRange("amount", w.Amount, 0, MaxWaterPerEntry))
	}
	c.Add(ValidateDate("date", w.Date))
	c.Add(ValidateMaxLength("notes", w.Notes, MaxNotesLength))
	return c.Errors()
}

// ValidateProfilePatch checks the numeric and enumerated fields that are set.
func ValidateProfilePatch(p types.ProfilePatch) []ValidationError {
	var c Collector
	if p.Age != nil {
		c.Add(ValidateRange("age", float64(*p.Age), 0, 130))
	}
	if p.Weight != nil {
		c.Add(ValidateRange("weight", *p.Weight, 0, 500))
	}
	if p.Height != nil {
		c.Add(ValidateRange("height", *p.Height, 0, 300))
	}
	if p.Gender != nil && *p.Gender != "" {
		c.Add(ValidateEnum("gender", string(*p.Gender), []string{string(types.GenderMale), string(types.GenderFemale)}))
	}
	if p.ActivityLevel != nil && *p.ActivityLevel != "" {
		c.Add(ValidateEnum("activity_level", string(*p.ActivityLevel), types.ActivityLevels))
	}
	if p.DailyCalorieGoal != nil {
		c.Add(ValidateNonNegative("daily_calorie_goal", *p.DailyCalorieGoal))
	}
	if p.DailyWaterGoal != nil {
		c.Add(ValidateNonNegative("daily_water_goal", *p.DailyWaterGoal))
	}
	if p.DailyCarbLimit != nil {
		c.Add(ValidateNonNegative("daily_carb_limit", *p.DailyCarbLimit))
	}
	for _, list := range []struct {
		name  string
		items *[]string
	}{
		{"health_conditions", p.HealthConditions},
		{"dietary_restrictions", p.DietaryRestrictions},
		{"goals", p.Goals},
	} {
		if list.items == nil {
			continue
		}
		for i, s := range *list.items {
			c.Add(ValidateMaxLength(fmt.Sprintf("%s[%d]", list.name, i), s, MaxMealNameLength))
		}
	}
	return c.Errors()
}

// AsError wraps a non-empty slice of failures as an error.
func AsError(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	return &Error{Errors: errs}
}
