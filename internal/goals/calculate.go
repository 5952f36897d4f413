package goals

import (
	"math"

	"github.com/hyperengineering/nutrisync/internal/types"
)

// Profile fields that are missing fall back to these values.
const (
	DefaultAge    = 30
	DefaultWeight = 70.0
	DefaultHeight = 170.0
)

// Fixed targets applied when the profile carries a diabetes marker.
const (
	DiabeticCarbs = 130.0
	DiabeticFiber = 35.0
	StandardFiber = 30.0
	// WaterPerKg is the daily water need in millilitres per kilogram.
	WaterPerKg = 35.0
)

// activityFactors multiplies BMR into total daily energy expenditure.
var activityFactors = map[types.ActivityLevel]float64{
	types.ActivitySedentary:  1.2,
	types.ActivityLight:      1.375,
	types.ActivityModerate:   1.55,
	types.ActivityActive:     1.725,
	types.ActivityVeryActive: 1.9,
}

// ActivityFactor returns the TDEE multiplier for level, using MODERATE for
// unknown or empty levels.
func ActivityFactor(level types.ActivityLevel) float64 {
	if f, ok := activityFactors[level]; ok {
		return f
	}
	return activityFactors[types.ActivityModerate]
}

// BMR returns the Mifflin-St Jeor basal metabolic rate.
func BMR(weight, height float64, age int, gender types.Gender) float64 {
	bmr := 10*weight + 6.25*height - 5*float64(age)
	if gender == types.GenderFemale {
		return bmr - 161
	}
	return bmr + 5
}

// Calculate derives daily goals from a profile. It is pure.
//
// Calories are rounded first and the macros are derived from the rounded
// value: protein 20% and carbs 50% of calories at 4 kcal/g, fat 30% at
// 9 kcal/g. A diabetic profile gets fixed carbs and fiber instead.
func Calculate(p types.UserProfile) types.NutritionGoals {
	age := p.Age
	if age <= 0 {
		age = DefaultAge
	}
	weight := p.Weight
	if weight <= 0 {
		weight = DefaultWeight
	}
	height := p.Height
	if height <= 0 {
		height = DefaultHeight
	}
	gender := p.Gender
	if gender == "" {
		gender = types.GenderMale
	}

	tdee := BMR(weight, height, age, gender) * ActivityFactor(p.ActivityLevel)
	calories := math.Max(0, math.Round(tdee))

	g := types.NutritionGoals{
		Calories: calories,
		Water:    math.Round(weight * WaterPerKg),
		Protein:  math.Round(calories * 0.2 / 4),
		Fat:      math.Round(calories * 0.3 / 9),
	}
	if p.IsDiabetic() {
		g.Carbs = DiabeticCarbs
		g.Fiber = DiabeticFiber
	} else {
		g.Carbs = math.Round(calories * 0.5 / 4)
		g.Fiber = StandardFiber
	}
	return g
}
