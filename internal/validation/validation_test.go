package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/hyperengineering/nutrisync/internal/types"
)

func ptr[T any](v T) *T { return &v }

// --- Field validators ---

func TestValidateUTF8(t *testing.T) {
	if err := ValidateUTF8("name", "Müsli 🥣"); err != nil {
		t.Errorf("ValidateUTF8(valid) = %v, want nil", err)
	}
	if err := ValidateUTF8("name", string([]byte{0xff, 0xfe})); err == nil {
		t.Error("ValidateUTF8(invalid) = nil, want error")
	}
}

func TestValidateNoNullBytes(t *testing.T) {
	if err := ValidateNoNullBytes("name", "toast"); err != nil {
		t.Errorf("ValidateNoNullBytes(clean) = %v, want nil", err)
	}
	err := ValidateNoNullBytes("name", "to\x00ast")
	if err == nil {
		t.Fatal("ValidateNoNullBytes(with null) = nil, want error")
	}
	if err.Field != "name" {
		t.Errorf("Field = %q, want %q", err.Field, "name")
	}
}

func TestValidateMaxLength_CountsRunes(t *testing.T) {
	value := strings.Repeat("é", 10)
	if err := ValidateMaxLength("name", value, 10); err != nil {
		t.Errorf("ValidateMaxLength(10 runes, max 10) = %v, want nil", err)
	}
	if err := ValidateMaxLength("name", value+"é", 10); err == nil {
		t.Error("ValidateMaxLength(11 runes, max 10) = nil, want error")
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"Oatmeal", false},
		{"", true},
		{"   \t", true},
	}
	for _, tt := range tests {
		err := ValidateRequired("name", tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRequired(%q) = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestValidateEnum(t *testing.T) {
	if err := ValidateEnum("meal_type", "DINNER", types.MealTypes); err != nil {
		t.Errorf("ValidateEnum(DINNER) = %v, want nil", err)
	}
	err := ValidateEnum("meal_type", "dinner", types.MealTypes)
	if err == nil {
		t.Fatal("ValidateEnum is case-sensitive, want error for lowercase")
	}
	if !strings.Contains(err.Message, "BREAKFAST") {
		t.Errorf("Message = %q, want allowed values listed", err.Message)
	}
}

func TestValidateRange(t *testing.T) {
	tests := []struct {
		value   float64
		wantErr bool
	}{
		{0, false},
		{50, false},
		{100, false},
		{-0.1, true},
		{100.1, true},
	}
	for _, tt := range tests {
		err := ValidateRange("age", tt.value, 0, 100)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRange(%v) = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestValidateNonNegativeAndPositive(t *testing.T) {
	if err := ValidateNonNegative("fat", 0); err != nil {
		t.Errorf("ValidateNonNegative(0) = %v, want nil", err)
	}
	if err := ValidateNonNegative("fat", -1); err == nil {
		t.Error("ValidateNonNegative(-1) = nil, want error")
	}
	if err := ValidatePositive("amount", 0); err == nil {
		t.Error("ValidatePositive(0) = nil, want error")
	}
	if err := ValidatePositive("amount", 1); err != nil {
		t.Errorf("ValidatePositive(1) = %v, want nil", err)
	}
}

func TestValidateDate(t *testing.T) {
	for _, v := range []string{"2025-01-01", "2024-02-29"} {
		if err := ValidateDate("date", v); err != nil {
			t.Errorf("ValidateDate(%q) = %v, want nil", v, err)
		}
	}
	for _, v := range []string{"", "2025-1-1", "2025-02-30", "01/01/2025"} {
		if err := ValidateDate("date", v); err == nil {
			t.Errorf("ValidateDate(%q) = nil, want error", v)
		}
	}
}

// --- Collector ---

func TestCollector_AccumulatesAndIgnoresNil(t *testing.T) {
	c := &Collector{}
	c.Add(nil)
	if c.HasErrors() || c.Err() != nil {
		t.Fatal("empty collector reports errors")
	}

	c.Add(&ValidationError{Field: "f1", Message: "m1"})
	c.Add(nil)
	c.Add(&ValidationError{Field: "f2", Message: "m2"})

	if got := len(c.Errors()); got != 2 {
		t.Fatalf("len(Errors()) = %d, want 2", got)
	}

	var verr *Error
	if !errors.As(c.Err(), &verr) {
		t.Fatalf("Err() = %T, want *Error", c.Err())
	}
	if !strings.Contains(verr.Error(), "f1 m1; f2 m2") {
		t.Errorf("Error() = %q", verr.Error())
	}
}

// --- Domain validators ---

func validMeal() types.Meal {
	return types.Meal{
		Name:     "Oatmeal",
		MealType: types.MealBreakfast,
		Calories: 300,
		Protein:  10,
		Carbs:    54,
		Fats:     5,
		Fiber:    8,
		Date:     "2025-01-01",
	}
}

func TestValidateMeal_Valid(t *testing.T) {
	if errs := ValidateMeal(validMeal()); len(errs) != 0 {
		t.Errorf("ValidateMeal(valid) = %v, want none", errs)
	}
}

func TestValidateMeal_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.Meal)
		field  string
	}{
		{"empty name", func(m *types.Meal) { m.Name = " " }, "name"},
		{"negative calories", func(m *types.Meal) { m.Calories = -5 }, "calories"},
		{"negative fats", func(m *types.Meal) { m.Fats = -1 }, "fats"},
		{"bad type", func(m *types.Meal) { m.MealType = "BRUNCH" }, "meal_type"},
		{"bad date", func(m *types.Meal) { m.Date = "yesterday" }, "date"},
		{"blank food", func(m *types.Meal) { m.Foods = []string{"oats", ""} }, "foods[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMeal()
			tt.mutate(&m)
			errs := ValidateMeal(m)
			if len(errs) == 0 {
				t.Fatal("ValidateMeal = none, want error")
			}
			if errs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}
}

func TestValidateWater(t *testing.T) {
	tests := []struct {
		name    string
		amount  float64
		wantErr bool
	}{
		{"glass", 250, false},
		{"zero", 0, true},
		{"negative", -100, true},
		{"above cap", MaxWaterPerEntry + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateWater(types.WaterIntake{Amount: tt.amount, Date: "2025-01-01"})
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("ValidateWater(%v) = %v, wantErr %v", tt.amount, errs, tt.wantErr)
			}
		})
	}
}

func TestValidateGoalsPatch(t *testing.T) {
	if errs := ValidateGoalsPatch(types.GoalsPatch{Calories: ptr(0.0)}); len(errs) != 0 {
		t.Errorf("zero calories should be accepted, got %v", errs)
	}
	errs := ValidateGoalsPatch(types.GoalsPatch{Water: ptr(-1.0), Fiber: ptr(-2.0)})
	if len(errs) != 2 {
		t.Fatalf("len(errs) = %d, want 2", len(errs))
	}
	if errs[0].Field != "water" || errs[1].Field != "fiber" {
		t.Errorf("fields = %q, %q", errs[0].Field, errs[1].Field)
	}
}

func TestValidateProfilePatch(t *testing.T) {
	bad := types.ActivityLevel("COUCH")
	errs := ValidateProfilePatch(types.ProfilePatch{Age: ptr(200), ActivityLevel: &bad})
	if len(errs) != 2 {
		t.Fatalf("len(errs) = %d, want 2: %v", len(errs), errs)
	}

	ok := types.ActivityActive
	if errs := ValidateProfilePatch(types.ProfilePatch{Age: ptr(30), ActivityLevel: &ok}); len(errs) != 0 {
		t.Errorf("valid patch rejected: %v", errs)
	}
}

func TestAsError(t *testing.T) {
	if AsError(nil) != nil {
		t.Error("AsError(nil) should be nil")
	}
	err := AsError([]ValidationError{{Field: "name", Message: "is required"}})
	var verr *Error
	if !errors.As(err, &verr) || len(verr.Errors) != 1 {
		t.Errorf("AsError = %v", err)
	}
}
