package goals

import (
	"fmt"

	"github.com/hyperengineering/nutrisync/internal/types"
	"github.com/hyperengineering/nutrisync/internal/validation"
)

// Safety limits for goals proposed by the assistant.
const (
	MinCalories = 1200.0
	MaxCalories = 4000.0
	MinWater    = 1500.0
	MaxWater    = 5000.0
	MinCarbs    = 50.0
	MaxCarbs    = 400.0
)

// ValidateSafetyLimits rejects goals outside the ranges an automated
// suggestion may set. Manual updates are not subject to these limits.
func ValidateSafetyLimits(g types.NutritionGoals) error {
	var c validation.Collector
	c.Add(validation.ValidateRange("calories", g.Calories, MinCalories, MaxCalories))
	c.Add(validation.ValidateRange("water", g.Water, MinWater, MaxWater))
	c.Add(validation.ValidateRange("carbs", g.Carbs, MinCarbs, MaxCarbs))
	c.Add(validation.ValidateNonNegative("protein", g.Protein))
	c.Add(validation.ValidateNonNegative("fat", g.Fat))
	c.Add(validation.ValidateNonNegative("fiber", g.Fiber))
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsafeGoals, err)
	}
	return nil
}
