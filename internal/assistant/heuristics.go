package assistant

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hyperengineering/nutrisync/internal/types"
)

// Estimates used when a message names no recognizable food.
const (
	defaultMealCalories = 250
	defaultMealCarbs    = 25
	defaultMealProtein  = 20
	defaultMealFat      = 15
	// defaultActionCalories is used when a remote LOG_MEAL carries no calories.
	defaultActionCalories = 300
	glassML               = 250
)

var (
	eatenPattern   = regexp.MustCompile(`(?i)\b(?:ate|had|consumed|eaten)\s+(.+?)(?:\s+for\s|\s+at\s|[.!?]|$)`)
	splitPattern   = regexp.MustCompile(`(?i)\s*(?:,|\band\b|\bwith\b)\s*`)
	articlePattern = regexp.MustCompile(`(?i)^(?:a|an|the|some|my)\s+`)
	foodKeywords   = regexp.MustCompile(`(?i)\b(?:chicken|beef|fish|salmon|tuna|turkey|pork|lamb|tofu|salad|soup|sandwich|pizza|pasta|rice|quinoa|bread|apple|banana|orange|berries|grapes|vegetables|broccoli|spinach|cheese|yogurt|milk|eggs?|nuts|almonds|avocado|oatmeal)\b`)
	waterPattern   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(ml|liters?|litres?|glasses?|cups?)\b`)
	sentenceSplit  = regexp.MustCompile(`[.!?]+`)
	wordPattern    = regexp.MustCompile(`[a-z]+`)
)

// DetectIntent guesses the action a message asks for from its keywords.
// Water is checked first so "I had two glasses of water" logs water.
func DetectIntent(message string) Intent {
	words := wordSet(message)
	if words["water"] || words["drink"] || words["drank"] || words["hydrate"] {
		return IntentLogWater
	}
	if words["ate"] || words["had"] || words["eaten"] || words["consumed"] || words["meal"] ||
		words["breakfast"] || words["lunch"] || words["dinner"] {
		return IntentLogMeal
	}
	return IntentNone
}

// ExtractFoods returns the foods named in a message. The phrase after
// ate, had or consumed is split on commas, "and" and "with"; without such a
// phrase, known food words are collected instead.
func ExtractFoods(message string) []string {
	var foods []string
	if m := eatenPattern.FindStringSubmatch(message); m != nil {
		for _, item := range splitPattern.Split(m[1], -1) {
			item = strings.TrimSpace(articlePattern.ReplaceAllString(strings.TrimSpace(item), ""))
			if len(item) > 2 {
				foods = append(foods, strings.ToLower(item))
			}
		}
	}
	if len(foods) == 0 {
		for _, kw := range foodKeywords.FindAllString(message, -1) {
			foods = append(foods, strings.ToLower(kw))
		}
	}
	return unique(foods)
}

type estimate struct {
	keywords []string
	value    float64
}

var (
	calorieTable = []estimate{
		{[]string{"salad"}, 150},
		{[]string{"chicken", "meat"}, 250},
		{[]string{"fish", "salmon"}, 200},
		{[]string{"pasta", "rice"}, 220},
		{[]string{"sandwich"}, 300},
		{[]string{"pizza"}, 285},
		{[]string{"soup"}, 100},
		{[]string{"fruit", "apple"}, 80},
		{[]string{"yogurt"}, 120},
		{[]string{"nuts"}, 160},
	}
	carbTable = []estimate{
		{[]string{"pasta", "rice"}, 45},
		{[]string{"bread", "sandwich"}, 30},
		{[]string{"pizza"}, 35},
		{[]string{"fruit", "apple"}, 20},
		{[]string{"yogurt"}, 15},
		{[]string{"salad"}, 8},
		{[]string{"chicken", "meat", "fish"}, 0},
	}
	proteinTable = []estimate{
		{[]string{"chicken", "meat", "fish"}, 25},
		{[]string{"egg"}, 12},
		{[]string{"cheese", "yogurt"}, 10},
		{[]string{"beans", "lentil"}, 8},
	}
	fatTable = []estimate{
		{[]string{"oil", "butter"}, 14},
		{[]string{"cheese", "nuts"}, 10},
		{[]string{"meat", "fish"}, 8},
		{[]string{"avocado"}, 15},
	}
)

// sumEstimates adds the first matching table value for each food, or
// perFood when none matches. No foods yields empty.
func sumEstimates(foods []string, table []estimate, perFood, empty float64) float64 {
	if len(foods) == 0 {
		return empty
	}
	total := 0.0
	for _, food := range foods {
		food = strings.ToLower(food)
		v := perFood
	lookup:
		for _, e := range table {
			for _, kw := range e.keywords {
				if strings.Contains(food, kw) {
					v = e.value
					break lookup
				}
			}
		}
		total += v
	}
	if total == 0 {
		return empty
	}
	return total
}

// EstimateCalories estimates the calories of foods.
func EstimateCalories(foods []string) float64 {
	return sumEstimates(foods, calorieTable, 100, defaultMealCalories)
}

// EstimateCarbs estimates the carbohydrates of foods in grams.
func EstimateCarbs(foods []string) float64 {
	return sumEstimates(foods, carbTable, 10, defaultMealCarbs)
}

// EstimateProtein estimates the protein of foods in grams.
func EstimateProtein(foods []string) float64 {
	return sumEstimates(foods, proteinTable, 3, defaultMealProtein)
}

// EstimateFat estimates the fat of foods in grams.
func EstimateFat(foods []string) float64 {
	return sumEstimates(foods, fatTable, 2, defaultMealFat)
}

// ExtractWater returns the millilitres of water a message mentions:
// litres count 1000 ml, glasses and cups 250 ml, a bare "glass" 250 ml.
// Zero means no amount was found.
func ExtractWater(message string) float64 {
	if m := waterPattern.FindStringSubmatch(message); m != nil {
		amount, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			unit := strings.ToLower(m[2])
			switch {
			case strings.HasPrefix(unit, "lit"):
				return amount * 1000
			case strings.HasPrefix(unit, "glass"), strings.HasPrefix(unit, "cup"):
				return amount * glassML
			default:
				return amount
			}
		}
	}
	if strings.Contains(strings.ToLower(message), "glass") {
		return glassML
	}
	return 0
}

// MealTimeFor returns the meal slot for t: before 11 breakfast, before 16
// lunch, dinner after.
func MealTimeFor(t time.Time) types.MealType {
	switch h := t.Hour(); {
	case h < 11:
		return types.MealBreakfast
	case h < 16:
		return types.MealLunch
	default:
		return types.MealDinner
	}
}

// MealFromMessage builds a meal from the foods a message names. It returns
// false when no food is found.
func MealFromMessage(message string, now time.Time) (types.Meal, bool) {
	foods := ExtractFoods(message)
	if len(foods) == 0 {
		return types.Meal{}, false
	}
	return types.Meal{
		Name:      strings.Join(foods, ", "),
		MealType:  MealTimeFor(now),
		Foods:     foods,
		Calories:  EstimateCalories(foods),
		Carbs:     EstimateCarbs(foods),
		Protein:   EstimateProtein(foods),
		Fats:      EstimateFat(foods),
		Date:      now.Format(types.DateLayout),
		CreatedAt: now.UTC(),
	}, true
}

var insightMarkers = []string{"recommend", "suggest", "try", "consider", "good", "healthy"}

// ParseInsights returns up to three advice sentences from text.
func ParseInsights(text string) []string {
	var out []string
	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, m := range insightMarkers {
			if strings.Contains(lower, m) {
				out = append(out, sentence)
				break
			}
		}
		if len(out) == 3 {
			break
		}
	}
	return out
}

// HealthScore rates a day from 0 to 100.
func HealthScore(s types.DaySummary, diabetic bool) int {
	score := 50
	goalCalories := s.Goals.Calories
	if goalCalories <= 0 {
		goalCalories = types.DefaultGoals().Calories
	}

	switch w := s.Water.Total; {
	case w >= 2000:
		score += 15
	case w >= 1500:
		score += 10
	case w >= 1000:
		score += 5
	}

	switch c := s.Meals.Calories; {
	case c > goalCalories*0.8 && c < goalCalories*1.2:
		score += 15
	case c > goalCalories*0.6 && c < goalCalories*1.4:
		score += 10
	}

	switch p := s.Meals.Protein; {
	case p >= 100:
		score += 10
	case p >= 60:
		score += 5
	}

	if diabetic {
		switch c := s.Meals.Carbs; {
		case c <= 130:
			score += 10
		case c <= 160:
			score += 5
		default:
			score -= 5
		}
	}

	return min(100, max(0, score))
}

// LocalAnalysis assesses a day without an AI backend.
func LocalAnalysis(req AnalysisRequest) *Analysis {
	s := req.Summary
	diabetic := req.Profile.IsDiabetic()
	score := HealthScore(s, diabetic)

	goalCalories := s.Goals.Calories
	if goalCalories <= 0 {
		goalCalories = types.DefaultGoals().Calories
	}
	goalWater := s.Goals.Water
	if goalWater <= 0 {
		goalWater = types.DefaultGoals().Water
	}

	a := &Analysis{
		Success:     true,
		HealthScore: score,
		Source:      SourceLocal,
		Alerts:      []Alert{},
		Insights: []string{
			fmt.Sprintf("Your health score today is %d/100", score),
			fmt.Sprintf("You've consumed %.0f calories out of your %.0f goal", s.Meals.Calories, goalCalories),
			fmt.Sprintf("Water intake: %.0fml (%.0f%% of daily goal)", s.Water.Total, math.Round(s.Water.Total/goalWater*100)),
		},
		Recommendations: []string{
			"Continue consistent meal tracking",
			"Focus on whole, unprocessed foods",
			"Maintain regular meal timing",
		},
	}
	if diabetic {
		a.Insights = append(a.Insights, fmt.Sprintf("Carbs today: %.0fg (diabetic limit: 130g)", s.Meals.Carbs))
	}
	if s.Water.Total < 2000 {
		a.Recommendations = append(a.Recommendations, "Increase water intake for better hydration")
	}
	if s.Meals.Protein < 100 {
		a.Recommendations = append(a.Recommendations, "Add more protein-rich foods to your meals")
	}

	switch {
	case score >= 90:
		a.MotivationalMessage = "Excellent! You're doing fantastic with your nutrition goals!"
	case score >= 75:
		a.MotivationalMessage = "Great job! You're on track with your healthy lifestyle!"
	case score >= 60:
		a.MotivationalMessage = "Good progress! A few small adjustments can make a big difference!"
	default:
		a.MotivationalMessage = "Every step counts! Let's work together to improve your nutrition!"
	}

	if diabetic && s.Meals.Carbs > 150 {
		a.Alerts = append(a.Alerts, Alert{
			Type:     "warning",
			Title:    "High Carbohydrate Intake",
			Message:  fmt.Sprintf("Your carb intake (%.0fg) exceeds the recommended limit for diabetics", s.Meals.Carbs),
			Priority: "high",
		})
	}
	if s.Meals.Calories < goalCalories*0.6 {
		a.Alerts = append(a.Alerts, Alert{
			Type:     "info",
			Title:    "Low Calorie Intake",
			Message:  "Consider adding more nutritious foods to meet your calorie goals",
			Priority: "medium",
		})
	}
	return a
}

// SuggestionConfidence rates how much a locally calculated goal set can be
// trusted given what the profile carries.
func SuggestionConfidence(p types.UserProfile) float64 {
	c := 70.0
	if p.Age > 0 && p.Weight > 0 && p.Height > 0 {
		c += 15
	}
	if p.ActivityLevel != "" {
		c += 10
	}
	if len(p.HealthConditions) > 0 {
		c += 5
	}
	return math.Min(c, 100)
}

// LocalReply answers a message without an AI backend.
func LocalReply(message string, diabetic bool, now time.Time) string {
	words := wordSet(message)
	switch {
	case words["hello"] || words["hi"] || words["hey"]:
		return "Hello! I'm your nutrition assistant. I can help you track meals, analyze your diet and suggest meals. What would you like to do today?"
	case words["help"]:
		return "I can log meals (\"I ate chicken salad\"), track water (\"I drank 2 glasses of water\"), analyze your day (\"How am I doing today?\") and suggest meals (\"Suggest a healthy dinner\")."
	}

	switch DetectIntent(message) {
	case IntentLogWater:
		if amount := ExtractWater(message); amount > 0 {
			return fmt.Sprintf("Excellent! I've added %.0fml of water to your daily intake. Stay hydrated!", amount)
		}
		return "Great job staying hydrated! I've added a glass of water (250ml) to your intake."
	case IntentLogMeal:
		if meal, ok := MealFromMessage(message, now); ok {
			return fmt.Sprintf("Great! I've logged your meal: %s. I've estimated about %.0f calories and updated your totals.", meal.Name, meal.Calories)
		}
		return "I'd be happy to help you log your meal! Can you tell me what specific foods you ate?"
	}

	switch {
	case words["health"] || words["doing"] || words["progress"]:
		return "Your nutrition tracking is going well. Keep focusing on balanced meals with protein and vegetables, and I recommend regular meal timing for a steady metabolism."
	case words["suggest"] || words["recommend"] || words["plan"]:
		if diabetic {
			return "Here are some diabetes-friendly ideas: grilled salmon with roasted vegetables, herb chicken with cauliflower rice, a veggie omelette with avocado, or lemon herb cod with quinoa."
		}
		return "Here are some healthy ideas: Mediterranean chicken salad, a quinoa bowl with mixed vegetables, baked salmon with sweet potato, or a turkey and avocado wrap."
	}
	return "I'm here to help with your nutrition goals! You can ask me to log meals, track water intake, analyze your day or suggest healthy recipes."
}

func wordSet(message string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(strings.ToLower(message), -1) {
		set[w] = true
	}
	return set
}

func unique(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
