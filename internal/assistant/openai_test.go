package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperengineering/nutrisync/internal/types"
)

// mockCompletions implements ChatCompletionsService for testing
type mockCompletions struct {
	content   string
	err       error
	callCount int
	lastModel string
}

func (m *mockCompletions) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	m.callCount++
	m.lastModel = string(params.Model.Value)
	if m.err != nil {
		return nil, m.err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.content}},
		},
	}, nil
}

func TestOpenAIChat_ParsesActionBlock(t *testing.T) {
	svc := &mockCompletions{content: `Enjoy your lunch! <action>{"intent":"log_meal","actionData":{"mealName":"Tuna wrap","calories":420,"protein":30}}</action>`}
	p := NewOpenAIProviderWithService(svc, "")

	reply, err := p.Chat(context.Background(), ChatRequest{Message: "I ate a tuna wrap"})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Response != "Enjoy your lunch!" {
		t.Errorf("Response = %q", reply.Response)
	}
	if reply.Intent != IntentLogMeal {
		t.Errorf("Intent = %q, want LOG_MEAL", reply.Intent)
	}
	if reply.ActionData == nil || reply.ActionData.MealName != "Tuna wrap" || reply.ActionData.Calories != 420 {
		t.Errorf("ActionData = %+v", reply.ActionData)
	}
	if svc.lastModel != DefaultOpenAIModel {
		t.Errorf("model = %q, want %q", svc.lastModel, DefaultOpenAIModel)
	}
}

func TestOpenAIChat_PlainReply(t *testing.T) {
	p := NewOpenAIProviderWithService(&mockCompletions{content: "Drink more water."}, "gpt-4o")
	reply, err := p.Chat(context.Background(), ChatRequest{Message: "tips?"})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Intent != IntentNone || reply.ActionData != nil || reply.Source != SourceRemote {
		t.Errorf("reply = %+v", reply)
	}
}

func TestOpenAIChat_Errors(t *testing.T) {
	tests := []struct {
		name    string
		svc     *mockCompletions
		wantErr error
	}{
		{"empty content", &mockCompletions{content: "  "}, ErrMalformedReply},
		{"broken action", &mockCompletions{content: "ok <action>{not json</action>"}, ErrMalformedReply},
		{"action only", &mockCompletions{content: `<action>{"intent":"LOG_WATER"}</action>`}, ErrMalformedReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewOpenAIProviderWithService(tt.svc, "")
			_, err := p.Chat(context.Background(), ChatRequest{Message: "hi"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	apiErr := errors.New("rate limited")
	p := NewOpenAIProviderWithService(&mockCompletions{err: apiErr}, "")
	if _, err := p.Chat(context.Background(), ChatRequest{Message: "hi"}); !errors.Is(err, apiErr) {
		t.Errorf("err = %v, want wrapped API error", err)
	}
}

func TestOpenAISuggestGoals(t *testing.T) {
	svc := &mockCompletions{content: "```json\n" +
		`{"suggestedGoals":{"calories":2100,"water":2600,"carbs":200,"protein":120,"fat":70,"fiber":35},"explanation":"Moderate deficit","confidence":82}` +
		"\n```"}
	p := NewOpenAIProviderWithService(svc, "")

	s, err := p.SuggestGoals(context.Background(), types.UserProfile{Age: 40}, types.DaySummary{})
	if err != nil {
		t.Fatal(err)
	}
	want := types.NutritionGoals{Calories: 2100, Water: 2600, Carbs: 200, Protein: 120, Fat: 70, Fiber: 35}
	if s.Goals != want || s.Confidence != 82 || s.Source != SourceRemote {
		t.Errorf("suggestion = %+v", s)
	}

	svc.content = `{"explanation":"no goals"}`
	if _, err := p.SuggestGoals(context.Background(), types.UserProfile{}, types.DaySummary{}); !errors.Is(err, ErrMalformedReply) {
		t.Errorf("err = %v, want ErrMalformedReply", err)
	}
}

func TestOpenAIAnalyze_ClampsScore(t *testing.T) {
	svc := &mockCompletions{content: `{"insights":["Good protein"],"healthScore":140}`}
	p := NewOpenAIProviderWithService(svc, "")

	a, err := p.Analyze(context.Background(), AnalysisRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if a.HealthScore != 100 || !a.Success || len(a.Insights) != 1 {
		t.Errorf("analysis = %+v", a)
	}
}

func TestSplitAction(t *testing.T) {
	text, action := splitAction("Hi <action>{}</action> there")
	if text != "Hi  there" || action != "{}" {
		t.Errorf("splitAction = %q, %q", text, action)
	}
	text, action = splitAction("</action> backwards <action>")
	if action != "" || text != "</action> backwards <action>" {
		t.Errorf("splitAction = %q, %q", text, action)
	}
}
