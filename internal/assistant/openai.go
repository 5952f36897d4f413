package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperengineering/nutrisync/internal/types"
)

// Compile-time interface check
var _ Provider = (*OpenAIProvider)(nil)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// ChatCompletionsService defines the chat completion call the provider needs.
// This abstraction enables testing without calling the real OpenAI API.
type ChatCompletionsService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIProvider answers with OpenAI chat completions. Structured data is
// requested as JSON in the completion text.
type OpenAIProvider struct {
	completions ChatCompletionsService
	model       openai.ChatModel
}

// NewOpenAIProvider creates a provider for the given API key and model.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAIProviderWithService(client.Chat.Completions, model)
}

// NewOpenAIProviderWithService creates a provider on an existing completions service.
func NewOpenAIProviderWithService(svc ChatCompletionsService, model string) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIProvider{completions: svc, model: openai.ChatModel(model)}
}

// Name returns "openai".
func (p *OpenAIProvider) Name() string { return "openai" }

const (
	actionOpen  = "<action>"
	actionClose = "</action>"

	chatPrompt = "You are a friendly nutrition assistant inside a meal and water tracking app. " +
		"Answer briefly. When the user reports food they ate, append exactly one block " +
		`<action>{"intent":"LOG_MEAL","actionData":{"mealName":"...","foods":["..."],"calories":0,"protein":0,"carbs":0,"fats":0,"fiber":0}}</action>. ` +
		`When the user reports drinking water, append <action>{"intent":"LOG_WATER","actionData":{"waterAmount":250}}</action> with the amount in ml. ` +
		"Otherwise append no block."

	goalsPrompt = "You are a registered dietitian. Given a user profile and today's progress, propose daily nutrition goals. " +
		`Reply with JSON only: {"suggestedGoals":{"calories":0,"water":0,"carbs":0,"protein":0,"fat":0,"fiber":0},` +
		`"explanation":"...","confidence":0,"recommendations":["..."]}. Water is in ml, macros in grams, confidence 0 to 100.`

	analysisPrompt = "You are a nutrition coach. Assess the user's day. " +
		`Reply with JSON only: {"insights":["..."],"alerts":[{"type":"warning","title":"...","message":"...","priority":"high"}],` +
		`"recommendations":["..."],"healthScore":0,"motivationalMessage":"..."}. healthScore is 0 to 100.`
)

func (p *OpenAIProvider) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		}),
		Model: openai.F(p.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: %w: no choices returned", ErrMalformedReply)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completion: %w: empty content", ErrMalformedReply)
	}
	return content, nil
}

// Chat sends the message with the day's progress and parses the optional
// action block out of the reply.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	user := req.Message
	if req.Context != nil {
		ctxJSON, err := json.Marshal(req.Context)
		if err != nil {
			return nil, fmt.Errorf("encode chat context: %w", err)
		}
		user = fmt.Sprintf("Today so far: %s\n\n%s", ctxJSON, req.Message)
	}
	content, err := p.complete(ctx, chatPrompt, user)
	if err != nil {
		return nil, err
	}

	text, action := splitAction(content)
	reply := &ChatReply{Response: text, Source: SourceRemote}
	if action != "" {
		var parsed struct {
			Intent     string      `json:"intent"`
			ActionData *ActionData `json:"actionData"`
		}
		if err := json.Unmarshal([]byte(action), &parsed); err != nil {
			return nil, fmt.Errorf("chat completion: %w: action block: %v", ErrMalformedReply, err)
		}
		reply.Intent = Intent(strings.ToUpper(parsed.Intent))
		reply.ActionData = parsed.ActionData
	}
	if reply.Response == "" {
		return nil, fmt.Errorf("chat completion: %w: no reply text", ErrMalformedReply)
	}
	return reply, nil
}

// SuggestGoals asks the model for a goal set.
func (p *OpenAIProvider) SuggestGoals(ctx context.Context, profile types.UserProfile, current types.DaySummary) (*types.GoalSuggestion, error) {
	input, err := json.Marshal(struct {
		UserProfile wireProfile      `json:"userProfile"`
		CurrentData types.DaySummary `json:"currentData"`
	}{toWireProfile(profile), current})
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	content, err := p.complete(ctx, goalsPrompt, string(input))
	if err != nil {
		return nil, err
	}
	var resp analyzeProfileResponse
	if err := decodeJSONReply(content, &resp); err != nil {
		return nil, err
	}
	if resp.SuggestedGoals == nil {
		return nil, fmt.Errorf("chat completion: %w: no suggested goals", ErrMalformedReply)
	}
	return &types.GoalSuggestion{
		Goals:           *resp.SuggestedGoals,
		Explanation:     resp.Explanation,
		Confidence:      resp.Confidence,
		Recommendations: resp.Recommendations,
		Source:          SourceRemote,
	}, nil
}

// SubmitGoalFeedback does nothing: the completions API keeps no state.
func (p *OpenAIProvider) SubmitGoalFeedback(context.Context, types.NutritionGoals, bool, string) error {
	return nil
}

// Analyze asks the model to assess the day.
func (p *OpenAIProvider) Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	input, err := json.Marshal(struct {
		UserProfile wireProfile      `json:"userProfile"`
		Summary     types.DaySummary `json:"today"`
	}{toWireProfile(req.Profile), req.Summary})
	if err != nil {
		return nil, fmt.Errorf("encode analysis request: %w", err)
	}
	content, err := p.complete(ctx, analysisPrompt, string(input))
	if err != nil {
		return nil, err
	}
	var a Analysis
	if err := decodeJSONReply(content, &a); err != nil {
		return nil, err
	}
	a.Success = true
	a.Source = SourceRemote
	a.HealthScore = min(100, max(0, a.HealthScore))
	return &a, nil
}

// splitAction separates the reply text from the content of its action block.
func splitAction(content string) (text, action string) {
	start := strings.Index(content, actionOpen)
	end := strings.Index(content, actionClose)
	if start == -1 || end == -1 || end <= start {
		return strings.TrimSpace(content), ""
	}
	action = strings.TrimSpace(content[start+len(actionOpen) : end])
	text = strings.TrimSpace(content[:start] + content[end+len(actionClose):])
	return text, action
}

// decodeJSONReply decodes the outermost JSON object in content, ignoring
// any prose or code fences around it.
func decodeJSONReply(content string, v any) error {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return fmt.Errorf("chat completion: %w: no JSON object", ErrMalformedReply)
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), v); err != nil {
		return fmt.Errorf("chat completion: %w: %v", ErrMalformedReply, err)
	}
	return nil
}
