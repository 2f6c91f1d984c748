package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ashita-ai/suisen/internal/model"
)

// Parsed is the structured reading of one piece of free-text feedback.
type Parsed struct {
	Sentiment  model.FeedbackType `json:"sentiment"`
	Reward     float64            `json:"reward"`
	Confidence float64            `json:"confidence"`
}

// Parser turns recruiter free text into a reward signal. Implementations
// may call out to an LLM; the feedback loop treats any error as neutral,
// so a parser never has to guess when it cannot read the text.
type Parser interface {
	Parse(ctx context.Context, text string) (Parsed, error)
}

// parsePrompt asks for machine-readable JSON only. Reward is the
// actionable scale: how strongly the feedback supports advancing the
// candidate, not merely how friendly it sounds.
const parsePrompt = `You are a recruiting feedback analyzer.

Feedback about a candidate:
%s

Read the feedback and respond with ONLY a JSON object on a single line, no prose, no code fences:
{"sentiment": "positive" | "negative" | "neutral", "reward": <number 0..1>, "confidence": <number 0..1>}

reward is how strongly the feedback supports advancing the candidate (1.0 = hire immediately, 0.0 = reject outright, 0.5 = no signal either way).
confidence is how unambiguous the feedback text is.`

func formatParsePrompt(text string) string {
	return fmt.Sprintf(parsePrompt, text)
}

// ParseResponse extracts {sentiment, reward, confidence} from an LLM
// reply. Models wrap JSON in code fences or prose often enough that the
// first balanced object in the text is taken; scores are clamped to
// [0,1]. An unrecognized sentiment is an error so the caller falls back
// to neutral instead of trusting a misreading.
func ParseResponse(response string) (Parsed, error) {
	payload := stripFences(response)
	if i := strings.Index(payload, "{"); i >= 0 {
		if j := strings.LastIndex(payload, "}"); j > i {
			payload = payload[i : j+1]
		}
	}

	var raw struct {
		Sentiment  string  `json:"sentiment"`
		Reward     float64 `json:"reward"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Parsed{}, fmt.Errorf("feedback parser: decode json: %w", err)
	}

	sentiment := model.FeedbackType(strings.ToLower(strings.TrimSpace(raw.Sentiment)))
	switch sentiment {
	case model.FeedbackPositive, model.FeedbackNegative, model.FeedbackNeutral:
	default:
		return Parsed{}, fmt.Errorf("feedback parser: unrecognized sentiment %q", raw.Sentiment)
	}

	return Parsed{
		Sentiment:  sentiment,
		Reward:     clip01(raw.Reward),
		Confidence: clip01(raw.Confidence),
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// perCallTimeout bounds a single LLM parse. Separate from the HTTP
// client timeout so a stuck connection cannot hold a feedback request
// longer than the loop's neutral fallback allows.
const perCallTimeout = 15 * time.Second

// OllamaParser reads feedback with a local Ollama chat model. The model
// should be a text generation model (e.g. qwen2.5:3b), not an embedding
// model; format "json" makes Ollama constrain the output.
type OllamaParser struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaParser creates a parser that calls Ollama's chat API.
func NewOllamaParser(baseURL, model string) *OllamaParser {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaParser{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: perCallTimeout + 5*time.Second,
		},
	}
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

func (p *OllamaParser) Parse(ctx context.Context, text string) (Parsed, error) {
	callCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
	defer cancel()

	body, err := json.Marshal(ollamaChatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "user", Content: formatParsePrompt(text)},
		},
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return Parsed{}, fmt.Errorf("ollama parser: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Parsed{}, fmt.Errorf("ollama parser: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Parsed{}, fmt.Errorf("ollama parser: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Parsed{}, fmt.Errorf("ollama parser: status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Parsed{}, fmt.Errorf("ollama parser: decode response: %w", err)
	}

	return ParseResponse(result.Message.Content)
}

// openAIBaseURL is overridden in tests; the API offers no other seam.
const openAIBaseURL = "https://api.openai.com"

// OpenAIParser reads feedback with the OpenAI chat API. Uses
// gpt-4o-mini by default for cost efficiency; response_format pins the
// reply to a JSON object.
type OpenAIParser struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIParser creates a parser that calls the OpenAI chat
// completions API.
func NewOpenAIParser(apiKey, model string) *OpenAIParser {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIParser{
		apiKey:  apiKey,
		model:   model,
		baseURL: openAIBaseURL,
		httpClient: &http.Client{
			Timeout: perCallTimeout + 5*time.Second,
		},
	}
}

type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []chatMessage         `json:"messages"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIParser) Parse(ctx context.Context, text string) (Parsed, error) {
	callCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
	defer cancel()

	body, err := json.Marshal(openAIChatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "user", Content: formatParsePrompt(text)},
		},
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return Parsed{}, fmt.Errorf("openai parser: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Parsed{}, fmt.Errorf("openai parser: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Parsed{}, fmt.Errorf("openai parser: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Parsed{}, fmt.Errorf("openai parser: status %d: %s", resp.StatusCode, string(respBody))
	}

	var result openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Parsed{}, fmt.Errorf("openai parser: decode response: %w", err)
	}

	if len(result.Choices) == 0 {
		return Parsed{}, fmt.Errorf("openai parser: no choices in response")
	}

	return ParseResponse(result.Choices[0].Message.Content)
}

// KeywordParser is the no-LLM fallback: a cue-phrase count. Negative
// cues are weighted double so a negated recommendation ("would not
// recommend") outweighs the positive word inside it. It never errors;
// text with no cues, or with balanced cues, reads as neutral.
type KeywordParser struct{}

var positiveCues = []string{
	"excellent", "outstanding", "impressive", "exceptional",
	"strong yes", "recommend", "great fit", "perfect fit", "hire",
}

var negativeCues = []string{
	"not qualified", "not a fit", "not recommend", "no hire", "reject",
	"decline", "poor", "weak", "underwhelming", "concern",
}

func (KeywordParser) Parse(_ context.Context, text string) (Parsed, error) {
	normalized := strings.ToLower(text)

	score := 0
	for _, cue := range positiveCues {
		score += strings.Count(normalized, cue)
	}
	for _, cue := range negativeCues {
		score -= 2 * strings.Count(normalized, cue)
	}

	switch {
	case score > 0:
		return Parsed{Sentiment: model.FeedbackPositive, Reward: 0.9, Confidence: 0.6}, nil
	case score < 0:
		return Parsed{Sentiment: model.FeedbackNegative, Reward: 0.1, Confidence: 0.6}, nil
	default:
		return Parsed{Sentiment: model.FeedbackNeutral, Reward: 0.5, Confidence: 0.3}, nil
	}
}

func clip01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
