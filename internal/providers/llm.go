package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/blogspy/backend/internal/models"
)

// LLMDialect describes how one chat API is addressed and answered.
type LLMDialect struct {
	Provider     models.ProviderID
	DefaultURL   string
	Path         string
	AnswerPath   string // gjson path to the generated text
	Headers      func(apiKey string) map[string]string
	Body         func(model, prompt string) any
	ModelInPath  bool // Gemini addresses the model in the URL path
	DefaultModel string
}

// Prompt asks for recommendations without naming the brand, so a mention
// reflects organic visibility.
func Prompt(query string) string {
	return fmt.Sprintf("What are the best options for: %s? List specific products, companies or websites with a short reason for each.", query)
}

func bearer(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}

func chatBody(model, prompt string) any {
	return map[string]any{
		"model":      model,
		"max_tokens": 800,
		"messages":   []map[string]string{{"role": "user", "content": prompt}},
	}
}

var (
	OpenAIDialect = LLMDialect{
		Provider:     models.ProviderChatGPT,
		DefaultURL:   "https://api.openai.com",
		Path:         "/v1/chat/completions",
		AnswerPath:   "choices.0.message.content",
		Headers:      bearer,
		Body:         chatBody,
		DefaultModel: "gpt-4o-mini",
	}
	PerplexityDialect = LLMDialect{
		Provider:     models.ProviderPerplexity,
		DefaultURL:   "https://api.perplexity.ai",
		Path:         "/chat/completions",
		AnswerPath:   "choices.0.message.content",
		Headers:      bearer,
		Body:         chatBody,
		DefaultModel: "sonar",
	}
	AnthropicDialect = LLMDialect{
		Provider:   models.ProviderClaude,
		DefaultURL: "https://api.anthropic.com",
		Path:       "/v1/messages",
		AnswerPath: "content.#(type==\"text\")#.text",
		Headers: func(key string) map[string]string {
			return map[string]string{"x-api-key": key, "anthropic-version": "2023-06-01"}
		},
		Body:         chatBody,
		DefaultModel: "claude-3-5-haiku-latest",
	}
	GeminiDialect = LLMDialect{
		Provider:   models.ProviderGemini,
		DefaultURL: "https://generativelanguage.googleapis.com",
		AnswerPath: "candidates.0.content.parts.#.text",
		Headers: func(key string) map[string]string {
			return map[string]string{"x-goog-api-key": key}
		},
		Body: func(_, prompt string) any {
			return map[string]any{
				"contents": []map[string]any{{"parts": []map[string]string{{"text": prompt}}}},
			}
		},
		ModelInPath:  true,
		DefaultModel: "gemini-1.5-flash",
	}
)

// LLM is a live chat-completion adapter parameterised by dialect.
type LLM struct {
	httpBackend
	dialect LLMDialect
	baseURL string
	apiKey  string
	model   string
}

var _ Adapter = (*LLM)(nil)

func NewLLM(d LLMDialect, baseURL, apiKey, model string, timeout time.Duration, ratePerSec float64) *LLM {
	if baseURL == "" {
		baseURL = d.DefaultURL
	}
	if model == "" {
		model = d.DefaultModel
	}
	return &LLM{
		httpBackend: newHTTPBackend(timeout, ratePerSec, 2),
		dialect:     d,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
	}
}

func (l *LLM) ID() models.ProviderID { return l.dialect.Provider }

func (l *LLM) Fetch(ctx context.Context, query string, brand models.Brand) models.ProviderResult {
	if l.apiKey == "" {
		return models.ErrorResult(l.ID(), ErrMsgNoAPIKey)
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	start := time.Now()

	url := l.baseURL + l.dialect.Path
	if l.dialect.ModelInPath {
		url = fmt.Sprintf("%s/v1beta/models/%s:generateContent", l.baseURL, l.model)
	}
	data, err := l.call(ctx, http.MethodPost, url, l.dialect.Headers(l.apiKey), l.dialect.Body(l.model, Prompt(query)))
	if err != nil {
		return failure(ctx, l.ID(), err)
	}

	answer := answerText(gjson.GetBytes(data, l.dialect.AnswerPath))
	if answer == "" {
		return models.ErrorResult(l.ID(), ErrMsgMalformed)
	}
	res := Analyze(l.ID(), answer, brand)
	res.LatencyMS = time.Since(start).Milliseconds()
	return res
}

func answerText(v gjson.Result) string {
	if v.IsArray() {
		parts := make([]string, 0, len(v.Array()))
		for _, p := range v.Array() {
			parts = append(parts, p.String())
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	}
	return strings.TrimSpace(v.String())
}
