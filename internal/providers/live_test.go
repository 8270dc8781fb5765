package providers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogspy/backend/internal/models"
)

func jsonServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

func TestSearchEngine_RankAndFeatured(t *testing.T) {
	body := `{
		"search_metadata": {"status": "Success"},
		"organic_results": [
			{"position": 1, "title": "Globex", "link": "https://globex.com", "snippet": "Globex tools"},
			{"position": 2, "title": "Acme - trusted tracker", "link": "https://acme.io", "snippet": "Acme is a trusted tracker"}
		],
		"ai_overview": {"text_blocks": [{"snippet": "Popular picks include Acme and Globex."}]}
	}`
	srv := jsonServer(t, http.StatusOK, body, nil)
	s := NewSearchEngine(srv.URL, "key", time.Second, 100)

	res := s.Fetch(context.Background(), "issue tracker", acme)
	assert.Equal(t, models.StatusVisible, res.Status)
	assert.Equal(t, 2, res.Rank)
	assert.True(t, res.Featured)
	assert.Empty(t, res.Error)
}

func TestSearchEngine_NotRanked(t *testing.T) {
	body := `{"search_metadata": {}, "organic_results": [{"position": 1, "title": "Globex", "link": "https://globex.com"}]}`
	srv := jsonServer(t, http.StatusOK, body, nil)
	res := NewSearchEngine(srv.URL, "key", time.Second, 100).Fetch(context.Background(), "q", acme)

	assert.Equal(t, models.StatusHidden, res.Status)
	assert.Zero(t, res.Rank)
	assert.Empty(t, res.Error)
}

func TestSearchEngine_MissingKeySkipsNetwork(t *testing.T) {
	var hits int32
	srv := jsonServer(t, http.StatusOK, `{}`, &hits)
	res := NewSearchEngine(srv.URL, "", time.Second, 100).Fetch(context.Background(), "q", acme)

	assert.Equal(t, models.StatusHidden, res.Status)
	assert.Equal(t, ErrMsgNoAPIKey, res.Error)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

// ---------------------------------------------------------------------------
// LLM dialects
// ---------------------------------------------------------------------------

func TestLLM_Dialects(t *testing.T) {
	cases := []struct {
		name    string
		dialect LLMDialect
		body    string
	}{
		{"openai", OpenAIDialect, `{"choices":[{"message":{"content":"Acme is the best choice."}}]}`},
		{"perplexity", PerplexityDialect, `{"choices":[{"message":{"content":"Many recommend Acme."}}]}`},
		{"anthropic", AnthropicDialect, `{"content":[{"type":"text","text":"Consider Acme, it is reliable."}]}`},
		{"gemini", GeminiDialect, `{"candidates":[{"content":{"parts":[{"text":"Acme is popular."}]}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := jsonServer(t, http.StatusOK, tc.body, nil)
			l := NewLLM(tc.dialect, srv.URL, "key", "", time.Second, 100)

			res := l.Fetch(context.Background(), "project tracking", acme)
			assert.Equal(t, tc.dialect.Provider, res.Provider)
			assert.Equal(t, models.StatusVisible, res.Status)
			assert.Equal(t, models.SentimentPositive, res.Sentiment)
			assert.Empty(t, res.Error)
		})
	}
}

func TestLLM_SendsPromptWithoutBrand(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"Globex."}}]}`)
	}))
	defer srv.Close()

	res := NewLLM(OpenAIDialect, srv.URL, "key", "m1", time.Second, 100).Fetch(context.Background(), "crm", acme)
	assert.Equal(t, models.StatusHidden, res.Status)
	assert.Equal(t, "m1", got["model"])
	assert.NotContains(t, Prompt("crm"), "Acme")
}

func TestLLM_ErrorStatus(t *testing.T) {
	srv := jsonServer(t, http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, nil)
	res := NewLLM(OpenAIDialect, srv.URL, "key", "", time.Second, 100).Fetch(context.Background(), "q", acme)

	assert.Equal(t, models.StatusHidden, res.Status)
	assert.Contains(t, res.Error, "401")
	assert.Contains(t, res.Error, "bad key")
}

func TestLLM_MalformedBody(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `not json`, nil)
	res := NewLLM(AnthropicDialect, srv.URL, "key", "", time.Second, 100).Fetch(context.Background(), "q", acme)
	assert.Equal(t, ErrMsgMalformed, res.Error)

	srv2 := jsonServer(t, http.StatusOK, `{"unexpected": true}`, nil)
	res = NewLLM(AnthropicDialect, srv2.URL, "key", "", time.Second, 100).Fetch(context.Background(), "q", acme)
	assert.Equal(t, ErrMsgMalformed, res.Error)
	assert.Equal(t, models.StatusHidden, res.Status)
}

func TestLLM_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	start := time.Now()
	res := NewLLM(PerplexityDialect, srv.URL, "key", "", 50*time.Millisecond, 100).Fetch(context.Background(), "q", acme)
	assert.Equal(t, models.StatusHidden, res.Status)
	assert.Equal(t, ErrMsgTimeout, res.Error)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLLM_GeminiKeyInHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gemini-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.RawQuery)
		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", r.URL.Path)
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Acme."}]}}]}`)
	}))
	defer srv.Close()

	res := NewLLM(GeminiDialect, srv.URL, "gemini-key", "", time.Second, 100).Fetch(context.Background(), "q", acme)
	assert.Empty(t, res.Error)
	assert.Equal(t, models.StatusVisible, res.Status)
}

func TestLiveAdapters_UnreachableHidesCredentials(t *testing.T) {
	const dead = "http://127.0.0.1:1"
	cases := map[string]Adapter{
		"search": NewSearchEngine(dead, "SECRET-SERP-KEY", time.Second, 100),
		"gemini": NewLLM(GeminiDialect, dead, "SECRET-GEMINI-KEY", "", time.Second, 100),
		"openai": NewLLM(OpenAIDialect, dead, "SECRET-OPENAI-KEY", "", time.Second, 100),
	}
	for name, a := range cases {
		t.Run(name, func(t *testing.T) {
			res := a.Fetch(context.Background(), "q", acme)
			assert.Equal(t, models.StatusHidden, res.Status)
			assert.Equal(t, ErrMsgUnreachable, res.Error)
			assert.NotContains(t, res.Error, "SECRET")
		})
	}
}

func TestLLM_RateLimitedCall(t *testing.T) {
	var hits int32
	srv := jsonServer(t, http.StatusOK, `{"choices":[{"message":{"content":"Acme."}}]}`, &hits)
	l := NewLLM(OpenAIDialect, srv.URL, "key", "", 200*time.Millisecond, 0.01)

	for range 2 {
		assert.Empty(t, l.Fetch(context.Background(), "q", acme).Error)
	}
	res := l.Fetch(context.Background(), "q", acme)
	assert.Equal(t, ErrMsgRateLimited, res.Error)
	assert.Equal(t, models.StatusHidden, res.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

// ---------------------------------------------------------------------------
// Fixture / Demo / registry
// ---------------------------------------------------------------------------

func TestFixture_DelayHonoursContext(t *testing.T) {
	f := &Fixture{Provider: models.ProviderGemini, Result: models.ProviderResult{Status: models.StatusVisible}, Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := f.Fetch(ctx, "q", acme)
	assert.Equal(t, ErrMsgTimeout, res.Error)
	assert.Equal(t, models.StatusHidden, res.Status)
}

func TestFixture_ErrorForcesHidden(t *testing.T) {
	f := &Fixture{Provider: models.ProviderClaude, Result: models.ProviderResult{Status: models.StatusVisible, Error: "boom"}}
	res := f.Fetch(context.Background(), "q", acme)
	assert.Equal(t, models.StatusHidden, res.Status)
	assert.Equal(t, models.ProviderClaude, res.Provider)
}

func TestDemo_Deterministic(t *testing.T) {
	d := &Demo{Provider: models.ProviderGoogle}
	a := d.Fetch(context.Background(), "best crm", acme)
	b := d.Fetch(context.Background(), "best crm", acme)
	assert.Equal(t, a, b)
	assert.Empty(t, a.Error)
	if a.Visible() {
		assert.GreaterOrEqual(t, a.Rank, 1)
		assert.LessOrEqual(t, a.Rank, 10)
	}
}

func TestNewSet(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	set := NewSet(Config{}, log)
	require.Len(t, set, len(models.RealProviders))
	for i, a := range set {
		assert.Equal(t, models.RealProviders[i], a.ID())
		assert.IsType(t, &Demo{}, a)
	}

	live := NewSet(Config{Mode: ModeLive}, log)
	require.Len(t, live, len(models.RealProviders))
	for i, a := range live {
		assert.Equal(t, models.RealProviders[i], a.ID())
		assert.Equal(t, ErrMsgNoAPIKey, a.Fetch(context.Background(), "q", acme).Error)
	}
}
