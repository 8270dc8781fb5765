package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/blogspy/backend/internal/models"
)

// SearchEngine queries a SerpAPI-compatible endpoint and reports the brand's
// organic rank and AI-overview presence.
type SearchEngine struct {
	httpBackend
	baseURL string
	apiKey  string
}

var _ Adapter = (*SearchEngine)(nil)

func NewSearchEngine(baseURL, apiKey string, timeout time.Duration, ratePerSec float64) *SearchEngine {
	if baseURL == "" {
		baseURL = "https://serpapi.com"
	}
	return &SearchEngine{
		httpBackend: newHTTPBackend(timeout, ratePerSec, 2),
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
	}
}

func (s *SearchEngine) ID() models.ProviderID { return models.ProviderGoogle }

func (s *SearchEngine) Fetch(ctx context.Context, query string, brand models.Brand) models.ProviderResult {
	if s.apiKey == "" {
		return models.ErrorResult(s.ID(), ErrMsgNoAPIKey)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()

	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("num", "10")
	q.Set("api_key", s.apiKey)
	data, err := s.call(ctx, http.MethodGet, s.baseURL+"/search.json?"+q.Encode(), nil, nil)
	if err != nil {
		return failure(ctx, s.ID(), err)
	}
	res := parseSearch(data, brand)
	res.LatencyMS = time.Since(start).Milliseconds()
	return res
}

// parseSearch extracts rank and featured placement from a SerpAPI body.
func parseSearch(data []byte, brand models.Brand) models.ProviderResult {
	if msg := gjson.GetBytes(data, "error").String(); msg != "" {
		return models.ErrorResult(models.ProviderGoogle, msg)
	}
	organic := gjson.GetBytes(data, "organic_results")
	if !organic.Exists() && !gjson.GetBytes(data, "search_metadata").Exists() {
		return models.ErrorResult(models.ProviderGoogle, ErrMsgMalformed)
	}

	res := models.ProviderResult{Provider: models.ProviderGoogle, Status: models.StatusHidden}
	organic.ForEach(func(_, item gjson.Result) bool {
		text := item.Get("title").String() + " " + item.Get("link").String() + " " + item.Get("snippet").String()
		if idx, _ := FindMention(text, brand); idx < 0 {
			return true
		}
		res.Rank = int(item.Get("position").Int())
		res.Snippet = item.Get("snippet").String()
		return false
	})

	var overview []string
	for _, path := range []string{"ai_overview.text_blocks.#.snippet", "answer_box.snippet"} {
		for _, v := range gjson.GetBytes(data, path).Array() {
			overview = append(overview, v.String())
		}
	}
	if aio := Analyze(models.ProviderGoogle, strings.Join(overview, " "), brand); aio.Visible() {
		res.Featured = true
		if res.Snippet == "" {
			res.Snippet = aio.Snippet
		}
	}

	if res.Rank > 0 || res.Featured {
		res.Status = models.StatusVisible
		res.Sentiment = Sentiment(res.Snippet)
	}
	return res
}
