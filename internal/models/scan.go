package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderID names one signal source, real or virtual.
type ProviderID string

// Real providers.
const (
	ProviderGoogle     ProviderID = "google"
	ProviderChatGPT    ProviderID = "chatgpt"
	ProviderPerplexity ProviderID = "perplexity"
	ProviderGemini     ProviderID = "gemini"
	ProviderClaude     ProviderID = "claude"
)

// Virtual platforms (no API, computed from real results).
const (
	PlatformCopilot ProviderID = "copilot"
	PlatformSiri    ProviderID = "siri"
)

// RealProviders is the fixed set of providers queried on every scan.
var RealProviders = []ProviderID{ProviderGoogle, ProviderChatGPT, ProviderPerplexity, ProviderGemini, ProviderClaude}

// VirtualPlatforms is the fixed set of derived platforms.
var VirtualPlatforms = []ProviderID{PlatformCopilot, PlatformSiri}

// TotalPlatforms counts real and virtual platforms.
var TotalPlatforms = len(RealProviders) + len(VirtualPlatforms)

// Visibility and readiness statuses.
const (
	StatusVisible  = "visible"
	StatusHidden   = "hidden"
	StatusReady    = "ready"
	StatusAtRisk   = "at-risk"
	StatusNotReady = "not-ready"
)

// Sentiment classifications.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Brand is the subject of a scan.
type Brand struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// ProviderResult is one provider's answer for one query.
// A non-empty Error always comes with StatusHidden.
type ProviderResult struct {
	Provider  ProviderID `json:"provider"`
	Status    string     `json:"status"`
	Snippet   string     `json:"snippet,omitempty"`
	Sentiment string     `json:"sentiment,omitempty"`
	Rank      int        `json:"rank,omitempty"`
	Featured  bool       `json:"featured,omitempty"`
	Error     string     `json:"error,omitempty"`
	LatencyMS int64      `json:"latency_ms"`
}

// Failed reports whether the provider call ended in an error state.
func (r ProviderResult) Failed() bool { return r.Error != "" }

// Visible reports whether the brand was detected.
func (r ProviderResult) Visible() bool { return r.Status == StatusVisible && r.Error == "" }

// ErrorResult builds a hidden+error result.
func ErrorResult(p ProviderID, msg string) ProviderResult {
	return ProviderResult{Provider: p, Status: StatusHidden, Error: msg}
}

// VirtualPlatformResult is a computed signal for a platform with no API.
type VirtualPlatformResult struct {
	Platform ProviderID `json:"platform"`
	Status   string     `json:"status"`
	Score    int        `json:"score"`
	Factors  []string   `json:"factors,omitempty"`
	Snippet  string     `json:"snippet,omitempty"`
	Note     string     `json:"note,omitempty"`
}

// Counts reports whether the virtual result counts toward visibility.
func (v VirtualPlatformResult) Counts() bool {
	return v.Status == StatusVisible || v.Status == StatusReady
}

// CrawlerPolicy carries the externally audited robots.txt allow bits.
type CrawlerPolicy struct {
	SearchBot         bool `json:"search_bot"`
	FlagshipLLMBot    bool `json:"flagship_llm_bot"`
	VoiceAssistantBot bool `json:"voice_assistant_bot"`
}

// AllowAllCrawlers is used when no audit data is supplied.
var AllowAllCrawlers = CrawlerPolicy{SearchBot: true, FlagshipLLMBot: true, VoiceAssistantBot: true}

// FullScanResult is the complete output of one scan.
type FullScanResult struct {
	ID               uuid.UUID               `json:"id"`
	Query            string                  `json:"query"`
	Brand            Brand                   `json:"brand"`
	Results          []ProviderResult        `json:"results"`
	Virtual          []VirtualPlatformResult `json:"virtual"`
	OverallScore     int                     `json:"overall_score"`
	VisiblePlatforms int                     `json:"visible_platforms"`
	TotalPlatforms   int                     `json:"total_platforms"`
	ErrorCount       int                     `json:"error_count"`
	Timestamp        time.Time               `json:"timestamp"`
}

// Result returns the result for provider p, if present.
func (f *FullScanResult) Result(p ProviderID) (ProviderResult, bool) {
	for _, r := range f.Results {
		if r.Provider == p {
			return r, true
		}
	}
	return ProviderResult{}, false
}

// CacheEntry is a stored scan result keyed by tracked item.
type CacheEntry struct {
	TrackedItemID uuid.UUID      `json:"tracked_item_id"`
	Result        FullScanResult `json:"result"`
	StoredAt      time.Time      `json:"stored_at"`
}
