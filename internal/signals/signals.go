// Package signals derives the virtual platform results from real provider
// results and folds everything into the overall visibility score. Nothing
// here performs I/O.
package signals

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/blogspy/backend/internal/models"
)

// Readiness weights and thresholds.
const (
	searchMaxPoints   = 40
	flagshipPoints    = 30
	crawlerPoints     = 30
	crawlerPenalty    = -20
	readyThreshold    = 70
	atRiskThreshold   = 40
	voiceAssistantBot = "Applebot"
)

// SharedIndexSource is the real provider the proxy platform mirrors.
const SharedIndexSource = models.ProviderPerplexity

// FlagshipSource is the language model the readiness score checks.
const FlagshipSource = models.ProviderChatGPT

// Proxy mirrors the shared-index provider's status and snippet.
func Proxy(results []models.ProviderResult) models.VirtualPlatformResult {
	v := models.VirtualPlatformResult{
		Platform: models.PlatformCopilot,
		Status:   models.StatusHidden,
		Note:     fmt.Sprintf("estimated from %s, which shares its web index", SharedIndexSource),
	}
	src, ok := find(results, SharedIndexSource)
	if !ok || src.Failed() {
		v.Note = fmt.Sprintf("%s unavailable; no estimate", SharedIndexSource)
		return v
	}
	if src.Visible() {
		v.Status = models.StatusVisible
		v.Score = 100
		v.Snippet = src.Snippet
	}
	return v
}

// searchPoints scales search placement: featured counts as rank 1.
func searchPoints(r models.ProviderResult) int {
	if r.Failed() {
		return 0
	}
	switch {
	case r.Featured || r.Rank == 1:
		return searchMaxPoints
	case r.Rank <= 0:
		return 0
	case r.Rank <= 3:
		return 30
	case r.Rank <= 5:
		return 20
	case r.Rank <= 10:
		return 10
	}
	return 0
}

// Readiness scores the voice assistant platform from search placement,
// flagship model visibility and the assistant crawler's robots.txt bit.
func Readiness(results []models.ProviderResult, policy models.CrawlerPolicy) models.VirtualPlatformResult {
	score := 0
	var factors []string

	search, _ := find(results, models.ProviderGoogle)
	if pts := searchPoints(search); pts > 0 {
		score += pts
		if search.Featured {
			factors = append(factors, fmt.Sprintf("featured in search overview (+%d)", pts))
		} else {
			factors = append(factors, fmt.Sprintf("search rank %d (+%d)", search.Rank, pts))
		}
	} else {
		factors = append(factors, "not ranked in top 10 search results (+0)")
	}

	if flagship, ok := find(results, FlagshipSource); ok && flagship.Visible() {
		score += flagshipPoints
		factors = append(factors, fmt.Sprintf("visible on %s (+%d)", FlagshipSource, flagshipPoints))
	} else {
		factors = append(factors, fmt.Sprintf("not visible on %s (+0)", FlagshipSource))
	}

	if policy.VoiceAssistantBot {
		score += crawlerPoints
		factors = append(factors, fmt.Sprintf("crawler %s allowed (+%d)", voiceAssistantBot, crawlerPoints))
	} else {
		score += crawlerPenalty
		factors = append(factors, fmt.Sprintf("crawler %s blocked (%d)", voiceAssistantBot, crawlerPenalty))
	}

	score = max(0, min(100, score))

	status := models.StatusNotReady
	switch {
	case !policy.VoiceAssistantBot:
	case score >= readyThreshold:
		status = models.StatusReady
	case score >= atRiskThreshold:
		status = models.StatusAtRisk
	}

	return models.VirtualPlatformResult{
		Platform: models.PlatformSiri,
		Status:   status,
		Score:    score,
		Factors:  factors,
	}
}

// Compute returns every virtual platform result in models.VirtualPlatforms order.
func Compute(results []models.ProviderResult, policy models.CrawlerPolicy) []models.VirtualPlatformResult {
	return []models.VirtualPlatformResult{Proxy(results), Readiness(results, policy)}
}

// OverallScore is the unweighted share of visible platforms, 0..100.
func OverallScore(visible, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(visible) / float64(total)))
}

// Aggregate builds the final scan result. Counts use the fixed platform
// total, not the number of results supplied.
func Aggregate(id uuid.UUID, query string, brand models.Brand, results []models.ProviderResult,
	virtual []models.VirtualPlatformResult, now time.Time) *models.FullScanResult {
	visible, errs := 0, 0
	for _, r := range results {
		if r.Visible() {
			visible++
		}
		if r.Failed() {
			errs++
		}
	}
	for _, v := range virtual {
		if v.Counts() {
			visible++
		}
	}
	total := models.TotalPlatforms
	visible = min(visible, total)

	return &models.FullScanResult{
		ID:               id,
		Query:            query,
		Brand:            brand,
		Results:          results,
		Virtual:          virtual,
		OverallScore:     OverallScore(visible, total),
		VisiblePlatforms: visible,
		TotalPlatforms:   total,
		ErrorCount:       errs,
		Timestamp:        now,
	}
}

func find(results []models.ProviderResult, p models.ProviderID) (models.ProviderResult, bool) {
	for _, r := range results {
		if r.Provider == p {
			return r, true
		}
	}
	return models.ProviderResult{}, false
}
