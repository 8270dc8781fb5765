package signals

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogspy/backend/internal/models"
)

func visible(p models.ProviderID) models.ProviderResult {
	return models.ProviderResult{Provider: p, Status: models.StatusVisible, Snippet: "Acme is great", Sentiment: models.SentimentPositive}
}

func hidden(p models.ProviderID) models.ProviderResult {
	return models.ProviderResult{Provider: p, Status: models.StatusHidden}
}

func ranked(rank int, featured bool) models.ProviderResult {
	r := visible(models.ProviderGoogle)
	r.Rank = rank
	r.Featured = featured
	return r
}

// ---------------------------------------------------------------------------
// 1. Proxy
// ---------------------------------------------------------------------------

func TestProxy_MirrorsSharedIndex(t *testing.T) {
	v := Proxy([]models.ProviderResult{visible(models.ProviderPerplexity)})
	assert.Equal(t, models.PlatformCopilot, v.Platform)
	assert.Equal(t, models.StatusVisible, v.Status)
	assert.Equal(t, "Acme is great", v.Snippet)
	assert.NotEmpty(t, v.Note)

	v = Proxy([]models.ProviderResult{hidden(models.ProviderPerplexity), visible(models.ProviderChatGPT)})
	assert.Equal(t, models.StatusHidden, v.Status)
}

func TestProxy_SourceFailed(t *testing.T) {
	v := Proxy([]models.ProviderResult{models.ErrorResult(models.ProviderPerplexity, "timeout")})
	assert.Equal(t, models.StatusHidden, v.Status)
	assert.False(t, v.Counts())
}

// ---------------------------------------------------------------------------
// 2. Readiness
// ---------------------------------------------------------------------------

func TestReadiness_Points(t *testing.T) {
	cases := []struct {
		name    string
		search  models.ProviderResult
		llm     bool
		crawler bool
		score   int
		status  string
	}{
		{"all factors", ranked(1, false), true, true, 100, models.StatusReady},
		{"featured counts as rank 1", ranked(7, true), false, true, 70, models.StatusReady},
		{"rank 3", ranked(3, false), false, true, 60, models.StatusAtRisk},
		{"rank 5", ranked(5, false), false, true, 50, models.StatusAtRisk},
		{"rank 10", ranked(10, false), false, true, 40, models.StatusAtRisk},
		{"rank 11", ranked(11, false), false, true, 30, models.StatusNotReady},
		{"blocked crawler forces not-ready", ranked(1, false), true, false, 50, models.StatusNotReady},
		{"blocked crawler clamps at zero", hidden(models.ProviderGoogle), false, false, 0, models.StatusNotReady},
		{"search errored", models.ErrorResult(models.ProviderGoogle, "timeout"), true, true, 60, models.StatusAtRisk},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results := []models.ProviderResult{tc.search}
			if tc.llm {
				results = append(results, visible(models.ProviderChatGPT))
			}
			v := Readiness(results, models.CrawlerPolicy{VoiceAssistantBot: tc.crawler})
			assert.Equal(t, models.PlatformSiri, v.Platform)
			assert.Equal(t, tc.score, v.Score)
			assert.Equal(t, tc.status, v.Status)
			assert.Len(t, v.Factors, 3)
		})
	}
}

func TestReadiness_Monotonic(t *testing.T) {
	score := func(rank int, llm, crawler bool) int {
		results := []models.ProviderResult{ranked(rank, false)}
		if rank == 0 {
			results[0] = hidden(models.ProviderGoogle)
		}
		if llm {
			results = append(results, visible(models.ProviderChatGPT))
		} else {
			results = append(results, hidden(models.ProviderChatGPT))
		}
		return Readiness(results, models.CrawlerPolicy{VoiceAssistantBot: crawler}).Score
	}

	ranks := []int{0, 12, 10, 8, 5, 4, 3, 2, 1}
	for _, llm := range []bool{false, true} {
		for _, crawler := range []bool{false, true} {
			for i := 1; i < len(ranks); i++ {
				assert.GreaterOrEqual(t, score(ranks[i], llm, crawler), score(ranks[i-1], llm, crawler),
					"rank %d -> %d llm=%v crawler=%v", ranks[i-1], ranks[i], llm, crawler)
			}
		}
	}
	for _, rank := range ranks {
		for _, crawler := range []bool{false, true} {
			assert.GreaterOrEqual(t, score(rank, true, crawler), score(rank, false, crawler))
		}
		for _, llm := range []bool{false, true} {
			assert.GreaterOrEqual(t, score(rank, llm, true), score(rank, llm, false))
		}
	}
}

// ---------------------------------------------------------------------------
// 3. Aggregate
// ---------------------------------------------------------------------------

func TestOverallScore(t *testing.T) {
	assert.Equal(t, 86, OverallScore(6, 7))
	assert.Equal(t, 14, OverallScore(1, 7))
	assert.Equal(t, 100, OverallScore(7, 7))
	assert.Equal(t, 0, OverallScore(0, 7))
	assert.Equal(t, 0, OverallScore(3, 0))
}

func TestAggregate_Scenario(t *testing.T) {
	results := []models.ProviderResult{
		ranked(1, false),
		visible(models.ProviderChatGPT),
		visible(models.ProviderPerplexity),
		visible(models.ProviderClaude),
		models.ErrorResult(models.ProviderGemini, "timeout"),
	}
	virtual := Compute(results, models.AllowAllCrawlers)
	require.Len(t, virtual, 2)
	assert.Equal(t, models.StatusVisible, virtual[0].Status)
	assert.Equal(t, 100, virtual[1].Score)
	assert.Equal(t, models.StatusReady, virtual[1].Status)

	now := time.Now()
	id := uuid.New()
	full := Aggregate(id, "best seo tools", models.Brand{Name: "Acme", Domain: "acme.io"}, results, virtual, now)
	assert.Equal(t, id, full.ID)
	assert.Equal(t, 6, full.VisiblePlatforms)
	assert.Equal(t, 7, full.TotalPlatforms)
	assert.Equal(t, 86, full.OverallScore)
	assert.Equal(t, 1, full.ErrorCount)
	assert.Equal(t, now, full.Timestamp)
}

func TestAggregate_AllHidden(t *testing.T) {
	var results []models.ProviderResult
	for _, p := range models.RealProviders {
		results = append(results, hidden(p))
	}
	full := Aggregate(uuid.New(), "q", models.Brand{Name: "Acme"}, results, Compute(results, models.AllowAllCrawlers), time.Now())
	assert.Equal(t, 0, full.VisiblePlatforms)
	assert.Equal(t, 0, full.OverallScore)
	assert.Equal(t, 0, full.ErrorCount)
	assert.LessOrEqual(t, full.VisiblePlatforms, full.TotalPlatforms)
}
