package providers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogspy/backend/internal/models"
)

var acme = models.Brand{Name: "Acme", Domain: "https://www.acme.io/pricing"}

func TestBrandTerms(t *testing.T) {
	terms := BrandTerms(acme)
	assert.Equal(t, []string{"acme", "acme.io"}, terms)

	short := BrandTerms(models.Brand{Name: "X", Domain: "x.co"})
	assert.Equal(t, []string{"x.co"}, short)
}

func TestNormalizeDomain(t *testing.T) {
	cases := map[string]string{
		"https://www.Example.com/path?q=1": "example.com",
		"example.com:8080":                 "example.com",
		"  sub.example.org  ":              "sub.example.org",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeDomain(in), in)
	}
}

func TestAnalyze_Visible(t *testing.T) {
	text := "For project tracking, Acme is the best and most recommended tool."
	res := Analyze(models.ProviderChatGPT, text, acme)

	assert.Equal(t, models.StatusVisible, res.Status)
	assert.Equal(t, models.SentimentPositive, res.Sentiment)
	assert.Contains(t, res.Snippet, "Acme")
	assert.Empty(t, res.Error)
}

func TestAnalyze_Hidden(t *testing.T) {
	res := Analyze(models.ProviderClaude, "Try Globex or Initech instead.", acme)
	assert.Equal(t, models.StatusHidden, res.Status)
	assert.Empty(t, res.Snippet)
}

func TestAnalyze_MatchesDomain(t *testing.T) {
	res := Analyze(models.ProviderGemini, "See acme.io for details; it is slow and buggy.", models.Brand{Name: "Acme Corp", Domain: "acme.io"})
	assert.Equal(t, models.StatusVisible, res.Status)
	assert.Equal(t, models.SentimentNegative, res.Sentiment)
}

func TestAnalyze_SnippetIsValidUTF8(t *testing.T) {
	text := strings.Repeat("é", 200) + " Acme " + strings.Repeat("ü", 200)
	res := Analyze(models.ProviderPerplexity, text, acme)
	require.Equal(t, models.StatusVisible, res.Status)
	assert.True(t, strings.ToValidUTF8(res.Snippet, "?") == res.Snippet)
}

func TestSentiment(t *testing.T) {
	assert.Equal(t, models.SentimentPositive, Sentiment("a great, reliable product"))
	assert.Equal(t, models.SentimentNegative, Sentiment("overpriced and confusing"))
	assert.Equal(t, models.SentimentNeutral, Sentiment("it is a product"))
	assert.Equal(t, models.SentimentNeutral, Sentiment("great but expensive"))
}
