package providers

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blogspy/backend/internal/models"
)

// mentionWindow is the number of characters on each side of a mention used
// for the snippet and the sentiment heuristic.
const mentionWindow = 120

var positiveWords = map[string]bool{
	"best": true, "top": true, "leading": true, "excellent": true, "great": true,
	"recommended": true, "recommend": true, "popular": true, "reliable": true, "trusted": true,
	"powerful": true, "favorite": true, "outstanding": true, "innovative": true, "easy": true,
	"affordable": true, "robust": true, "love": true, "praised": true, "standout": true,
}

var negativeWords = map[string]bool{
	"worst": true, "poor": true, "bad": true, "expensive": true, "avoid": true,
	"complaints": true, "unreliable": true, "slow": true, "buggy": true, "outdated": true,
	"lacking": true, "limited": true, "overpriced": true, "difficult": true, "issues": true,
	"scam": true, "criticized": true, "disappointing": true, "weak": true, "confusing": true,
}

// BrandTerms returns the lower-case terms a brand is detected by: display
// name, bare domain and the domain without its top-level suffix.
func BrandTerms(b models.Brand) []string {
	var terms []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if len(s) < 3 {
			return
		}
		for _, t := range terms {
			if t == s {
				return
			}
		}
		terms = append(terms, s)
	}
	add(b.Name)
	d := NormalizeDomain(b.Domain)
	add(d)
	if i := strings.LastIndex(d, "."); i > 0 {
		add(d[:i])
	}
	if i := strings.Index(d, "."); i > 0 {
		add(d[:i])
	}
	return terms
}

// NormalizeDomain strips scheme, www. prefix, path and port.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#:"); i >= 0 {
		d = d[:i]
	}
	return d
}

// FindMention returns the byte offset and length of the earliest brand
// mention in text, or -1.
func FindMention(text string, b models.Brand) (int, int) {
	lower := strings.ToLower(text)
	best, bestLen := -1, 0
	for _, term := range BrandTerms(b) {
		if i := strings.Index(lower, term); i >= 0 && (best < 0 || i < best) {
			best, bestLen = i, len(term)
		}
	}
	return best, bestLen
}

// Analyze classifies a provider's free text for the brand.
func Analyze(p models.ProviderID, text string, b models.Brand) models.ProviderResult {
	idx, n := FindMention(text, b)
	if idx < 0 {
		return models.ProviderResult{Provider: p, Status: models.StatusHidden}
	}
	window := mentionContext(text, idx, n)
	return models.ProviderResult{
		Provider:  p,
		Status:    models.StatusVisible,
		Snippet:   strings.Join(strings.Fields(window), " "),
		Sentiment: Sentiment(window),
	}
}

func mentionContext(text string, idx, n int) string {
	start := idx - mentionWindow
	if start < 0 {
		start = 0
	}
	end := idx + n + mentionWindow
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return text[start:end]
}

// Sentiment counts fixed positive and negative keywords in text.
func Sentiment(text string) string {
	pos, neg := 0, 0
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	switch {
	case pos > neg:
		return models.SentimentPositive
	case neg > pos:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
