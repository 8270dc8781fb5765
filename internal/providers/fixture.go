package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/blogspy/backend/internal/models"
)

// Fixture returns a fixed result. Delay simulates a slow backend and honours ctx.
type Fixture struct {
	Provider models.ProviderID
	Result   models.ProviderResult
	Delay    time.Duration
}

var _ Adapter = (*Fixture)(nil)

func (f *Fixture) ID() models.ProviderID { return f.Provider }

func (f *Fixture) Fetch(ctx context.Context, _ string, _ models.Brand) models.ProviderResult {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return models.ErrorResult(f.Provider, ErrMsgTimeout)
		}
	}
	r := f.Result
	r.Provider = f.Provider
	if r.Status == "" {
		r.Status = models.StatusHidden
	}
	if r.Error != "" {
		r.Status = models.StatusHidden
	}
	return r
}

// Demo produces deterministic, plausible results from a hash of
// (provider, query, brand). Used when no live credentials are configured.
type Demo struct {
	Provider models.ProviderID
}

var _ Adapter = (*Demo)(nil)

func (d *Demo) ID() models.ProviderID { return d.Provider }

var demoPhrases = []string{
	"%s is one of the best and most recommended options for %s.",
	"For %[2]s, many teams use %[1]s, though some users mention it is expensive.",
	"%s is a popular and reliable choice when people search for %s.",
	"Reviews of %s for %s are mixed; it works but has limited integrations.",
}

func (d *Demo) Fetch(ctx context.Context, query string, brand models.Brand) models.ProviderResult {
	if err := ctx.Err(); err != nil {
		return models.ErrorResult(d.Provider, ErrMsgTimeout)
	}
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%s|%s", d.Provider, query, brand.Name, NormalizeDomain(brand.Domain))
	sum := h.Sum32()

	res := models.ProviderResult{Provider: d.Provider, Status: models.StatusHidden, LatencyMS: int64(200 + sum%1800)}
	if sum%100 >= 65 {
		return res
	}
	text := fmt.Sprintf(demoPhrases[sum%uint32(len(demoPhrases))], brand.Name, query)
	res = Analyze(d.Provider, text, brand)
	res.LatencyMS = int64(200 + sum%1800)
	if d.Provider == models.ProviderGoogle {
		res.Rank = int(sum%10) + 1
		res.Featured = sum%7 == 0
	}
	return res
}
