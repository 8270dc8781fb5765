package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/blogspy/backend/internal/models"
)

const maxBodyBytes = 2 << 20

var (
	errRateLimited = errors.New(ErrMsgRateLimited)
	errUnreachable = errors.New(ErrMsgUnreachable)
)

// httpBackend is the transport shared by the live adapters: per-call timeout,
// outbound rate limit and JSON validation.
type httpBackend struct {
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

func newHTTPBackend(timeout time.Duration, ratePerSec float64, burst int) httpBackend {
	if burst <= 0 {
		burst = 1
	}
	return httpBackend{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		timeout: timeout,
	}
}

// call performs the request and returns the validated JSON body.
// Transport errors never carry the request URL, which may hold credentials.
func (b httpBackend) call(ctx context.Context, method, endpoint string, headers map[string]string, payload any) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errRateLimited
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, errors.New("invalid provider endpoint")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		var uErr *url.Error
		if errors.As(err, &uErr) && uErr.Timeout() {
			return nil, context.DeadlineExceeded
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errUnreachable
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New(ErrMsgMalformed)
	}
	return data, nil
}

// failure maps a transport error to a hidden+error result.
func failure(ctx context.Context, p models.ProviderID, err error) models.ProviderResult {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return models.ErrorResult(p, ErrMsgTimeout)
	}
	return models.ErrorResult(p, err.Error())
}
