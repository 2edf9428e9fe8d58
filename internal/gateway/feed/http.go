package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"newsdriven/internal/logger"
	"newsdriven/internal/pkg/circuit"
	"newsdriven/internal/types"
)

const maxBodyBytes = 8 << 20

// HTTPFeed 以 GET 拉取 JSON 消息列表，连续失败后由熔断器拒绝调用。
type HTTPFeed struct {
	url     string
	apiKey  string
	client  *http.Client
	breaker *circuit.Breaker
	now     func() time.Time
}

func NewHTTPFeed(url, apiKey string, timeout time.Duration, breaker *circuit.Breaker) *HTTPFeed {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFeed{
		url:     url,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		now:     time.Now,
	}
}

func (f *HTTPFeed) Fetch(ctx context.Context) ([]types.Candidate, error) {
	var out []types.Candidate
	err := f.breaker.Do(func() error {
		items, err := f.fetch(ctx)
		if err != nil {
			return err
		}
		out = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Debugf("[feed] fetched %d candidates", len(out))
	return out, nil
}

func (f *HTTPFeed) fetch(ctx context.Context) ([]types.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
		req.Header.Set("X-API-Key", f.apiKey)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("feed read: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("feed status=%d", resp.StatusCode)
	}
	return ParseCandidates(raw, f.now())
}
