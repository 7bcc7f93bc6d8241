// Package query resolves the Internet service provider of flagged addresses.
package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"ctfd_ip_scan/internal/config"
	"ctfd_ip_scan/internal/logging"
)

// Placeholders written into the ISP column.
const (
	RequestFailed  = "Request Failed"
	UnknownISP     = "Unknown"
	LookupDisabled = "Lookup Disabled"
)

// ISPLookup maps an address to a provider name. Implementations never fail; errors are
// reported through the placeholders above.
type ISPLookup interface {
	LookupISP(ctx context.Context, ip string) string
}

type ipAPIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ISP     string `json:"isp"`
}

// IPAPIClient queries ip-api.com one address at a time. Calls are paced by a rate
// limiter and guarded by a circuit breaker.
type IPAPIClient struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	retries    int
	retryDelay time.Duration
	breaker    *gobreaker.CircuitBreaker[string]
}

// NewIPAPIClient creates a client from the lookup section of the config.
func NewIPAPIClient(cfg config.LookupConfig) *IPAPIClient {
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	failures := cfg.BreakerFailures
	if failures < 1 {
		failures = 1
	}

	c := &IPAPIClient{
		baseURL:    cfg.BaseURL,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
	}
	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "ip-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("ISP lookup circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// LookupISP returns the provider name for ip, UnknownISP when the service has none, or
// RequestFailed on any error, including an open breaker.
func (c *IPAPIClient) LookupISP(ctx context.Context, ip string) string {
	isp, err := c.breaker.Execute(func() (string, error) {
		return retryWithBackoff(ctx, ip, c.retries, c.retryDelay, func() (string, error) {
			return c.fetch(ctx, ip)
		})
	})
	if err != nil {
		logging.Warn().Str("ip", ip).Err(err).Msg("ISP lookup failed")
		return RequestFailed
	}
	return isp
}

func (c *IPAPIClient) fetch(ctx context.Context, ip string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL(c.baseURL, ip), nil)
	if err != nil {
		return "", fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", errRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response failed: %w", err)
	}

	var parsed ipAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("json unmarshal failed: %w", err)
	}
	if parsed.Status == "fail" {
		logging.Debug().Str("ip", ip).Str("message", parsed.Message).Msg("ip-api has no data for address")
	}
	return normalizeISP(parsed.ISP), nil
}
