package collaborator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerbridge/backend/internal/domain/integration"
)

// defaultHealthPaths are the lightweight authenticated endpoints probed per platform
var defaultHealthPaths = map[integration.Platform]string{
	integration.PlatformCRM:        "/v1/account",
	integration.PlatformPayments:   "/v1/balance",
	integration.PlatformAccounting: "/v1/company-info",
}

// settingsHealthPath lets a configuration override its probe endpoint
const settingsHealthPath = "health_path"

// HTTPHealthProbe checks a platform by calling an authenticated read-only
// endpoint under the configuration's base URL. It implements
// integration.HealthProbe.
type HTTPHealthProbe struct {
	platform     integration.Platform
	path         string
	http         *http.Client
	slowResponse time.Duration
}

// ProbeOption configures an HTTPHealthProbe
type ProbeOption func(*HTTPHealthProbe)

// WithProbeHTTPClient replaces the default http.Client
func WithProbeHTTPClient(hc *http.Client) ProbeOption {
	return func(p *HTTPHealthProbe) {
		if hc != nil {
			p.http = hc
		}
	}
}

// WithSlowResponse sets the latency above which a successful probe is DEGRADED
func WithSlowResponse(d time.Duration) ProbeOption {
	return func(p *HTTPHealthProbe) { p.slowResponse = d }
}

// WithHealthPath overrides the platform's default probe path
func WithHealthPath(path string) ProbeOption {
	return func(p *HTTPHealthProbe) { p.path = path }
}

// NewHTTPHealthProbe creates the probe for platform
func NewHTTPHealthProbe(platform integration.Platform, opts ...ProbeOption) *HTTPHealthProbe {
	p := &HTTPHealthProbe{
		platform:     platform,
		path:         defaultHealthPaths[platform],
		http:         &http.Client{},
		slowResponse: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewHealthProbes returns one probe per supported platform
func NewHealthProbes(opts ...ProbeOption) map[integration.Platform]*HTTPHealthProbe {
	probes := make(map[integration.Platform]*HTTPHealthProbe, len(integration.AllPlatforms()))
	for _, p := range integration.AllPlatforms() {
		probes[p] = NewHTTPHealthProbe(p, opts...)
	}
	return probes
}

// Probe calls the platform. Transport failures are returned as errors;
// HTTP-level answers are mapped onto a health status.
func (p *HTTPHealthProbe) Probe(ctx context.Context, cfg *integration.IntegrationConfig, creds integration.Credentials) (integration.ProbeResult, error) {
	if cfg.BaseURL == "" {
		return integration.ProbeResult{}, fmt.Errorf("%s probe: %w", p.platform, ErrNotConfigured)
	}
	if creds.AccessToken == "" && creds.APIKey == "" {
		return integration.ProbeResult{
			Status:  integration.HealthStatusUnhealthy,
			Message: "no credentials stored",
		}, nil
	}

	path := p.path
	if override, ok := cfg.Settings[settingsHealthPath].(string); ok && override != "" {
		path = override
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(cfg.BaseURL, "/")+path, nil)
	if err != nil {
		return integration.ProbeResult{}, fmt.Errorf("%s probe: build request: %w", p.platform, err)
	}
	req.Header.Set("Accept", "application/json")
	if creds.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	} else {
		req.SetBasicAuth(creds.APIKey, creds.APISecret)
	}
	if cfg.ExternalAccountID != "" {
		req.Header.Set("X-Account-ID", cfg.ExternalAccountID)
	}

	start := time.Now()
	resp, err := p.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return integration.ProbeResult{}, ctx.Err()
		}
		return integration.ProbeResult{}, fmt.Errorf("%s probe: %w: %v", p.platform, ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	elapsed := time.Since(start)

	return classify(resp.StatusCode, elapsed, p.slowResponse), nil
}

func classify(code int, elapsed, slow time.Duration) integration.ProbeResult {
	switch {
	case code >= 200 && code < 300:
		if slow > 0 && elapsed > slow {
			return integration.ProbeResult{
				Status:  integration.HealthStatusDegraded,
				Message: fmt.Sprintf("slow response: %s", elapsed.Round(time.Millisecond)),
			}
		}
		return integration.ProbeResult{Status: integration.HealthStatusHealthy, Message: "ok"}
	case code == http.StatusTooManyRequests:
		return integration.ProbeResult{Status: integration.HealthStatusDegraded, Message: "rate limited"}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return integration.ProbeResult{
			Status:  integration.HealthStatusUnhealthy,
			Message: fmt.Sprintf("credentials rejected (HTTP %d)", code),
		}
	default:
		return integration.ProbeResult{
			Status:  integration.HealthStatusUnhealthy,
			Message: fmt.Sprintf("unexpected response (HTTP %d)", code),
		}
	}
}
