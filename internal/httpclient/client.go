// Package httpclient builds the shared resty client used by every API client,
// with request logging, Prometheus metrics and per-host pacing attached.
package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/JakeFAU/seo-pilot/internal/metrics"
	"github.com/JakeFAU/seo-pilot/internal/policy/ratelimit"
	"github.com/JakeFAU/seo-pilot/internal/retry"
)

// Config controls client behavior.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	// HostRPS paces requests per host. Zero disables pacing.
	HostRPS float64
}

type instrument struct {
	logger  *zap.Logger
	limiter *ratelimit.Limiter
}

// New builds a resty client. Retries are not configured here; callers wrap
// calls in retry.Do so only rate-limited responses are repeated.
func New(cfg Config, logger *zap.Logger) *resty.Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New()
	client.SetTransport(NewTransport(NewHTTPTransport()))
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	i := instrument{
		logger:  logger,
		limiter: ratelimit.New(ratelimit.Config{DefaultRPS: cfg.HostRPS, DefaultBurst: 1}),
	}
	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
	return client
}

func (i instrument) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	if err := i.limiter.Wait(req.Context(), req.URL); err != nil {
		return err
	}
	i.logger.Debug("start request", zap.String("method", req.Method), zap.String("url", req.URL))
	return nil
}

func (i instrument) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	i.logger.Debug("end request",
		zap.String("method", res.Request.Method),
		zap.String("url", res.Request.URL),
		zap.Int("status", res.StatusCode()),
		zap.Duration("duration", res.Time()),
	)
	return nil
}

func (i instrument) onError(req *resty.Request, err error) {
	i.logger.Debug("request failed",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Error(err),
	)
}

// CheckStatus converts a response outside accepted (default: any 2xx) into a
// *retry.StatusError carrying the body text.
func CheckStatus(res *resty.Response, accepted ...int) error {
	code := res.StatusCode()
	if len(accepted) == 0 {
		if code >= 200 && code < 300 {
			return nil
		}
	} else {
		for _, ok := range accepted {
			if code == ok {
				return nil
			}
		}
	}
	return retry.NewStatusError(code, res.String())
}

// Transport records metrics for requests that bypass resty, such as the
// generated Google API clients.
type Transport struct {
	Base http.RoundTripper
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	start := time.Now()
	resp, err := base.RoundTrip(req)
	if err != nil {
		metrics.ObserveAPIRequest(req.URL.String(), 0, time.Since(start))
		return nil, fmt.Errorf("round trip %s: %w", req.URL.Redacted(), err)
	}
	metrics.ObserveAPIRequest(req.URL.String(), resp.StatusCode, time.Since(start))
	return resp, nil
}

// NewStdClient returns a net/http client for the generated Google API
// packages. When ts is set every request carries its bearer token.
func NewStdClient(timeout time.Duration, ts oauth2.TokenSource) *http.Client {
	var rt http.RoundTripper = NewTransport(NewHTTPTransport())
	if ts != nil {
		rt = &oauth2.Transport{Source: ts, Base: rt}
	}
	return &http.Client{Timeout: timeout, Transport: rt}
}

// NewHTTPTransport returns a pooled transport with conservative dial and TLS timeouts.
func NewHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
