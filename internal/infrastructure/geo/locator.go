package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/IgorGrieder/linkstats/internal/infrastructure/logger"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/metrics"
	"github.com/IgorGrieder/linkstats/pkg/httpclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const Unknown = "unknown"

var ErrBudgetExhausted = errors.New("geolocation budget exhausted")

// Cache stores resolved countries by IP.
type Cache interface {
	Get(ctx context.Context, ip string) (country string, found bool, err error)
	Set(ctx context.Context, ip, country string) error
}

type apiResponse struct {
	IP          string `json:"ip"`
	CountryName string `json:"country_name"`
	Success     *bool  `json:"success,omitempty"`
	Error       *struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error,omitempty"`
}

// Locator resolves IPs through an ipapi-compatible HTTP API.
type Locator struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	cache   Cache
}

type Options struct {
	BaseURL string
	APIKey  string
	// Limiter bounds outbound calls; nil means unbounded.
	Limiter *rate.Limiter
	// Cache is optional.
	Cache Cache
}

func NewLocator(client *httpclient.Client, opts Options) *Locator {
	return &Locator{
		client:  client,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		limiter: opts.Limiter,
		cache:   opts.Cache,
	}
}

func (l *Locator) Locate(ctx context.Context, ip string) (string, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return Unknown, nil
	}

	if l.cache != nil {
		country, found, err := l.cache.Get(ctx, ip)
		if err != nil {
			logger.Warn("geolocation cache read failed", zap.Error(err))
		} else if found {
			metrics.GeoLookups.WithLabelValues(metrics.OutcomeCached).Inc()
			return country, nil
		}
	}

	if l.limiter != nil && !l.limiter.Allow() {
		metrics.GeoLookups.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return Unknown, ErrBudgetExhausted
	}

	country, err := l.fetch(ctx, ip)
	if err != nil {
		metrics.GeoLookups.WithLabelValues(metrics.OutcomeError).Inc()
		return Unknown, err
	}
	metrics.GeoLookups.WithLabelValues(metrics.OutcomeOK).Inc()

	if l.cache != nil {
		if err := l.cache.Set(ctx, ip, country); err != nil {
			logger.Warn("geolocation cache write failed", zap.Error(err))
		}
	}

	return country, nil
}

func (l *Locator) fetch(ctx context.Context, ip string) (string, error) {
	resp, err := l.client.Get(ctx, l.baseURL+"/"+url.PathEscape(ip), map[string]string{
		"access_key": l.apiKey,
		"fields":     "ip,country_name",
	}, nil)
	if err != nil {
		return "", fmt.Errorf("geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geolocation request: unexpected status %s", resp.Status)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode geolocation response: %w", err)
	}

	// ipapi reports quota and key problems with a 200 and success=false.
	if body.Success != nil && !*body.Success {
		if body.Error != nil {
			return "", fmt.Errorf("geolocation api error %d: %s", body.Error.Code, body.Error.Info)
		}
		return "", errors.New("geolocation api error")
	}

	if strings.TrimSpace(body.CountryName) == "" {
		return Unknown, nil
	}
	return body.CountryName, nil
}

// NopLocator is used when geolocation is disabled.
type NopLocator struct{}

func (NopLocator) Locate(context.Context, string) (string, error) {
	metrics.GeoLookups.WithLabelValues(metrics.OutcomeSkipped).Inc()
	return Unknown, nil
}
