// Package vision fetches aerial imagery for hotspot cells and runs it
// through an external vision model to explain the heat anomaly.  Both
// concerns are provider chains: the first configured provider that succeeds
// wins, the rest are fallbacks.
package vision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/pkg/errors"
)

// ImageryProvider returns a satellite or aerial photo centered on a point.
type ImageryProvider interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64, zoom, sizePx int) ([]byte, error)
}

const (
	mapboxStaticURL = "https://api.mapbox.com/styles/v1/mapbox/satellite-v9/static"
	googleStaticURL = "https://maps.googleapis.com/maps/api/staticmap"
)

type mapboxProvider struct {
	token   string
	client  *http.Client
	baseURL string
}

// NewMapboxProvider builds the primary imagery source.
func NewMapboxProvider(token string) ImageryProvider {
	return &mapboxProvider{
		token:   token,
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: mapboxStaticURL,
	}
}

func (p *mapboxProvider) Name() string { return "mapbox" }

func (p *mapboxProvider) Fetch(ctx context.Context, lat, lon float64, zoom, sizePx int) ([]byte, error) {
	if p.token == "" {
		return nil, errors.New(errors.ErrCodeImageryUnavailable, "mapbox token not configured")
	}
	u := fmt.Sprintf("%s/%f,%f,%d/%dx%d?access_token=%s",
		p.baseURL, lon, lat, zoom, sizePx, sizePx, url.QueryEscape(p.token))
	return fetchImage(ctx, p.client, u, p.Name())
}

type googleProvider struct {
	apiKey  string
	client  *http.Client
	baseURL string
}

// NewGoogleProvider builds the fallback imagery source.
func NewGoogleProvider(apiKey string) ImageryProvider {
	return &googleProvider{
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: googleStaticURL,
	}
}

func (p *googleProvider) Name() string { return "google" }

func (p *googleProvider) Fetch(ctx context.Context, lat, lon float64, zoom, sizePx int) ([]byte, error) {
	if p.apiKey == "" {
		return nil, errors.New(errors.ErrCodeImageryUnavailable, "google maps key not configured")
	}
	q := url.Values{}
	q.Set("center", fmt.Sprintf("%f,%f", lat, lon))
	q.Set("zoom", fmt.Sprintf("%d", zoom))
	q.Set("size", fmt.Sprintf("%dx%d", sizePx, sizePx))
	q.Set("maptype", "satellite")
	q.Set("key", p.apiKey)
	return fetchImage(ctx, p.client, p.baseURL+"?"+q.Encode(), p.Name())
}

func fetchImage(ctx context.Context, client *http.Client, rawURL, provider string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeImageryUnavailable, "failed to build imagery request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeImageryUnavailable, "%s imagery request failed", provider)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeImageryUnavailable,
			"%s imagery request returned %d", provider, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeImageryUnavailable, "%s imagery read failed", provider)
	}
	if len(data) == 0 {
		return nil, errors.Newf(errors.ErrCodeImageryUnavailable, "%s returned empty image", provider)
	}
	return data, nil
}

// ImageryChain tries each provider in order.
type ImageryChain struct {
	providers []ImageryProvider
	logger    logging.Logger
}

func NewImageryChain(log logging.Logger, providers ...ImageryProvider) *ImageryChain {
	return &ImageryChain{providers: providers, logger: log.Named("imagery")}
}

func (c *ImageryChain) Fetch(ctx context.Context, lat, lon float64, zoom, sizePx int) ([]byte, string, error) {
	var lastErr error
	for _, p := range c.providers {
		img, err := p.Fetch(ctx, lat, lon, zoom, sizePx)
		if err == nil {
			return img, p.Name(), nil
		}
		lastErr = err
		c.logger.Warn("Imagery provider failed, trying next",
			logging.String("provider", p.Name()), logging.Err(err))
	}
	if lastErr == nil {
		lastErr = errors.New(errors.ErrCodeImageryUnavailable, "no imagery providers configured")
	}
	return nil, "", lastErr
}
