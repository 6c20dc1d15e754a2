package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/yangruichen/cinechat/backend/internal/config"
)

// Querier is the catalog surface the resolver depends on.
type Querier interface {
	// Discover returns the first page of the kind's catalog for the given
	// genres, sorted by descending popularity.
	Discover(ctx context.Context, kind Kind, genreIDs []int) ([]Item, error)
	// TrendingPeople returns the first page of popular persons, each with
	// their known-for titles.
	TrendingPeople(ctx context.Context) ([]Item, error)
	// Trailer returns the YouTube key of the title's trailer, or empty when
	// none is listed.
	Trailer(ctx context.Context, kind Kind, id int64) (string, error)
}

// Client talks to the TMDB-shaped catalog service. All calls run through a
// circuit breaker so a flapping catalog degrades to fallback wording instead
// of piling up timeouts.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

// NewClient builds a catalog client from configuration.
func NewClient(cfg config.CatalogConfig, logger *zap.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "catalog-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("catalog circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Discover implements Querier.
func (c *Client) Discover(ctx context.Context, kind Kind, genreIDs []int) ([]Item, error) {
	if kind != KindMovie && kind != KindTV {
		return nil, fmt.Errorf("catalog: discover does not support kind %q", kind)
	}

	params := url.Values{}
	if len(genreIDs) > 0 {
		params.Set("with_genres", joinGenres(genreIDs))
	}
	params.Set("sort_by", "popularity.desc")
	params.Set("page", "1")

	return c.fetch(ctx, "/discover/"+string(kind), params)
}

// TrendingPeople implements Querier.
func (c *Client) TrendingPeople(ctx context.Context) ([]Item, error) {
	params := url.Values{}
	params.Set("page", "1")
	return c.fetch(ctx, "/person/popular", params)
}

// Trailer implements Querier. The first YouTube video tagged as a trailer
// wins; an empty key with nil error means the title has none.
func (c *Client) Trailer(ctx context.Context, kind Kind, id int64) (string, error) {
	if kind != KindMovie && kind != KindTV {
		return "", fmt.Errorf("catalog: no videos endpoint for kind %q", kind)
	}

	path := "/" + string(kind) + "/" + strconv.FormatInt(id, 10) + "/videos"
	raw, err := c.get(ctx, path, url.Values{})
	if err != nil {
		return "", err
	}

	var body videoPage
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	for _, v := range body.Results {
		if v.Site == "YouTube" && v.Type == "Trailer" {
			return v.Key, nil
		}
	}
	return "", nil
}

func (c *Client) fetch(ctx context.Context, path string, params url.Values) ([]Item, error) {
	raw, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	var body page
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
	}

	c.logger.Debug("catalog query",
		zap.String("path", path),
		zap.Int("results", len(body.Results)))
	return body.Results, nil
}

// get runs one GET through the circuit breaker and returns the raw body.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		params.Set("api_key", c.apiKey)
		endpoint := c.baseURL + path + "?" + params.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("catalog: build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// Drain so the connection can be reused.
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("catalog: %s returned status %d", path, resp.StatusCode)
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", path, err)
		}
		return raw, nil
	})
}

func joinGenres(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
