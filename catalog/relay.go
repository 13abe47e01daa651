package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cutekitten000/backlog/cache"
	"github.com/cutekitten000/backlog/monitoring"
	"github.com/cutekitten000/backlog/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"
	DefaultBaseURL  = "https://api.igdb.com"

	breakerName = "catalog-relay"
)

var (
	ErrNotConfigured = errors.New("catalog credentials not configured")
	ErrTokenExchange = errors.New("catalog token exchange failed")
)

// UpstreamError is a non-2xx answer from the catalog API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("catalog upstream returned %d: %s", e.Status, e.Body)
}

type RelayConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	HTTPClient   *http.Client
	// RequestsPerSecond caps outbound calls; IGDB allows 4.
	RequestsPerSecond float64
	UseCache          bool
}

// Response is an upstream answer passed back verbatim.
type Response struct {
	Status int
	Body   []byte
}

// Relay exchanges the client credentials for a bearer token and forwards
// catalog queries to the upstream API.
type Relay struct {
	clientID string
	baseURL  string
	http     *http.Client
	tokens   oauth2.TokenSource
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*Response]
	useCache bool
}

func NewRelay(cfg RelayConfig) *Relay {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 4
	}

	r := &Relay{
		clientID: cfg.ClientID,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     cfg.HTTPClient,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)),
		useCache: cfg.UseCache,
	}

	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		// the token source caches the token until it expires
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, cfg.HTTPClient)
		r.tokens = cc.TokenSource(tokenCtx)
	}

	monitoring.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	r.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// a rejected query is the caller's problem, not an outage
			var upstream *UpstreamError
			if errors.As(err, &upstream) {
				return upstream.Status < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			utils.Log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
			monitoring.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return r
}

func (r *Relay) Configured() bool { return r.tokens != nil }

// upstreamPath maps the client's relay path onto the catalog host:
// "/api/v4/games" becomes "/v4/games".
func upstreamPath(path string) string {
	return strings.Replace(path, "/api", "", 1)
}

// Forward sends body to the catalog endpoint named by path.
func (r *Relay) Forward(ctx context.Context, path string, body []byte) (*Response, error) {
	if !r.Configured() {
		monitoring.CatalogRelayCalls.WithLabelValues("not_configured").Inc()
		return nil, ErrNotConfigured
	}
	path = upstreamPath(path)

	if r.useCache {
		if cached, err := cache.GetCatalogResponse(path, body); err == nil {
			monitoring.CatalogRelayCalls.WithLabelValues("cached").Inc()
			return &Response{Status: http.StatusOK, Body: cached}, nil
		}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := r.breaker.Execute(func() (*Response, error) {
		return r.do(ctx, path, body)
	})
	if err != nil {
		monitoring.CatalogRelayCalls.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}
	monitoring.CatalogRelayCalls.WithLabelValues("ok").Inc()

	if r.useCache {
		if err := cache.SetCatalogResponse(path, body, resp.Body); err != nil && !errors.Is(err, cache.ErrUnavailable) {
			utils.Log.WithField("error", err.Error()).Debug("Catalog response not cached")
		}
	}
	return resp, nil
}

func (r *Relay) do(ctx context.Context, path string, body []byte) (*Response, error) {
	token, err := r.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-ID", r.clientID)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/json")

	res, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &UpstreamError{Status: res.StatusCode, Body: string(data)}
	}
	return &Response{Status: res.StatusCode, Body: data}, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, ErrTokenExchange):
		return "token_error"
	default:
		return "upstream_error"
	}
}

// Handler relays POST /api/*path for browser clients. Any failure is a 500
// with a generic JSON error.
func (r *Relay) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
			return
		}

		resp, err := r.Forward(c.Request.Context(), c.Request.URL.Path, body)
		if err != nil {
			utils.Log.WithFields(logrus.Fields{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			}).Error("Catalog relay failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reach the catalog API"})
			return
		}
		c.Data(resp.Status, "application/json; charset=utf-8", resp.Body)
	}
}
