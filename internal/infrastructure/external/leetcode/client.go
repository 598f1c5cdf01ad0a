// Package leetcode implements the stats provider adapter for the public
// LeetCode GraphQL API. It resolves a username to its solved-problem count.
package leetcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
	"github.com/rmkec/leetcode-leaderboard/pkg/circuitbreaker"
	"github.com/rmkec/leetcode-leaderboard/pkg/logger"
	"github.com/rmkec/leetcode-leaderboard/pkg/retry"
)

// DefaultGraphQLURL is the public LeetCode GraphQL endpoint.
const DefaultGraphQLURL = "https://leetcode.com/graphql"

// maxResponseSize bounds the body we are willing to read.
const maxResponseSize = 1 << 20

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// Reason classifies a failed fetch for logging. Callers must not branch on it:
// every FetchError matches shared.ErrProviderUnavailable.
type Reason string

const (
	ReasonTransport   Reason = "transport"
	ReasonStatus      Reason = "http_status"
	ReasonRateLimited Reason = "rate_limited"
	ReasonNotFound    Reason = "profile_not_found"
	ReasonGraphQL     Reason = "graphql_error"
	ReasonMalformed   Reason = "malformed_response"
	ReasonCircuitOpen Reason = "circuit_open"
)

// FetchError describes why a solved count could not be fetched.
type FetchError struct {
	Username   string
	Reason     Reason
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("leetcode: fetch %q: %s", e.Username, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes every FetchError match shared.ErrProviderUnavailable.
func (e *FetchError) Is(target error) bool {
	return target == shared.ErrProviderUnavailable
}

func isProfileNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Reason == ReasonNotFound
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the GraphQL client.
type ClientConfig struct {
	// GraphQLURL is the endpoint receiving the POST.
	GraphQLURL string

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration

	// MaxAttempts is the number of tries for transient failures (429, 5xx, network).
	MaxAttempts int

	// RateLimit is the sustained outbound request rate per second; zero disables it.
	RateLimit float64
	RateBurst int

	UserAgent string

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		GraphQLURL:  DefaultGraphQLURL,
		Timeout:     10 * time.Second,
		MaxAttempts: 2,
		RateLimit:   2,
		RateBurst:   4,
		UserAgent:   "leetcode-leaderboard/1.0",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the LeetCode GraphQL client.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	limiter        *rate.Limiter
	retryPolicy    retry.Policy
	circuitBreaker *circuitbreaker.Breaker
	referer        string
}

var _ student.StatsProvider = (*Client)(nil)

// NewClient creates a new GraphQL client.
func NewClient(config ClientConfig) *Client {
	defaults := DefaultClientConfig()
	if config.GraphQLURL == "" {
		config.GraphQLURL = defaults.GraphQLURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	log := config.Logger.With(logger.Component("leetcode_client"))

	c := &Client{
		config:      config,
		httpClient:  httpClient,
		logger:      log,
		limiter:     limiter,
		retryPolicy: retry.ProviderPolicy(config.MaxAttempts),
		circuitBreaker: circuitbreaker.New(circuitbreaker.Settings{
			Name:             "leetcode-graphql",
			FailureThreshold: 5,
			OpenTimeout:      time.Minute,
			// A missing profile is an answer, not an outage.
			IsFailure: func(err error) bool { return !isProfileNotFound(err) && !errors.Is(err, context.Canceled) },
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		}),
	}

	if u, err := url.Parse(config.GraphQLURL); err == nil && u.Host != "" {
		c.referer = u.Scheme + "://" + u.Host
	}

	return c
}

// FetchSolvedCount returns the total number of problems the user has solved.
// Every failure is a *FetchError matching shared.ErrProviderUnavailable.
func (c *Client) FetchSolvedCount(ctx context.Context, username string) (int, error) {
	if username == "" {
		return 0, &FetchError{Username: username, Reason: ReasonNotFound, Message: "empty username"}
	}

	start := time.Now()
	var count int
	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		n, err := retry.Value(ctx, c.retryPolicy, func(ctx context.Context) (int, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return 0, &FetchError{Username: username, Reason: ReasonTransport, Err: err}
			}
			return c.doSingleRequest(ctx, username)
		})
		count = n
		return err
	})

	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			reason := ReasonTransport
			if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
				reason = ReasonCircuitOpen
			}
			fe = &FetchError{Username: username, Reason: reason, Err: err}
		}
		c.logger.Debug("solved count fetch failed",
			logger.ProfileID(username),
			"reason", string(fe.Reason),
			"duration", time.Since(start).String(),
			"error", fe,
		)
		return 0, fe
	}

	c.logger.Debug("solved count fetched",
		logger.ProfileID(username),
		logger.SolvedCount(count),
		"duration", time.Since(start).String(),
	)
	return count, nil
}

// doSingleRequest performs one GraphQL round trip. Transient failures are
// wrapped with retry.Retryable.
func (c *Client) doSingleRequest(ctx context.Context, username string) (int, error) {
	body, err := json.Marshal(newUserProfileRequest(username))
	if err != nil {
		return 0, &FetchError{Username: username, Reason: ReasonMalformed, Err: fmt.Errorf("marshal body: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.GraphQLURL, bytes.NewReader(body))
	if err != nil {
		return 0, &FetchError{Username: username, Reason: ReasonTransport, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fe := &FetchError{Username: username, Reason: ReasonTransport, Err: fmt.Errorf("http request: %w", err)}
		if ctx.Err() != nil {
			return 0, fe
		}
		return 0, retry.Retryable(fe)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, retry.Retryable(&FetchError{Username: username, Reason: ReasonTransport, Err: fmt.Errorf("read response: %w", err)})
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return 0, retry.Retryable(&FetchError{Username: username, Reason: ReasonRateLimited, StatusCode: resp.StatusCode})
	case resp.StatusCode >= 500:
		return 0, retry.Retryable(&FetchError{Username: username, Reason: ReasonStatus, StatusCode: resp.StatusCode})
	case resp.StatusCode != http.StatusOK:
		return 0, &FetchError{Username: username, Reason: ReasonStatus, StatusCode: resp.StatusCode}
	}

	var payload UserProfileResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return 0, &FetchError{Username: username, Reason: ReasonMalformed, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	count, reason, msg := payload.solvedCount()
	if reason != "" {
		return 0, &FetchError{Username: username, Reason: reason, Message: msg}
	}
	return count, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy reports whether calls are currently let through.
func (c *Client) IsHealthy() bool {
	return c.circuitBreaker.State() != circuitbreaker.StateOpen
}
