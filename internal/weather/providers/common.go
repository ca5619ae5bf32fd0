package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/weather-dashboard/internal/common"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// RetryPolicy controls attempts and exponential backoff.
type RetryPolicy struct {
	MaxAttempts    int
	BackoffFactor  time.Duration
	MaxInterval    time.Duration // 0 = no cap
	Jitter         bool
	AttemptTimeout time.Duration // 0 = rely on the http.Client timeout
}

// DefaultRetryPolicy is 5 attempts with 0.2s, 0.4s, 0.8s, 1.6s delays.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		BackoffFactor:  200 * time.Millisecond,
		AttemptTimeout: 10 * time.Second,
	}
}

// Delay returns the wait after the given (1-based) failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := time.Duration(float64(p.BackoffFactor) * math.Pow(2, float64(attempt-1)))
	if p.MaxInterval > 0 && delay > p.MaxInterval {
		delay = p.MaxInterval
	}
	return delay
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Is lets non-retryable statuses match weather.ErrProvider.
func (e *StatusError) Is(target error) bool {
	return target == weather.ErrProvider && !retryableStatus(e.Code)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Observer receives transport activity, e.g. for metrics.
type Observer interface {
	TransportRetry()
}

// Transport sends provider requests with per-attempt timeouts, bounded
// retries with exponential backoff, and a circuit breaker.
type Transport struct {
	client   *http.Client
	policy   RetryPolicy
	circuit  *gobreaker.CircuitBreaker
	sleep    func(ctx context.Context, d time.Duration) error
	observer Observer
	logger   *zap.Logger
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithSleepFunc overrides the wait between attempts.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) TransportOption {
	return func(t *Transport) {
		t.sleep = fn
	}
}

// WithTransportObserver reports retries to o.
func WithTransportObserver(o Observer) TransportOption {
	return func(t *Transport) {
		t.observer = o
	}
}

// WithTransportLogger sets the transport logger.
func WithTransportLogger(l *zap.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = l
	}
}

// NewTransport creates a Transport around client.
func NewTransport(client *http.Client, policy RetryPolicy, opts ...TransportOption) *Transport {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	t := &Transport{
		client: client,
		policy: policy,
		sleep:  sleepContext,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.Named("transport")

	t.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// Only failed calls count, each after its own retries. A rejected or
		// malformed request says nothing about provider health.
		IsSuccessful: func(err error) bool {
			var be *buildError
			return err == nil ||
				errors.Is(err, weather.ErrProvider) ||
				errors.Is(err, context.Canceled) ||
				errors.As(err, &be)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			t.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return t
}

// Send executes the request built by buildRequest and returns the body of a
// 2xx response. Connection failures, timeouts and 429/500/502/503/504 are
// retried; other statuses fail at once with a *StatusError. The circuit
// breaker counts whole calls, so each call gets its full attempt budget.
func (t *Transport) Send(ctx context.Context, buildRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if t.client == nil {
		return nil, errNoHTTPClient
	}

	result, err := t.circuit.Execute(func() (interface{}, error) {
		return t.sendWithRetry(ctx, buildRequest)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", weather.ErrCircuitOpen, err)
		}
		return nil, err
	}
	return result.([]byte), nil
}

func (t *Transport) sendWithRetry(ctx context.Context, buildRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= t.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := t.attempt(ctx, buildRequest)
		if err == nil {
			return body, nil
		}

		var be *buildError
		if errors.As(err, &be) || !retryable(err) {
			return nil, err
		}
		// The caller gave up; the attempt did not time out on its own.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if attempt == t.policy.MaxAttempts {
			break
		}

		delay := t.backoff(attempt)
		t.logger.Warn("provider request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if t.observer != nil {
			t.observer.TransportRetry()
		}
		if err := t.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &weather.RetryExhaustedError{Attempts: t.policy.MaxAttempts, Last: lastErr}
}

// buildError is a failure to construct the request; it is never retried.
type buildError struct {
	err error
}

func (e *buildError) Error() string { return "build request: " + e.err.Error() }
func (e *buildError) Unwrap() error { return e.err }

func (t *Transport) attempt(ctx context.Context, buildRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	attemptCtx := ctx
	if t.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, t.policy.AttemptTimeout)
		defer cancel()
	}

	req, err := buildRequest(attemptCtx)
	if err != nil {
		return nil, &buildError{err: err}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", weather.ErrNetwork, err)
	}
	defer resp.Body.Close()

	// Reading the body is part of the attempt; a stalled body is a timeout.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", weather.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: body}
	}
	return body, nil
}

func (t *Transport) backoff(attempt int) time.Duration {
	delay := t.policy.Delay(attempt)
	if t.policy.Jitter && delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))
	}
	return delay
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return retryableStatus(se.Code)
	}
	if errors.Is(err, weather.ErrNetwork) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return common.HasAny(err.Error(), "connection refused", "connection reset", "broken pipe", "EOF")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var errNoHTTPClient = errors.New("http client not configured")
