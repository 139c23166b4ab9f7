// Package relay forwards abort requests to the owning engine's callback
// endpoint. Deliveries run asynchronously with bounded concurrency,
// multiplicative retry backoff, and a per-host circuit breaker.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/logware/soar/internal/models"
	"github.com/logware/soar/internal/notify"
)

// Delivery outcomes reported through the result hook.
const (
	OutcomeDelivered  = "delivered"
	OutcomeFailed     = "failed"
	OutcomeSuppressed = "suppressed"
)

// Config holds relay configuration.
type Config struct {
	// DefaultCallbackURL is used when a record carries no callback of its own.
	DefaultCallbackURL string
	Timeout            time.Duration
	MaxAttempts        int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	Multiplier         float64
	MaxConcurrent      int
	// Breaker configures circuit breaker behavior (optional).
	Breaker *BreakerConfig
}

// DefaultConfig returns the default relay configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:        10 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		MaxConcurrent:  32,
	}
}

// Relay delivers abort requests to engine callbacks.
type Relay struct {
	httpClient *http.Client
	cfg        *Config
	semaphore  chan struct{}
	breakers   *BreakerRegistry
	logger     zerolog.Logger
	notices    *notify.Center

	// onResult, when set, receives one outcome per finished delivery.
	onResult func(outcome string)

	wg sync.WaitGroup
}

// New creates a Relay. The notice center may be nil.
func New(cfg *Config, logger zerolog.Logger, notices *notify.Center) *Relay {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}

	return &Relay{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		semaphore:  make(chan struct{}, cfg.MaxConcurrent),
		breakers:   NewBreakerRegistry(cfg.Breaker),
		logger:     logger.With().Str("component", "relay").Logger(),
		notices:    notices,
	}
}

// OnResult registers a hook called with the outcome of every finished
// delivery. Must be set before the first Deliver.
func (r *Relay) OnResult(fn func(outcome string)) {
	r.onResult = fn
}

// Deliver forwards req to callbackURL asynchronously. An empty
// callbackURL falls back to the configured default; if neither is set
// the delivery is dropped with a warning.
func (r *Relay) Deliver(ctx context.Context, callbackURL string, req *models.AbortRequest) {
	if callbackURL == "" {
		callbackURL = r.cfg.DefaultCallbackURL
	}
	if callbackURL == "" {
		r.logger.Warn().Str("execution_id", req.ExecutionID).Msg("no callback URL, abort not relayed")
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		select {
		case r.semaphore <- struct{}{}:
			defer func() { <-r.semaphore }()
		case <-ctx.Done():
			r.finish(OutcomeFailed, callbackURL, req, ctx.Err())
			return
		}

		err := r.deliver(ctx, callbackURL, req)
		switch {
		case err == nil:
			r.finish(OutcomeDelivered, callbackURL, req, nil)
		case errors.Is(err, ErrBreakerOpen):
			r.finish(OutcomeSuppressed, callbackURL, req, err)
		default:
			r.finish(OutcomeFailed, callbackURL, req, err)
		}
	}()
}

// Wait blocks until all in-flight deliveries have finished.
func (r *Relay) Wait() {
	r.wg.Wait()
}

// deliver runs the retry loop for a single abort request.
func (r *Relay) deliver(ctx context.Context, callbackURL string, req *models.AbortRequest) error {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return fmt.Errorf("invalid callback URL: %w", err)
	}

	breaker := r.breakers.Get(parsed.Host)
	if !breaker.Allow() {
		return fmt.Errorf("%w for %s", ErrBreakerOpen, parsed.Host)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding abort request: %w", err)
	}

	var lastErr error
	backoff := r.cfg.InitialBackoff

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err := r.post(ctx, callbackURL, body, req, attempt)
		if err == nil {
			breaker.RecordSuccess()
			return nil
		}
		lastErr = err

		if !retriable(err) || ctx.Err() != nil {
			break
		}
		if attempt < r.cfg.MaxAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(float64(backoff) * r.cfg.Multiplier)
			if r.cfg.MaxBackoff > 0 && backoff > r.cfg.MaxBackoff {
				backoff = r.cfg.MaxBackoff
			}
		}
	}

	breaker.RecordFailure()
	return lastErr
}

// post sends one delivery attempt.
func (r *Relay) post(ctx context.Context, callbackURL string, body []byte, req *models.AbortRequest, attempt int) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Soar-Execution-ID", req.ExecutionID)
	httpReq.Header.Set("X-Soar-Requested-By", req.RequestedBy.Display())
	httpReq.Header.Set("X-Soar-Attempt", fmt.Sprintf("%d", attempt))

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &statusError{code: resp.StatusCode}
}

// finish logs, publishes, and reports the outcome of a delivery.
func (r *Relay) finish(outcome, callbackURL string, req *models.AbortRequest, err error) {
	if r.onResult != nil {
		r.onResult(outcome)
	}

	evt := r.logger.Info()
	if outcome != OutcomeDelivered {
		evt = r.logger.Error().Err(err)
	}
	evt.Str("execution_id", req.ExecutionID).
		Str("callback_url", callbackURL).
		Str("outcome", outcome).
		Msg("abort relay finished")

	if r.notices == nil {
		return
	}
	switch outcome {
	case OutcomeDelivered:
		r.notices.Infof("relay", "abort relayed",
			fmt.Sprintf("abort for execution %s delivered to engine", req.ExecutionID))
	case OutcomeSuppressed:
		r.notices.Warnf("relay", "abort suppressed",
			fmt.Sprintf("abort for execution %s suppressed: %v", req.ExecutionID, err))
	default:
		r.notices.Errorf("relay", "abort relay failed",
			fmt.Sprintf("abort for execution %s failed: %v", req.ExecutionID, err))
	}
}

// statusError is a non-2xx response from the engine.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, http.StatusText(e.code))
}

// retriable reports whether a delivery error is worth another attempt.
// Client errors other than 429 are permanent; server errors, 429, and
// network failures are retried.
func retriable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}
