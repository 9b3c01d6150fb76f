// Package gateway is the single choke point for every generative-model call.
// It enforces a structured-output contract on each call, retries transient
// provider failures with exponential backoff, re-prompts on malformed output
// and applies one rate limit shared across all sessions so nobody's retries
// starve anyone else.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
	"unicode/utf8"

	"github.com/spigell/interviewd/internal/ai"
	"github.com/spigell/interviewd/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout             = 60 * time.Second
	defaultMaxContractRetries  = 2
	defaultMaxTransientRetries = 3
	defaultBaseBackoff         = 500 * time.Millisecond
	defaultRateLimit           = 1.0
	defaultBurst               = 2
	defaultMaxLogLength        = 200
)

// sleep is swapped out in tests to keep backoff assertions fast.
var sleep = time.Sleep

// Config tunes the gateway's retry and throttling behavior.
type Config struct {
	// Timeout bounds a single model call.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxContractRetries is how many stricter re-prompts are attempted
	// after the model returns output that does not match the schema.
	MaxContractRetries int `mapstructure:"max-contract-retries"`
	// MaxTransientRetries is how many additional attempts are made after a
	// timeout or rate-limit failure.
	MaxTransientRetries int `mapstructure:"max-transient-retries"`
	// BaseBackoff is the first transient-retry delay; subsequent delays
	// double and carry jitter.
	BaseBackoff time.Duration `mapstructure:"base-backoff"`
	// RateLimit is the calls-per-second budget shared across all sessions.
	RateLimit float64 `mapstructure:"rate-limit"`
	Burst     int     `mapstructure:"burst"`
	// MaxLogLength bounds prompt/response previews in debug logs.
	MaxLogLength int `mapstructure:"max-log-length"`
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxContractRetries <= 0 {
		c.MaxContractRetries = defaultMaxContractRetries
	}
	if c.MaxTransientRetries <= 0 {
		c.MaxTransientRetries = defaultMaxTransientRetries
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = defaultBaseBackoff
	}
	if c.RateLimit <= 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.Burst <= 0 {
		c.Burst = defaultBurst
	}
	if c.MaxLogLength <= 0 {
		c.MaxLogLength = defaultMaxLogLength
	}
	return c
}

// Request bundles one structured-output call: role instructions, context and
// the declared shape of the expected JSON document.
type Request struct {
	// Schema names the expected shape for logs and error reports.
	Schema string
	// System carries the role instructions for the model.
	System string
	// Prompt carries the call's context and task.
	Prompt string
	// Shape is a human-readable description of the required JSON document.
	// It is restated verbatim when re-prompting after a contract violation.
	Shape string
}

// Gateway serializes contract enforcement and retry policy for model calls.
// A single instance is shared by every component and every session.
type Gateway struct {
	invoker ai.Invoker
	limiter *rate.Limiter
	cfg     Config
	logger  *zap.Logger
}

// New creates a Gateway around the provided model invoker.
func New(invoker ai.Invoker, cfg Config, log *zap.Logger) *Gateway {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		invoker: invoker,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		cfg:     cfg,
		logger:  log,
	}
}

// Generate performs one structured call: invoke the model, interpret the raw
// text against the schema by decoding into out, and re-prompt with stricter
// instructions when the output does not conform. validate, when non-nil, runs
// after a successful decode and may reject structurally valid but
// semantically out-of-contract values. On failure out's contents are
// unspecified and the returned error is always a *Error.
func (g *Gateway) Generate(ctx context.Context, req Request, out any, validate func() error) error {
	prompt := req.Prompt
	attempts := 0

	for contract := 0; contract <= g.cfg.MaxContractRetries; contract++ {
		raw, calls, err := g.invoke(ctx, req.Schema, req.System, prompt)
		attempts += calls
		if err != nil {
			return err
		}

		g.logger.Debug("gateway response",
			zap.String("schema", req.Schema),
			zap.Int("response_length", utf8.RuneCountInString(raw)),
			zap.String("response_preview", logger.TruncateForLog(raw, g.cfg.MaxLogLength)),
		)

		cleaned := extractJSON(raw)
		decodeErr := json.Unmarshal([]byte(cleaned), out)
		if decodeErr == nil && validate != nil {
			decodeErr = validate()
		}
		if decodeErr == nil {
			return nil
		}

		g.logger.Warn("gateway contract violation",
			zap.String("schema", req.Schema),
			zap.Int("attempt", contract+1),
			zap.String("response_preview", logger.TruncateForLog(raw, g.cfg.MaxLogLength)),
			zap.Error(decodeErr),
		)

		if contract == g.cfg.MaxContractRetries {
			return &Error{
				Kind:     KindContractViolation,
				Schema:   req.Schema,
				Attempts: attempts,
				Err:      decodeErr,
			}
		}

		prompt = strictReprompt(req, raw, decodeErr)
	}

	// Unreachable: the loop always returns.
	return &Error{Kind: KindContractViolation, Schema: req.Schema, Attempts: attempts}
}

// invoke runs the raw model call under the shared rate limit and per-call
// timeout, retrying transient failures with jittered exponential backoff. It
// returns the raw text, the number of calls made, and a *Error on failure.
func (g *Gateway) invoke(ctx context.Context, schema, system, prompt string) (string, int, error) {
	var lastErr error

	for attempt := 0; attempt <= g.cfg.MaxTransientRetries; attempt++ {
		if attempt > 0 {
			delay := g.backoff(attempt)
			g.logger.Debug("gateway transient retry",
				zap.String("schema", schema),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			if err := waitFor(ctx, delay); err != nil {
				return "", attempt, &Error{Kind: KindTransient, Schema: schema, Attempts: attempt, Err: err}
			}
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return "", attempt, &Error{Kind: KindTransient, Schema: schema, Attempts: attempt, Err: err}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		raw, err := g.invoker.Invoke(callCtx, system, prompt)
		cancel()

		if err == nil {
			return raw, attempt + 1, nil
		}

		lastErr = err
		if !ai.IsTemporary(err) {
			return "", attempt + 1, &Error{Kind: KindFatal, Schema: schema, Attempts: attempt + 1, Err: err}
		}
	}

	return "", g.cfg.MaxTransientRetries + 1, &Error{
		Kind:     KindTransient,
		Schema:   schema,
		Attempts: g.cfg.MaxTransientRetries + 1,
		Err:      lastErr,
	}
}

// backoff returns the delay before retry number attempt (1-based): the base
// doubled per attempt, plus up to 50% jitter.
func (g *Gateway) backoff(attempt int) time.Duration {
	base := g.cfg.BaseBackoff * time.Duration(1<<(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(base)/2 + 1))
	return base + jitter
}

// waitFor sleeps for d but wakes early on ctx cancellation.
func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func strictReprompt(req Request, raw string, cause error) string {
	return fmt.Sprintf(
		"%s\n\nYour previous reply was rejected: %v.\nPrevious reply:\n%s\n\nRespond again with ONLY a valid JSON document matching exactly this shape, no prose, no code fences:\n%s",
		req.Prompt, cause, raw, req.Shape,
	)
}
