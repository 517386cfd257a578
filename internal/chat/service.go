package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"golang.org/x/time/rate"

	ctxpkg "github.com/stupiduntilnot/kontempo/internal/context"
	"github.com/stupiduntilnot/kontempo/internal/control"
	"github.com/stupiduntilnot/kontempo/internal/db"
	modelpkg "github.com/stupiduntilnot/kontempo/internal/model"
	"github.com/stupiduntilnot/kontempo/internal/portfolio"
)

// Options configures a Service. Zero-valued Limiter, Circuit and Events
// disable rate limiting, circuit breaking and event logging.
type Options struct {
	SystemPrompt    string
	ModelName       string
	ModelLabel      string
	HistoryWindow   int
	DefaultRole     string
	Revenue         portfolio.RevenuePolicy
	// BuyersPerBucket caps the buyers listed per status in the summary.
	BuyersPerBucket int
	Retry           control.Policy
	Limiter         *rate.Limiter
	Circuit         *control.CircuitBreaker
	Events          *sql.DB
	ProcessEventID  *int64
	Now             func() time.Time
}

// Service answers chat requests: it summarizes the portfolio, assembles the
// model context and calls the model provider.
type Service struct {
	provider   modelpkg.Provider
	opts       Options
	compressor ctxpkg.Compressor
	assembler  ctxpkg.Assembler
}

func NewService(provider modelpkg.Provider, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		provider:   provider,
		opts:       opts,
		compressor: &ctxpkg.SimpleCompressor{MaxMessages: opts.HistoryWindow},
		assembler:  &ctxpkg.StandardAssembler{DefaultRole: opts.DefaultRole},
	}
}

// Reply is a model answer ready for the response envelope.
type Reply struct {
	Text      string
	Timestamp time.Time
	Model     string
}

// Prepared is the model input built for one request.
type Prepared struct {
	Payload  ctxpkg.Payload
	Messages []ctxpkg.Message
	Windowed int
}

// Prepare runs the deterministic part of the pipeline. It never fails.
func (s *Service) Prepare(req Request) Prepared {
	summary := portfolio.Summarize(req.Context, portfolio.Options{
		Revenue:            s.opts.Revenue,
		MaxBuyersPerBucket: s.opts.BuyersPerBucket,
	})
	window := ctxpkg.Window(req.ConversationHistory)
	history := s.compressor.Compress(window)
	payload := s.assembler.Assemble(req.Query.String(), history, summary, req.User.Role.String())
	return Prepared{
		Payload:  payload,
		Messages: ctxpkg.Messages(s.opts.SystemPrompt, payload),
		Windowed: len(window),
	}
}

// Reply answers one chat request.
func (s *Service) Reply(ctx context.Context, requestID string, req Request) (Reply, error) {
	requestEventID := s.logEvent(s.opts.ProcessEventID, db.EventRequestReceived, map[string]any{
		"request_id":    requestID,
		"buyers":        len(req.Context.Buyers),
		"orders":        len(req.Context.Orders),
		"payouts":       len(req.Context.Payouts),
		"payment_links": len(req.Context.PaymentLinks),
		"faults":        len(req.Context.Faults),
		"history_turns": len(req.ConversationHistory),
	})

	prepared := s.Prepare(req)
	s.logEvent(requestEventID, db.EventContextAssembled, map[string]any{
		"original_count":   prepared.Windowed,
		"compressed_count": len(prepared.Payload.History),
		"max_messages":     s.opts.HistoryWindow,
		"user_role":        prepared.Payload.UserRole,
		"system_tokens":    estimateTokens(s.opts.SystemPrompt),
		"history_tokens":   estimateTokensFromMessages(prepared.Payload.History),
		"summary_tokens":   estimateTokens(prepared.Payload.Summary),
		"user_tokens":      estimateTokens(prepared.Payload.Query),
	})

	resp, err := s.complete(ctx, requestEventID, prepared.Messages)
	if err != nil {
		s.logEvent(requestEventID, db.EventRequestFailed, map[string]any{
			"request_id":  requestID,
			"error_class": classifyError(err),
			"error":       truncate(err.Error(), 1000),
		})
		return Reply{}, err
	}

	s.logEvent(requestEventID, db.EventReplySent, map[string]any{
		"request_id":  requestID,
		"reply_chars": len([]rune(resp.Content)),
	})
	return Reply{
		Text:      resp.Content,
		Timestamp: s.opts.Now(),
		Model:     s.opts.ModelLabel,
	}, nil
}

// CircuitState reports the breaker state, closed when no breaker is set.
func (s *Service) CircuitState() control.CircuitState {
	if s.opts.Circuit == nil {
		return control.CircuitClosed
	}
	return s.opts.Circuit.State()
}

// complete calls the model provider, retrying retryable failures with
// capped exponential backoff.
func (s *Service) complete(ctx context.Context, requestEventID *int64, messages []ctxpkg.Message) (modelpkg.CompletionResponse, error) {
	policy := s.opts.Retry
	for attempt := 1; ; attempt++ {
		if err := s.admit(); err != nil {
			return modelpkg.CompletionResponse{}, err
		}
		if err := s.wait(ctx); err != nil {
			s.release()
			return modelpkg.CompletionResponse{}, err
		}

		s.logEvent(requestEventID, db.EventTurnStarted, map[string]any{
			"model_name": s.opts.ModelName,
			"attempt":    attempt,
		})
		turnStart := time.Now()
		resp, err := s.provider.ChatCompletion(ctx, messages)
		latencyMs := time.Since(turnStart).Milliseconds()
		if err == nil {
			s.logEvent(requestEventID, db.EventTurnCompleted, map[string]any{
				"model_name":    s.opts.ModelName,
				"attempt":       attempt,
				"latency_ms":    latencyMs,
				"input_tokens":  resp.InputTokens,
				"output_tokens": resp.OutputTokens,
			})
			s.recordSuccess()
			return resp, nil
		}

		errClass := classifyError(err)
		s.logEvent(requestEventID, db.EventTurnFailed, map[string]any{
			"model_name":  s.opts.ModelName,
			"attempt":     attempt,
			"latency_ms":  latencyMs,
			"error_class": errClass,
			"error":       truncate(err.Error(), 1000),
		})
		if errClass == errClassCanceled {
			s.release()
		} else {
			s.recordFailure(errClass)
		}
		if !retryable(ctx, err) {
			return modelpkg.CompletionResponse{}, err
		}
		if !control.ShouldRetry(policy, attempt) {
			s.logEvent(requestEventID, db.EventRetryExhausted, map[string]any{
				"attempts":         attempt,
				"last_error_class": errClass,
			})
			return modelpkg.CompletionResponse{}, err
		}

		backoff := policy.Backoff(attempt)
		s.logEvent(requestEventID, db.EventRetryScheduled, map[string]any{
			"attempt":     attempt,
			"backoff_ms":  backoff.Milliseconds(),
			"error_class": errClass,
		})
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return modelpkg.CompletionResponse{}, fmt.Errorf("retry backoff: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func (s *Service) admit() error {
	c := s.opts.Circuit
	if c == nil {
		return nil
	}
	prev := c.State()
	if !c.Allow(s.opts.Now()) {
		return control.ErrCircuitOpen
	}
	if prev == control.CircuitOpen && c.State() == control.CircuitHalfOpen {
		s.logEvent(s.opts.ProcessEventID, db.EventCircuitHalfOpen, map[string]any{
			"error_class": c.OpenedClass(),
		})
	}
	return nil
}

func (s *Service) wait(ctx context.Context) error {
	if s.opts.Limiter == nil {
		return nil
	}
	if err := s.opts.Limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("model rate limiter: %w", ctxErr)
		}
		// Wait fails early when the deadline cannot be met.
		return fmt.Errorf("model rate limiter: %v: %w", err, context.DeadlineExceeded)
	}
	return nil
}

// release hands back a half-open trial that ended without a verdict.
func (s *Service) release() {
	if c := s.opts.Circuit; c != nil {
		c.Release()
	}
}

func (s *Service) recordSuccess() {
	c := s.opts.Circuit
	if c == nil {
		return
	}
	if prev := c.RecordSuccess(); prev != control.CircuitClosed {
		s.logEvent(s.opts.ProcessEventID, db.EventCircuitClosed, map[string]any{
			"recovered": true,
		})
		log.Printf("circuit closed")
	}
}

func (s *Service) recordFailure(errClass string) {
	c := s.opts.Circuit
	if c == nil {
		return
	}
	if c.RecordFailure(errClass, s.opts.Now()) {
		s.logEvent(s.opts.ProcessEventID, db.EventCircuitOpened, map[string]any{
			"error_class":      errClass,
			"threshold":        c.Threshold,
			"cooldown_seconds": int(c.Cooldown.Seconds()),
		})
		log.Printf("circuit opened error_class=%s", errClass)
	}
}

// logEvent writes an event when the event log is enabled and returns its
// id, or nil when nothing was written.
func (s *Service) logEvent(parentID *int64, eventType string, payload map[string]any) *int64 {
	if s.opts.Events == nil {
		return nil
	}
	id, err := db.LogEvent(s.opts.Events, parentID, eventType, payload)
	if err != nil {
		log.Printf("event log error type=%s: %v", eventType, err)
		return nil
	}
	return &id
}

const (
	errClassCanceled    = "canceled"
	errClassTimeout     = "timeout"
	errClassProviderAPI = "provider_api"
	errClassCircuitOpen = "circuit_open"
)

func classifyError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, control.ErrCircuitOpen):
		return errClassCircuitOpen
	case errors.Is(err, context.Canceled):
		return errClassCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errClassTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return errClassTimeout
	default:
		return errClassProviderAPI
	}
}

// retryable reports whether another attempt may succeed. A finished request
// context never retries; a per-call timeout does. Errors that carry their own
// verdict (HTTP status errors) decide for themselves.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	var verdict interface{ Retryable() bool }
	if errors.As(err, &verdict) {
		return verdict.Retryable()
	}
	return true
}

func estimateTokens(text string) int {
	chars := len([]rune(text))
	if chars <= 0 {
		return 0
	}
	return (chars + 3) / 4
}

func estimateTokensFromMessages(messages []ctxpkg.Message) int {
	totalChars := 0
	for _, msg := range messages {
		totalChars += len([]rune(msg.Content))
	}
	if totalChars <= 0 {
		return 0
	}
	return (totalChars + 3) / 4
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
