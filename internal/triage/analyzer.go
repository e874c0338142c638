package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/domain"
	"github.com/spec-kit/triage-desk/internal/observability"
)

//go:generate mockgen -source=analyzer.go -destination=mocks/mocks.go -package=mocks

// ErrService matches every *ServiceError.
var ErrService = errors.New("triage service unavailable")

// ServiceError reports that the reasoning service produced no content.
// Callers retry the whole attempt instead of storing a fallback.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("triage service: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool { return target == ErrService }

// Reasoner sends a prompt to the reasoning service and returns its text.
type Reasoner interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Outcome is a complete triage result. Fallback is set when any field took its default.
type Outcome struct {
	Result   domain.TriageResult
	Fallback bool
}

// Analyzer produces triage results for tickets.
type Analyzer struct {
	reasoner Reasoner
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewAnalyzer constructs an analyzer.
func NewAnalyzer(reasoner Reasoner, logger *zap.Logger, metrics *observability.Metrics) *Analyzer {
	return &Analyzer{reasoner: reasoner, logger: logger, metrics: metrics}
}

// Analyze asks the reasoning service about the ticket. Unusable content is
// absorbed into a fallback outcome; only service failures return an error.
func (a *Analyzer) Analyze(ctx context.Context, ticket domain.Ticket) (Outcome, error) {
	logger := a.logger.With(zap.String("ticket_id", ticket.ID))

	start := time.Now()
	text, err := a.reasoner.Complete(ctx, BuildPrompt(ticket))
	elapsed := time.Since(start)
	if err != nil {
		a.metrics.RecordTriage("service_error", elapsed)
		logger.Warn("reasoning service call failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return Outcome{}, &ServiceError{Err: err}
	}

	result, fallback := BuildResult(ticket.Title, text)
	if fallback {
		a.metrics.RecordTriage("fallback", elapsed)
		logger.Warn("triage response unusable; defaults applied",
			zap.Int("response_length", len(text)),
			zap.String("priority", string(result.Priority)))
	} else {
		a.metrics.RecordTriage("parsed", elapsed)
		logger.Info("triage completed",
			zap.String("priority", string(result.Priority)),
			zap.Strings("skills", result.RelatedSkills))
	}
	return Outcome{Result: result, Fallback: fallback}, nil
}
