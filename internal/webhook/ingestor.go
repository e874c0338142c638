package webhook

import (
	"context"
	"fmt"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/domain"
	"github.com/spec-kit/triage-desk/internal/observability"
	apperrors "github.com/spec-kit/triage-desk/pkg/util"
)

const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

//go:generate mockgen -source=ingestor.go -destination=mocks/mocks.go -package=mocks

// DirectorySyncer applies verified identity events.
type DirectorySyncer interface {
	SyncFromWebhook(ctx context.Context, event domain.WebhookEvent) error
}

// Ingestor authenticates identity-provider deliveries and forwards them to the directory.
type Ingestor struct {
	verifier  *svix.Webhook
	configErr error
	directory DirectorySyncer
	dedupe    Deduper
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewIngestor builds the ingestor. A missing or malformed secret is not fatal
// at startup; every delivery is then rejected as a configuration error.
// dedupe may be nil.
func NewIngestor(secret string, directory DirectorySyncer, dedupe Deduper, logger *zap.Logger, metrics *observability.Metrics) *Ingestor {
	in := &Ingestor{directory: directory, dedupe: dedupe, logger: logger, metrics: metrics}
	if secret == "" {
		in.configErr = apperrors.NewConfigurationError("webhook signing secret is not configured")
		return in
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		logger.Error("invalid webhook signing secret", zap.Error(err))
		in.configErr = apperrors.NewConfigurationError("webhook signing secret is invalid")
		return in
	}
	in.verifier = wh
	return in
}

// HandleEvent runs the delivery through configuration, header, signature and
// decode gates in that order, then dispatches it. Returned errors are DomainErrors.
func (in *Ingestor) HandleEvent(ctx context.Context, rawBody []byte, headers http.Header) error {
	if in.configErr != nil {
		in.logger.Error("webhook rejected: signing secret unavailable")
		in.metrics.RecordWebhook("unknown", "misconfigured")
		return in.configErr
	}

	msgID := headers.Get(HeaderID)
	if msgID == "" || headers.Get(HeaderTimestamp) == "" || headers.Get(HeaderSignature) == "" {
		in.metrics.RecordWebhook("unknown", "malformed")
		return apperrors.NewMalformedRequest("missing svix headers")
	}
	logger := in.logger.With(zap.String("svix_id", msgID))

	if err := in.verifier.Verify(rawBody, headers); err != nil {
		logger.Warn("webhook signature verification failed", zap.Error(err))
		in.metrics.RecordWebhook("unknown", "rejected")
		return apperrors.NewVerificationFailed(err)
	}

	event, err := Decode(rawBody, msgID)
	if err != nil {
		// Verified but undecodable bodies are the sender's fault: 400, not 500.
		logger.Warn("webhook payload could not be decoded", zap.Error(err))
		in.metrics.RecordWebhook("unknown", "malformed")
		return apperrors.NewMalformedRequest("invalid webhook payload")
	}
	eventType := string(event.Type)
	logger = logger.With(zap.String("event_type", eventType))

	if in.dedupe != nil {
		seen, err := in.dedupe.Seen(ctx, msgID)
		if err != nil {
			logger.Warn("webhook dedupe lookup failed", zap.Error(err))
		} else if seen {
			logger.Info("webhook already processed")
			in.metrics.RecordWebhook(eventType, "duplicate")
			return nil
		}
	}

	if err := in.directory.SyncFromWebhook(ctx, event); err != nil {
		logger.Error("webhook processing failed", zap.Error(err))
		in.metrics.RecordWebhook(eventType, "failed")
		return apperrors.NewInternalError(fmt.Errorf("process %s: %w", eventType, err))
	}

	if in.dedupe != nil {
		if err := in.dedupe.Mark(ctx, msgID); err != nil {
			logger.Warn("webhook dedupe mark failed", zap.Error(err))
		}
	}
	in.metrics.RecordWebhook(eventType, "processed")
	logger.Info("webhook processed")
	return nil
}
