package alert

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Notifier is the fire-and-forget outbound channel for dispatched alerts.
// The actual transport (email, SMS) lives outside this service.
type Notifier interface {
	Send(ctx context.Context, alertID uuid.UUID, message string)
}

// LogNotifier emits alerts to the structured log. It stands in for a real
// transport in deployments that only need the audit trail.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, alertID uuid.UUID, message string) {
	log.Info().Str("alert", alertID.String()).Str("message", message).Msg("ALERT_SEND")
}
