package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-alert-service/internal/store"
)

// Dispatcher drains PENDING alerts in bounded FIFO batches. The batch bound
// caps lock-hold time so other pending work interleaves across ticks.
type Dispatcher struct {
	alerts    store.AlertStore
	notifier  Notifier
	batchSize int
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher with the given batch bound.
func NewDispatcher(alerts store.AlertStore, notifier Notifier, batchSize int) *Dispatcher {
	return &Dispatcher{
		alerts:    alerts,
		notifier:  notifier,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// DispatchPending selects the oldest PENDING alerts, marks them SENT, and
// emits each to the notifier. SENT is assigned before and regardless of the
// notifier outcome; there is no failure or retry state.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	pending, err := d.alerts.FindPendingBatch(ctx, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending alerts: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	sentAt := d.now()
	ids := make([]uuid.UUID, 0, len(pending))
	for _, event := range pending {
		ids = append(ids, event.ID)
	}
	if err := d.alerts.MarkSent(ctx, ids, sentAt); err != nil {
		return 0, fmt.Errorf("mark alerts sent: %w", err)
	}

	for _, event := range pending {
		d.notifier.Send(ctx, event.ID, event.Message)
	}

	log.Info().Int("count", len(pending)).Msg("ALERT_DISPATCHED")
	return len(pending), nil
}
