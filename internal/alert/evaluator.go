// Package alert evaluates threshold rules against snapshots and dispatches
// the resulting alert events.
package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-alert-service/internal/domain"
	"github.com/i474232898/weather-alert-service/internal/store"
)

// Evaluator checks every enabled subscription of a snapshot's location and
// records a PENDING alert for each triggered rule. It reads snapshots and
// subscriptions, never mutates them.
type Evaluator struct {
	locations     store.LocationStore
	subscriptions store.SubscriptionStore
	alerts        store.AlertStore
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(locations store.LocationStore, subscriptions store.SubscriptionStore, alerts store.AlertStore) *Evaluator {
	return &Evaluator{
		locations:     locations,
		subscriptions: subscriptions,
		alerts:        alerts,
	}
}

// EvaluateSnapshot evaluates all enabled subscriptions for the snapshot's
// location and returns the number of alerts created. Because alerts are
// unique per (subscription, snapshot), re-running on the same snapshot is
// idempotent: duplicate creates coalesce to no-ops.
func (e *Evaluator) EvaluateSnapshot(ctx context.Context, snap domain.WeatherSnapshot) (int, error) {
	loc, err := e.locations.FindLocation(ctx, snap.LocationID)
	if err != nil {
		return 0, fmt.Errorf("load location %s: %w", snap.LocationID, err)
	}

	subs, err := e.subscriptions.FindEnabledByLocation(ctx, loc.ID)
	if err != nil {
		return 0, fmt.Errorf("load subscriptions for %s: %w", loc.ID, err)
	}

	created := 0
	for _, sub := range subs {
		if !sub.Triggers(snap) {
			continue
		}

		event := domain.AlertEvent{
			SubscriptionID: sub.ID,
			SnapshotID:     snap.ID,
			Status:         domain.AlertPending,
			Message:        domain.AlertMessage(loc.Name, sub, snap),
		}
		if err := e.alerts.CreateAlert(ctx, &event); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				// Already alerted for this snapshot; benign on re-evaluation.
				continue
			}
			return created, fmt.Errorf("create alert for subscription %s: %w", sub.ID, err)
		}
		created++
	}

	if created > 0 {
		log.Info().
			Str("location", loc.Name).
			Str("snapshot", snap.ID.String()).
			Int("created", created).
			Msg("alerts created")
	}
	return created, nil
}
