package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-alert-service/internal/domain"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist, or a
	// location has no snapshot yet.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert collides with a uniqueness
	// constraint. Callers racing on snapshots or alerts must coalesce it
	// into a no-op.
	ErrDuplicate = errors.New("duplicate")
)

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	FindUser(ctx context.Context, id uuid.UUID) (domain.User, error)
}

// LocationStore persists the location registry.
type LocationStore interface {
	CreateLocation(ctx context.Context, loc *domain.Location) error
	ListLocations(ctx context.Context) ([]domain.Location, error)
	FindLocation(ctx context.Context, id uuid.UUID) (domain.Location, error)
}

// SnapshotStore persists weather snapshots, unique per
// (location, observed_at, source).
type SnapshotStore interface {
	// Upsert inserts the observation as a new snapshot, or merges it into
	// the existing one field by field. The returned snapshot reflects the
	// stored state after the call.
	Upsert(ctx context.Context, locationID uuid.UUID, source string, obs domain.Observation) (domain.WeatherSnapshot, domain.UpsertResult, error)

	// FindLatest returns the most recent snapshot for a location by
	// observation time, or ErrNotFound when the location was never ingested.
	FindLatest(ctx context.Context, locationID uuid.UUID) (domain.WeatherSnapshot, error)
}

// SubscriptionStore persists subscriptions.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, sub *domain.Subscription) error
	FindEnabledByLocation(ctx context.Context, locationID uuid.UUID) ([]domain.Subscription, error)
	DisableSubscription(ctx context.Context, id uuid.UUID) error
}

// AlertStore persists alert events.
type AlertStore interface {
	// CreateAlert inserts a PENDING alert; ErrDuplicate when the
	// (subscription, snapshot) pair already has one.
	CreateAlert(ctx context.Context, alert *domain.AlertEvent) error

	// FindPendingBatch returns up to limit PENDING alerts, oldest first.
	FindPendingBatch(ctx context.Context, limit int) ([]domain.AlertEvent, error)

	// MarkSent transitions the given alerts from PENDING to SENT. Alerts
	// already sent are left untouched.
	MarkSent(ctx context.Context, ids []uuid.UUID, sentAt time.Time) error

	ListAlertsByUser(ctx context.Context, userID uuid.UUID) ([]domain.AlertEvent, error)
}
