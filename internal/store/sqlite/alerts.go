package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-alert-service/internal/domain"
	"github.com/i474232898/weather-alert-service/internal/store"
)

// CreateAlert inserts one alert event. A (subscription, snapshot) collision
// returns store.ErrDuplicate so re-evaluations stay idempotent.
func (s *Store) CreateAlert(ctx context.Context, alert *domain.AlertEvent) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.Status == "" {
		alert.Status = domain.AlertPending
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	var sentAt sql.NullInt64
	if alert.SentAt != nil {
		sentAt = sql.NullInt64{Int64: toMillis(*alert.SentAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO alert_events (id, subscription_id, snapshot_id, status, message, created_at, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alert.ID.String(), alert.SubscriptionID.String(), alert.SnapshotID.String(),
		string(alert.Status), alert.Message, toMillis(alert.CreatedAt), sentAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// FindPendingBatch returns up to limit PENDING alerts ordered oldest first.
func (s *Store) FindPendingBatch(ctx context.Context, limit int) ([]domain.AlertEvent, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		alertSelect+` WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		string(domain.AlertPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// MarkSent transitions the given alerts from PENDING to SENT with the given
// timestamp. Alerts in any other state are untouched.
func (s *Store) MarkSent(ctx context.Context, ids []uuid.UUID, sentAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+3)
	args = append(args, string(domain.AlertSent), toMillis(sentAt))
	for _, id := range ids {
		args = append(args, id.String())
	}
	args = append(args, string(domain.AlertPending))

	_, err := s.sqlDB.ExecContext(ctx,
		`UPDATE alert_events SET status = ?, sent_at = ? WHERE id IN (`+placeholders+`) AND status = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark alerts sent: %w", err)
	}
	return nil
}

// ListAlertsByUser returns all alerts for a user's subscriptions, newest
// first.
func (s *Store) ListAlertsByUser(ctx context.Context, userID uuid.UUID) ([]domain.AlertEvent, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT a.id, a.subscription_id, a.snapshot_id, a.status, a.message, a.created_at, a.sent_at
		 FROM alert_events a
		 JOIN subscriptions sub ON sub.id = a.subscription_id
		 WHERE sub.user_id = ?
		 ORDER BY a.created_at DESC`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("select user alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

const alertSelect = `SELECT id, subscription_id, snapshot_id, status, message, created_at, sent_at FROM alert_events`

func scanAlerts(rows *sql.Rows) ([]domain.AlertEvent, error) {
	var alerts []domain.AlertEvent
	for rows.Next() {
		var (
			alert     domain.AlertEvent
			rawID     string
			rawSub    string
			rawSnap   string
			rawStatus string
			createdAt int64
			sentAt    sql.NullInt64
		)
		if err := rows.Scan(&rawID, &rawSub, &rawSnap, &rawStatus, &alert.Message, &createdAt, &sentAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alert.ID = uuid.MustParse(rawID)
		alert.SubscriptionID = uuid.MustParse(rawSub)
		alert.SnapshotID = uuid.MustParse(rawSnap)
		alert.Status = domain.AlertStatus(rawStatus)
		alert.CreatedAt = fromMillis(createdAt)
		if sentAt.Valid {
			t := fromMillis(sentAt.Int64)
			alert.SentAt = &t
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}
