package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-alert-service/internal/domain"
	"github.com/i474232898/weather-alert-service/internal/store"
)

// CreateUser inserts one user.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)`,
		user.ID.String(), user.Email, toMillis(user.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindUser loads one user by id.
func (s *Store) FindUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var (
		user      domain.User
		rawID     string
		createdAt int64
	)
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, email, created_at FROM users WHERE id = ?`, id.String())
	if err := row.Scan(&rawID, &user.Email, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, store.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	user.ID = uuid.MustParse(rawID)
	user.CreatedAt = fromMillis(createdAt)
	return user, nil
}

// CreateLocation inserts one location.
func (s *Store) CreateLocation(ctx context.Context, loc *domain.Location) error {
	if loc.ID == uuid.Nil {
		loc.ID = uuid.New()
	}
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO locations (id, name, latitude, longitude, created_at) VALUES (?, ?, ?, ?, ?)`,
		loc.ID.String(), loc.Name, loc.Latitude, loc.Longitude, toMillis(loc.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

// ListLocations returns all registered locations.
func (s *Store) ListLocations(ctx context.Context) ([]domain.Location, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, latitude, longitude, created_at FROM locations ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("select locations: %w", err)
	}
	defer rows.Close()

	var locs []domain.Location
	for rows.Next() {
		var (
			loc       domain.Location
			rawID     string
			createdAt int64
		)
		if err := rows.Scan(&rawID, &loc.Name, &loc.Latitude, &loc.Longitude, &createdAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		loc.ID = uuid.MustParse(rawID)
		loc.CreatedAt = fromMillis(createdAt)
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

// FindLocation loads one location by id.
func (s *Store) FindLocation(ctx context.Context, id uuid.UUID) (domain.Location, error) {
	var (
		loc       domain.Location
		rawID     string
		createdAt int64
	)
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, latitude, longitude, created_at FROM locations WHERE id = ?`, id.String())
	if err := row.Scan(&rawID, &loc.Name, &loc.Latitude, &loc.Longitude, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Location{}, store.ErrNotFound
		}
		return domain.Location{}, fmt.Errorf("select location: %w", err)
	}
	loc.ID = uuid.MustParse(rawID)
	loc.CreatedAt = fromMillis(createdAt)
	return loc, nil
}

// CreateSubscription inserts one subscription with Enabled forced to true.
func (s *Store) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	sub.Enabled = true

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, location_id, rule_type, threshold, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?)`,
		sub.ID.String(), sub.UserID.String(), sub.LocationID.String(),
		string(sub.RuleType), sub.Threshold, toMillis(sub.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// FindEnabledByLocation returns all enabled subscriptions for a location.
func (s *Store) FindEnabledByLocation(ctx context.Context, locationID uuid.UUID) ([]domain.Subscription, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, user_id, location_id, rule_type, threshold, enabled, created_at
		 FROM subscriptions WHERE location_id = ? AND enabled = 1`,
		locationID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("select subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DisableSubscription turns a subscription off. Subscriptions are never
// reactivated through this store.
func (s *Store) DisableSubscription(ctx context.Context, id uuid.UUID) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE subscriptions SET enabled = 0 WHERE id = ? AND enabled = 1`, id.String())
	if err != nil {
		return fmt.Errorf("disable subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("disable subscription: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanSubscription(rows *sql.Rows) (domain.Subscription, error) {
	var (
		sub        domain.Subscription
		rawID      string
		rawUser    string
		rawLoc     string
		rawRule    string
		enabledInt int
		createdAt  int64
	)
	if err := rows.Scan(&rawID, &rawUser, &rawLoc, &rawRule, &sub.Threshold, &enabledInt, &createdAt); err != nil {
		return domain.Subscription{}, fmt.Errorf("scan subscription: %w", err)
	}
	sub.ID = uuid.MustParse(rawID)
	sub.UserID = uuid.MustParse(rawUser)
	sub.LocationID = uuid.MustParse(rawLoc)
	sub.RuleType = domain.RuleType(rawRule)
	sub.Enabled = enabledInt != 0
	sub.CreatedAt = fromMillis(createdAt)
	return sub, nil
}
