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

// Upsert inserts or merges one observation. Each upsert runs in its own
// transaction; an insert racing another instance on the
// (location, observed_at, source) constraint is retried as a merge.
func (s *Store) Upsert(ctx context.Context, locationID uuid.UUID, source string, obs domain.Observation) (domain.WeatherSnapshot, domain.UpsertResult, error) {
	snap, result, err := s.upsertTx(ctx, locationID, source, obs)
	if errors.Is(err, store.ErrDuplicate) {
		// Lost an insert race; the row exists now, merge into it.
		snap, result, err = s.upsertTx(ctx, locationID, source, obs)
	}
	return snap, result, err
}

func (s *Store) upsertTx(ctx context.Context, locationID uuid.UUID, source string, obs domain.Observation) (domain.WeatherSnapshot, domain.UpsertResult, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WeatherSnapshot{}, domain.UpsertUnchanged, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	observedAt := obs.ObservedAt.UTC()
	existing, err := findSnapshotByKey(ctx, tx, locationID, observedAt, source)
	switch {
	case errors.Is(err, store.ErrNotFound):
		snap, err := insertSnapshot(ctx, tx, locationID, source, obs)
		if err != nil {
			return domain.WeatherSnapshot{}, domain.UpsertUnchanged, err
		}
		if err := tx.Commit(); err != nil {
			return domain.WeatherSnapshot{}, domain.UpsertUnchanged, fmt.Errorf("commit upsert: %w", err)
		}
		return snap, domain.UpsertCreated, nil

	case err != nil:
		return domain.WeatherSnapshot{}, domain.UpsertUnchanged, err
	}

	if !existing.Apply(obs) {
		return existing, domain.UpsertUnchanged, nil
	}

	existing.UpdatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE weather_snapshots
		 SET temperature_c = ?, apparent_temperature_c = ?, precipitation_mm = ?, weather_code = ?, updated_at = ?
		 WHERE id = ?`,
		nullFloat(existing.TemperatureC),
		nullFloat(existing.ApparentTemperatureC),
		nullFloat(existing.PrecipitationMm),
		nullInt(existing.WeatherCode),
		toMillis(existing.UpdatedAt),
		existing.ID.String(),
	)
	if err != nil {
		return domain.WeatherSnapshot{}, domain.UpsertUnchanged, fmt.Errorf("update snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.WeatherSnapshot{}, domain.UpsertUnchanged, fmt.Errorf("commit upsert: %w", err)
	}
	return existing, domain.UpsertUpdated, nil
}

// FindLatest returns the newest snapshot for the location by observation
// time.
func (s *Store) FindLatest(ctx context.Context, locationID uuid.UUID) (domain.WeatherSnapshot, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		snapshotSelect+` WHERE location_id = ? ORDER BY observed_at DESC LIMIT 1`,
		locationID.String(),
	)
	return scanSnapshotRow(row)
}

const snapshotSelect = `SELECT id, location_id, observed_at, temperature_c, apparent_temperature_c,
	precipitation_mm, weather_code, source, created_at, updated_at FROM weather_snapshots`

type rowScanner interface {
	Scan(dest ...any) error
}

func findSnapshotByKey(ctx context.Context, tx *sql.Tx, locationID uuid.UUID, observedAt time.Time, source string) (domain.WeatherSnapshot, error) {
	row := tx.QueryRowContext(ctx,
		snapshotSelect+` WHERE location_id = ? AND observed_at = ? AND source = ?`,
		locationID.String(), toMillis(observedAt), source,
	)
	return scanSnapshotRow(row)
}

func insertSnapshot(ctx context.Context, tx *sql.Tx, locationID uuid.UUID, source string, obs domain.Observation) (domain.WeatherSnapshot, error) {
	now := time.Now().UTC()
	snap := domain.WeatherSnapshot{
		ID:                   uuid.New(),
		LocationID:           locationID,
		ObservedAt:           obs.ObservedAt.UTC(),
		TemperatureC:         obs.TemperatureC,
		ApparentTemperatureC: obs.ApparentTemperatureC,
		PrecipitationMm:      obs.PrecipitationMm,
		WeatherCode:          obs.WeatherCode,
		Source:               source,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO weather_snapshots
		 (id, location_id, observed_at, temperature_c, apparent_temperature_c, precipitation_mm, weather_code, source, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID.String(), snap.LocationID.String(), toMillis(snap.ObservedAt),
		nullFloat(snap.TemperatureC), nullFloat(snap.ApparentTemperatureC),
		nullFloat(snap.PrecipitationMm), nullInt(snap.WeatherCode),
		snap.Source, toMillis(snap.CreatedAt), toMillis(snap.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WeatherSnapshot{}, store.ErrDuplicate
		}
		return domain.WeatherSnapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

func scanSnapshotRow(row rowScanner) (domain.WeatherSnapshot, error) {
	var (
		snap        domain.WeatherSnapshot
		rawID       string
		rawLoc      string
		observedAt  int64
		temperature sql.NullFloat64
		apparent    sql.NullFloat64
		precip      sql.NullFloat64
		code        sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)
	err := row.Scan(&rawID, &rawLoc, &observedAt, &temperature, &apparent, &precip, &code,
		&snap.Source, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WeatherSnapshot{}, store.ErrNotFound
		}
		return domain.WeatherSnapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.ID = uuid.MustParse(rawID)
	snap.LocationID = uuid.MustParse(rawLoc)
	snap.ObservedAt = fromMillis(observedAt)
	snap.TemperatureC = floatPtr(temperature)
	snap.ApparentTemperatureC = floatPtr(apparent)
	snap.PrecipitationMm = floatPtr(precip)
	snap.WeatherCode = intPtr(code)
	snap.CreatedAt = fromMillis(createdAt)
	snap.UpdatedAt = fromMillis(updatedAt)
	return snap, nil
}
