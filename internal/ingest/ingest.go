// Package ingest runs the polling pipeline: fetch current observations for
// every location, upsert snapshots, and fan out cache invalidation and rule
// evaluation on change.
package ingest

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-alert-service/internal/alert"
	"github.com/i474232898/weather-alert-service/internal/cache"
	"github.com/i474232898/weather-alert-service/internal/domain"
	"github.com/i474232898/weather-alert-service/internal/store"
	"github.com/i474232898/weather-alert-service/internal/weather"
)

// Service is the ingestion pipeline. Callers are responsible for holding
// the ingestion lock around IngestAll.
type Service struct {
	locations store.LocationStore
	snapshots store.SnapshotStore
	client    weather.Client
	cache     *cache.ReadCache
	evaluator *alert.Evaluator
}

// NewService creates the ingestion pipeline.
func NewService(locations store.LocationStore, snapshots store.SnapshotStore, client weather.Client, readCache *cache.ReadCache, evaluator *alert.Evaluator) *Service {
	return &Service{
		locations: locations,
		snapshots: snapshots,
		client:    client,
		cache:     readCache,
		evaluator: evaluator,
	}
}

// IngestAll polls the provider once for every registered location. A
// failure for one location never aborts the rest of the batch; it is logged
// and the loop moves on.
func (s *Service) IngestAll(ctx context.Context) error {
	locations, err := s.locations.ListLocations(ctx)
	if err != nil {
		return err
	}

	log.Debug().Int("locations", len(locations)).Msg("ingestion run started")
	for _, loc := range locations {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.ingestLocation(ctx, loc)
	}
	log.Debug().Msg("ingestion run completed")
	return nil
}

func (s *Service) ingestLocation(ctx context.Context, loc domain.Location) {
	obs, err := s.client.FetchCurrent(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		if errors.Is(err, weather.ErrUnavailable) {
			log.Warn().Str("location", loc.Name).Msg("no observation available; skipping location")
		} else {
			log.Error().Err(err).Str("location", loc.Name).Msg("fetch failed; skipping location")
		}
		return
	}

	snap, result, err := s.snapshots.Upsert(ctx, loc.ID, weather.Source, obs)
	if err != nil {
		log.Error().Err(err).Str("location", loc.Name).Msg("upsert failed; skipping location")
		return
	}

	// The dedup guarantee: an unchanged snapshot causes no cache churn and
	// no re-evaluation.
	if result == domain.UpsertUnchanged {
		return
	}

	log.Info().
		Str("location", loc.Name).
		Str("result", result.String()).
		Time("observedAt", snap.ObservedAt).
		Msg("snapshot stored")

	s.cache.InvalidateCurrent(ctx, loc.ID)

	if _, err := s.evaluator.EvaluateSnapshot(ctx, snap); err != nil {
		log.Error().Err(err).Str("location", loc.Name).Msg("alert evaluation failed")
	}
}
