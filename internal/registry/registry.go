// Package registry owns the thin CRUD around users, locations and
// subscriptions that feeds the alerting pipeline.
package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-alert-service/internal/domain"
	"github.com/i474232898/weather-alert-service/internal/store"
)

// Registry creates and lists the entities the pipeline references.
type Registry struct {
	users         store.UserStore
	locations     store.LocationStore
	subscriptions store.SubscriptionStore
}

// New creates a Registry. geocoderAPIKey may be empty; geocoding of
// coordinate-less locations is then rejected.
func New(users store.UserStore, locations store.LocationStore, subscriptions store.SubscriptionStore, geocoderAPIKey string) *Registry {
	geocoder.ApiKey = geocoderAPIKey
	return &Registry{
		users:         users,
		locations:     locations,
		subscriptions: subscriptions,
	}
}

// CreateUser registers a user by email.
func (r *Registry) CreateUser(ctx context.Context, email string) (domain.User, error) {
	user := domain.User{Email: email}
	if err := r.users.CreateUser(ctx, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// CreateLocation registers a location. When coordinates are omitted the
// name is forward-geocoded, which requires a configured geocoder API key.
func (r *Registry) CreateLocation(ctx context.Context, name string, lat, lon *float64) (domain.Location, error) {
	loc := domain.Location{Name: name}

	switch {
	case lat != nil && lon != nil:
		loc.Latitude = *lat
		loc.Longitude = *lon
	case geocoder.ApiKey == "":
		return domain.Location{}, fmt.Errorf("latitude and longitude are required when geocoding is not configured")
	default:
		resolved, err := geocoder.Geocoding(geocoder.Address{City: name})
		if err != nil {
			return domain.Location{}, fmt.Errorf("geocode %q: %w", name, err)
		}
		loc.Latitude = resolved.Latitude
		loc.Longitude = resolved.Longitude
	}

	if err := r.locations.CreateLocation(ctx, &loc); err != nil {
		return domain.Location{}, err
	}
	return loc, nil
}

// ListLocations returns all registered locations.
func (r *Registry) ListLocations(ctx context.Context) ([]domain.Location, error) {
	return r.locations.ListLocations(ctx)
}

// CreateSubscription registers a rule for a user on a location. Both
// referenced entities must exist.
func (r *Registry) CreateSubscription(ctx context.Context, userID, locationID uuid.UUID, ruleType domain.RuleType, threshold float64) (domain.Subscription, error) {
	if !ruleType.Valid() {
		return domain.Subscription{}, fmt.Errorf("unknown rule type %q", ruleType)
	}
	if _, err := r.users.FindUser(ctx, userID); err != nil {
		return domain.Subscription{}, fmt.Errorf("user %s: %w", userID, err)
	}
	if _, err := r.locations.FindLocation(ctx, locationID); err != nil {
		return domain.Subscription{}, fmt.Errorf("location %s: %w", locationID, err)
	}

	sub := domain.Subscription{
		UserID:     userID,
		LocationID: locationID,
		RuleType:   ruleType,
		Threshold:  threshold,
	}
	if err := r.subscriptions.CreateSubscription(ctx, &sub); err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

// Unsubscribe disables a subscription. Disabled subscriptions are never
// reactivated.
func (r *Registry) Unsubscribe(ctx context.Context, id uuid.UUID) error {
	return r.subscriptions.DisableSubscription(ctx, id)
}
