package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RuleType is the closed set of threshold rules a subscription can use.
type RuleType string

const (
	RuleTempBelow   RuleType = "TEMP_BELOW"
	RuleTempAbove   RuleType = "TEMP_ABOVE"
	RulePrecipAbove RuleType = "PRECIP_ABOVE"
)

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	switch t {
	case RuleTempBelow, RuleTempAbove, RulePrecipAbove:
		return true
	}
	return false
}

// Subscription binds a user to a threshold rule on one location. Unique per
// (UserID, LocationID, RuleType, Threshold). Enabled only ever transitions
// to false.
type Subscription struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"userId"`
	LocationID uuid.UUID `json:"locationId"`
	RuleType   RuleType  `json:"ruleType"`
	Threshold  float64   `json:"threshold"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Triggers reports whether the subscription's rule fires for the snapshot.
// A nil relevant measurement never triggers.
func (s Subscription) Triggers(snap WeatherSnapshot) bool {
	switch s.RuleType {
	case RuleTempBelow:
		return snap.TemperatureC != nil && *snap.TemperatureC < s.Threshold
	case RuleTempAbove:
		return snap.TemperatureC != nil && *snap.TemperatureC > s.Threshold
	case RulePrecipAbove:
		return snap.PrecipitationMm != nil && *snap.PrecipitationMm > s.Threshold
	}
	return false
}

// AlertStatus is the alert lifecycle state.
type AlertStatus string

const (
	AlertPending AlertStatus = "PENDING"
	AlertSent    AlertStatus = "SENT"
)

// AlertEvent records one triggered rule for one snapshot. Unique per
// (SubscriptionID, SnapshotID); a subscription fires at most once per
// snapshot.
type AlertEvent struct {
	ID             uuid.UUID   `json:"id"`
	SubscriptionID uuid.UUID   `json:"subscriptionId"`
	SnapshotID     uuid.UUID   `json:"snapshotId"`
	Status         AlertStatus `json:"status"`
	Message        string      `json:"message"`
	CreatedAt      time.Time   `json:"createdAt"`
	SentAt         *time.Time  `json:"sentAt"`
}

// MarkSent moves the alert to its terminal state.
func (a *AlertEvent) MarkSent(at time.Time) {
	a.Status = AlertSent
	a.SentAt = &at
}

// AlertMessage renders the human-readable alert text for a triggered rule.
func AlertMessage(locationName string, sub Subscription, snap WeatherSnapshot) string {
	return fmt.Sprintf("[%s] rule=%s %g observedAt=%s tempC=%s precipMm=%s",
		locationName,
		sub.RuleType,
		sub.Threshold,
		snap.ObservedAt.UTC().Format(time.RFC3339),
		formatFloat(snap.TemperatureC),
		formatFloat(snap.PrecipitationMm),
	)
}

func formatFloat(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%g", *v)
}
