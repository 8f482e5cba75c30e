// Package types provides core data types for the Growlog event store.
package types

import (
	"time"

	"github.com/google/uuid"
)

// TimestampUTCLayout is the wire format for ts_utc values: ISO-8601 with
// microsecond precision and a literal Z suffix. Lexicographic order on these
// strings matches chronological order, which is what the time indexes rely on.
const TimestampUTCLayout = "2006-01-02T15:04:05.000000Z"

// TimestampLocalLayout is the wire format for ts_local values: local
// wall-clock ISO-8601 with millisecond precision and no zone offset.
const TimestampLocalLayout = "2006-01-02T15:04:05.000"

// Event represents one immutable occurrence in the monitored system's
// lifecycle. ID is assigned by the store on append; everything else is
// supplied by the writer. Optional fields use pointers so that absent and
// empty values round-trip as SQL NULL.
type Event struct {
	// ID is the surrogate key assigned by the store. Strictly increasing
	// with insertion order, never reused. Zero until the event is appended.
	ID int64 `json:"id"`

	// TSUTC is the absolute UTC timestamp (TimestampUTCLayout). Required.
	TSUTC string `json:"ts_utc"`

	// TSLocal is the local wall-clock timestamp (TimestampLocalLayout).
	// The writer records it independently of TSUTC; the store never derives
	// one from the other.
	TSLocal string `json:"ts_local"`

	// EventType classifies the occurrence (e.g., "actuator_change",
	// "irrigation_cycle", "alert", "profile_lifecycle"). Required. The store
	// is type-agnostic and does not constrain the value to an enumeration.
	EventType string `json:"event_type"`

	// ReasonCode is an optional free-form secondary classifier.
	ReasonCode *string `json:"reason_code,omitempty"`

	// Msg is an optional human-readable description.
	Msg *string `json:"msg,omitempty"`

	// ProfileID correlates the event to a configuration profile.
	ProfileID *string `json:"profile_id,omitempty"`

	// ProfileVersion is the profile's version at the time of the event.
	ProfileVersion *int64 `json:"profile_version,omitempty"`

	// Stage marks which phase of a larger process the event belongs to.
	Stage *string `json:"stage,omitempty"`

	// CycleID groups events belonging to one logical run. See NewCycleID.
	CycleID *string `json:"cycle_id,omitempty"`

	// Actor identifies who or what produced the event (human, subsystem,
	// automation).
	Actor *string `json:"actor,omitempty"`

	// CfgSHA is a content hash of the configuration in effect.
	CfgSHA *string `json:"cfg_sha,omitempty"`

	// PayloadJSON holds arbitrary structured data serialized as JSON text,
	// opaque to the store.
	PayloadJSON *string `json:"payload_json,omitempty"`
}

// MinuteSummary represents a pre-aggregated statistic for one sensor over one
// UTC minute bucket. The table exists for forward compatibility only; no
// component reads or writes it yet, and every statistic is nullable so future
// aggregation logic may populate any subset.
type MinuteSummary struct {
	// TSMinuteUTC is the minute-granularity bucket start. Required.
	TSMinuteUTC string `json:"ts_minute_utc"`

	// SensorID identifies the measured source. Required.
	SensorID string `json:"sensor_id"`

	Name    *string  `json:"name,omitempty"`
	Unit    *string  `json:"unit,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Mean    *float64 `json:"mean,omitempty"`
	Stdev   *float64 `json:"stdev,omitempty"`
	Samples *int64   `json:"samples,omitempty"`
}

// NowUTC returns the current time formatted as a ts_utc value.
func NowUTC() string {
	return time.Now().UTC().Format(TimestampUTCLayout)
}

// NowLocal returns the current time formatted as a ts_local value.
func NowLocal() string {
	return time.Now().Format(TimestampLocalLayout)
}

// FormatUTC formats t as a ts_utc value.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(TimestampUTCLayout)
}

// NewCycleID returns a fresh identifier for correlating the events of one
// logical run. Writers stamp it into Event.CycleID for every event the run
// produces.
func NewCycleID() string {
	return uuid.NewString()
}

// String returns a pointer to s, for populating optional Event fields.
func String(s string) *string {
	return &s
}

// Int64 returns a pointer to v, for populating optional Event fields.
func Int64(v int64) *int64 {
	return &v
}
