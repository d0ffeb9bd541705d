package model

import "time"

// TriggerRule names the transition that produced a trigger event.
type TriggerRule int

const (
	RuleGridLon TriggerRule = iota
	RuleGridLat
	RuleScreenEntry
	RuleZoneChange
	RuleBeacon
	RuleAmbientFlow
)

func (r TriggerRule) String() string {
	names := [...]string{"GRID_LON", "GRID_LAT", "SCREEN_ENTRY", "ZONE_CHANGE", "BEACON", "AMBIENT_FLOW"}
	if int(r) < len(names) {
		return names[r]
	}
	return "UNKNOWN"
}

// IsAmbient reports whether the rule is the scheduler's stochastic
// ambient path rather than a detected transition.
func (r TriggerRule) IsAmbient() bool { return r == RuleAmbientFlow }

// TriggerEvent is an ephemeral admission candidate: one per entity per
// tick at most, consumed once by the scheduler and then discarded.
type TriggerEvent struct {
	EntityID   int
	EntityName string
	Category   Category
	Rule       TriggerRule
	Detail     string
	Time       time.Time

	// Inputs for pitch and admission policy.
	PhaseDeg float64
	AltKm    float64
	VolumeDB float64
}

// AdmittedEvent is a candidate that passed admission and is forwarded
// to the player and to observers.
type AdmittedEvent struct {
	ID         string
	EntityID   int
	EntityName string
	Category   Category
	Rule       TriggerRule
	Detail     string

	Pitch       string
	DurationSec float64
	Gain        float64 // linear, 0..1
	OffsetMs    int     // randomized attack stagger
	Time        time.Time
}
