package core

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/signalsfoundry/orbit-sonifier/model"
)

// Detector turns continuous per-entity trajectories into discrete,
// named trigger events. At most one rule fires per evaluation, in
// fixed priority order: grid crossing (longitude before latitude) >
// screen entry > zone change > periodic beacon. A higher-priority
// match suppresses the lower checks for that call.
//
// State is keyed by entity ID, created lazily on first observation and
// never deleted while the entity remains loaded; Reset drops it all.
type Detector struct {
	GridBinDeg     float64       // default 10
	BeaconInterval time.Duration // base keep-alive interval
	BeaconJitter   time.Duration // additional random interval, up to this much
	BeaconChance   float64       // per-tick Bernoulli gate once overdue

	rng    *rand.Rand
	states map[int]*entityTriggerState
}

// entityTriggerState is the per-entity record. Exactly one exists per
// observed entity ID.
type entityTriggerState struct {
	lonDeg     float64
	latDeg     float64
	altKm      float64
	wasVisible bool
	lastBeacon time.Time
}

// NewDetector constructs a detector with the given seedable RNG
// (admission and beacon draws are reproducible under test).
func NewDetector(rng *rand.Rand) *Detector {
	return &Detector{
		GridBinDeg:     10,
		BeaconInterval: 20 * time.Second,
		BeaconJitter:   time.Second,
		BeaconChance:   0.10,
		rng:            rng,
		states:         make(map[int]*entityTriggerState),
	}
}

// Reset drops all per-entity state (full catalog reset only).
func (d *Detector) Reset() {
	d.states = make(map[int]*entityTriggerState)
}

// onScreen is the visibility predicate: inside the rendered window,
// excluding the poles and the extreme longitude edges.
func onScreen(lonDeg, latDeg float64) bool {
	return math.Abs(lonDeg) < 170 && math.Abs(latDeg) < 85
}

// gridBin returns the integer bin index for a coordinate.
func (d *Detector) gridBin(deg float64) int {
	return int(math.Floor(deg / d.GridBinDeg))
}

// Evaluate runs the transition rules for one entity against its new
// sample. It returns nil when no rule fires. Regardless of which rule
// fired, the stored state is rewritten with the new sample's
// coordinates at the end of the call; any firing resets the beacon
// timer.
func (d *Detector) Evaluate(e *model.Entity, sample model.Sample, now time.Time) *model.TriggerEvent {
	st, seen := d.states[e.ID]
	if !seen {
		// First observation: nothing to compare against.
		d.states[e.ID] = &entityTriggerState{
			lonDeg:     sample.LonDeg,
			latDeg:     sample.LatDeg,
			altKm:      sample.AltKm,
			wasVisible: onScreen(sample.LonDeg, sample.LatDeg),
			lastBeacon: now,
		}
		return nil
	}

	var ev *model.TriggerEvent
	visible := onScreen(sample.LonDeg, sample.LatDeg)

	switch {
	case d.gridBin(sample.LonDeg) != d.gridBin(st.lonDeg):
		ev = d.newEvent(e, sample, now, model.RuleGridLon,
			fmt.Sprintf("crossed meridian %.0f°", float64(d.gridBin(sample.LonDeg))*d.GridBinDeg))

	case d.gridBin(sample.LatDeg) != d.gridBin(st.latDeg):
		ev = d.newEvent(e, sample, now, model.RuleGridLat,
			fmt.Sprintf("crossed parallel %.0f°", float64(d.gridBin(sample.LatDeg))*d.GridBinDeg))

	case visible && !st.wasVisible:
		ev = d.newEvent(e, sample, now, model.RuleScreenEntry, "entered view")

	case sample.Band() != model.BandForAltitude(st.altKm):
		ev = d.newEvent(e, sample, now, model.RuleZoneChange,
			fmt.Sprintf("%s → %s", model.BandForAltitude(st.altKm), sample.Band()))

	default:
		// Periodic keep-alive: once the jittered interval has elapsed,
		// fire with a fixed independent probability per tick. The
		// Bernoulli gate avoids synchronized pulsing across many
		// entities sharing the same interval; worst-case latency after
		// the interval is unbounded.
		jitter := time.Duration(d.rng.Float64() * float64(d.BeaconJitter))
		if now.Sub(st.lastBeacon) > d.BeaconInterval+jitter && d.rng.Float64() < d.BeaconChance {
			ev = d.newEvent(e, sample, now, model.RuleBeacon, "keep-alive")
		}
	}

	st.lonDeg = sample.LonDeg
	st.latDeg = sample.LatDeg
	st.altKm = sample.AltKm
	st.wasVisible = visible
	if ev != nil {
		st.lastBeacon = now
	}
	return ev
}

func (d *Detector) newEvent(e *model.Entity, sample model.Sample, now time.Time, rule model.TriggerRule, detail string) *model.TriggerEvent {
	return &model.TriggerEvent{
		EntityID:   e.ID,
		EntityName: e.Name,
		Category:   e.Category,
		Rule:       rule,
		Detail:     detail,
		Time:       now,
		PhaseDeg:   OrbitalPhaseDeg(now, sample.PeriodMin),
		AltKm:      sample.AltKm,
		VolumeDB:   e.Category.BaseVolumeDB(),
	}
}
