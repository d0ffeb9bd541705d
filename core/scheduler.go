package core

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/orbit-sonifier/model"
)

// Scheduler is the global admission controller: it decides, under
// strict rate and polyphony budgets, which of many simultaneously
// eligible trigger candidates actually produce an audible event. It is
// the bottleneck-governor that keeps thousands of independently
// triggering bodies tractable on one constrained output channel.
//
// Rejected candidates are dropped, never queued or retried, so no
// backlog accumulates and there are no catch-up bursts after a busy
// period.
type Scheduler struct {
	PolyphonyCeiling int           // max admissions per rolling 1-second window
	MinGap           time.Duration // minimum gap between any two admissions
	RuleChance       float64       // Bernoulli sampling of detected-rule candidates

	// Ambient candidates: per-entity minimum interval interpolated by
	// altitude — lower orbits re-trigger sooner.
	AmbientMinInterval time.Duration // at AmbientLowAltKm and below
	AmbientMaxInterval time.Duration // at AmbientHighAltKm and above
	AmbientLowAltKm    float64
	AmbientHighAltKm   float64

	MaxOffsetMs  int     // randomized attack stagger, exclusive upper bound
	EventSeconds float64 // nominal event duration handed to the player

	rng *rand.Rand

	lastTrigger map[int]time.Time // per-entity, updated on admission only
	lastGlobal  time.Time
	windowStart time.Time
	windowCount int
}

// RejectReason labels why a candidate was not admitted, for metrics.
type RejectReason string

const (
	RejectCeiling  RejectReason = "ceiling"
	RejectThrottle RejectReason = "throttle"
	RejectSampled  RejectReason = "sampled"
	RejectCooldown RejectReason = "cooldown"
	RejectDensity  RejectReason = "density"
)

// NewScheduler constructs a scheduler with the default budgets and a
// seedable RNG.
func NewScheduler(rng *rand.Rand) *Scheduler {
	return &Scheduler{
		PolyphonyCeiling:   15,
		MinGap:             100 * time.Millisecond,
		RuleChance:         0.15,
		AmbientMinInterval: 15 * time.Second,
		AmbientMaxInterval: 45 * time.Second,
		AmbientLowAltKm:    300,
		AmbientHighAltKm:   40000,
		MaxOffsetMs:        100,
		EventSeconds:       2.0,
		rng:                rng,
		lastTrigger:        make(map[int]time.Time),
	}
}

// Reset drops all admission state (full catalog reset only).
func (s *Scheduler) Reset() {
	s.lastTrigger = make(map[int]time.Time)
	s.lastGlobal = time.Time{}
	s.windowStart = time.Time{}
	s.windowCount = 0
}

// OfferCandidates runs the admission pipeline over this tick's
// candidates in arrival order. Admitted events carry a pitch already
// constrained to the allowed pitch-class set, a randomized schedule
// offset, and a linear gain derived from the candidate's dB volume.
// reject, when non-nil, is invoked once per dropped candidate.
func (s *Scheduler) OfferCandidates(
	candidates []model.TriggerEvent,
	snap HarmonicSnapshot,
	allowed []int,
	densityBudget float64,
	now time.Time,
	reject func(model.TriggerEvent, RejectReason),
) []model.AdmittedEvent {
	s.rollWindow(now)

	drop := func(c model.TriggerEvent, r RejectReason) {
		if reject != nil {
			reject(c, r)
		}
	}

	var admitted []model.AdmittedEvent
	for _, c := range candidates {
		// 1. Hard polyphony ceiling: fail closed for the rest of the tick.
		if s.windowCount >= s.PolyphonyCeiling {
			drop(c, RejectCeiling)
			continue
		}
		// 2. Global micro-throttle, independent of the ceiling.
		if !s.lastGlobal.IsZero() && now.Sub(s.lastGlobal) < s.MinGap {
			drop(c, RejectThrottle)
			continue
		}

		if c.Rule.IsAmbient() {
			// 4. Ambient path: altitude-scaled per-entity cooldown, then
			// the mood controller's density budget.
			last, seen := s.lastTrigger[c.EntityID]
			if seen && now.Sub(last) < s.ambientInterval(c.AltKm) {
				drop(c, RejectCooldown)
				continue
			}
			if s.rng.Float64() >= densityBudget {
				drop(c, RejectDensity)
				continue
			}
		} else {
			// 3. Detected rules are deliberately lossy-sampled so that
			// thousands of entities crossing the same grid line do not
			// produce a wall of sound.
			if s.rng.Float64() >= s.RuleChance {
				drop(c, RejectSampled)
				continue
			}
		}

		offset := 0
		if s.MaxOffsetMs > 0 {
			offset = s.rng.Intn(s.MaxOffsetMs)
		}
		pitch := snap.PhaseToPitch(c.PhaseDeg, c.Category)
		admitted = append(admitted, model.AdmittedEvent{
			ID:          uuid.NewString(),
			EntityID:    c.EntityID,
			EntityName:  c.EntityName,
			Category:    c.Category,
			Rule:        c.Rule,
			Detail:      c.Detail,
			Pitch:       ConstrainToChord(pitch, allowed),
			DurationSec: s.EventSeconds,
			Gain:        gainFromDB(c.VolumeDB),
			OffsetMs:    offset,
			Time:        now,
		})

		// 6. Timestamps move on admission only.
		s.lastTrigger[c.EntityID] = now
		s.lastGlobal = now
		s.windowCount++
	}
	return admitted
}

// rollWindow resets the 1-second admission counter when the window
// has elapsed.
func (s *Scheduler) rollWindow(now time.Time) {
	if s.windowStart.IsZero() || now.Sub(s.windowStart) >= time.Second {
		s.windowStart = now
		s.windowCount = 0
	}
}

// ambientInterval interpolates the per-entity minimum interval from
// altitude: AmbientMinInterval at the low bound, AmbientMaxInterval at
// the high bound, linear in between.
func (s *Scheduler) ambientInterval(altKm float64) time.Duration {
	span := s.AmbientHighAltKm - s.AmbientLowAltKm
	if span <= 0 {
		return s.AmbientMinInterval
	}
	frac := (altKm - s.AmbientLowAltKm) / span
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return s.AmbientMinInterval +
		time.Duration(frac*float64(s.AmbientMaxInterval-s.AmbientMinInterval))
}

// gainFromDB converts a decibel volume to linear gain clamped to [0,1].
func gainFromDB(db float64) float64 {
	gain := math.Pow(10, db/20)
	if gain < 0 {
		return 0
	}
	if gain > 1 {
		return 1
	}
	return gain
}
