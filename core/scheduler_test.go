package core

import (
	"math/rand"
	"testing"
	"time"

	"github.com/signalsfoundry/orbit-sonifier/model"
)

func ruleCandidate(id int, phase float64) model.TriggerEvent {
	return model.TriggerEvent{
		EntityID:   id,
		EntityName: "sat",
		Category:   model.CategoryScience,
		Rule:       model.RuleGridLon,
		PhaseDeg:   phase,
		AltKm:      400,
		VolumeDB:   -12,
	}
}

func ambientCandidate(id int, altKm float64) model.TriggerEvent {
	return model.TriggerEvent{
		EntityID:   id,
		EntityName: "sat",
		Category:   model.CategoryScience,
		Rule:       model.RuleAmbientFlow,
		PhaseDeg:   90,
		AltKm:      altKm,
		VolumeDB:   -18,
	}
}

func TestPolyphonyCeilingHolds(t *testing.T) {
	s := NewScheduler(rand.New(rand.NewSource(7)))
	s.RuleChance = 1.0 // make sampling deterministic
	s.MinGap = 0
	now := time.Unix(1000, 0)

	candidates := make([]model.TriggerEvent, 3000)
	for i := range candidates {
		candidates[i] = ruleCandidate(i, float64(i%360))
	}

	rejections := map[RejectReason]int{}
	admitted := s.OfferCandidates(candidates, NewHarmonicTable().Snapshot(), nil, 1, now,
		func(_ model.TriggerEvent, r RejectReason) { rejections[r]++ })

	if len(admitted) != s.PolyphonyCeiling {
		t.Fatalf("admitted %d of 3000, want ceiling %d", len(admitted), s.PolyphonyCeiling)
	}
	if rejections[RejectCeiling] != 3000-s.PolyphonyCeiling {
		t.Fatalf("ceiling rejections = %d, want %d", rejections[RejectCeiling], 3000-s.PolyphonyCeiling)
	}
}

func TestWindowResetsAfterOneSecond(t *testing.T) {
	s := NewScheduler(rand.New(rand.NewSource(7)))
	s.RuleChance = 1.0
	s.MinGap = 0
	snap := NewHarmonicTable().Snapshot()
	now := time.Unix(1000, 0)

	many := make([]model.TriggerEvent, 100)
	for i := range many {
		many[i] = ruleCandidate(i, 0)
	}
	first := s.OfferCandidates(many, snap, nil, 1, now, nil)
	second := s.OfferCandidates(many, snap, nil, 1, now.Add(time.Second), nil)

	if len(first) != s.PolyphonyCeiling || len(second) != s.PolyphonyCeiling {
		t.Fatalf("admitted %d then %d, want %d in each window", len(first), len(second), s.PolyphonyCeiling)
	}
}

func TestMinGapThrottle(t *testing.T) {
	s := NewScheduler(rand.New(rand.NewSource(7)))
	s.RuleChance = 1.0
	now := time.Unix(1000, 0)

	rejections := map[RejectReason]int{}
	admitted := s.OfferCandidates(
		[]model.TriggerEvent{ruleCandidate(1, 0), ruleCandidate(2, 0)},
		NewHarmonicTable().Snapshot(), nil, 1, now,
		func(_ model.TriggerEvent, r RejectReason) { rejections[r]++ })

	if len(admitted) != 1 {
		t.Fatalf("admitted %d candidates at the same instant, want 1", len(admitted))
	}
	if rejections[RejectThrottle] != 1 {
		t.Fatalf("throttle rejections = %d, want 1", rejections[RejectThrottle])
	}
}

func TestAmbientCooldownScalesWithAltitude(t *testing.T) {
	s := NewScheduler(rand.New(rand.NewSource(7)))

	if got := s.ambientInterval(s.AmbientLowAltKm); got != s.AmbientMinInterval {
		t.Fatalf("interval at low bound = %v, want %v", got, s.AmbientMinInterval)
	}
	if got := s.ambientInterval(s.AmbientHighAltKm + 1000); got != s.AmbientMaxInterval {
		t.Fatalf("interval above high bound = %v, want %v", got, s.AmbientMaxInterval)
	}
	mid := s.ambientInterval((s.AmbientLowAltKm + s.AmbientHighAltKm) / 2)
	if mid <= s.AmbientMinInterval || mid >= s.AmbientMaxInterval {
		t.Fatalf("mid-altitude interval %v not strictly between bounds", mid)
	}
}

func TestAmbientCooldownRejectsEarlyRetrigger(t *testing.T) {
	s := NewScheduler(rand.New(rand.NewSource(7)))
	snap := NewHarmonicTable().Snapshot()
	now := time.Unix(1000, 0)

	admitted := s.OfferCandidates([]model.TriggerEvent{ambientCandidate(1, 400)}, snap, nil, 1, now, nil)
	if len(admitted) != 1 {
		t.Fatalf("initial ambient candidate admitted %d, want 1", len(admitted))
	}

	var reason RejectReason
	admitted = s.OfferCandidates([]model.TriggerEvent{ambientCandidate(1, 400)}, snap, nil, 1,
		now.Add(5*time.Second),
		func(_ model.TriggerEvent, r RejectReason) { reason = r })
	if len(admitted) != 0 || reason != RejectCooldown {
		t.Fatalf("retrigger at 5s admitted %d (reason %q), want cooldown rejection", len(admitted), reason)
	}
}

func TestRejectionLeavesTimestampsUntouched(t *testing.T) {
	s := NewScheduler(rand.New(rand.NewSource(7)))
	snap := NewHarmonicTable().Snapshot()
	now := time.Unix(1000, 0)

	// Density budget 0 rejects the ambient candidate outright.
	admitted := s.OfferCandidates([]model.TriggerEvent{ambientCandidate(1, 400)}, snap, nil, 0, now, nil)
	if len(admitted) != 0 {
		t.Fatalf("budget 0 admitted %d, want 0", len(admitted))
	}

	// Because rejection recorded no timestamp, the same entity is
	// immediately eligible once the budget opens.
	admitted = s.OfferCandidates([]model.TriggerEvent{ambientCandidate(1, 400)}, snap, nil, 1, now.Add(time.Second), nil)
	if len(admitted) != 1 {
		t.Fatalf("post-rejection candidate admitted %d, want 1", len(admitted))
	}
}

func TestAdmittedEventShape(t *testing.T) {
	s := NewScheduler(rand.New(rand.NewSource(7)))
	s.RuleChance = 1.0
	table := NewHarmonicTable()
	now := time.Unix(1000, 0)

	admitted := s.OfferCandidates([]model.TriggerEvent{ruleCandidate(1, 0)},
		table.Snapshot(), []int{9, 0, 4}, 1, now, nil)
	if len(admitted) != 1 {
		t.Fatalf("admitted %d, want 1", len(admitted))
	}
	ev := admitted[0]

	if ev.ID == "" {
		t.Error("admitted event has empty ID")
	}
	pc, _, ok := ParsePitch(ev.Pitch)
	if !ok {
		t.Fatalf("unparsable pitch %q", ev.Pitch)
	}
	if pc != 9 && pc != 0 && pc != 4 {
		t.Errorf("pitch class %d not constrained to the allowed chord", pc)
	}
	if ev.OffsetMs < 0 || ev.OffsetMs >= s.MaxOffsetMs {
		t.Errorf("offset %dms outside [0,%d)", ev.OffsetMs, s.MaxOffsetMs)
	}
	if ev.DurationSec != s.EventSeconds {
		t.Errorf("duration %v, want %v", ev.DurationSec, s.EventSeconds)
	}
	if ev.Gain <= 0 || ev.Gain > 1 {
		t.Errorf("gain %v outside (0,1]", ev.Gain)
	}
}

func TestGainFromDB(t *testing.T) {
	if g := gainFromDB(0); g != 1 {
		t.Fatalf("gainFromDB(0) = %v, want 1", g)
	}
	if g := gainFromDB(-20); g < 0.099 || g > 0.101 {
		t.Fatalf("gainFromDB(-20) = %v, want 0.1", g)
	}
	if g := gainFromDB(12); g != 1 {
		t.Fatalf("gainFromDB(+12) = %v, want clamp to 1", g)
	}
}
