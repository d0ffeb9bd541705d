package core

import (
	"math/rand"
	"testing"
	"time"

	"github.com/signalsfoundry/orbit-sonifier/kb"
	"github.com/signalsfoundry/orbit-sonifier/model"
)

// scriptedSource replays a fixed sequence of samples for every handle,
// one per tick.
type scriptedSource struct {
	samples []model.Sample
	calls   int
	fail    bool
}

func (s *scriptedSource) Propagate(model.ElementHandle, time.Time) (model.Sample, bool) {
	if s.fail {
		return model.Sample{}, false
	}
	idx := s.calls
	if idx >= len(s.samples) {
		idx = len(s.samples) - 1
	}
	s.calls++
	return s.samples[idx], true
}

type countingMetrics struct {
	admitted int
	rejected int
	ticks    int
}

func (m *countingMetrics) ObserveTick(time.Duration)    { m.ticks++ }
func (m *countingMetrics) EventAdmitted(string)         { m.admitted++ }
func (m *countingMetrics) EventRejected(string, string) { m.rejected++ }
func (m *countingMetrics) SetEntities(int)              {}
func (m *countingMetrics) SetVoices(int)                {}
func (m *countingMetrics) SetDissonance(float64)        {}
func (m *countingMetrics) SetMood(string)               {}

func newTestEngine(src PositionSource) (*Engine, *NullPlayer) {
	catalog := kb.NewCatalog()
	catalog.Add("TEST-SAT", model.CategoryScience, 0)

	rng := rand.New(rand.NewSource(42))
	player := &NullPlayer{}
	eng := NewEngine(catalog, src,
		NewDetector(rng), NewHarmonicTable(), NewMoodController(),
		NewScheduler(rng), player, nil)
	eng.Sched.RuleChance = 1.0 // rule candidates always pass sampling
	return eng, player
}

func TestTickAdmitsGridCrossing(t *testing.T) {
	src := &scriptedSource{samples: []model.Sample{
		sampleAt(9, 20, 400),
		sampleAt(11, 20, 400),
	}}
	eng, player := newTestEngine(src)

	var seen []model.AdmittedEvent
	eng.AddObserver(func(ev model.AdmittedEvent) { seen = append(seen, ev) })

	metrics := &countingMetrics{}
	eng.Metrics = metrics

	now := time.Unix(1000, 0)
	eng.Tick(now)                  // first observation, detector silent
	eng.Tick(now.Add(time.Second)) // crosses the 10° meridian

	var crossing *model.AdmittedEvent
	for i := range seen {
		if seen[i].Rule == model.RuleGridLon {
			crossing = &seen[i]
		}
	}
	if crossing == nil {
		t.Fatalf("no grid-crossing event admitted; observed %d events", len(seen))
	}
	if crossing.Pitch == "" || crossing.EntityName != "TEST-SAT" {
		t.Fatalf("malformed admitted event: %+v", crossing)
	}
	if player.Played() != len(seen) {
		t.Fatalf("player received %d events, observers %d", player.Played(), len(seen))
	}
	if metrics.admitted != len(seen) || metrics.ticks != 2 {
		t.Fatalf("metrics admitted=%d ticks=%d, want %d/2", metrics.admitted, metrics.ticks, len(seen))
	}
}

func TestTickSkipsFailedPropagation(t *testing.T) {
	eng, player := newTestEngine(&scriptedSource{fail: true})

	eng.AddObserver(func(model.AdmittedEvent) {
		t.Error("event admitted for an unpropagatable entity")
	})
	eng.Tick(time.Unix(1000, 0))
	eng.Tick(time.Unix(1001, 0))

	if player.Played() != 0 {
		t.Fatalf("player received %d events, want 0", player.Played())
	}
}

func TestTickHonorsScaleOverride(t *testing.T) {
	src := &scriptedSource{samples: []model.Sample{sampleAt(9, 20, 400)}}
	eng, _ := newTestEngine(src)

	eng.FollowMood = false
	eng.Harmonics.SetScale("wholetone")

	now := time.Unix(1000, 0)
	for i := 0; i < 5; i++ {
		eng.Tick(now.Add(time.Duration(i) * time.Second))
	}
	if snap := eng.Harmonics.Snapshot(); snap.ScaleName != "wholetone" {
		t.Fatalf("pinned scale drifted to %q", snap.ScaleName)
	}
}

func TestTickFollowsMoodScale(t *testing.T) {
	src := &scriptedSource{samples: []model.Sample{sampleAt(9, 20, 400)}}
	eng, _ := newTestEngine(src)
	eng.Harmonics.SetScale("wholetone")

	// The starting mood is peaceful; with FollowMood on, the first tick
	// retargets the scale to the mood's choice.
	eng.Tick(time.Unix(1000, 0))
	if snap := eng.Harmonics.Snapshot(); snap.ScaleName != MoodPeaceful.Scale() {
		t.Fatalf("scale = %q with FollowMood, want %q", snap.ScaleName, MoodPeaceful.Scale())
	}
}

func TestSoundingChordPrunesExpiredNotes(t *testing.T) {
	src := &scriptedSource{samples: []model.Sample{
		sampleAt(9, 20, 400),
		sampleAt(11, 20, 400),
	}}
	eng, _ := newTestEngine(src)

	now := time.Unix(1000, 0)
	eng.Tick(now)
	eng.Tick(now.Add(time.Second))

	// Two seconds after the last admission every nominal duration has
	// elapsed, so nothing is sounding.
	eng.Tick(now.Add(10 * time.Second))
	if got := eng.SoundingChord(); got != "Unknown" {
		t.Fatalf("chord of an empty sounding set = %q, want Unknown", got)
	}
}
