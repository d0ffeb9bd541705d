package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/orbit-sonifier/internal/logging"
	"github.com/signalsfoundry/orbit-sonifier/kb"
	"github.com/signalsfoundry/orbit-sonifier/model"
)

// MetricsRecorder receives pipeline measurements. All methods must be
// cheap; a nil recorder disables metrics.
type MetricsRecorder interface {
	ObserveTick(d time.Duration)
	EventAdmitted(rule string)
	EventRejected(rule, reason string)
	SetEntities(n int)
	SetVoices(n int)
	SetDissonance(v float64)
	SetMood(mood string)
}

// Observer receives every admitted event for explanatory display.
// Push-only, fire-and-forget; observers must not block.
type Observer func(model.AdmittedEvent)

// soundingPitch tracks one admitted pitch until its nominal decay, for
// dissonance and chord analysis over the currently sounding set.
type soundingPitch struct {
	pitch string
	until time.Time
}

// Engine is the per-tick pipeline: propagate every entity, detect
// transitions, map phases to pitches under a per-tick harmonic
// snapshot, admit a bounded subset, and hand admitted events to the
// player and observers.
//
// All shared state is mutated only from within the tick pass — the
// model is single-threaded cooperative scheduling, so ordering
// discipline replaces locking: detector state is updated from the
// sample observed at the start of the tick, and mood-driven scale
// retargeting happens only after every entity has been processed.
type Engine struct {
	Catalog   *kb.Catalog
	Source    PositionSource
	Detector  *Detector
	Harmonics *HarmonicTable
	MoodCtl   *MoodController
	Sched     *Scheduler
	Player    Player

	// FollowMood lets the mood controller retarget the background
	// scale at the end of each tick. Disable when the scale is pinned
	// by an explicit user override.
	FollowMood bool

	Log     logging.Logger
	Metrics MetricsRecorder

	observers []Observer
	sounding  []soundingPitch
	lastTick  time.Time
}

// NewEngine wires the pipeline components together.
func NewEngine(catalog *kb.Catalog, source PositionSource, detector *Detector,
	harmonics *HarmonicTable, moodCtl *MoodController, sched *Scheduler,
	player Player, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Noop()
	}
	return &Engine{
		Catalog:    catalog,
		Source:     source,
		Detector:   detector,
		Harmonics:  harmonics,
		MoodCtl:    moodCtl,
		Sched:      sched,
		Player:     player,
		FollowMood: true,
		Log:        log,
	}
}

// AddObserver registers a fire-and-forget admitted-event observer.
// Register before the first tick.
func (e *Engine) AddObserver(fn Observer) {
	e.observers = append(e.observers, fn)
}

// Tick runs one synchronous pass over all active entities at the given
// simulation time. No entity's processing blocks or suspends mid-tick;
// a failed propagation skips that entity without halting the rest.
func (e *Engine) Tick(simTime time.Time) {
	started := time.Now()
	_, span := otel.Tracer("orbit-sonifier/engine").Start(context.Background(), "engine.tick")
	defer span.End()

	// Immutable harmonic configuration for this whole tick: entities
	// processed later in the pass see the same scale/key as the first.
	snap := e.Harmonics.Snapshot()
	allowed := e.MoodCtl.AllowedPitches()
	budget := e.MoodCtl.Mood().DensityBudget()

	entities := e.Catalog.List()
	candidates := make([]model.TriggerEvent, 0, len(entities))
	for _, ent := range entities {
		sample, ok := e.Source.Propagate(ent.Elements, simTime)
		if !ok {
			// Source failure: entity skipped this tick, no state mutation.
			continue
		}

		if ev := e.Detector.Evaluate(ent, sample, simTime); ev != nil {
			candidates = append(candidates, *ev)
			continue
		}

		// No rule fired: offer a stochastic ambient candidate. The
		// scheduler applies the altitude cooldown and density budget.
		candidates = append(candidates, model.TriggerEvent{
			EntityID:   ent.ID,
			EntityName: ent.Name,
			Category:   ent.Category,
			Rule:       model.RuleAmbientFlow,
			Detail:     "ambient",
			Time:       simTime,
			PhaseDeg:   OrbitalPhaseDeg(simTime, sample.PeriodMin),
			AltKm:      sample.AltKm,
			VolumeDB:   ent.Category.BaseVolumeDB() - 6,
		})
	}

	admitted := e.Sched.OfferCandidates(candidates, snap, allowed, budget, simTime,
		func(c model.TriggerEvent, reason RejectReason) {
			if e.Metrics != nil {
				e.Metrics.EventRejected(c.Rule.String(), string(reason))
			}
		})

	for _, ev := range admitted {
		e.Player.Play(ev.Category, ev.Pitch, ev.DurationSec, ev.Gain, ev.OffsetMs)
		e.sounding = append(e.sounding, soundingPitch{
			pitch: ev.Pitch,
			until: simTime.Add(time.Duration(ev.DurationSec * float64(time.Second))),
		})
		if e.Metrics != nil {
			e.Metrics.EventAdmitted(ev.Rule.String())
		}
		for _, fn := range e.observers {
			fn(ev)
		}
		e.Log.Debug(context.Background(), "event admitted",
			logging.String("entity", ev.EntityName),
			logging.String("rule", ev.Rule.String()),
			logging.String("pitch", ev.Pitch),
		)
	}

	e.pruneSounding(simTime)
	dissonance := Dissonance(e.soundingPitches())

	// Aggregate statistics feed the mood machine; the scale retarget
	// happens strictly after all entity processing for this tick.
	tickSec := time.Second.Seconds()
	if !e.lastTick.IsZero() {
		if d := simTime.Sub(e.lastTick).Seconds(); d > 0 {
			tickSec = d
		}
	}
	e.lastTick = simTime

	voices := e.Player.ActiveVoices()
	intensity := float64(voices) / float64(e.Sched.PolyphonyCeiling)
	if intensity > 1 {
		intensity = 1
	}
	mood := e.MoodCtl.Analyze(PopulationStats{
		Density:    float64(len(admitted)) / tickSec,
		Intensity:  intensity,
		Dissonance: dissonance,
	}, simTime)
	e.MoodCtl.Advance(simTime)
	if e.FollowMood {
		e.Harmonics.SetScale(mood.Scale())
	}

	if e.Metrics != nil {
		e.Metrics.SetEntities(len(entities))
		e.Metrics.SetVoices(voices)
		e.Metrics.SetDissonance(dissonance)
		e.Metrics.SetMood(mood.String())
		e.Metrics.ObserveTick(time.Since(started))
	}
	span.SetAttributes(
		attribute.Int("entities", len(entities)),
		attribute.Int("candidates", len(candidates)),
		attribute.Int("admitted", len(admitted)),
		attribute.String("mood", mood.String()),
	)
}

// SoundingChord names the chord of the currently sounding pitch set.
func (e *Engine) SoundingChord() string {
	return IdentifyChord(e.soundingPitches())
}

func (e *Engine) pruneSounding(now time.Time) {
	kept := e.sounding[:0]
	for _, sp := range e.sounding {
		if sp.until.After(now) {
			kept = append(kept, sp)
		}
	}
	e.sounding = kept
}

func (e *Engine) soundingPitches() []string {
	out := make([]string, len(e.sounding))
	for i, sp := range e.sounding {
		out[i] = sp.pitch
	}
	return out
}
