package core

import (
	"sync"
	"time"
)

// Mood is a coarse classification of aggregate population activity.
type Mood int

const (
	MoodPeaceful Mood = iota
	MoodBuilding
	MoodClimax
	MoodCalm
)

func (m Mood) String() string {
	names := [...]string{"peaceful", "building", "climax", "calm"}
	if int(m) < len(names) {
		return names[m]
	}
	return "peaceful"
}

// Scale recommends the background scale for melodic generation while
// in this mood. The fast layer only retargets this scale; harmonic
// constraint always comes from the slow progression.
func (m Mood) Scale() string {
	switch m {
	case MoodBuilding:
		return "major"
	case MoodClimax:
		return "minor"
	case MoodCalm:
		return "dorian"
	default:
		return "lydian"
	}
}

// DensityBudget is the probability that an eligible ambient candidate
// is allowed to sound while in this mood.
func (m Mood) DensityBudget() float64 {
	switch m {
	case MoodBuilding:
		return 0.5
	case MoodClimax:
		return 0.8
	case MoodCalm:
		return 0.2
	default:
		return 0.35
	}
}

// PopulationStats is the aggregate input to mood analysis for one tick.
type PopulationStats struct {
	Density    float64 // admitted events per second over the population
	Intensity  float64 // mean active-voice intensity, 0..1
	Dissonance float64 // of the currently sounding pitch set
}

// ringBuffer is a fixed-capacity float history; Push overwrites the
// oldest value once full.
type ringBuffer struct {
	buf  []float64
	head int
	size int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]float64, capacity)}
}

func (r *ringBuffer) Push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

func (r *ringBuffer) Len() int { return r.size }

// LastN returns the most recent n values, oldest first. It returns
// fewer if the history is shorter.
func (r *ringBuffer) LastN(n int) []float64 {
	if n > r.size {
		n = r.size
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		idx := ((r.head - n + i) % len(r.buf) + len(r.buf)) % len(r.buf)
		out[i] = r.buf[idx]
	}
	return out
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// MoodController is a two-timescale state machine. The fast layer
// classifies population statistics into a mood (held at least
// MinMoodHold between transitions); the slow layer walks a fixed
// 4-chord progression on a fixed wall-clock interval, independent of
// mood. The two-rate split keeps harmonic constraint steady while
// letting the background scale drift expressively.
type MoodController struct {
	mu sync.Mutex

	ClimaxDensity   float64       // density threshold for climax
	MinMoodHold     time.Duration // minimum time between mood changes
	ProgressionStep time.Duration // chord advance interval

	mood           Mood
	density        *ringBuffer
	dissonance     *ringBuffer
	lastTransition time.Time

	progression     [][]int // literal pitch-class lists
	progressionIdx  int
	lastProgression time.Time
}

// NewMoodController constructs a controller with default thresholds
// and an Am–F–C–G progression.
func NewMoodController() *MoodController {
	return &MoodController{
		ClimaxDensity:   8,
		MinMoodHold:     30 * time.Second,
		ProgressionStep: 8 * time.Second,
		mood:            MoodPeaceful,
		density:         newRingBuffer(100),
		dissonance:      newRingBuffer(100),
		progression: [][]int{
			{9, 0, 4},  // A minor
			{5, 9, 0},  // F major
			{0, 4, 7},  // C major
			{7, 11, 2}, // G major
		},
	}
}

// Analyze feeds one tick's population statistics in and returns the
// current mood. Transitions are evaluated in order: climax, building,
// calm, peaceful; otherwise the mood is sticky.
func (mc *MoodController) Analyze(stats PopulationStats, now time.Time) Mood {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.density.Push(stats.Density)
	mc.dissonance.Push(stats.Dissonance)

	if mc.lastTransition.IsZero() {
		mc.lastTransition = now
	}
	if now.Sub(mc.lastTransition) < mc.MinMoodHold {
		return mc.mood
	}

	next := mc.mood
	switch {
	case stats.Density > mc.ClimaxDensity && stats.Intensity > 0.7:
		next = MoodClimax
	case mc.isBuildingLocked():
		next = MoodBuilding
	case mc.isCalmingLocked():
		next = MoodCalm
	case stats.Dissonance < 0.3 && stats.Intensity < 0.3:
		next = MoodPeaceful
	}

	if next != mc.mood {
		mc.mood = next
		mc.lastTransition = now
	}
	return mc.mood
}

// Mood returns the current mood label.
func (mc *MoodController) Mood() Mood {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.mood
}

// IsBuilding reports whether the density trend is rising: the mean of
// the last 10 samples exceeds 1.2× the mean of the 10 before them.
// Histories shorter than 20 samples cannot evaluate the trend and
// report false.
func (mc *MoodController) IsBuilding() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.isBuildingLocked()
}

func (mc *MoodController) isBuildingLocked() bool {
	recent, previous, ok := mc.trendWindowsLocked()
	if !ok {
		return false
	}
	return mean(recent) > 1.2*mean(previous)
}

func (mc *MoodController) isCalmingLocked() bool {
	recent, previous, ok := mc.trendWindowsLocked()
	if !ok {
		return false
	}
	prev := mean(previous)
	if prev == 0 {
		return false
	}
	return mean(recent) < 0.8*prev
}

func (mc *MoodController) trendWindowsLocked() (recent, previous []float64, ok bool) {
	if mc.density.Len() < 20 {
		return nil, nil, false
	}
	last20 := mc.density.LastN(20)
	return last20[10:], last20[:10], true
}

// Advance walks the chord progression if the step interval has
// elapsed. Call once per tick with wall-clock-scaled simulation time.
func (mc *MoodController) Advance(now time.Time) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.lastProgression.IsZero() {
		mc.lastProgression = now
		return
	}
	if now.Sub(mc.lastProgression) >= mc.ProgressionStep {
		mc.progressionIdx = (mc.progressionIdx + 1) % len(mc.progression)
		mc.lastProgression = now
	}
}

// AllowedPitches returns the pitch classes of the progression's
// current chord. This grounds harmonic constraint for the scheduler;
// it is always the slow layer's chord, never the fast layer's scale.
func (mc *MoodController) AllowedPitches() []int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	chord := mc.progression[mc.progressionIdx]
	out := make([]int, len(chord))
	copy(out, chord)
	return out
}
