package core

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/signalsfoundry/orbit-sonifier/model"
)

// pitchClassNames indexes the 12 semitone identities.
var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// scaleTable maps scale names to ordered semitone offsets from the
// root. Offsets are strictly increasing within 0..11.
var scaleTable = map[string][]int{
	"major":      {0, 2, 4, 5, 7, 9, 11},
	"minor":      {0, 2, 3, 5, 7, 8, 10},
	"dorian":     {0, 2, 3, 5, 7, 9, 10},
	"lydian":     {0, 2, 4, 6, 7, 9, 11},
	"mixolydian": {0, 2, 4, 5, 7, 9, 10},
	"pentatonic": {0, 2, 4, 7, 9},
	"wholetone":  {0, 2, 4, 6, 8, 10},
}

// consonanceTable scores each interval class 0..11. Unison and fifth
// are fully consonant; the minor second and tritone anchor the bottom.
var consonanceTable = [12]float64{
	1.0,  // unison
	0.1,  // minor 2nd
	0.4,  // major 2nd
	0.7,  // minor 3rd
	0.8,  // major 3rd
	0.9,  // perfect 4th
	0.2,  // tritone
	1.0,  // perfect 5th
	0.6,  // minor 6th
	0.7,  // major 6th
	0.4,  // minor 7th
	0.15, // major 7th
}

// chordSignatures maps sorted non-root interval sets (mod 12, joined
// by commas) to chord names.
var chordSignatures = map[string]string{
	"4,7":    "Major",
	"3,7":    "Minor",
	"3,6":    "Diminished",
	"4,8":    "Augmented",
	"4,7,11": "Major 7",
	"3,7,10": "Minor 7",
	"4,7,10": "Dominant 7",
	"2,7":    "Sus2",
	"5,7":    "Sus4",
}

// categoryOctave enforces the perceptual register hierarchy: the
// octave depends only on the entity's category, never on the melodic
// content.
func categoryOctave(c model.Category) int {
	switch c {
	case model.CategoryStation:
		return 3
	case model.CategoryCommunication:
		return 5
	case model.CategoryScience:
		return 6
	case model.CategoryDebris:
		return 7
	default:
		return 4
	}
}

// HarmonicTable is the process-wide mutable scale/key state. There is
// exactly one active scale/key pair at any time; pitch computations
// never read it directly but go through a per-tick Snapshot, so
// changing it never retroactively alters already-admitted events.
type HarmonicTable struct {
	mu        sync.RWMutex
	scaleName string
	key       int // root pitch class 0..11
}

// NewHarmonicTable starts in C major.
func NewHarmonicTable() *HarmonicTable {
	return &HarmonicTable{scaleName: "major", key: 0}
}

// SetScale switches the active scale. Unknown names are silently
// ignored, preserving the previous value (last-known-good policy: a
// bad external input must not corrupt shared harmonic state).
func (t *HarmonicTable) SetScale(name string) {
	if _, ok := scaleTable[name]; !ok {
		return
	}
	t.mu.Lock()
	t.scaleName = name
	t.mu.Unlock()
}

// SetMode is an alias for SetScale; the modal scales (dorian, lydian,
// mixolydian) live in the same table.
func (t *HarmonicTable) SetMode(name string) { t.SetScale(name) }

// SetKey switches the root pitch class by name ("C".."B"). Unknown
// names are silently ignored.
func (t *HarmonicTable) SetKey(name string) {
	pc, ok := PitchClassFromName(name)
	if !ok {
		return
	}
	t.mu.Lock()
	t.key = pc
	t.mu.Unlock()
}

// Snapshot captures the current scale/key as an immutable value to be
// threaded through all pitch computations of one tick.
func (t *HarmonicTable) Snapshot() HarmonicSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return HarmonicSnapshot{
		ScaleName: t.scaleName,
		Intervals: scaleTable[t.scaleName],
		Key:       t.key,
	}
}

// HarmonicSnapshot is an immutable scale/key configuration.
type HarmonicSnapshot struct {
	ScaleName string
	Intervals []int // shared, never mutated
	Key       int
}

// PhaseToPitch deterministically converts an orbital phase angle and
// category into a pitch name. Phase is normalized to [0,360); the
// scale is addressed by floor(phase/360·L) mod L; the octave comes
// from the fixed category table.
func (s HarmonicSnapshot) PhaseToPitch(phaseDeg float64, category model.Category) string {
	phase := math.Mod(phaseDeg, 360)
	if phase < 0 {
		phase += 360
	}
	l := len(s.Intervals)
	if l == 0 {
		return pitchName(s.Key, categoryOctave(category))
	}
	idx := int(math.Floor(phase/360*float64(l))) % l
	semitone := (s.Key + s.Intervals[idx]) % 12
	return pitchName(semitone, categoryOctave(category))
}

// PitchClassFromName maps a pitch class name ("C".."B") to 0..11.
func PitchClassFromName(name string) (int, bool) {
	for i, n := range pitchClassNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func pitchName(pc, octave int) string {
	return pitchClassNames[((pc%12)+12)%12] + strconv.Itoa(octave)
}

// ParsePitch splits a pitch name like "D#4" into pitch class and
// octave.
func ParsePitch(pitch string) (pc, octave int, ok bool) {
	i := len(pitch)
	for i > 0 && (pitch[i-1] == '-' || (pitch[i-1] >= '0' && pitch[i-1] <= '9')) {
		i--
	}
	if i == 0 || i == len(pitch) {
		return 0, 0, false
	}
	pc, ok = PitchClassFromName(pitch[:i])
	if !ok {
		return 0, 0, false
	}
	octave, err := strconv.Atoi(pitch[i:])
	if err != nil {
		return 0, 0, false
	}
	return pc, octave, true
}

// PitchToMIDI converts a pitch name to its MIDI note number
// (C4 = 60, A4 = 69).
func PitchToMIDI(pitch string) (int, bool) {
	pc, octave, ok := ParsePitch(pitch)
	if !ok {
		return 0, false
	}
	return (octave+1)*12 + pc, true
}

// MIDIToPitch is the inverse of PitchToMIDI.
func MIDIToPitch(midi int) string {
	return pitchName(midi%12, midi/12-1)
}

// PitchToFrequency returns the equal-temperament frequency in Hz,
// relative to A4 = 440 Hz at MIDI 69. Unknown names yield 0.
func PitchToFrequency(pitch string) float64 {
	midi, ok := PitchToMIDI(pitch)
	if !ok {
		return 0
	}
	return 440 * math.Pow(2, float64(midi-69)/12)
}

// Dissonance scores the currently sounding pitch set: the mean over
// all pairs of 1−consonance[interval mod 12]. Zero or one pitches
// score 0; the result is invariant under reordering.
func Dissonance(pitches []string) float64 {
	midis := make([]int, 0, len(pitches))
	for _, p := range pitches {
		if m, ok := PitchToMIDI(p); ok {
			midis = append(midis, m)
		}
	}
	if len(midis) < 2 {
		return 0
	}
	total := 0.0
	pairs := 0
	for i := 0; i < len(midis); i++ {
		for j := i + 1; j < len(midis); j++ {
			interval := midis[i] - midis[j]
			if interval < 0 {
				interval = -interval
			}
			total += 1 - consonanceTable[interval%12]
			pairs++
		}
	}
	return total / float64(pairs)
}

// IdentifyChord names the chord formed by the pitch set by matching
// the sorted intervals of all non-root notes (relative to the lowest,
// mod 12) against a fixed signature table. Fewer than three pitches
// yield "Unknown"; unmatched combinations are "Cluster".
func IdentifyChord(pitches []string) string {
	midis := make([]int, 0, len(pitches))
	for _, p := range pitches {
		if m, ok := PitchToMIDI(p); ok {
			midis = append(midis, m)
		}
	}
	if len(midis) < 3 {
		return "Unknown"
	}
	sort.Ints(midis)

	root := midis[0]
	seen := make(map[int]bool)
	intervals := make([]int, 0, len(midis)-1)
	for _, m := range midis[1:] {
		iv := (m - root) % 12
		if iv == 0 || seen[iv] {
			continue
		}
		seen[iv] = true
		intervals = append(intervals, iv)
	}
	sort.Ints(intervals)

	parts := make([]string, len(intervals))
	for i, iv := range intervals {
		parts[i] = strconv.Itoa(iv)
	}
	if name, ok := chordSignatures[strings.Join(parts, ",")]; ok {
		return name
	}
	return "Cluster"
}

// ConstrainToChord snaps a free pitch onto the allowed pitch-class set
// without discarding registral intent: each allowed class is tried one
// octave below, at, and one octave above the input's octave, and the
// candidate with minimal absolute MIDI distance wins. The result's
// pitch class is always a member of allowed; an empty allowed set
// returns the input unchanged.
func ConstrainToChord(pitch string, allowed []int) string {
	midi, ok := PitchToMIDI(pitch)
	if !ok || len(allowed) == 0 {
		return pitch
	}
	octave := midi/12 - 1

	best := -1
	bestDist := math.MaxInt32
	for _, pc := range allowed {
		pc = ((pc % 12) + 12) % 12
		for shift := -1; shift <= 1; shift++ {
			cand := (octave+shift+1)*12 + pc
			dist := cand - midi
			if dist < 0 {
				dist = -dist
			}
			if dist < bestDist {
				bestDist = dist
				best = cand
			}
		}
	}
	return MIDIToPitch(best)
}
