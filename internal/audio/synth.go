// Package audio renders admitted events as procedurally synthesized
// notes. Each entity category has its own FM timbre, so a station
// fly-over sounds different from a piece of debris even at the same
// pitch.
package audio

import (
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/oto/v2"

	"github.com/signalsfoundry/orbit-sonifier/core"
	"github.com/signalsfoundry/orbit-sonifier/model"
)

const (
	SampleRate   = 44100
	ChannelCount = 2
	BitDepth     = 0 // 32-bit float (oto.FormatFloat32LE)
)

// SynthPlayer is an oto-backed implementation of the engine's Player.
// Play returns immediately; each note renders its sample buffer and
// plays it on a dedicated goroutine.
type SynthPlayer struct {
	ctx   *oto.Context
	ready chan struct{}

	masterGain float64
	delayMix   float64

	active atomic.Int32
}

var _ core.Player = (*SynthPlayer)(nil)

// NewSynthPlayer opens the audio device. masterDB is the overall
// attenuation in decibels (0 for unity); delayMix in [0,1] blends a
// short echo tail into every note.
func NewSynthPlayer(masterDB, delayMix float64) (*SynthPlayer, error) {
	ctx, ready, err := oto.NewContext(SampleRate, ChannelCount, BitDepth)
	if err != nil {
		return nil, fmt.Errorf("open audio context: %w", err)
	}
	return &SynthPlayer{
		ctx:        ctx,
		ready:      ready,
		masterGain: math.Pow(10, masterDB/20),
		delayMix:   clampF(delayMix, 0, 1),
	}, nil
}

// Play schedules one note. The offset delay happens on the note's own
// goroutine so the caller never blocks.
func (p *SynthPlayer) Play(category model.Category, pitch string, durationSec, gain float64, offsetMs int) {
	if p == nil || gain <= 0 || durationSec <= 0 {
		return
	}
	select {
	case <-p.ready:
	default:
		// Device not ready yet; drop rather than queue.
		return
	}

	freq := core.PitchToFrequency(pitch)
	if freq <= 0 {
		return
	}

	p.active.Add(1)
	go func() {
		defer p.active.Add(-1)
		if offsetMs > 0 {
			time.Sleep(time.Duration(offsetMs) * time.Millisecond)
		}
		samples := renderNote(category, freq, durationSec, p.delayMix)
		if len(samples) == 0 {
			return
		}
		player := p.ctx.NewPlayer(&sampleReader{data: samples})
		player.SetVolume(clampF(gain*p.masterGain, 0, 1))
		player.Play()
		for player.IsPlaying() {
			time.Sleep(10 * time.Millisecond)
		}
		player.Close()
	}()
}

// ActiveVoices reports notes currently rendering or sounding.
func (p *SynthPlayer) ActiveVoices() int {
	if p == nil {
		return 0
	}
	return int(p.active.Load())
}

type sampleReader struct {
	data []byte
	pos  int
}

func (r *sampleReader) Read(b []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(b, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// timbre parameters per category: modulator ratio, modulation depth,
// second-harmonic level, and envelope shape.
type timbre struct {
	modRatio float64
	modIdx   float64
	harm2    float64
	attack   float64
	decay    float64
	sustain  float64
	release  float64
	breath   float64 // noise layer level
}

func timbreFor(category model.Category) timbre {
	switch category {
	case model.CategoryStation:
		// Deep bell, long tail.
		return timbre{modRatio: 1.4, modIdx: 2.2, harm2: 0.12, attack: 0.02, decay: 0.3, sustain: 0.4, release: 0.4}
	case model.CategoryCommunication:
		// Bright e-piano pluck.
		return timbre{modRatio: 2.0, modIdx: 3.2, harm2: 0.09, attack: 0.005, decay: 0.45, sustain: 0.15, release: 0.25}
	case model.CategoryNavigation:
		// Clean chime.
		return timbre{modRatio: 3.5, modIdx: 4.0, harm2: 0.06, attack: 0.003, decay: 0.55, sustain: 0.08, release: 0.3}
	case model.CategoryWeather:
		// Airy pad with a noise layer.
		return timbre{modRatio: 1.5, modIdx: 1.2, harm2: 0.1, attack: 0.12, decay: 0.2, sustain: 0.55, release: 0.3, breath: 0.05}
	case model.CategoryScience:
		// Glassy high ping.
		return timbre{modRatio: 2.756, modIdx: 5.0, harm2: 0.08, attack: 0.004, decay: 0.5, sustain: 0.05, release: 0.35}
	case model.CategoryDebris:
		// Thin metallic click.
		return timbre{modRatio: 5.1, modIdx: 2.8, harm2: 0.04, attack: 0.002, decay: 0.6, sustain: 0.0, release: 0.1, breath: 0.08}
	default:
		return timbre{modRatio: 2.0, modIdx: 2.5, harm2: 0.08, attack: 0.01, decay: 0.4, sustain: 0.2, release: 0.3}
	}
}

// renderNote produces the full stereo float32 buffer for one note,
// including the optional echo tail.
func renderNote(category model.Category, freq, durationSec, delayMix float64) []byte {
	tb := timbreFor(category)

	tail := 0.0
	if delayMix > 0 {
		tail = 0.5
	}
	n := int((durationSec + tail) * SampleRate)
	if n <= 0 {
		return nil
	}
	mix := make([]float64, n)
	noteN := int(durationSec * SampleRate)
	seed := uint64(0x5D0F1E12) ^ math.Float64bits(freq)

	for i := 0; i < noteN && i < n; i++ {
		t := float64(i) / SampleRate
		prog := float64(i) / float64(noteN)
		env := adsr(prog, tb.attack, tb.decay, tb.sustain, tb.release)
		s := fm(t, freq, tb.modRatio, tb.modIdx*env) * env * 0.42
		s += math.Sin(2*math.Pi*freq*2*t) * env * tb.harm2
		if tb.breath > 0 {
			s += lcg(&seed) * env * tb.breath
		}
		mix[i] = s
	}

	// Single-tap echo at 180ms, three repeats with decaying feedback.
	if delayMix > 0 {
		delaySamples := int(0.18 * SampleRate)
		fb := 0.45
		for tap, level := 1, delayMix; tap <= 3; tap, level = tap+1, level*fb {
			off := tap * delaySamples
			for i := 0; i+off < n; i++ {
				mix[i+off] += mix[i] * level * 0.5
			}
		}
	}

	buf := make([]byte, n*8)
	for i, s := range mix {
		putStereoF32(buf, i, softSat(s))
	}
	return buf
}

// putStereoF32 writes a [-1,1] sample as float32 LE to both stereo channels at frame i.
func putStereoF32(buf []byte, i int, sample float64) {
	v := math.Float32bits(float32(sample))
	buf[i*8] = byte(v)
	buf[i*8+1] = byte(v >> 8)
	buf[i*8+2] = byte(v >> 16)
	buf[i*8+3] = byte(v >> 24)
	buf[i*8+4] = byte(v)
	buf[i*8+5] = byte(v >> 8)
	buf[i*8+6] = byte(v >> 16)
	buf[i*8+7] = byte(v >> 24)
}

// softSat applies gentle tanh-like saturation — no harsh clipping.
func softSat(x float64) float64 {
	if x > 1.0 {
		return 1.0 - 0.5/(x)
	}
	if x < -1.0 {
		return -1.0 + 0.5/(-x)
	}
	return x - x*x*x/3.0
}

// adsr returns an envelope at normalized progress [0,1].
// attack/decay/release are fractions of the total duration.
func adsr(progress, attack, decay, sustain, release float64) float64 {
	switch {
	case progress < attack:
		return progress / attack
	case progress < attack+decay:
		return 1.0 - (progress-attack)/decay*(1.0-sustain)
	case progress < 1.0-release:
		return sustain
	default:
		return sustain * (1.0 - (progress-(1.0-release))/release)
	}
}

// fm returns an FM-synthesized sample.
func fm(t, carrier, modRatio, modIdx float64) float64 {
	mod := math.Sin(2 * math.Pi * carrier * modRatio * t)
	return math.Sin(2*math.Pi*carrier*t + modIdx*mod)
}

// lcg advances an LCG seed and returns a noise sample in [-1,1].
func lcg(seed *uint64) float64 {
	*seed = *seed*6364136223846793005 + 1442695040888963407
	return float64(int64(*seed>>33)-int64(1<<30)) / float64(1<<30)
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
