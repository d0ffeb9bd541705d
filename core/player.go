package core

import (
	"sync/atomic"

	"github.com/signalsfoundry/orbit-sonifier/model"
)

// Player renders admitted events as sound. Play is fire-and-forget;
// the approximate voice count is advisory backpressure only — the
// scheduler enforces its own ceiling without consulting it.
type Player interface {
	Play(category model.Category, pitch string, durationSec, gain float64, offsetMs int)
	ActiveVoices() int
}

// NullPlayer discards events while still counting voices, for tests
// and headless runs.
type NullPlayer struct {
	played atomic.Int64
}

// Play records the call and drops the event.
func (p *NullPlayer) Play(model.Category, string, float64, float64, int) {
	p.played.Add(1)
}

// ActiveVoices always reports zero: nothing is audible.
func (p *NullPlayer) ActiveVoices() int { return 0 }

// Played returns how many events were handed to the player.
func (p *NullPlayer) Played() int { return int(p.played.Load()) }
