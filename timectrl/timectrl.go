package timectrl

import (
	"sync"
	"time"
)

// SimClock is an interface for accessing simulation time. Pipeline
// components (scheduler, mood controller) depend on this abstraction
// rather than a concrete time controller, enabling testability.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// TimeController drives simulation time and notifies registered
// listeners once per tick. Simulated time is decoupled from wall-clock
// time by a configurable acceleration factor; pausing stops advancement
// without discarding any state. It implements SimClock.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Accel     float64 // simulated seconds per wall-clock second

	currentTime time.Time
	paused      bool

	listeners []func(time.Time)
}

// NewTimeController constructs a controller. accel <= 0 defaults to 1
// (real time).
func NewTimeController(start time.Time, tick time.Duration, accel float64) *TimeController {
	if accel <= 0 {
		accel = 1
	}
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Accel:       accel,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime jumps the simulation clock to the given instant.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// Pause stops simulation time from advancing. Listeners are not
// invoked while paused; all per-entity and scheduler state survives.
func (tc *TimeController) Pause() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.paused = true
}

// Resume lets simulation time advance again.
func (tc *TimeController) Resume() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.paused = false
}

// Paused reports whether the clock is currently paused.
func (tc *TimeController) Paused() bool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.paused
}

// AddListener registers a callback invoked on every tick with the new
// simulation time. Register all listeners before calling Start.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.listeners = append(tc.listeners, fn)
}

// Start runs the controller for the specified wall-clock duration in a
// separate goroutine (0 means run until the process exits). It returns
// a channel that is closed when the controller finishes.
//
// Each wall-clock tick advances simulation time by Tick × Accel.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		elapsed := time.Duration(0)
		simStep := time.Duration(float64(tc.Tick) * tc.Accel)

		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()

		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			<-ticker.C
			elapsed += tc.Tick

			tc.mu.Lock()
			if tc.paused {
				tc.mu.Unlock()
				continue
			}
			tc.currentTime = tc.currentTime.Add(simStep)
			simTime := tc.currentTime
			tc.mu.Unlock()

			for _, fn := range tc.listeners {
				fn(simTime)
			}
		}
	}()
	return done
}
