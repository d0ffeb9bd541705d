package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/orbit-sonifier/model"
)

// PositionSource produces geodetic samples for an entity's element
// handle at a simulated instant. Failure is non-throwing: ok=false
// means "no sample this tick" and the entity is simply skipped.
type PositionSource interface {
	Propagate(handle model.ElementHandle, simTime time.Time) (model.Sample, bool)
}

// SGP4Source is a PositionSource backed by SGP4 propagation. Element
// sets are registered once at load time; the returned handles are the
// only way the rest of the pipeline refers to them.
type SGP4Source struct {
	mu      sync.RWMutex
	sats    []satellite.Satellite
	periods []float64 // minutes, derived from the element set's mean motion
}

// NewSGP4Source constructs an empty source.
func NewSGP4Source() *SGP4Source {
	return &SGP4Source{}
}

// AddElements registers a two-line element set and returns its handle.
func (s *SGP4Source) AddElements(line1, line2 string) (model.ElementHandle, error) {
	period, err := periodFromLine2(line2)
	if err != nil {
		return 0, err
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)

	s.mu.Lock()
	defer s.mu.Unlock()
	handle := model.ElementHandle(len(s.sats))
	s.sats = append(s.sats, sat)
	s.periods = append(s.periods, period)
	return handle, nil
}

// Len returns the number of registered element sets.
func (s *SGP4Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sats)
}

// Propagate computes a geodetic sample for the handle at simTime.
// Non-finite propagation output (decayed or degenerate orbits) yields
// ok=false rather than an error.
func (s *SGP4Source) Propagate(handle model.ElementHandle, simTime time.Time) (model.Sample, bool) {
	s.mu.RLock()
	if int(handle) < 0 || int(handle) >= len(s.sats) {
		s.mu.RUnlock()
		return model.Sample{}, false
	}
	sat := s.sats[handle]
	period := s.periods[handle]
	s.mu.RUnlock()

	year, month, day := simTime.Date()
	hour, min, sec := simTime.Clock()

	pos, vel := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)

	alt, _, llRad := satellite.ECIToLLA(pos, gmst)
	ll := satellite.LatLongDeg(llRad)

	speed := math.Sqrt(vel.X*vel.X + vel.Y*vel.Y + vel.Z*vel.Z)

	sample := model.Sample{
		LonDeg:      ll.Longitude,
		LatDeg:      ll.Latitude,
		AltKm:       alt,
		VelocityKms: speed,
		PeriodMin:   period,
		GMSTRad:     gmst,
	}
	if !sampleFinite(sample) {
		return model.Sample{}, false
	}
	sample.Derive()
	return sample, true
}

func sampleFinite(s model.Sample) bool {
	for _, v := range []float64{s.LonDeg, s.LatDeg, s.AltKm, s.VelocityKms, s.PeriodMin} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	// A decayed satellite propagates below the surface; treat as gone.
	return s.AltKm > -100
}

// periodFromLine2 derives the orbital period in minutes from the mean
// motion field (columns 53-63) of the second element line.
func periodFromLine2(line2 string) (float64, error) {
	if len(line2) < 63 {
		return 0, fmt.Errorf("element line 2 too short: %d chars", len(line2))
	}
	raw := strings.TrimSpace(line2[52:63])
	revsPerDay, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse mean motion %q: %w", raw, err)
	}
	if revsPerDay <= 0 {
		return 0, fmt.Errorf("non-positive mean motion %v", revsPerDay)
	}
	return 1440.0 / revsPerDay, nil
}

// OrbitalPhaseDeg maps a simulated instant to a position in the
// entity's orbital cycle, in degrees [0,360). It is deterministic and
// periodic in the orbital period.
func OrbitalPhaseDeg(simTime time.Time, periodMin float64) float64 {
	if periodMin <= 0 {
		return 0
	}
	minutes := float64(simTime.UnixMilli()) / 60000.0
	phase := math.Mod(minutes/periodMin, 1)
	if phase < 0 {
		phase += 1
	}
	return phase * 360
}
