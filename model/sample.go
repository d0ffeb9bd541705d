package model

// Altitude band boundaries in kilometres.
const (
	LEOCeilingKm = 2000.0
	MEOCeilingKm = 20000.0
	GEOCeilingKm = 50000.0
)

// AltitudeBand is an ordered classification of orbital altitude.
type AltitudeBand int

const (
	BandLEO AltitudeBand = iota
	BandMEO
	BandGEO
	BandDeep
)

func (b AltitudeBand) String() string {
	names := [...]string{"LEO", "MEO", "GEO", "DEEP"}
	if int(b) < len(names) {
		return names[b]
	}
	return "DEEP"
}

// BandForAltitude classifies an altitude in kilometres into its band.
func BandForAltitude(altKm float64) AltitudeBand {
	switch {
	case altKm < LEOCeilingKm:
		return BandLEO
	case altKm < MEOCeilingKm:
		return BandMEO
	case altKm < GEOCeilingKm:
		return BandGEO
	default:
		return BandDeep
	}
}

// Normalization references. Altitude is scaled against the GEO radius,
// velocity against a fast-LEO bound; both clamp to [0,1].
const (
	normAltRefKm  = 35786.0
	normVelRefKms = 11.0
)

// Sample is the position source's output for one entity at one
// simulated instant. It is consumed immediately and never persisted.
type Sample struct {
	LonDeg      float64 // -180..180
	LatDeg      float64 // -90..90
	AltKm       float64
	VelocityKms float64
	PeriodMin   float64
	GMSTRad     float64 // sidereal time reference

	// Derived, clamped to [0,1] for downstream mapping.
	NormAltitude float64
	NormVelocity float64
}

// Derive fills the normalized fields from the raw ones.
func (s *Sample) Derive() {
	s.NormAltitude = clamp01(s.AltKm / normAltRefKm)
	s.NormVelocity = clamp01(s.VelocityKms / normVelRefKms)
}

// Band returns the sample's altitude band.
func (s Sample) Band() AltitudeBand {
	return BandForAltitude(s.AltKm)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
