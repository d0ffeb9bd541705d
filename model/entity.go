package model

// Category classifies a tracked body. It is fixed for the session and
// drives the perceptual register (octave) and base loudness of every
// event the entity produces.
type Category int

const (
	CategoryStation Category = iota
	CategoryCommunication
	CategoryNavigation
	CategoryWeather
	CategoryScience
	CategoryDebris
)

func (c Category) String() string {
	names := [...]string{"STATION", "COMMUNICATION", "NAVIGATION", "WEATHER", "SCIENCE", "DEBRIS"}
	if int(c) < len(names) {
		return names[c]
	}
	return "UNKNOWN"
}

// CategoryFromString maps a category label to its Category value.
// Unknown labels fall back to CategoryDebris, the least prominent register.
func CategoryFromString(s string) Category {
	switch s {
	case "STATION":
		return CategoryStation
	case "COMMUNICATION":
		return CategoryCommunication
	case "NAVIGATION":
		return CategoryNavigation
	case "WEATHER":
		return CategoryWeather
	case "SCIENCE":
		return CategoryScience
	default:
		return CategoryDebris
	}
}

// BaseVolumeDB is the nominal loudness of events from this category,
// in decibels relative to full scale. Stations are foreground, debris
// is texture.
func (c Category) BaseVolumeDB() float64 {
	switch c {
	case CategoryStation:
		return -8
	case CategoryCommunication:
		return -14
	case CategoryNavigation:
		return -16
	case CategoryWeather:
		return -15
	case CategoryScience:
		return -12
	default:
		return -22
	}
}

// ElementHandle is an opaque reference to an entity's orbital element
// set. It is created and interpreted exclusively by the position
// source; the rest of the pipeline only carries it around.
type ElementHandle int

// Entity is one tracked orbiting body. Identity and category are
// immutable for the session; entities are destroyed only at full reset.
// The integer ID is an arena index assigned at load time, and Name is
// used only for display.
type Entity struct {
	ID       int
	Name     string
	Category Category
	Elements ElementHandle
}
