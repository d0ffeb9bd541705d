package core

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/signalsfoundry/orbit-sonifier/kb"
	"github.com/signalsfoundry/orbit-sonifier/model"
)

// CatalogSummary is a small summary of what was loaded from JSON.
// It's mainly useful for logging from main().
type CatalogSummary struct {
	Loaded  int
	Skipped []string // names whose element sets failed to register
}

// internal JSON shapes – kept unexported so we're free to evolve them.
type catalogJSON struct {
	Entities []catalogEntityJSON `json:"entities"`
}

type catalogEntityJSON struct {
	Name     string `json:"name"`
	Category string `json:"category"` // STATION | COMMUNICATION | NAVIGATION | WEATHER | SCIENCE | DEBRIS
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
}

// LoadCatalog reads a JSON entity catalog from r, registers every
// element set with the position source, and adds the entities to the
// catalog. It fails only on JSON / structural errors; individual
// element sets that cannot be registered are skipped and reported in
// the summary (graceful degradation: fewer entities, not a crash).
func LoadCatalog(cat *kb.Catalog, src *SGP4Source, r io.Reader) (*CatalogSummary, error) {
	if cat == nil || src == nil {
		return nil, fmt.Errorf("LoadCatalog: catalog and source must be non-nil")
	}

	var payload catalogJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadCatalog: decode failed: %w", err)
	}

	summary := &CatalogSummary{}
	for _, je := range payload.Entities {
		if je.Name == "" {
			return nil, fmt.Errorf("LoadCatalog: entity with empty name")
		}
		handle, err := src.AddElements(je.Line1, je.Line2)
		if err != nil {
			summary.Skipped = append(summary.Skipped, je.Name)
			continue
		}
		if _, err := cat.Add(je.Name, model.CategoryFromString(je.Category), handle); err != nil {
			return nil, fmt.Errorf("LoadCatalog: add %q: %w", je.Name, err)
		}
		summary.Loaded++
	}
	return summary, nil
}

// Preset is a named configuration bundle consumed at startup or on
// user switch. Values are validated at the boundary they apply to:
// unknown scale/key names leave the harmonic table untouched.
type Preset struct {
	Name       string  `json:"name"`
	Scale      string  `json:"scale"`
	Key        string  `json:"key"`
	MasterDB   float64 `json:"master_db"`
	DelayMix   float64 `json:"delay_mix"`
	FollowMood bool    `json:"follow_mood"`
}

type presetsJSON struct {
	Presets []Preset `json:"presets"`
}

// LoadPresets reads the preset table from r, keyed by name.
func LoadPresets(r io.Reader) (map[string]Preset, error) {
	var payload presetsJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadPresets: decode failed: %w", err)
	}
	out := make(map[string]Preset, len(payload.Presets))
	for _, p := range payload.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("LoadPresets: preset with empty name")
		}
		out[p.Name] = p
	}
	return out, nil
}

// Apply pushes the preset's harmonic settings onto the table. Unknown
// scale or key names are silently ignored by the table itself
// (last-known-good policy).
func (p Preset) Apply(table *HarmonicTable) {
	table.SetScale(p.Scale)
	table.SetKey(p.Key)
}
