// Package building places building footprints adjacent to the road
// network, greedily reserving macro cells for archetypes chosen by
// weighted probability.
package building

import (
	"strings"

	"github.com/gridworks/citygen/internal/db"
)

// Archetype describes one building type. Immutable after configuration;
// the placer only reads it.
type Archetype struct {
	Category         string   `json:"category"`
	FootprintWidth   int      `json:"footprint_width"`
	FootprintDepth   int      `json:"footprint_depth"`
	SpawnProbability float64  `json:"spawn_probability"`
	Variants         []string `json:"variants"`
}

// ArchetypesFromRows converts catalog rows into archetypes, preserving
// the declared order.
func ArchetypesFromRows(rows []db.BuildingArchetype) []Archetype {
	out := make([]Archetype, 0, len(rows))
	for _, r := range rows {
		a := Archetype{
			Category:         r.Category,
			FootprintWidth:   int(r.FootprintWidth),
			FootprintDepth:   int(r.FootprintDepth),
			SpawnProbability: r.SpawnProbability,
		}
		if r.Variants != "" {
			a.Variants = strings.Split(r.Variants, ",")
		}
		out = append(out, a)
	}
	return out
}

// Placement is one placed building: its anchor cell, footprint extent,
// chosen variant and axis-aligned rotation.
type Placement struct {
	AnchorX  int    `json:"anchor_x"`
	AnchorZ  int    `json:"anchor_z"`
	Width    int    `json:"width"`
	Depth    int    `json:"depth"`
	Category string `json:"category"`
	Variant  string `json:"variant"`
	Rotation int    `json:"rotation"`
}
