// Package cell implements the two-tier spatial cache entities: coarse parent
// cells (~1 km) that key an entire cached scan, and fine child cells (~30 m)
// that carry the per-tile heat metrics and analysis lifecycle.
package cell

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// ─────────────────────────────────────────────────────────────────────────────
// Parent cell key
// ─────────────────────────────────────────────────────────────────────────────

// parentGridStep is the edge length of the coarse cache grid in degrees
// (~1.1 km of latitude).
const parentGridStep = 0.01

// ParentKey derives the canonical cache key for a coordinate.  Both axes are
// rounded to two decimal places, so every point inside the same 0.01-degree
// cell maps to the same key regardless of where in the cell it falls:
//
//	ParentKey(51.5342, -0.0481) == "parent_51.53_-0.05"
//
// The formatted components never carry trailing zeros ("51.5", not "51.50").
func ParentKey(lat, lon float64) string {
	return fmt.Sprintf("parent_%s_%s", formatCoord(roundTo(lat, 2)), formatCoord(roundTo(lon, 2)))
}

// ParentBound returns the aligned 0.01-degree bounding box containing the
// coordinate.  The south-west corner snaps down to the grid, so the box is a
// fixed tile of the global coarse grid rather than being centered on the
// query point.
func ParentBound(lat, lon float64) orb.Bound {
	latMin := math.Floor(lat/parentGridStep) * parentGridStep
	lonMin := math.Floor(lon/parentGridStep) * parentGridStep
	return orb.Bound{
		Min: orb.Point{lonMin, latMin},
		Max: orb.Point{lonMin + parentGridStep, latMin + parentGridStep},
	}
}

// roundTo rounds half away from zero to n decimal places.
func roundTo(v float64, n int) float64 {
	pow := math.Pow(10, float64(n))
	return math.Round(v*pow) / pow
}

// formatCoord renders a rounded coordinate without trailing zeros.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ─────────────────────────────────────────────────────────────────────────────
// Analysis lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// AnalysisState tracks a child cell through the hotspot analysis lifecycle.
// A cell that is not a hotspot never leaves StateNotHotspot.  Hotspots start
// in StatePendingAnalysis and move to StateAnalysisComplete exactly once,
// whether the analysis succeeded or failed; failed analyses are terminal and
// are not retried.
type AnalysisState string

const (
	StateNotHotspot       AnalysisState = "not_hotspot"
	StatePendingAnalysis  AnalysisState = "pending_analysis"
	StateAnalysisComplete AnalysisState = "analysis_complete"
)

// Valid reports whether s is one of the defined states.
func (s AnalysisState) Valid() bool {
	switch s {
	case StateNotHotspot, StatePendingAnalysis, StateAnalysisComplete:
		return true
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Entities
// ─────────────────────────────────────────────────────────────────────────────

// ParentCell is a coarse cache region.  Its CellKey is unique; concurrent
// scans of the same area race to insert it and the loser adopts the winner's
// row.
type ParentCell struct {
	ID        uuid.UUID `json:"id"`
	CellKey   string    `json:"cell_key"`
	LatMin    float64   `json:"lat_min"`
	LatMax    float64   `json:"lat_max"`
	LonMin    float64   `json:"lon_min"`
	LonMax    float64   `json:"lon_max"`
	CenterLat float64   `json:"center_lat"`
	CenterLon float64   `json:"center_lon"`
	// ScanCount is the total number of scans served for this parent: the
	// creating scan counts as 1 and every cache hit increments it.  It is
	// advisory: under concurrent hits increments may be lost, which is
	// acceptable.
	ScanCount  int        `json:"scan_count"`
	ChildCount int        `json:"child_count"`
	ScannedAt  time.Time  `json:"scanned_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewParentCell builds the parent row for a coordinate with its aligned bound.
func NewParentCell(lat, lon float64) *ParentCell {
	b := ParentBound(lat, lon)
	now := time.Now().UTC()
	return &ParentCell{
		ID:        uuid.New(),
		CellKey:   ParentKey(lat, lon),
		LatMin:    b.Min[1],
		LatMax:    b.Max[1],
		LonMin:    b.Min[0],
		LonMax:    b.Max[0],
		CenterLat: (b.Min[1] + b.Max[1]) / 2,
		CenterLon: (b.Min[0] + b.Max[0]) / 2,
		// The scan that creates the row is the first scan.
		ScanCount: 1,
		ScannedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Bound returns the parent's bounding box.
func (p *ParentCell) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{p.LonMin, p.LatMin},
		Max: orb.Point{p.LonMax, p.LatMax},
	}
}

// ChildCell is a fine-grained scored tile belonging to exactly one parent.
// Metric pointers are nil when the underlying raster had no valid pixels for
// the cell; a nil score is distinct from a zero score.
type ChildCell struct {
	ID           uuid.UUID     `json:"id"`
	ParentCellID uuid.UUID     `json:"parent_cell_id"`
	GridID       string        `json:"grid_id"`
	LatMin       float64       `json:"lat_min"`
	LatMax       float64       `json:"lat_max"`
	LonMin       float64       `json:"lon_min"`
	LonMax       float64       `json:"lon_max"`
	CenterLat    float64       `json:"center_lat"`
	CenterLon    float64       `json:"center_lon"`
	HeatScore    *float64      `json:"heat_score"`
	TemperatureC *float64      `json:"temperature_c"`
	NDVI         *float64      `json:"ndvi"`
	NDVISource   string        `json:"ndvi_source,omitempty"`
	SceneID      string        `json:"scene_id,omitempty"`
	IsHotspot    bool          `json:"is_hotspot"`
	State        AnalysisState `json:"analysis_state"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Bound returns the child's bounding box.
func (c *ChildCell) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{c.LonMin, c.LatMin},
		Max: orb.Point{c.LonMax, c.LatMax},
	}
}

// MarkHotspot flags the cell as a hotspot awaiting analysis.  Must be called
// before the cell is first persisted so that it is never visible in an
// inconsistent state.
func (c *ChildCell) MarkHotspot() {
	c.IsHotspot = true
	c.State = StatePendingAnalysis
}

// CompleteAnalysis transitions the cell out of the pending state.  The
// transition is one-way: completed cells are never re-queued.
func (c *ChildCell) CompleteAnalysis() {
	c.State = StateAnalysisComplete
	c.UpdatedAt = time.Now().UTC()
}
