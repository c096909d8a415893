// Package grid implements the deterministic spatial grid used to tile a
// requested area into uniform analysis cells.  Grids are transient values:
// they are regenerated on demand from a bounding box and cell size and are
// never persisted directly.
package grid

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/edu008/HeatQuest/pkg/errors"
	"github.com/edu008/HeatQuest/pkg/geo"
)

// Cell is a single grid tile.  ID encodes the row/column position so that two
// generations over the same bbox and cell size produce identical IDs.
type Cell struct {
	ID     string    `json:"id"`
	Row    int       `json:"row"`
	Col    int       `json:"col"`
	Bound  orb.Bound `json:"-"`
	Center orb.Point `json:"-"`
}

// Grid is the result of tiling a bounding box.
type Grid struct {
	Bound     orb.Bound
	CellSizeM float64
	CellSizeD float64
	Rows      int
	Cols      int
	Cells     []Cell
}

// maxCells caps a single generation to keep one request from tiling a
// continent.  A 500 m radius scan with 30 m cells needs ~1'200 cells.
const maxCells = 250000

// Generate tiles bound into row-major square cells of cellSizeM meters,
// anchored at the south-west corner.  Cell edges step in fixed degree
// increments (cellSizeM / 111000); the final row and column may stop short of
// the north/east edge when the bbox is not an exact multiple of the cell size.
// Cells are never clipped or merged.
func Generate(bound orb.Bound, cellSizeM float64) (*Grid, error) {
	if cellSizeM <= 0 {
		return nil, errors.New(errors.ErrCodeGridInvalidCell,
			fmt.Sprintf("cell size must be positive, got %v", cellSizeM))
	}
	if bound.Min[1] >= bound.Max[1] || bound.Min[0] >= bound.Max[0] {
		return nil, errors.New(errors.ErrCodeGridInvalidBBox,
			"bounding box must have positive extent")
	}

	step := geo.MetersToDegrees(cellSizeM)

	latMin, lonMin := bound.Min[1], bound.Min[0]
	latMax, lonMax := bound.Max[1], bound.Max[0]

	rows := countSteps(latMin, latMax, step)
	cols := countSteps(lonMin, lonMax, step)
	if rows*cols > maxCells {
		return nil, errors.New(errors.ErrCodeGridInvalidBBox,
			fmt.Sprintf("grid of %d cells exceeds the %d cell limit", rows*cols, maxCells))
	}

	cells := make([]Cell, 0, rows*cols)
	for i := 0; i < rows; i++ {
		lat := latMin + float64(i)*step
		for j := 0; j < cols; j++ {
			lon := lonMin + float64(j)*step
			b := orb.Bound{
				Min: orb.Point{lon, lat},
				Max: orb.Point{lon + step, lat + step},
			}
			cells = append(cells, Cell{
				ID:     fmt.Sprintf("cell_%d_%d", i, j),
				Row:    i,
				Col:    j,
				Bound:  b,
				Center: orb.Point{lon + step/2, lat + step/2},
			})
		}
	}

	return &Grid{
		Bound:     bound,
		CellSizeM: cellSizeM,
		CellSizeD: step,
		Rows:      rows,
		Cols:      cols,
		Cells:     cells,
	}, nil
}

// countSteps returns how many full steps fit into [min, max), matching
// half-open interval stepping: a cell is emitted only while its south/west
// edge is strictly below max.
func countSteps(min, max, step float64) int {
	n := 0
	for v := min; v < max-1e-12; v += step {
		n++
	}
	return n
}
