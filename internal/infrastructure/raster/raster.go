// Package raster provides the in-memory band model the scoring engine reads
// from: a single-band grid of float64 samples positioned in its declared CRS
// by a GDAL-style affine geotransform.  Query bounds are always WGS84 and are
// projected into the band's CRS before pixel arithmetic.
package raster

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/edu008/HeatQuest/pkg/errors"
	"github.com/edu008/HeatQuest/pkg/geo"
)

// Band identifiers as stored in the scene bucket.
const (
	BandTemperature = "temperature"
	BandNDVI        = "ndvi"
)

// Landsat Collection 2 Level-2 surface temperature scaling.
const (
	landsatScale  = 0.00341802
	landsatOffset = 149.0
	kelvinZeroC   = 273.15
)

// TemperatureNoData is the nodata sentinel for thermal bands.  NDVI bands
// use NDVINoData; zero is a legitimate NDVI value.
const (
	TemperatureNoData = 0.0
	NDVINoData        = -9999.0
)

// EstimatedUrbanNDVI is the flat vegetation index assumed when no NDVI band
// covers the area, typical of dense urban fabric.
const EstimatedUrbanNDVI = 0.3

// Supported coordinate reference systems.  Landsat scenes come distributed in
// Web Mercator meters; synthetic and test scenes usually stay in degrees.
const (
	EPSGWGS84       = 4326
	EPSGWebMercator = 3857
)

// Raster is one band of georeferenced samples in row-major order, row 0 at
// the top.  Transform is the GDAL six-element affine, in the units of the
// band's EPSG code (degrees for 4326, meters for 3857):
//
//	x = T[0] + col*T[1] + row*T[2]
//	y = T[3] + col*T[4] + row*T[5]
type Raster struct {
	Data      []float64
	Width     int
	Height    int
	Transform [6]float64
	NoData    float64
	EPSG      int
}

// New validates dimensions against the sample slice and returns the raster.
func New(data []float64, width, height int, transform [6]float64, noData float64, epsg int) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Newf(errors.ErrCodeRasterDecodeError,
			"invalid raster dimensions %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Newf(errors.ErrCodeRasterDecodeError,
			"raster has %d samples, want %d", len(data), width*height)
	}
	if transform[1] == 0 || transform[5] == 0 {
		return nil, errors.New(errors.ErrCodeRasterDecodeError,
			"raster transform has zero pixel size")
	}
	return &Raster{
		Data:      data,
		Width:     width,
		Height:    height,
		Transform: transform,
		NoData:    noData,
		EPSG:      epsg,
	}, nil
}

// Value returns the sample at (row, col) and whether it is valid, meaning
// in-bounds, not nodata and not NaN.
func (r *Raster) Value(row, col int) (float64, bool) {
	if row < 0 || row >= r.Height || col < 0 || col >= r.Width {
		return 0, false
	}
	v := r.Data[row*r.Width+col]
	if math.IsNaN(v) || v == r.NoData {
		return 0, false
	}
	return v, true
}

// WorldToPixel maps a point in the raster's native CRS to fractional pixel
// coordinates.  Shear terms are assumed zero, which holds for north-up
// scenes.
func (r *Raster) WorldToPixel(x, y float64) (row, col float64) {
	col = (x - r.Transform[0]) / r.Transform[1]
	row = (y - r.Transform[3]) / r.Transform[5]
	return row, col
}

// PixelToWorld maps pixel coordinates to the native-CRS position of the
// pixel's upper-left corner.
func (r *Raster) PixelToWorld(row, col float64) (x, y float64) {
	x = r.Transform[0] + col*r.Transform[1] + row*r.Transform[2]
	y = r.Transform[3] + col*r.Transform[4] + row*r.Transform[5]
	return x, y
}

// queryToNative projects a WGS84 query bound into the raster's CRS.  Degree
// rasters pass through unchanged; an unset EPSG is treated as WGS84.
func (r *Raster) queryToNative(b orb.Bound) orb.Bound {
	if r.EPSG == EPSGWebMercator {
		return geo.BoundToWebMercator(b)
	}
	return b
}

// Bound returns the georeferenced extent of the raster in its native CRS.
func (r *Raster) Bound() orb.Bound {
	x0, y0 := r.PixelToWorld(0, 0)
	x1, y1 := r.PixelToWorld(float64(r.Height), float64(r.Width))
	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

// Covers reports whether the raster extent fully contains the WGS84 bound b.
func (r *Raster) Covers(b orb.Bound) bool {
	q := r.queryToNative(b)
	e := r.Bound()
	return q.Min[0] >= e.Min[0] && q.Max[0] <= e.Max[0] &&
		q.Min[1] >= e.Min[1] && q.Max[1] <= e.Max[1]
}

// PixelWindow returns the half-open pixel range [rowMin,rowMax)x[colMin,colMax)
// touched by the WGS84 bound b.  Any pixel the bound overlaps at all is
// included, clamped to the raster.  An empty window returns ok=false.
func (r *Raster) PixelWindow(b orb.Bound) (rowMin, rowMax, colMin, colMax int, ok bool) {
	q := r.queryToNative(b)
	r0, c0 := r.WorldToPixel(q.Min[0], q.Max[1])
	r1, c1 := r.WorldToPixel(q.Max[0], q.Min[1])

	rowMin = int(math.Floor(math.Min(r0, r1)))
	rowMax = int(math.Ceil(math.Max(r0, r1)))
	colMin = int(math.Floor(math.Min(c0, c1)))
	colMax = int(math.Ceil(math.Max(c0, c1)))

	if rowMin < 0 {
		rowMin = 0
	}
	if colMin < 0 {
		colMin = 0
	}
	if rowMax > r.Height {
		rowMax = r.Height
	}
	if colMax > r.Width {
		colMax = r.Width
	}
	if rowMin >= rowMax || colMin >= colMax {
		return 0, 0, 0, 0, false
	}
	return rowMin, rowMax, colMin, colMax, true
}

// MeanInBound averages the valid samples in the pixel window touched by the
// WGS84 bound b.
// The second return is the count of valid samples; zero means the bound had
// no usable coverage and the caller must not treat the mean as a value.
func (r *Raster) MeanInBound(b orb.Bound) (float64, int) {
	rowMin, rowMax, colMin, colMax, ok := r.PixelWindow(b)
	if !ok {
		return 0, 0
	}
	var sum float64
	var n int
	for row := rowMin; row < rowMax; row++ {
		for col := colMin; col < colMax; col++ {
			if v, valid := r.Value(row, col); valid {
				sum += v
				n++
			}
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

// DNToCelsius converts a Landsat surface-temperature digital number to
// degrees Celsius.
func DNToCelsius(dn float64) float64 {
	return dn*landsatScale + landsatOffset - kelvinZeroC
}
