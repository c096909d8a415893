package raster

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edu008/HeatQuest/pkg/geo"
)

// testRaster builds a 4x4 band anchored at (13.0E, 52.0N) with 0.001 degree
// pixels, values equal to row*10+col.
func testRaster(t *testing.T, noData float64) *Raster {
	t.Helper()
	data := make([]float64, 16)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			data[row*4+col] = float64(row*10 + col)
		}
	}
	r, err := New(data, 4, 4, [6]float64{13.0, 0.001, 0, 52.0, 0, -0.001}, noData, 4326)
	require.NoError(t, err)
	return r
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := New(make([]float64, 3), 2, 2, [6]float64{0, 1, 0, 0, 0, -1}, 0, 4326)
	assert.Error(t, err, "sample count mismatch")

	_, err = New(nil, 0, 4, [6]float64{0, 1, 0, 0, 0, -1}, 0, 4326)
	assert.Error(t, err, "zero width")

	_, err = New(make([]float64, 4), 2, 2, [6]float64{0, 0, 0, 0, 0, -1}, 0, 4326)
	assert.Error(t, err, "zero pixel size")
}

func TestValue(t *testing.T) {
	t.Parallel()
	r := testRaster(t, -9999)

	v, ok := r.Value(2, 3)
	assert.True(t, ok)
	assert.Equal(t, 23.0, v)

	_, ok = r.Value(-1, 0)
	assert.False(t, ok)
	_, ok = r.Value(0, 4)
	assert.False(t, ok)
}

func TestValueNoData(t *testing.T) {
	t.Parallel()
	r := testRaster(t, 0)

	// (0,0) holds 0, which is the thermal nodata sentinel.
	_, ok := r.Value(0, 0)
	assert.False(t, ok)

	r.Data[5] = math.NaN()
	_, ok = r.Value(1, 1)
	assert.False(t, ok)
}

func TestWorldPixelRoundTrip(t *testing.T) {
	t.Parallel()
	r := testRaster(t, -9999)

	lon, lat := r.PixelToWorld(2, 3)
	row, col := r.WorldToPixel(lon, lat)
	assert.InDelta(t, 2.0, row, 1e-9)
	assert.InDelta(t, 3.0, col, 1e-9)
}

func TestBound(t *testing.T) {
	t.Parallel()
	r := testRaster(t, -9999)

	b := r.Bound()
	assert.InDelta(t, 13.0, b.Min[0], 1e-9)
	assert.InDelta(t, 13.004, b.Max[0], 1e-9)
	assert.InDelta(t, 51.996, b.Min[1], 1e-9)
	assert.InDelta(t, 52.0, b.Max[1], 1e-9)

	assert.True(t, r.Covers(orb.Bound{
		Min: orb.Point{13.001, 51.997},
		Max: orb.Point{13.002, 51.999},
	}))
	assert.False(t, r.Covers(orb.Bound{
		Min: orb.Point{12.999, 51.997},
		Max: orb.Point{13.002, 51.999},
	}))
}

func TestPixelWindowIncludesTouchedPixels(t *testing.T) {
	t.Parallel()
	r := testRaster(t, -9999)

	// A bound covering a fraction of four neighboring pixels still selects
	// all four.
	b := orb.Bound{
		Min: orb.Point{13.0005, 51.9985},
		Max: orb.Point{13.0015, 51.9995},
	}
	rowMin, rowMax, colMin, colMax, ok := r.PixelWindow(b)
	require.True(t, ok)
	assert.Equal(t, 0, rowMin)
	assert.Equal(t, 2, rowMax)
	assert.Equal(t, 0, colMin)
	assert.Equal(t, 2, colMax)
}

func TestPixelWindowOutsideRaster(t *testing.T) {
	t.Parallel()
	r := testRaster(t, -9999)

	_, _, _, _, ok := r.PixelWindow(orb.Bound{
		Min: orb.Point{14.0, 51.0},
		Max: orb.Point{14.001, 51.001},
	})
	assert.False(t, ok)
}

func TestMeanInBound(t *testing.T) {
	t.Parallel()
	r := testRaster(t, -9999)

	// Window covering pixels (0,0),(0,1),(1,0),(1,1) -> values 0,1,10,11.
	b := orb.Bound{
		Min: orb.Point{13.0005, 51.9985},
		Max: orb.Point{13.0015, 51.9995},
	}
	mean, n := r.MeanInBound(b)
	assert.Equal(t, 4, n)
	assert.InDelta(t, 5.5, mean, 1e-9)
}

func TestMeanInBoundSkipsNoData(t *testing.T) {
	t.Parallel()
	r := testRaster(t, -9999)
	r.Data[0] = -9999 // pixel (0,0)

	b := orb.Bound{
		Min: orb.Point{13.0005, 51.9985},
		Max: orb.Point{13.0015, 51.9995},
	}
	mean, n := r.MeanInBound(b)
	assert.Equal(t, 3, n)
	assert.InDelta(t, (1.0+10.0+11.0)/3.0, mean, 1e-9)
}

func TestMeanInBoundAllNoData(t *testing.T) {
	t.Parallel()
	r := testRaster(t, -9999)
	for i := range r.Data {
		r.Data[i] = -9999
	}

	_, n := r.MeanInBound(orb.Bound{
		Min: orb.Point{13.0005, 51.9985},
		Max: orb.Point{13.0015, 51.9995},
	})
	assert.Equal(t, 0, n)
}

// mercatorRaster projects the testRaster extent into EPSG:3857 meters,
// keeping the same 4x4 values.
func mercatorRaster(t *testing.T) *Raster {
	t.Helper()
	data := make([]float64, 16)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			data[row*4+col] = float64(row*10 + col)
		}
	}
	ul := geo.ToWebMercator(orb.Point{13.0, 52.0})
	lr := geo.ToWebMercator(orb.Point{13.004, 51.996})
	transform := [6]float64{ul[0], (lr[0] - ul[0]) / 4, 0, ul[1], 0, (lr[1] - ul[1]) / 4}
	r, err := New(data, 4, 4, transform, -9999, EPSGWebMercator)
	require.NoError(t, err)
	return r
}

func TestMercatorCoversProjectsQueryBound(t *testing.T) {
	t.Parallel()
	r := mercatorRaster(t)

	// Query bounds stay in WGS84 degrees; naive degree-space containment
	// against a meter extent would reject everything.
	assert.True(t, r.Covers(orb.Bound{
		Min: orb.Point{13.001, 51.997},
		Max: orb.Point{13.002, 51.999},
	}))
	assert.False(t, r.Covers(orb.Bound{
		Min: orb.Point{12.999, 51.997},
		Max: orb.Point{13.002, 51.999},
	}))
}

func TestMercatorMeanMatchesDegreeRaster(t *testing.T) {
	t.Parallel()
	merc := mercatorRaster(t)
	deg := testRaster(t, -9999)

	// The same WGS84 bound must select the same pixels in both CRSs.
	b := orb.Bound{
		Min: orb.Point{13.0005, 51.9985},
		Max: orb.Point{13.0015, 51.9995},
	}
	mMean, mN := merc.MeanInBound(b)
	dMean, dN := deg.MeanInBound(b)
	assert.Equal(t, dN, mN)
	assert.InDelta(t, dMean, mMean, 1e-9)
}

func TestMercatorPixelWindowOutsideExtent(t *testing.T) {
	t.Parallel()
	r := mercatorRaster(t)

	_, _, _, _, ok := r.PixelWindow(orb.Bound{
		Min: orb.Point{14.0, 51.0},
		Max: orb.Point{14.001, 51.001},
	})
	assert.False(t, ok)
}

func TestDNToCelsius(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, -124.15, DNToCelsius(0), 1e-9)
	assert.InDelta(t, 29.6609, DNToCelsius(45000), 1e-4)
}
