package raster

import (
	"encoding/binary"
	"math"

	"github.com/edu008/HeatQuest/pkg/errors"
)

// BandMeta is the JSON sidecar stored next to each raw band object.  It
// carries everything needed to rebuild the Raster from raw samples.
type BandMeta struct {
	SceneID    string     `json:"scene_id"`
	Band       string     `json:"band"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Transform  [6]float64 `json:"transform"`
	NoData     float64    `json:"nodata"`
	EPSG       int        `json:"epsg"`
	AcquiredAt string     `json:"acquired_at,omitempty"`
}

// EncodeSamples packs a raster's samples as little-endian float32, the raw
// band format used in the scene bucket.
func EncodeSamples(r *Raster) []byte {
	buf := make([]byte, 4*len(r.Data))
	for i, v := range r.Data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return buf
}

// DecodeSamples rebuilds a Raster from a raw float32 band and its metadata.
func DecodeSamples(meta BandMeta, raw []byte) (*Raster, error) {
	if len(raw)%4 != 0 {
		return nil, errors.Newf(errors.ErrCodeRasterDecodeError,
			"raw band length %d is not a multiple of 4", len(raw))
	}
	n := len(raw) / 4
	if n != meta.Width*meta.Height {
		return nil, errors.Newf(errors.ErrCodeRasterDecodeError,
			"raw band has %d samples, metadata says %dx%d", n, meta.Width, meta.Height)
	}
	data := make([]float64, n)
	for i := 0; i < n; i++ {
		data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
	}
	return New(data, meta.Width, meta.Height, meta.Transform, meta.NoData, meta.EPSG)
}
