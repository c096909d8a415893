package heatmap

import (
	"github.com/paulmach/orb/geojson"

	"github.com/edu008/HeatQuest/internal/domain/cell"
)

// ExportGeoJSON renders scored children as a FeatureCollection of cell
// polygons.  Unscored cells are included with null metrics so the grid stays
// gap-free for map overlays.
func ExportGeoJSON(children []*cell.ChildCell) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range children {
		f := geojson.NewFeature(c.Bound().ToPolygon())
		f.ID = c.GridID
		f.Properties = geojson.Properties{
			"id":             c.ID.String(),
			"grid_id":        c.GridID,
			"heat_score":     c.HeatScore,
			"temperature_c":  c.TemperatureC,
			"ndvi":           c.NDVI,
			"ndvi_source":    c.NDVISource,
			"scene_id":       c.SceneID,
			"is_hotspot":     c.IsHotspot,
			"analysis_state": string(c.State),
			"center_lat":     c.CenterLat,
			"center_lon":     c.CenterLon,
		}
		fc.Append(f)
	}
	return fc
}
