package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edu008/HeatQuest/internal/application/heatmap"
	"github.com/edu008/HeatQuest/internal/domain/cell"
)

// HeatmapService is the slice of the heatmap application service the handler
// needs.
type HeatmapService interface {
	Scan(ctx context.Context, in heatmap.ScanInput) (*heatmap.ScanResult, error)
}

// HeatmapHandler serves the radius heat-score endpoint.
type HeatmapHandler struct {
	svc HeatmapService
}

func NewHeatmapHandler(svc HeatmapService) *HeatmapHandler {
	return &HeatmapHandler{svc: svc}
}

// bbox is the request bounding box in the response body.
type bbox struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// scanResponse is the json-format body of the radius endpoint.
type scanResponse struct {
	FromCache   bool              `json:"from_cache"`
	DurationMs  int64             `json:"duration_ms"`
	Parent      *cell.ParentCell  `json:"parent"`
	RequestBBox bbox              `json:"request_bbox"`
	CellCount   int               `json:"cell_count"`
	Hotspots    int               `json:"hotspots"`
	Cells       []*cell.ChildCell `json:"cells"`
}

// ScanRadius handles GET /api/v1/grid-heat-score-radius.
//
// Query parameters: lat, lon, radius (meters), scene_id (optional, pins the
// temperature scene), use_cache (default true), use_batch (default true),
// format (json | geojson, default json).
func (h *HeatmapHandler) ScanRadius(c *gin.Context) {
	lat, ok := queryFloat(c, "lat")
	if !ok {
		return
	}
	lon, ok := queryFloat(c, "lon")
	if !ok {
		return
	}
	radius, ok := queryFloat(c, "radius")
	if !ok {
		return
	}
	useCache, ok := queryBool(c, "use_cache", true)
	if !ok {
		return
	}
	useBatch, ok := queryBool(c, "use_batch", true)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "geojson" {
		respondValidation(c, "format must be json or geojson")
		return
	}

	res, err := h.svc.Scan(c.Request.Context(), heatmap.ScanInput{
		Lat:      lat,
		Lon:      lon,
		RadiusM:  radius,
		SceneID:  c.Query("scene_id"),
		UseCache: useCache,
		UseBatch: useBatch,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if format == "geojson" {
		c.JSON(http.StatusOK, heatmap.ExportGeoJSON(res.Children))
		return
	}

	hotspots := 0
	for _, ch := range res.Children {
		if ch.IsHotspot {
			hotspots++
		}
	}
	c.JSON(http.StatusOK, scanResponse{
		FromCache:  res.FromCache,
		DurationMs: res.Duration.Milliseconds(),
		Parent:     res.Parent,
		RequestBBox: bbox{
			LatMin: res.RequestBound.Min[1],
			LatMax: res.RequestBound.Max[1],
			LonMin: res.RequestBound.Min[0],
			LonMax: res.RequestBound.Max[0],
		},
		CellCount: len(res.Children),
		Hotspots:  hotspots,
		Cells:     res.Children,
	})
}
