package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/paulmach/orb"

	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/internal/infrastructure/raster"
	"github.com/edu008/HeatQuest/pkg/errors"
	"github.com/edu008/HeatQuest/pkg/geo"
)

// SceneStore reads and writes scene bands.  Object layout inside the scene
// bucket:
//
//	<scene_id>/<band>.f32   raw little-endian float32 samples
//	<scene_id>/<band>.json  BandMeta sidecar
type SceneStore struct {
	client *Client
	logger logging.Logger
}

func NewSceneStore(client *Client, log logging.Logger) *SceneStore {
	return &SceneStore{client: client, logger: log.Named("scene_store")}
}

func bandKey(sceneID, band string) string {
	return fmt.Sprintf("%s/%s.f32", sceneID, band)
}

func metaKey(sceneID, band string) string {
	return fmt.Sprintf("%s/%s.json", sceneID, band)
}

// PutBand uploads a band and its metadata sidecar.
func (s *SceneStore) PutBand(ctx context.Context, meta raster.BandMeta, r *raster.Raster) error {
	raw := raster.EncodeSamples(r)
	_, err := s.client.api.PutObject(ctx, s.client.bucket, bandKey(meta.SceneID, meta.Band),
		bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRasterUnavailable, "failed to upload band samples")
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode band metadata")
	}
	_, err = s.client.api.PutObject(ctx, s.client.bucket, metaKey(meta.SceneID, meta.Band),
		bytes.NewReader(metaJSON), int64(len(metaJSON)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRasterUnavailable, "failed to upload band metadata")
	}

	s.logger.Info("Stored scene band",
		logging.String("scene_id", meta.SceneID),
		logging.String("band", meta.Band),
		logging.Int("width", meta.Width),
		logging.Int("height", meta.Height))
	return nil
}

// GetMeta fetches only the metadata sidecar of a band.
func (s *SceneStore) GetMeta(ctx context.Context, sceneID, band string) (raster.BandMeta, error) {
	var meta raster.BandMeta
	data, err := s.getObject(ctx, metaKey(sceneID, band))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, errors.Wrap(err, errors.ErrCodeRasterDecodeError, "corrupt band metadata")
	}
	return meta, nil
}

// GetBand fetches a full band and rebuilds the raster.
func (s *SceneStore) GetBand(ctx context.Context, sceneID, band string) (*raster.Raster, error) {
	meta, err := s.GetMeta(ctx, sceneID, band)
	if err != nil {
		return nil, err
	}
	raw, err := s.getObject(ctx, bandKey(sceneID, band))
	if err != nil {
		return nil, err
	}
	return raster.DecodeSamples(meta, raw)
}

// FindBand returns a stored band of the given kind whose extent fully covers
// bound.  A non-empty sceneID pins the lookup to that scene and skips
// resolution entirely; ErrCodeRasterNoCoverage when the pinned scene does not
// cover the bound.  With an empty sceneID the store resolves the first
// covering scene, ErrCodeSceneNotFound when none qualifies.
func (s *SceneStore) FindBand(ctx context.Context, sceneID, band string, bound orb.Bound) (*raster.Raster, raster.BandMeta, error) {
	if sceneID != "" {
		meta, err := s.GetMeta(ctx, sceneID, band)
		if err != nil {
			return nil, raster.BandMeta{}, err
		}
		if !metaCovers(meta, bound) {
			return nil, raster.BandMeta{}, errors.Newf(errors.ErrCodeRasterNoCoverage,
				"scene %s does not cover the requested area", sceneID)
		}
		r, err := s.GetBand(ctx, sceneID, band)
		if err != nil {
			return nil, raster.BandMeta{}, err
		}
		return r, meta, nil
	}

	sceneIDs, err := s.ListScenes(ctx, band)
	if err != nil {
		return nil, raster.BandMeta{}, err
	}

	for _, sceneID := range sceneIDs {
		meta, err := s.GetMeta(ctx, sceneID, band)
		if err != nil {
			s.logger.Warn("Skipping scene with unreadable metadata",
				logging.String("scene_id", sceneID), logging.Err(err))
			continue
		}
		if !metaCovers(meta, bound) {
			continue
		}
		r, err := s.GetBand(ctx, sceneID, band)
		if err != nil {
			return nil, raster.BandMeta{}, err
		}
		return r, meta, nil
	}
	return nil, raster.BandMeta{}, errors.Newf(errors.ErrCodeSceneNotFound,
		"no %s scene covers the requested area", band)
}

// ListScenes returns the scene ids that carry the given band.
func (s *SceneStore) ListScenes(ctx context.Context, band string) ([]string, error) {
	suffix := "/" + band + ".json"
	var ids []string
	for obj := range s.client.api.ListObjects(ctx, s.client.bucket,
		minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeRasterUnavailable, "failed to list scenes")
		}
		if strings.HasSuffix(obj.Key, suffix) {
			ids = append(ids, strings.TrimSuffix(obj.Key, suffix))
		}
	}
	return ids, nil
}

// DeleteBand removes a band and its sidecar.
func (s *SceneStore) DeleteBand(ctx context.Context, sceneID, band string) error {
	for _, key := range []string{bandKey(sceneID, band), metaKey(sceneID, band)} {
		if err := s.client.api.RemoveObject(ctx, s.client.bucket, key,
			minio.RemoveObjectOptions{}); err != nil {
			return errors.Wrap(err, errors.ErrCodeRasterUnavailable, "failed to delete band object")
		}
	}
	return nil
}

func (s *SceneStore) getObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.api.GetObject(ctx, s.client.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errors.Newf(errors.ErrCodeSceneNotFound, "scene object %s not found", key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeRasterUnavailable, "failed to fetch scene object")
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errors.Newf(errors.ErrCodeSceneNotFound, "scene object %s not found", key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeRasterUnavailable, "failed to read scene object")
	}
	return data, nil
}

// metaCovers computes the band extent from its geotransform and reports
// whether it contains the WGS84 bound.  The extent is in the band's native
// CRS, so the query bound is projected before the comparison.
func metaCovers(meta raster.BandMeta, bound orb.Bound) bool {
	if meta.EPSG == raster.EPSGWebMercator {
		bound = geo.BoundToWebMercator(bound)
	}
	xMin := meta.Transform[0]
	yMax := meta.Transform[3]
	xMax := xMin + float64(meta.Width)*meta.Transform[1]
	yMin := yMax + float64(meta.Height)*meta.Transform[5]
	if xMin > xMax {
		xMin, xMax = xMax, xMin
	}
	if yMin > yMax {
		yMin, yMax = yMax, yMin
	}
	return bound.Min[0] >= xMin && bound.Max[0] <= xMax &&
		bound.Min[1] >= yMin && bound.Max[1] <= yMax
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey"
}
