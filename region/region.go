// Package region resolves the area of interest from an administrative
// boundary dataset and turns it into a clip mask on a raster grid.
package region

import (
	"errors"
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"

	"ndvi-tools/raster"
)

const (
	DefaultNameField = "ADM0_NAME"
	DefaultName      = "Germany"
)

var (
	ErrRegionNotFound  = errors.New("region not found")
	ErrAmbiguousRegion = errors.New("ambiguous region")
)

// Region is a named boundary geometry. It owns its geometry; call Close
// when done.
type Region struct {
	Name     string
	Geometry *godal.Geometry
	// SRS is the WKT of the boundary layer's spatial reference, empty when
	// the layer has none.
	SRS string
}

// Select returns the single feature of the vector dataset at path whose
// field equals name exactly. Every layer of the dataset is searched.
func Select(path, field, name string) (*Region, error) {
	godal.RegisterAll()
	ds, err := godal.Open(path, godal.VectorOnly())
	if err != nil {
		return nil, fmt.Errorf("open boundaries %s: %w", path, err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	var matches []*godal.Geometry
	var srs string
	for _, layer := range ds.Layers() {
		layerSRS := layerSRSWKT(layer)
		found, err := matchLayer(layer, field, name, layerSRS)
		if err != nil {
			closeAll(matches)
			return nil, err
		}
		if len(found) > 0 {
			srs = layerSRS
		}
		matches = append(matches, found...)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: no feature with %s=%q in %s", ErrRegionNotFound, field, name, path)
	case 1:
		logrus.Debugf("Resolved region %q from %s", name, path)
		if srs == "" {
			logrus.Warnf("Boundaries %s carry no spatial reference", path)
		}
		return &Region{Name: name, Geometry: matches[0], SRS: srs}, nil
	default:
		closeAll(matches)
		return nil, fmt.Errorf("%w: %d features with %s=%q in %s", ErrAmbiguousRegion, len(matches), field, name, path)
	}
}

// layerSRSWKT is the WKT of the layer's spatial reference. A layer without
// one yields an empty string.
func layerSRSWKT(layer godal.Layer) string {
	wkt, err := layer.SpatialRef().WKT()
	if err != nil {
		return ""
	}
	return wkt
}

func matchLayer(layer godal.Layer, field, name, srs string) ([]*godal.Geometry, error) {
	var matches []*godal.Geometry
	layer.ResetReading()
	for feat := layer.NextFeature(); feat != nil; feat = layer.NextFeature() {
		value, ok := feat.Fields()[field]
		if !ok || value.String() != name {
			feat.Close()
			continue
		}
		geom, err := detach(feat.Geometry(), srs)
		feat.Close()
		if err != nil {
			closeAll(matches)
			return nil, err
		}
		matches = append(matches, geom)
	}
	return matches, nil
}

// detach copies a feature geometry so it outlives the feature. srs is the
// WKT to tag the copy with, empty for none.
func detach(geom *godal.Geometry, srs string) (*godal.Geometry, error) {
	wkt, err := geom.WKT()
	if err != nil {
		return nil, err
	}
	if srs == "" {
		return godal.NewGeometryFromWKT(wkt, nil)
	}
	sr, err := godal.NewSpatialRefFromWKT(srs)
	if err != nil {
		return nil, err
	}
	defer sr.Close()
	return godal.NewGeometryFromWKT(wkt, sr)
}

func closeAll(geoms []*godal.Geometry) {
	for _, g := range geoms {
		g.Close()
	}
}

func (r *Region) Close() {
	if r.Geometry != nil {
		r.Geometry.Close()
		r.Geometry = nil
	}
}

func (r *Region) WKT() (string, error) {
	return r.Geometry.WKT()
}

// SpatialRefWKT is the WKT of the region's spatial reference, empty when
// the boundary dataset carried none.
func (r *Region) SpatialRefWKT() string {
	return r.SRS
}

// Bounds returns minX, minY, maxX, maxY in the region's own spatial
// reference.
func (r *Region) Bounds() ([4]float64, error) {
	return r.Geometry.Bounds()
}

// Rasterize burns the region into a mask on grid. Pixels whose centre
// falls inside the geometry are true.
func (r *Region) Rasterize(grid raster.Grid) (raster.Mask, error) {
	geom, err := r.projectedTo(grid.Projection)
	if err != nil {
		return raster.Mask{}, err
	}
	defer geom.Close()

	ds, err := godal.Create(godal.Memory, "", 1, godal.Byte, grid.Width, grid.Height)
	if err != nil {
		return raster.Mask{}, err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logrus.Error(err)
		}
	}()
	if err := ds.SetGeoTransform(grid.GeoTransform); err != nil {
		return raster.Mask{}, err
	}
	if grid.Projection != "" {
		if err := ds.SetProjection(grid.Projection); err != nil {
			return raster.Mask{}, err
		}
	}
	if err := ds.RasterizeGeometry(geom, godal.Values(1)); err != nil {
		return raster.Mask{}, fmt.Errorf("rasterize %s: %w", r.Name, err)
	}

	buf := make([]byte, grid.Size())
	if err := ds.Bands()[0].Read(0, 0, buf, grid.Width, grid.Height); err != nil {
		return raster.Mask{}, err
	}
	mask := raster.NewMask(grid)
	for i, v := range buf {
		mask.Values[i] = v != 0
	}
	logrus.Debugf("Region %s covers %d of %d pixels", r.Name, mask.Count(), grid.Size())
	return mask, nil
}

// projectedTo returns a copy of the geometry in the projection given as
// WKT. An empty projection, or a region without a spatial reference,
// returns an unprojected copy.
func (r *Region) projectedTo(projection string) (*godal.Geometry, error) {
	geom, err := detach(r.Geometry, r.SRS)
	if err != nil {
		return nil, err
	}
	if projection == "" || r.SRS == "" {
		return geom, nil
	}
	srs, err := godal.NewSpatialRefFromWKT(projection)
	if err != nil {
		geom.Close()
		return nil, err
	}
	defer srs.Close()
	if err := geom.Reproject(srs); err != nil {
		geom.Close()
		return nil, fmt.Errorf("reproject %s: %w", r.Name, err)
	}
	return geom, nil
}
