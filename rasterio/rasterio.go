// Package rasterio moves rasters between GDAL datasets and raster.Raster.
package rasterio

import (
	"errors"
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"

	"ndvi-tools/raster"
)

// NoData is written to every output band for masked pixels.
const NoData = -9999.0

var ErrBandNotFound = errors.New("band not found")

func GridOf(ds *godal.Dataset) (raster.Grid, error) {
	gt, err := ds.GeoTransform()
	if err != nil {
		return raster.Grid{}, err
	}
	st := ds.Structure()
	return raster.Grid{
		Width:        st.SizeX,
		Height:       st.SizeY,
		GeoTransform: gt,
		Projection:   ds.Projection(),
	}, nil
}

// BandIndex finds a band by its description. A single-band dataset without
// descriptions is accepted as a match for any name.
func BandIndex(ds *godal.Dataset, name string) (int, error) {
	bands := ds.Bands()
	for i, band := range bands {
		if band.Description() == name {
			return i, nil
		}
	}
	if len(bands) == 1 && bands[0].Description() == "" {
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBandNotFound, name)
}

// ReadBand reads band idx of ds into a raster named name. The band's nodata
// value, when set, marks masked pixels.
func ReadBand(ds *godal.Dataset, idx int, name string) (*raster.Raster, error) {
	grid, err := GridOf(ds)
	if err != nil {
		return nil, err
	}
	bands := ds.Bands()
	if idx < 0 || idx >= len(bands) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrBandNotFound, idx, len(bands))
	}
	band := bands[idx]

	buf := make([]float64, grid.Size())
	if err := band.Read(0, 0, buf, grid.Width, grid.Height); err != nil {
		return nil, err
	}
	noData, ok := band.NoData()
	if !ok {
		logrus.Debugf("NoData not set on band %d", idx+1)
	}
	return raster.FromValues(name, grid, buf, noData, ok)
}

// ReadNamedBand is BandIndex followed by ReadBand.
func ReadNamedBand(ds *godal.Dataset, band string) (*raster.Raster, error) {
	idx, err := BandIndex(ds, band)
	if err != nil {
		return nil, err
	}
	return ReadBand(ds, idx, band)
}

// Create writes r into a new single-band Float32 dataset. The caller owns
// the returned dataset.
func Create(r *raster.Raster, driver godal.DriverName, path string, opts ...godal.DatasetCreateOption) (*godal.Dataset, error) {
	ds, err := godal.Create(driver, path, 1, godal.Float32, r.Grid.Width, r.Grid.Height, opts...)
	if err != nil {
		return nil, err
	}
	if err := fill(ds, r); err != nil {
		return nil, errors.Join(err, ds.Close())
	}
	return ds, nil
}

// Memory is Create on GDAL's in-memory driver.
func Memory(r *raster.Raster) (*godal.Dataset, error) {
	return Create(r, godal.Memory, "")
}

func fill(ds *godal.Dataset, r *raster.Raster) error {
	if err := ds.SetGeoTransform(r.Grid.GeoTransform); err != nil {
		return err
	}
	if r.Grid.Projection != "" {
		if err := ds.SetProjection(r.Grid.Projection); err != nil {
			return err
		}
	}
	band := ds.Bands()[0]
	if err := band.SetNoData(NoData); err != nil {
		return err
	}
	if r.Name != "" {
		if err := band.SetDescription(r.Name); err != nil {
			return err
		}
	}
	return band.Write(0, 0, r.Filled(NoData), r.Grid.Width, r.Grid.Height)
}
