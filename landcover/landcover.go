// Package landcover derives the forest + agriculture mask from a CORINE
// land-cover raster.
package landcover

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"

	"ndvi-tools/raster"
	"ndvi-tools/rasterio"
)

// CORINE Land Cover class codes.
const (
	// Forest and semi natural areas > Forests > Broad-leaved forest
	BroadLeavedForest = 311
	// Forest and semi natural areas > Forests > Coniferous forest
	ConiferousForest = 312
	// Forest and semi natural areas > Forests > Mixed forest
	MixedForest = 313

	// Agricultural areas are every code in [AgricultureMin, AgricultureMax).
	AgricultureMin = 200
	AgricultureMax = 300
)

const (
	DefaultBand    = "landcover"
	DefaultDataset = "COPERNICUS/CORINE/V20/100m/2018"
)

func isForest(class float64) bool {
	return class == BroadLeavedForest || class == ConiferousForest || class == MixedForest
}

func isAgriculture(class float64) bool {
	return class >= AgricultureMin && class < AgricultureMax
}

func ForestMask(classes *raster.Raster) raster.Mask {
	return raster.MaskWhere(classes, isForest)
}

func AgricultureMask(classes *raster.Raster) raster.Mask {
	return raster.MaskWhere(classes, isAgriculture)
}

// CombinedMask is true where the class is a forest class or an agriculture
// class. Masked class pixels are false.
func CombinedMask(classes *raster.Raster) (raster.Mask, error) {
	return ForestMask(classes).Or(AgricultureMask(classes))
}

// Load reads the named band of the land-cover raster at path and resamples
// it with nearest neighbour onto grid, so class codes survive untouched.
func Load(path, band string, grid raster.Grid) (*raster.Raster, error) {
	godal.RegisterAll()
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("open land cover %s: %w", path, err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	idx, err := rasterio.BandIndex(ds, band)
	if err != nil {
		return nil, fmt.Errorf("land cover %s: %w", path, err)
	}

	native, err := rasterio.GridOf(ds)
	if err != nil {
		return nil, err
	}
	if native.Equal(grid) {
		return rasterio.ReadBand(ds, idx, band)
	}

	logrus.Debugf("Resampling land cover %s onto %dx%d grid", path, grid.Width, grid.Height)
	warped, err := ds.Warp("", rasterio.WarpSwitches(grid, "near"))
	if err != nil {
		return nil, fmt.Errorf("resample land cover %s: %w", path, err)
	}
	defer func() {
		if err := warped.Close(); err != nil {
			logrus.Error(err)
		}
	}()
	classes, err := rasterio.ReadBand(warped, idx, band)
	if err != nil {
		return nil, err
	}
	// The warped grid is the requested one; keep its projection text
	// identical so later grid comparisons hold.
	classes.Grid = grid
	return classes, nil
}

// BuildMask loads the land cover onto grid and derives the combined mask.
func BuildMask(path, band string, grid raster.Grid) (raster.Mask, error) {
	classes, err := Load(path, band, grid)
	if err != nil {
		return raster.Mask{}, err
	}
	mask, err := CombinedMask(classes)
	if err != nil {
		return raster.Mask{}, err
	}
	logrus.Infof("Forest + agriculture mask keeps %d of %d pixels", mask.Count(), grid.Size())
	return mask, nil
}
