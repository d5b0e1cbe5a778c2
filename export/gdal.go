package export

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"

	"ndvi-tools/rasterio"
)

// MetresPerDegree converts a metric scale to degrees for geographic output
// CRSs, measured at the equator.
const MetresPerDegree = 111319.49079327357

// GDALSink writes each job as a GeoTIFF at <Root>/<Folder>/<Description>.tif.
// Root may be a GDAL virtual file system prefix such as /vsigs/bucket or
// /vsis3/bucket to write straight to cloud storage.
type GDALSink struct {
	Root string
}

var _ Sink = GDALSink{}

func (s GDALSink) Path(job Job) string {
	return path.Join(s.Root, job.Folder, job.Description+".tif")
}

func (s GDALSink) Export(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.Raster == nil {
		return fmt.Errorf("export %s: no raster", job)
	}

	srs, err := godal.NewSpatialRef(job.CRS)
	if err != nil {
		return fmt.Errorf("export %s: crs %s: %w", job, job.CRS, err)
	}
	defer srs.Close()

	res := job.Scale
	if srs.Geographic() {
		res = job.Scale / MetresPerDegree
	}
	bounds, err := targetBounds(job.Region, srs)
	if err != nil {
		return fmt.Errorf("export %s: %w", job, err)
	}
	if err := checkPixelBudget(bounds, res, job.MaxPixels); err != nil {
		return fmt.Errorf("export %s: %w", job, err)
	}

	dst := s.Path(job)
	if !strings.HasPrefix(dst, "/vsi") {
		if err := os.MkdirAll(path.Dir(dst), 0o755); err != nil {
			return err
		}
	}

	src, err := rasterio.Memory(job.Raster)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	switches := []string{
		"-of", "GTiff",
		"-t_srs", job.CRS,
		"-tr", formatFloat(res), formatFloat(res),
		"-te", formatFloat(bounds[0]), formatFloat(bounds[1]), formatFloat(bounds[2]), formatFloat(bounds[3]),
		"-r", "near",
		"-dstnodata", formatFloat(rasterio.NoData),
		"-co", "TILED=YES",
		"-co", "COMPRESS=DEFLATE",
	}
	logrus.Debugf("Warping %s with %v", dst, switches)
	out, err := src.Warp(dst, switches)
	if err != nil {
		return fmt.Errorf("export %s: %w", job, err)
	}
	if job.Raster.Name != "" {
		if err := out.Bands()[0].SetDescription(job.Raster.Name); err != nil {
			logrus.Warnf("Could not name band of %s: %v", dst, err)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("export %s: %w", job, err)
	}
	logrus.Infof("Exported %s", dst)
	return nil
}

// targetBounds reprojects the region bounds into srs.
func targetBounds(region Extent, srs *godal.SpatialRef) ([4]float64, error) {
	b := region.Bounds
	if region.SRS == "" {
		return b, nil
	}
	from, err := godal.NewSpatialRefFromWKT(region.SRS)
	if err != nil {
		return [4]float64{}, err
	}
	defer from.Close()

	wkt := fmt.Sprintf("POLYGON((%[1]s %[2]s,%[3]s %[2]s,%[3]s %[4]s,%[1]s %[4]s,%[1]s %[2]s))",
		formatFloat(b[0]), formatFloat(b[1]), formatFloat(b[2]), formatFloat(b[3]))
	geom, err := godal.NewGeometryFromWKT(wkt, from)
	if err != nil {
		return [4]float64{}, err
	}
	defer geom.Close()
	if err := geom.Reproject(srs); err != nil {
		return [4]float64{}, err
	}
	return geom.Bounds()
}

// PixelCount is the number of output pixels covering bounds at res.
func PixelCount(bounds [4]float64, res float64) float64 {
	w := math.Ceil((bounds[2] - bounds[0]) / res)
	h := math.Ceil((bounds[3] - bounds[1]) / res)
	return w * h
}

func checkPixelBudget(bounds [4]float64, res, maxPixels float64) error {
	if res <= 0 {
		return errors.New("scale must be positive")
	}
	if n := PixelCount(bounds, res); maxPixels > 0 && n > maxPixels {
		return fmt.Errorf("%w: %.0f pixels, limit %.0f", ErrTooManyPixels, n, maxPixels)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
