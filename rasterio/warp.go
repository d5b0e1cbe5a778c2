package rasterio

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"ndvi-tools/raster"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WarpSwitches are gdalwarp arguments that resample onto exactly grid into
// an in-memory dataset.
func WarpSwitches(grid raster.Grid, resampling string) []string {
	b := grid.Bounds()
	switches := []string{
		"-of", "MEM",
		"-r", resampling,
		"-te", formatFloat(b[0]), formatFloat(b[1]), formatFloat(b[2]), formatFloat(b[3]),
		"-ts", strconv.Itoa(grid.Width), strconv.Itoa(grid.Height),
	}
	if grid.Projection != "" {
		switches = append(switches, "-t_srs", grid.Projection)
	}
	return switches
}

// Reproject warps r into srs (any GDAL user input such as "EPSG:4326")
// with nearest-neighbour resampling, letting GDAL choose the output grid.
// Masked pixels stay masked.
func Reproject(r *raster.Raster, srs string) (*raster.Raster, error) {
	return ReprojectWidth(r, srs, 0)
}

// ReprojectWidth is Reproject onto a grid width pixels wide, the height
// following from the aspect of the warped extent. A width of 0 keeps
// GDAL's resolution.
func ReprojectWidth(r *raster.Raster, srs string, width int) (*raster.Raster, error) {
	src, err := Memory(r)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logrus.Error(err)
		}
	}()
	switches := []string{
		"-of", "MEM",
		"-r", "near",
		"-t_srs", srs,
		"-dstnodata", formatFloat(NoData),
	}
	if width > 0 {
		switches = append(switches, "-ts", strconv.Itoa(width), "0")
	}
	out, err := src.Warp("", switches)
	if err != nil {
		return nil, fmt.Errorf("reproject %s to %s: %w", r.Name, srs, err)
	}
	defer func() {
		if err := out.Close(); err != nil {
			logrus.Error(err)
		}
	}()
	warped, err := ReadBand(out, 0, r.Name)
	if err != nil {
		return nil, err
	}
	warped.Time = r.Time
	return warped, nil
}
