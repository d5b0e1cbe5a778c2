// Package raster holds single-band masked rasters and the pixel algebra the
// NDVI pipeline needs: rescaling, median compositing, masking and
// differencing. Nothing here touches GDAL; readers and writers live with the
// packages that own the files.
package raster

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrGridMismatch = errors.New("raster grids do not match")
	ErrEmptyStack   = errors.New("no rasters to composite")
)

// geoTransformTolerance absorbs float noise from GDAL round trips.
const geoTransformTolerance = 1e-9

// Grid is the pixel lattice a raster lives on, in GDAL geotransform terms.
type Grid struct {
	Width        int
	Height       int
	GeoTransform [6]float64
	Projection   string
}

func (g Grid) Size() int {
	return g.Width * g.Height
}

// Equal reports whether two grids address the same pixels. An empty
// projection on either side is treated as unknown and not compared.
func (g Grid) Equal(o Grid) bool {
	if g.Width != o.Width || g.Height != o.Height {
		return false
	}
	for i := range g.GeoTransform {
		if math.Abs(g.GeoTransform[i]-o.GeoTransform[i]) > geoTransformTolerance {
			return false
		}
	}
	if g.Projection != "" && o.Projection != "" && g.Projection != o.Projection {
		return false
	}
	return true
}

// Bounds returns minX, minY, maxX, maxY for a north-up grid.
func (g Grid) Bounds() [4]float64 {
	gt := g.GeoTransform
	x0 := gt[0]
	x1 := gt[0] + float64(g.Width)*gt[1]
	y0 := gt[3]
	y1 := gt[3] + float64(g.Height)*gt[5]
	return [4]float64{math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)}
}

// PixelCenter returns the georeferenced centre of pixel (col, row).
func (g Grid) PixelCenter(col, row int) (float64, float64) {
	gt := g.GeoTransform
	x := gt[0] + (float64(col)+0.5)*gt[1] + (float64(row)+0.5)*gt[2]
	y := gt[3] + (float64(col)+0.5)*gt[4] + (float64(row)+0.5)*gt[5]
	return x, y
}

// Union is the smallest north-up grid covering every grid, e.g. the
// mosaic of adjacent tiles. The grids must share pixel size and projection
// and must not be rotated.
func Union(grids ...Grid) (Grid, error) {
	if len(grids) == 0 {
		return Grid{}, fmt.Errorf("%w: no grids", ErrGridMismatch)
	}
	first := grids[0]
	xRes, yRes := math.Abs(first.GeoTransform[1]), math.Abs(first.GeoTransform[5])
	bounds := first.Bounds()
	projection := first.Projection
	for _, g := range grids {
		gt := g.GeoTransform
		if gt[2] != 0 || gt[4] != 0 {
			return Grid{}, fmt.Errorf("%w: rotated grid", ErrGridMismatch)
		}
		if math.Abs(math.Abs(gt[1])-xRes) > geoTransformTolerance || math.Abs(math.Abs(gt[5])-yRes) > geoTransformTolerance {
			return Grid{}, fmt.Errorf("%w: pixel size %vx%v vs %vx%v", ErrGridMismatch, math.Abs(gt[1]), math.Abs(gt[5]), xRes, yRes)
		}
		if g.Projection != "" && projection != "" && g.Projection != projection {
			return Grid{}, fmt.Errorf("%w: projections differ", ErrGridMismatch)
		}
		if projection == "" {
			projection = g.Projection
		}
		b := g.Bounds()
		bounds = [4]float64{math.Min(bounds[0], b[0]), math.Min(bounds[1], b[1]), math.Max(bounds[2], b[2]), math.Max(bounds[3], b[3])}
	}
	return Grid{
		Width:        int(math.Round((bounds[2] - bounds[0]) / xRes)),
		Height:       int(math.Round((bounds[3] - bounds[1]) / yRes)),
		GeoTransform: [6]float64{bounds[0], xRes, 0, bounds[3], 0, -yRes},
		Projection:   projection,
	}, nil
}

func checkGrids(a, b Grid) error {
	if !a.Equal(b) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrGridMismatch, a.Width, a.Height, b.Width, b.Height)
	}
	return nil
}

// Raster is a single named band. Valid[i] false means pixel i is masked and
// Data[i] carries no meaning. Operations never modify their inputs.
type Raster struct {
	Name  string
	Grid  Grid
	Data  []float64
	Valid []bool
	// Time is the acquisition timestamp for archive scenes, zero for
	// derived products.
	Time time.Time
}

// New returns a raster on grid with every pixel masked.
func New(name string, grid Grid) *Raster {
	return &Raster{
		Name:  name,
		Grid:  grid,
		Data:  make([]float64, grid.Size()),
		Valid: make([]bool, grid.Size()),
	}
}

// FromValues wraps data as a raster, masking pixels equal to noData when
// hasNoData is set. NaN values are always masked.
func FromValues(name string, grid Grid, data []float64, noData float64, hasNoData bool) (*Raster, error) {
	if len(data) != grid.Size() {
		return nil, fmt.Errorf("%w: %d values for a %dx%d grid", ErrGridMismatch, len(data), grid.Width, grid.Height)
	}
	r := &Raster{
		Name:  name,
		Grid:  grid,
		Data:  data,
		Valid: make([]bool, len(data)),
	}
	for i, v := range data {
		r.Valid[i] = !math.IsNaN(v) && !(hasNoData && v == noData)
	}
	return r, nil
}

func (r *Raster) At(col, row int) (float64, bool) {
	i := row*r.Grid.Width + col
	return r.Data[i], r.Valid[i]
}

func (r *Raster) ValidCount() int {
	var n int
	for _, ok := range r.Valid {
		if ok {
			n++
		}
	}
	return n
}

func (r *Raster) Clone() *Raster {
	out := &Raster{
		Name:  r.Name,
		Grid:  r.Grid,
		Data:  make([]float64, len(r.Data)),
		Valid: make([]bool, len(r.Valid)),
		Time:  r.Time,
	}
	copy(out.Data, r.Data)
	copy(out.Valid, r.Valid)
	return out
}

// Filled returns the pixel values with masked pixels replaced by noData,
// ready to be written to a band.
func (r *Raster) Filled(noData float64) []float64 {
	out := make([]float64, len(r.Data))
	for i, v := range r.Data {
		if r.Valid[i] {
			out[i] = v
		} else {
			out[i] = noData
		}
	}
	return out
}
