package celltools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/golang/geo/s2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ndvi-tools/raster"
)

const (
	EarthRadius = 6371000

	// DefaultBlockRows is the height of the row strips handed to workers.
	DefaultBlockRows = 256
)

var ErrNotGeographic = errors.New("raster is not in geographic coordinates")

// S2CellData is the aggregate of the valid pixels whose centre falls in
// one cell.
type S2CellData struct {
	Cell       s2.CellID
	Data       float64
	Count      int
	Coverage   float64
	GeomString string
}

func (c S2CellData) String() string {
	return fmt.Sprintf("%v;%v;%s", int64(c.Cell), c.Data, c.GeomString)
}

type AggFunc func(...float64) float64

type ConfigOpts struct {
	NumWorkers int
	S2Lvl      int
	AggFunc    AggFunc
	// BlockRows defaults to DefaultBlockRows.
	BlockRows int
}

// block is a strip of full raster rows.
type block struct {
	Y0 int
	H  int
}

type pixelValue struct {
	cell  s2.CellID
	value float64
	area  float64
}

// RasterToS2 aggregates the valid pixels of r into S2 cells of level
// opts.S2Lvl. r must be on a geographic grid. Cells come back ordered by
// cell ID.
func RasterToS2(ctx context.Context, r *raster.Raster, opts ConfigOpts) ([]S2CellData, error) {
	if err := checkGeographic(r.Grid); err != nil {
		return nil, err
	}
	if opts.S2Lvl < 0 || opts.S2Lvl > s2.MaxLevel {
		return nil, fmt.Errorf("s2 level %d out of range 0..%d", opts.S2Lvl, s2.MaxLevel)
	}
	if opts.AggFunc == nil {
		opts.AggFunc = Mean
	}
	if opts.NumWorkers < 1 {
		opts.NumWorkers = 1
	}
	if opts.BlockRows < 1 {
		opts.BlockRows = DefaultBlockRows
	}

	g, ctx := errgroup.WithContext(ctx)
	blocks := genBlocks(ctx, g, r.Grid, opts.BlockRows)
	resCh := processBlocks(ctx, g, r, blocks, opts)
	resMap := groupByCell(resCh)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cells := aggCellResults(resMap, opts.AggFunc)
	logrus.Debugf("Indexed %s into %d cells at level %d", r.Name, len(cells), opts.S2Lvl)
	return cells, nil
}

func checkGeographic(grid raster.Grid) error {
	if grid.Projection == "" {
		logrus.Warn("Raster has no projection, assuming longitude/latitude")
		return nil
	}
	srs, err := godal.NewSpatialRefFromWKT(grid.Projection)
	if err != nil {
		return err
	}
	defer srs.Close()
	if !srs.Geographic() {
		return ErrNotGeographic
	}
	return nil
}

// genBlocks produces the row strips of grid in order.
func genBlocks(ctx context.Context, g *errgroup.Group, grid raster.Grid, rows int) <-chan block {
	blocks := make(chan block)
	g.Go(func() error {
		defer close(blocks)
		for y0 := 0; y0 < grid.Height; y0 += rows {
			b := block{Y0: y0, H: min(rows, grid.Height-y0)}
			select {
			case blocks <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	return blocks
}

func processBlocks(ctx context.Context, g *errgroup.Group, r *raster.Raster, blocks <-chan block, opts ConfigOpts) <-chan []pixelValue {
	resCh := make(chan []pixelValue, opts.NumWorkers)
	var wg sync.WaitGroup
	wg.Add(opts.NumWorkers)
	for i := 0; i < opts.NumWorkers; i++ {
		g.Go(func() error {
			defer wg.Done()
			for b := range blocks {
				logrus.Debugf("Processing rows %d..%d", b.Y0, b.Y0+b.H)
				select {
				case resCh <- rasterBlockToS2(r, b, opts.S2Lvl):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(resCh)
	}()
	return resCh
}

func rasterBlockToS2(r *raster.Raster, b block, level int) []pixelValue {
	gt := r.Grid.GeoTransform
	var out []pixelValue
	for row := b.Y0; row < b.Y0+b.H; row++ {
		for col := 0; col < r.Grid.Width; col++ {
			i := row*r.Grid.Width + col
			if !r.Valid[i] {
				continue
			}
			lng, lat := r.Grid.PixelCenter(col, row)
			cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)).Parent(level)
			out = append(out, pixelValue{
				cell:  cell,
				value: r.Data[i],
				area:  pixelArea(lat, gt[1], gt[5]),
			})
		}
	}
	return out
}

type cellValues struct {
	values []float64
	area   float64
}

// groupByCell drains resCh. It returns once every worker is done.
func groupByCell(resCh <-chan []pixelValue) map[s2.CellID]*cellValues {
	outMap := make(map[s2.CellID]*cellValues)
	for pixels := range resCh {
		for _, p := range pixels {
			cv, ok := outMap[p.cell]
			if !ok {
				cv = &cellValues{}
				outMap[p.cell] = cv
			}
			cv.values = append(cv.values, p.value)
			cv.area += p.area
		}
	}
	return outMap
}

func aggCellResults(resMap map[s2.CellID]*cellValues, aggFunc AggFunc) []S2CellData {
	ids := make([]s2.CellID, 0, len(resMap))
	for id := range resMap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	aggResults := make([]S2CellData, 0, len(ids))
	for _, id := range ids {
		cv := resMap[id]
		cell := s2.CellFromCellID(id)
		aggResults = append(aggResults, S2CellData{
			Cell:       id,
			Data:       aggFunc(cv.values...),
			Count:      len(cv.values),
			Coverage:   math.Min(cv.area/cellArea(cell), 1),
			GeomString: cellToWKT(cell),
		})
	}
	return aggResults
}

// cellArea is the area of cell in square metres.
func cellArea(cell s2.Cell) float64 {
	return cell.ApproxArea() * EarthRadius * EarthRadius
}

// pixelArea is the area in square metres of a pixel of xRes by yRes
// degrees centred on latitude.
func pixelArea(latitude, xRes, yRes float64) float64 {
	pixWidth := haversinePixelWidth(latitude, math.Abs(xRes))
	pixHeight := (math.Pi / 180) * math.Abs(yRes) * EarthRadius
	return pixWidth * pixHeight
}

func haversinePixelWidth(latitude float64, resolution float64) float64 {
	latRad := latitude * math.Pi / 180
	resRad := resolution * math.Pi / 180
	a := math.Pow(math.Cos(latRad), 2) * math.Pow(math.Sin(resRad/2), 2)
	return 2 * EarthRadius * math.Asin(math.Sqrt(a))
}
