// Package composite builds masked seasonal median NDVI composites from a
// MODIS NDVI archive.
package composite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ndvi-tools/raster"
)

// ScaleFactor converts MOD13Q1 integer NDVI to index units.
const ScaleFactor = 0.0001

var ErrNoData = errors.New("no scenes for period")

// BandName is the name a composite for year carries.
func BandName(year int) string {
	return fmt.Sprintf("NDVI_%d", year)
}

// Rescale maps raw archive units to index units, keeping the acquisition
// time.
func Rescale(r *raster.Raster) *raster.Raster {
	return raster.Scale(r, ScaleFactor)
}

// Composer produces the composite for a year.
type Composer interface {
	Build(ctx context.Context, year int) (*raster.Raster, error)
}

// Builder composites archive scenes on the archive's native grid. Region
// and LandCover must be on that grid.
type Builder struct {
	Archive   *Archive
	Region    raster.Mask
	LandCover raster.Mask
	// Window selects the scenes of a year. Nil means SeptemberWindow.
	Window  func(year int) Window
	Workers int
}

var _ Composer = (*Builder)(nil)

// Build filters the archive to the year's window, rescales each scene,
// takes the per-pixel median, clips to the region and applies the land
// cover mask. The result is named NDVI_<year>.
func (b *Builder) Build(ctx context.Context, year int) (*raster.Raster, error) {
	window := SeptemberWindow(year)
	if b.Window != nil {
		window = b.Window(year)
	}
	log := logrus.WithFields(logrus.Fields{"year": year, "window": window.String()})

	scenes := b.Archive.Filter(window)
	if len(scenes) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoData, window, b.Archive.Dir)
	}
	acquisitions := Acquisitions(scenes)
	log.Infof("Compositing %d acquisitions from %d scenes", len(acquisitions), len(scenes))

	stack, err := b.readScaled(ctx, acquisitions)
	if err != nil {
		return nil, err
	}

	median, err := raster.Median(BandName(year), stack)
	if err != nil {
		return nil, err
	}
	clipped, err := raster.UpdateMask(median, b.Region)
	if err != nil {
		return nil, fmt.Errorf("clip %s: %w", median.Name, err)
	}
	masked, err := raster.UpdateMask(clipped, b.LandCover)
	if err != nil {
		return nil, fmt.Errorf("land cover mask %s: %w", median.Name, err)
	}
	log.Debugf("Composite keeps %d of %d pixels", masked.ValidCount(), masked.Grid.Size())
	return masked, nil
}

// readScaled reads and rescales acquisitions concurrently. The stack keeps
// their order regardless of completion order.
func (b *Builder) readScaled(ctx context.Context, acquisitions [][]Scene) ([]*raster.Raster, error) {
	stack := make([]*raster.Raster, len(acquisitions))
	g, ctx := errgroup.WithContext(ctx)
	workers := b.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, tiles := range acquisitions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			logrus.Debugf("Reading %d scenes of %s", len(tiles), tiles[0].Time.Format(time.DateOnly))
			r, err := b.Archive.Read(tiles...)
			if err != nil {
				return err
			}
			stack[i] = Rescale(r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stack, nil
}
