package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"ndvi-tools/composite"
	"ndvi-tools/config"
	"ndvi-tools/display"
	"ndvi-tools/export"
	"ndvi-tools/landcover"
	"ndvi-tools/region"
)

// Options replaces the sinks Setup would build from the settings.
type Options struct {
	Sink     export.Sink
	Renderer display.Renderer
	Recorder export.StatusRecorder
}

// Env is a Pipeline together with the resources it holds open.
type Env struct {
	*Pipeline
	Builder *composite.Builder

	region *region.Region
	ledger *export.Ledger
}

// Setup resolves the region, indexes the archive, derives the region and
// land cover masks on the archive grid and starts the export queue.
func Setup(ctx context.Context, s config.Settings, opts Options) (*Env, error) {
	env := &Env{}
	if err := env.setup(ctx, s, opts); err != nil {
		return nil, errors.Join(err, env.Close())
	}
	return env, nil
}

func (env *Env) setup(ctx context.Context, s config.Settings, opts Options) error {
	var err error
	env.region, err = region.Select(s.Boundaries.Path, s.Boundaries.Field, s.Boundaries.Name)
	if err != nil {
		return err
	}
	extent, err := extentOf(env.region)
	if err != nil {
		return err
	}

	archive, err := composite.OpenArchive(s.Archive.Dir, s.Archive.Band)
	if err != nil {
		return err
	}
	grid, err := archive.Grid()
	if err != nil {
		return err
	}
	regionMask, err := env.region.Rasterize(grid)
	if err != nil {
		return err
	}
	landMask, err := landcover.BuildMask(s.LandCover.Path, s.LandCover.Band, grid)
	if err != nil {
		return err
	}
	env.Builder = &composite.Builder{
		Archive:   archive,
		Region:    regionMask,
		LandCover: landMask,
		Window:    s.Window.For,
		Workers:   s.Workers,
	}

	sink := opts.Sink
	if sink == nil {
		sink = export.GDALSink{Root: s.ExportRoot}
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = display.PNGRenderer{Dir: s.LayersDir, CRS: s.Display.CRS, Width: s.Display.Width}
	}
	recorder := opts.Recorder
	if recorder == nil && s.Ledger != "" {
		env.ledger, err = export.OpenLedger(ctx, s.Ledger)
		if err != nil {
			return err
		}
		recorder = env.ledger
	}
	var queueOpts []export.QueueOption
	if recorder != nil {
		queueOpts = append(queueOpts, export.WithRecorder(recorder))
	}

	env.Pipeline = &Pipeline{
		Composer:    composite.NewCache(env.Builder),
		Renderer:    renderer,
		Queue:       export.NewQueue(ctx, sink, s.Workers, queueOpts...),
		Region:      extent,
		Params:      s.Export,
		NDVIStyle:   s.Styles.NDVI,
		ChangeStyle: s.Styles.Change,
		Workers:     s.Workers,
	}
	logrus.Infof("Pipeline ready for %s on a %dx%d grid", s.Boundaries.Name, grid.Width, grid.Height)
	return nil
}

func extentOf(r *region.Region) (export.Extent, error) {
	wkt, err := r.WKT()
	if err != nil {
		return export.Extent{}, fmt.Errorf("region %s: %w", r.Name, err)
	}
	bounds, err := r.Bounds()
	if err != nil {
		return export.Extent{}, fmt.Errorf("region %s: %w", r.Name, err)
	}
	return export.Extent{WKT: wkt, SRS: r.SpatialRefWKT(), Bounds: bounds}, nil
}

// Close drains the export queue and releases the region and ledger.
func (e *Env) Close() error {
	if e.Pipeline != nil && e.Queue != nil {
		e.Queue.Close()
	}
	var err error
	if e.ledger != nil {
		err = e.ledger.Close()
	}
	if e.region != nil {
		e.region.Close()
	}
	return err
}
