// Package pipeline drives the yearly NDVI exports and the change export.
package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ndvi-tools/composite"
	"ndvi-tools/display"
	"ndvi-tools/export"
	"ndvi-tools/raster"
)

const ChangeBand = "NDVI_Change"

func LayerName(year int) string {
	return fmt.Sprintf("MODIS NDVI Sep %d (F+A)", year)
}

func Description(year int) string {
	return fmt.Sprintf("MODIS_NDVI_Sep_%d_Forest_Agri", year)
}

func ChangeLayerName(from, to int) string {
	return fmt.Sprintf("NDVI Change (%d − %d)", to, from)
}

func ChangeDescription(from, to int) string {
	return fmt.Sprintf("MODIS_NDVI_Change_%d_%d_Forest_Agri", to, from)
}

// Pipeline holds the read-only inputs shared by every composite and the
// sinks results go to.
type Pipeline struct {
	Composer    composite.Composer
	Renderer    display.Renderer
	Queue       *export.Queue
	Region      export.Extent
	Params      export.Params
	NDVIStyle   display.Style
	ChangeStyle display.Style
	Workers     int
}

// ExportYears builds the composite of every year, adds it as a layer and
// submits its export. Years are composited concurrently but layers and
// exports are issued in the order of years.
func (p *Pipeline) ExportYears(ctx context.Context, years []int) ([]*export.Task, error) {
	tasks := make([]*export.Task, len(years))
	// ready[i] closes once year i is published or has given up; a nil
	// tasks[i] then means it failed and later years must not publish.
	ready := make([]chan struct{}, len(years))
	for i := range ready {
		ready[i] = make(chan struct{})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Workers, 1))
	for i, year := range years {
		g.Go(func() error {
			defer close(ready[i])
			ndvi, err := p.Composer.Build(ctx, year)
			if err != nil {
				return fmt.Errorf("composite %d: %w", year, err)
			}
			if i > 0 {
				select {
				case <-ready[i-1]:
				case <-ctx.Done():
					return ctx.Err()
				}
				if tasks[i-1] == nil {
					return nil
				}
			}
			task, err := p.publish(ctx, ndvi, LayerName(year), p.NDVIStyle, Description(year))
			if err != nil {
				return err
			}
			tasks[i] = task
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Change returns to - from, named NDVI_Change. Pixels masked in either
// composite are masked.
func (p *Pipeline) Change(ctx context.Context, from, to int) (*raster.Raster, error) {
	older, err := p.Composer.Build(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("composite %d: %w", from, err)
	}
	newer, err := p.Composer.Build(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("composite %d: %w", to, err)
	}
	older = raster.Rename(older, composite.BandName(from))
	newer = raster.Rename(newer, composite.BandName(to))
	return raster.Subtract(ChangeBand, newer, older)
}

// ExportChange computes the change between two years, adds it as a layer
// and submits its export.
func (p *Pipeline) ExportChange(ctx context.Context, from, to int) (*export.Task, error) {
	change, err := p.Change(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return p.publish(ctx, change, ChangeLayerName(from, to), p.ChangeStyle, ChangeDescription(from, to))
}

func (p *Pipeline) publish(ctx context.Context, r *raster.Raster, layer string, style display.Style, description string) (*export.Task, error) {
	if err := p.Renderer.AddLayer(ctx, display.Layer{Name: layer, Style: style, Raster: r}); err != nil {
		return nil, fmt.Errorf("layer %q: %w", layer, err)
	}
	return p.Queue.Submit(export.NewJob(r, description, p.Region, p.Params))
}

// Run exports every year and the change, then waits for the exports.
// Composite errors stop the run; export failures are all reported.
func (p *Pipeline) Run(ctx context.Context, years []int, from, to int) error {
	if _, err := p.ExportYears(ctx, years); err != nil {
		return err
	}
	if _, err := p.ExportChange(ctx, from, to); err != nil {
		return err
	}
	logrus.Info("All exports submitted, waiting for completion")
	if err := p.Queue.Wait(ctx); err != nil {
		return fmt.Errorf("exports failed: %w", err)
	}
	return nil
}

// Failed returns the tasks that ended in failure.
func Failed(tasks []*export.Task) []*export.Task {
	var failed []*export.Task
	for _, task := range tasks {
		if status, _ := task.Status(); status == export.Failed {
			failed = append(failed, task)
		}
	}
	return failed
}
