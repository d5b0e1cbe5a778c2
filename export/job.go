// Package export submits rasters to an export sink as asynchronous jobs.
package export

import (
	"context"
	"errors"
	"fmt"

	"ndvi-tools/raster"
)

const (
	DefaultFolder    = "MODIS_NDVI_Sep"
	DefaultScale     = 250
	DefaultCRS       = "EPSG:4326"
	DefaultMaxPixels = 1e13
)

var ErrTooManyPixels = errors.New("export exceeds pixel budget")

// Params are the export settings shared by every job of a run.
type Params struct {
	Folder string `mapstructure:"folder" yaml:"folder"`
	// Scale is the output pixel size in metres.
	Scale     float64 `mapstructure:"scale" yaml:"scale"`
	CRS       string  `mapstructure:"crs" yaml:"crs"`
	MaxPixels float64 `mapstructure:"maxPixels" yaml:"maxPixels"`
}

func DefaultParams() Params {
	return Params{
		Folder:    DefaultFolder,
		Scale:     DefaultScale,
		CRS:       DefaultCRS,
		MaxPixels: DefaultMaxPixels,
	}
}

// Extent is the export region: the boundary geometry and its bounds, both
// in the spatial reference SRS (WKT).
type Extent struct {
	WKT    string
	SRS    string
	Bounds [4]float64
}

// Job describes one export. ID is assigned on submission.
type Job struct {
	ID          string
	Description string
	Folder      string
	Region      Extent
	Scale       float64
	CRS         string
	MaxPixels   float64
	Raster      *raster.Raster
}

func NewJob(r *raster.Raster, description string, region Extent, p Params) Job {
	return Job{
		Description: description,
		Folder:      p.Folder,
		Region:      region,
		Scale:       p.Scale,
		CRS:         p.CRS,
		MaxPixels:   p.MaxPixels,
		Raster:      r,
	}
}

func (j Job) String() string {
	return fmt.Sprintf("%s/%s", j.Folder, j.Description)
}

// Sink carries out a job. Export blocks until the job is done.
type Sink interface {
	Export(ctx context.Context, job Job) error
}
