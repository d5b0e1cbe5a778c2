// Package config holds the run settings. Every value defaults to the
// September 2018-2024 Germany forest + agriculture run.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/viper"

	"ndvi-tools/composite"
	"ndvi-tools/display"
	"ndvi-tools/export"
	"ndvi-tools/landcover"
	"ndvi-tools/region"
	"ndvi-tools/report"
)

type Boundaries struct {
	Path  string `mapstructure:"path"`
	Field string `mapstructure:"field"`
	Name  string `mapstructure:"name"`
}

type LandCover struct {
	Path string `mapstructure:"path"`
	Band string `mapstructure:"band"`
}

type Archive struct {
	Dir  string `mapstructure:"dir"`
	Band string `mapstructure:"band"`
}

// Window is the compositing period inside each year.
type Window struct {
	Month    int `mapstructure:"month"`
	FirstDay int `mapstructure:"firstDay"`
	LastDay  int `mapstructure:"lastDay"`
}

func (w Window) For(year int) composite.Window {
	return composite.MonthWindow(year, time.Month(w.Month), w.FirstDay, w.LastDay)
}

type Change struct {
	From int `mapstructure:"from"`
	To   int `mapstructure:"to"`
}

type Styles struct {
	NDVI   display.Style `mapstructure:"ndvi"`
	Change display.Style `mapstructure:"change"`
}

// Display is the map the rendered layers are drawn on.
type Display struct {
	CRS   string `mapstructure:"crs"`
	Width int    `mapstructure:"width"`
}

type Settings struct {
	Boundaries Boundaries    `mapstructure:"boundaries"`
	LandCover  LandCover     `mapstructure:"landcover"`
	Archive    Archive       `mapstructure:"archive"`
	Years      []int         `mapstructure:"years"`
	Window     Window        `mapstructure:"window"`
	Change     Change        `mapstructure:"change"`
	Export     export.Params `mapstructure:"export"`
	Styles     Styles        `mapstructure:"styles"`
	Display    Display       `mapstructure:"display"`
	// ExportRoot is a directory or GDAL VSI prefix receiving the folders.
	ExportRoot string `mapstructure:"exportRoot"`
	LayersDir  string `mapstructure:"layersDir"`
	Report     string `mapstructure:"report"`
	Ledger     string `mapstructure:"ledger"`
	Workers    int    `mapstructure:"numWorkers"`
}

var DefaultYears = []int{2018, 2019, 2020, 2021, 2022, 2023, 2024}

// SetDefaults registers the default of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("boundaries.path", "gaul_level0.gpkg")
	v.SetDefault("boundaries.field", region.DefaultNameField)
	v.SetDefault("boundaries.name", region.DefaultName)
	v.SetDefault("landcover.path", "corine_2018.tif")
	v.SetDefault("landcover.band", landcover.DefaultBand)
	v.SetDefault("archive.dir", "mod13q1")
	v.SetDefault("archive.band", composite.DefaultBand)
	v.SetDefault("years", DefaultYears)
	v.SetDefault("window.month", int(time.September))
	v.SetDefault("window.firstDay", 1)
	v.SetDefault("window.lastDay", 30)
	v.SetDefault("change.from", 2018)
	v.SetDefault("change.to", 2024)
	v.SetDefault("export.folder", export.DefaultFolder)
	v.SetDefault("export.scale", export.DefaultScale)
	v.SetDefault("export.crs", export.DefaultCRS)
	v.SetDefault("export.maxPixels", export.DefaultMaxPixels)
	v.SetDefault("styles.ndvi.min", display.NDVIStyle.Min)
	v.SetDefault("styles.ndvi.max", display.NDVIStyle.Max)
	v.SetDefault("styles.ndvi.palette", display.NDVIStyle.Palette)
	v.SetDefault("styles.change.min", display.ChangeStyle.Min)
	v.SetDefault("styles.change.max", display.ChangeStyle.Max)
	v.SetDefault("styles.change.palette", display.ChangeStyle.Palette)
	v.SetDefault("display.crs", display.DefaultCRS)
	v.SetDefault("display.width", display.DefaultWidth)
	v.SetDefault("exportRoot", "exports")
	v.SetDefault("layersDir", "layers")
	v.SetDefault("report", report.DefaultPath)
	v.SetDefault("ledger", "ndvi-jobs.db")
	v.SetDefault("numWorkers", 4)
}

// Load unmarshals and validates the settings held by v.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decode settings: %w", err)
	}
	return s, s.Validate()
}

func (s Settings) Validate() error {
	var errs []error
	if len(s.Years) == 0 {
		errs = append(errs, errors.New("years: at least one year is required"))
	}
	if s.Change.From >= s.Change.To {
		errs = append(errs, fmt.Errorf("change: from (%d) must precede to (%d)", s.Change.From, s.Change.To))
	}
	if s.Window.Month < 1 || s.Window.Month > 12 {
		errs = append(errs, fmt.Errorf("window.month %d out of range", s.Window.Month))
	}
	if s.Window.FirstDay < 1 || s.Window.LastDay < s.Window.FirstDay || s.Window.LastDay > 31 {
		errs = append(errs, fmt.Errorf("window days %d..%d invalid", s.Window.FirstDay, s.Window.LastDay))
	}
	if s.Export.Scale <= 0 {
		errs = append(errs, fmt.Errorf("export.scale must be positive, got %v", s.Export.Scale))
	}
	if s.Export.MaxPixels <= 0 {
		errs = append(errs, fmt.Errorf("export.maxPixels must be positive, got %v", s.Export.MaxPixels))
	}
	if s.Export.CRS == "" || s.Export.Folder == "" {
		errs = append(errs, errors.New("export.crs and export.folder are required"))
	}
	if s.Workers < 1 {
		errs = append(errs, fmt.Errorf("numWorkers must be at least 1, got %d", s.Workers))
	}
	if s.Display.Width < 0 {
		errs = append(errs, fmt.Errorf("display.width must not be negative, got %d", s.Display.Width))
	}
	if slices.Contains(s.Years, 0) {
		errs = append(errs, errors.New("years: 0 is not a year"))
	}
	return errors.Join(errs...)
}
