package composite

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"

	"ndvi-tools/raster"
	"ndvi-tools/rasterio"
)

const (
	DefaultBand    = "NDVI"
	DefaultDataset = "MODIS/061/MOD13Q1"

	// TimeStartKey is the dataset metadata item holding the acquisition
	// time, RFC3339 or YYYY-MM-DD.
	TimeStartKey = "TIME_START"
)

var (
	// MOD13Q1.A2018257.h18v03.061.2021353014040.tif
	modisDateToken = regexp.MustCompile(`\.A(\d{4})(\d{3})\.`)
	isoDateToken   = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
)

// Scene is one archive entry.
type Scene struct {
	Path string
	Time time.Time
	Grid raster.Grid
}

// Archive is a time-ordered collection of vegetation-index GeoTIFFs. Scenes
// may be tiles of a larger grid; tiles sharing an acquisition time are
// mosaicked when read.
type Archive struct {
	Dir    string
	Band   string
	Scenes []Scene
}

// OpenArchive indexes every GeoTIFF in dir. Files without a recognisable
// acquisition time are skipped with a warning. All scenes must share pixel
// size and projection, see Grid.
func OpenArchive(dir, band string) (*Archive, error) {
	godal.RegisterAll()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", dir, err)
	}

	archive := &Archive{Dir: dir, Band: band}
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".tif" && ext != ".tiff") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		scene, err := indexScene(path)
		if err != nil {
			logrus.Warnf("Skipping %s: %v", path, err)
			continue
		}
		archive.Scenes = append(archive.Scenes, scene)
	}
	sort.SliceStable(archive.Scenes, func(i, j int) bool {
		return archive.Scenes[i].Time.Before(archive.Scenes[j].Time)
	})
	logrus.Infof("Indexed %d scenes in %s", len(archive.Scenes), dir)
	return archive, nil
}

func indexScene(path string) (Scene, error) {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return Scene{}, err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logrus.Error(err)
		}
	}()
	grid, err := rasterio.GridOf(ds)
	if err != nil {
		return Scene{}, err
	}
	var ts time.Time
	if value := ds.Metadata(TimeStartKey); value != "" {
		ts, err = parseTime(value)
	} else {
		ts, err = timeFromName(filepath.Base(path))
	}
	if err != nil {
		return Scene{}, err
	}
	return Scene{Path: path, Time: ts, Grid: grid}, nil
}

func parseTime(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Parse(time.DateOnly, value)
}

func timeFromName(name string) (time.Time, error) {
	if m := modisDateToken.FindStringSubmatch(name); m != nil {
		year, _ := strconv.Atoi(m[1])
		doy, _ := strconv.Atoi(m[2])
		if doy < 1 || doy > 366 {
			return time.Time{}, fmt.Errorf("day of year %d out of range", doy)
		}
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1), nil
	}
	if m := isoDateToken.FindStringSubmatch(name); m != nil {
		return time.Parse(time.DateOnly, m[1])
	}
	return time.Time{}, fmt.Errorf("no acquisition time in metadata or file name")
}

// Filter returns the scenes acquired inside w, in time order.
func (a *Archive) Filter(w Window) []Scene {
	var scenes []Scene
	for _, s := range a.Scenes {
		if w.Contains(s.Time) {
			scenes = append(scenes, s)
		}
	}
	return scenes
}

// Acquisitions groups time-ordered scenes by acquisition time, one group
// per mosaic.
func Acquisitions(scenes []Scene) [][]Scene {
	var groups [][]Scene
	for i, s := range scenes {
		if i == 0 || !s.Time.Equal(scenes[i-1].Time) {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], s)
	}
	return groups
}

// Grid is the native grid of the archive: the union of every scene grid,
// which is the grid of the single tile for an untiled archive. Scenes with
// another pixel size or projection fail with raster.ErrGridMismatch.
func (a *Archive) Grid() (raster.Grid, error) {
	if len(a.Scenes) == 0 {
		return raster.Grid{}, fmt.Errorf("%w: archive %s is empty", ErrNoData, a.Dir)
	}
	grids := make([]raster.Grid, len(a.Scenes))
	for i, s := range a.Scenes {
		grids[i] = s.Grid
	}
	grid, err := raster.Union(grids...)
	if err != nil {
		return raster.Grid{}, fmt.Errorf("archive %s: %w", a.Dir, err)
	}
	return grid, nil
}

// Read loads the archive band of one acquisition in raw archive units on
// the archive grid, tagged with the acquisition time. Several scenes are
// tiles of the same acquisition and are mosaicked with gdalwarp.
func (a *Archive) Read(scenes ...Scene) (*raster.Raster, error) {
	if len(scenes) == 0 {
		return nil, fmt.Errorf("%w: nothing to read", ErrNoData)
	}
	grid, err := a.Grid()
	if err != nil {
		return nil, err
	}
	if len(scenes) == 1 && scenes[0].Grid.Equal(grid) {
		return a.readScene(scenes[0])
	}

	datasets := make([]*godal.Dataset, 0, len(scenes))
	defer func() {
		for _, ds := range datasets {
			if err := ds.Close(); err != nil {
				logrus.Error(err)
			}
		}
	}()
	for _, s := range scenes {
		ds, err := godal.Open(s.Path, godal.RasterOnly())
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	idx, err := rasterio.BandIndex(datasets[0], a.Band)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", scenes[0].Path, err)
	}

	switches := append(rasterio.WarpSwitches(grid, "near"), "-dstnodata", strconv.FormatFloat(rasterio.NoData, 'f', -1, 64))
	mosaic, err := godal.Warp("", datasets, switches)
	if err != nil {
		return nil, fmt.Errorf("mosaic %d tiles of %s: %w", len(scenes), scenes[0].Time.Format(time.DateOnly), err)
	}
	defer func() {
		if err := mosaic.Close(); err != nil {
			logrus.Error(err)
		}
	}()
	r, err := rasterio.ReadBand(mosaic, idx, a.Band)
	if err != nil {
		return nil, err
	}
	r.Time = scenes[0].Time
	logrus.Debugf("Mosaicked %d tiles of %s", len(scenes), r.Time.Format(time.DateOnly))
	return r, nil
}

func (a *Archive) readScene(s Scene) (*raster.Raster, error) {
	ds, err := godal.Open(s.Path, godal.RasterOnly())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logrus.Error(err)
		}
	}()
	r, err := rasterio.ReadNamedBand(ds, a.Band)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	r.Time = s.Time
	return r, nil
}
