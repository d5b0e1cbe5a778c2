package cmd

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/airbusgeo/godal"

	"ndvi-tools/celltools"
	"ndvi-tools/raster"
	"ndvi-tools/rasterio"
)

func TestChooseAggFunc(t *testing.T) {
	values := []float64{1, 2, 6}
	tests := map[string]float64{
		"mean":    3,
		"sum":     9,
		"max":     6,
		"min":     1,
		"median":  2,
		"unknown": 3,
	}
	for name, want := range tests {
		if got := chooseAggFunc(name)(values...); got != want {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
	}
}

func TestSummaryRasterNeedsOneSource(t *testing.T) {
	summaryYear, summaryChange, summaryInput = 2020, true, ""
	t.Cleanup(func() { summaryYear, summaryChange = 0, false })

	if _, err := summaryRaster(context.Background()); err == nil {
		t.Error("expected an error for --year with --change")
	}
}

func TestReadInput(t *testing.T) {
	godal.RegisterAll()
	grid := raster.Grid{Width: 2, Height: 1, GeoTransform: [6]float64{0, 1, 0, 0, 0, -1}}
	in := raster.New("NDVI_2020", grid)
	copy(in.Data, []float64{0.25, 0.5})
	in.Valid[0] = true

	path := filepath.Join(t.TempDir(), "MODIS_NDVI_Sep_2020_Forest_Agri.tif")
	ds, err := rasterio.Create(in, godal.GTiff, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := readInput(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "MODIS_NDVI_Sep_2020_Forest_Agri" {
		t.Errorf("got name %s", got.Name)
	}
	if !reflect.DeepEqual(got.Valid, []bool{true, false}) {
		t.Errorf("got valid %v", got.Valid)
	}

	cells, err := celltools.RasterToS2(context.Background(), got, celltools.ConfigOpts{S2Lvl: 0, AggFunc: chooseAggFunc("mean")})
	if err != nil {
		t.Fatal(err)
	}
	if len(cells) != 1 || cells[0].Count != 1 || cells[0].Data != 0.25 {
		t.Errorf("got %+v", cells)
	}
}
