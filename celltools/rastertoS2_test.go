package celltools

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/golang/geo/s2"

	"ndvi-tools/raster"
)

func setUpRaster(t testing.TB) *raster.Raster {
	t.Helper()
	grid := raster.Grid{Width: 2, Height: 2, GeoTransform: [6]float64{0.0, 1.0, 0.0, 0.0, 0.0, -1.0}}
	r := raster.New("NDVI_2020", grid)
	copy(r.Data, []float64{1, 2, 3, 4})
	copy(r.Valid, []bool{true, true, false, true})
	return r
}

func TestPointToS2(t *testing.T) {
	latLng := s2.LatLngFromDegrees(1.0, 2.0)
	s2Cell := s2.CellIDFromLatLng(latLng).Parent(11)

	desiredCell := s2.CellID(1154732675135700992)
	if s2Cell != desiredCell {
		t.Errorf("S2 cells are not equal, got %v, want %v", s2Cell, desiredCell)
	}
}

func TestRasterToS2SingleCell(t *testing.T) {
	r := setUpRaster(t)

	got, err := RasterToS2(context.Background(), r, ConfigOpts{NumWorkers: 2, S2Lvl: 0, AggFunc: Mean})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d cells, want 1", len(got))
	}
	if got[0].Cell != s2.CellIDFromFace(0) {
		t.Errorf("got cell %v, want face 0", got[0].Cell)
	}
	if math.Abs(got[0].Data-7.0/3) > 1e-12 || got[0].Count != 3 {
		t.Errorf("got value %v from %d pixels", got[0].Data, got[0].Count)
	}
	if got[0].Coverage <= 0 || got[0].Coverage >= 1 {
		t.Errorf("got coverage %v", got[0].Coverage)
	}
}

func TestRasterToS2Level11(t *testing.T) {
	r := setUpRaster(t)

	got, err := RasterToS2(context.Background(), r, ConfigOpts{NumWorkers: 3, S2Lvl: 11, AggFunc: Max, BlockRows: 1})
	if err != nil {
		t.Fatal(err)
	}

	want := map[s2.CellID]float64{}
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			i := row*2 + col
			if !r.Valid[i] {
				continue
			}
			lng, lat := r.Grid.PixelCenter(col, row)
			want[s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)).Parent(11)] = r.Data[i]
		}
	}
	if len(got) != len(want) {
		t.Fatalf("got %d cells, want %d", len(got), len(want))
	}
	ids := CellIDs(got)
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Errorf("cells not ordered: %v", ids)
		}
	}
	for _, c := range got {
		if c.Data != want[c.Cell] || c.Count != 1 {
			t.Errorf("cell %v: got %v from %d pixels, want %v", c.Cell, c.Data, c.Count, want[c.Cell])
		}
		if c.Coverage != 1 {
			t.Errorf("cell %v: got coverage %v, a pixel covers a level 11 cell", c.Cell, c.Coverage)
		}
		if c.GeomString != cellToWKT(s2.CellFromCellID(c.Cell)) {
			t.Errorf("cell %v: got geometry %s", c.Cell, c.GeomString)
		}
	}
}

func TestRasterToS2Deterministic(t *testing.T) {
	r := setUpRaster(t)
	opts := ConfigOpts{NumWorkers: 4, S2Lvl: 11, BlockRows: 1}
	first, err := RasterToS2(context.Background(), r, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := RasterToS2(context.Background(), r, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("got %v then %v", first, second)
	}
}

func TestRasterToS2Projected(t *testing.T) {
	godal.RegisterAll()
	srs, err := godal.NewSpatialRefFromEPSG(32632)
	if err != nil {
		t.Fatal(err)
	}
	defer srs.Close()
	wkt, err := srs.WKT()
	if err != nil {
		t.Fatal(err)
	}
	r := setUpRaster(t)
	r.Grid.Projection = wkt

	if _, err := RasterToS2(context.Background(), r, ConfigOpts{S2Lvl: 11}); !errors.Is(err, ErrNotGeographic) {
		t.Errorf("got %v, want ErrNotGeographic", err)
	}
}

func TestRasterToS2BadLevel(t *testing.T) {
	if _, err := RasterToS2(context.Background(), setUpRaster(t), ConfigOpts{S2Lvl: 31}); err == nil {
		t.Error("expected an error for level 31")
	}
}

func TestAggFuncs(t *testing.T) {
	values := []float64{1, 3, 2, 4}
	if got := Median(values...); got != 2.5 {
		t.Errorf("median: got %v", got)
	}
	if !reflect.DeepEqual(values, []float64{1, 3, 2, 4}) {
		t.Errorf("median reordered its input: %v", values)
	}
	if got := Median(5, 1, 3); got != 3 {
		t.Errorf("odd median: got %v", got)
	}
	if got := Mean(values...); got != 2.5 {
		t.Errorf("mean: got %v", got)
	}
	if got := Sum(values...); got != 10 {
		t.Errorf("sum: got %v", got)
	}
	if got := Max(-2, -1, -3); got != -1 {
		t.Errorf("max: got %v", got)
	}
	if got := Min(values...); got != 1 {
		t.Errorf("min: got %v", got)
	}
}

func TestPixelArea(t *testing.T) {
	side := math.Pi / 180 * EarthRadius
	if got := pixelArea(0, 1, -1); math.Abs(got-side*side)/(side*side) > 1e-3 {
		t.Errorf("got %v, want about %v", got, side*side)
	}
	if got := pixelArea(60, 1, -1); math.Abs(got-side*side/2)/(side*side) > 1e-3 {
		t.Errorf("got %v at 60N, want about half the equator", got)
	}
}
