package raster

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

func testGrid(w, h int) Grid {
	return Grid{
		Width:        w,
		Height:       h,
		GeoTransform: [6]float64{0.0, 1.0, 0.0, 0.0, 0.0, -1.0},
	}
}

func mustRaster(t testing.TB, name string, grid Grid, data []float64, valid []bool) *Raster {
	t.Helper()
	if len(data) != grid.Size() || len(valid) != grid.Size() {
		t.Fatalf("fixture %s has wrong size", name)
	}
	return &Raster{Name: name, Grid: grid, Data: data, Valid: valid}
}

func TestScale(t *testing.T) {
	ts := time.Date(2020, 9, 13, 0, 0, 0, 0, time.UTC)
	r := mustRaster(t, "NDVI", testGrid(2, 1), []float64{5000, -3000}, []bool{true, false})
	r.Time = ts

	got := Scale(r, 0.0001)
	if got.Data[0] != 0.5 {
		t.Errorf("got %v, want 0.5", got.Data[0])
	}
	if got.Valid[1] {
		t.Error("masked pixel became valid")
	}
	if !got.Time.Equal(ts) {
		t.Errorf("time not preserved: got %v, want %v", got.Time, ts)
	}
	if r.Data[0] != 5000 {
		t.Error("input was modified")
	}
}

func TestMedian(t *testing.T) {
	grid := testGrid(1, 1)
	var stack []*Raster
	for _, raw := range []float64{4000, 6000, 5000} {
		stack = append(stack, Scale(mustRaster(t, "NDVI", grid, []float64{raw}, []bool{true}), 0.0001))
	}

	got, err := Median("NDVI_2020", stack)
	if err != nil {
		t.Fatal(err)
	}
	if got.Data[0] != 0.5 || !got.Valid[0] {
		t.Errorf("got %v (valid %v), want 0.5", got.Data[0], got.Valid[0])
	}
	if got.Name != "NDVI_2020" {
		t.Errorf("got name %s", got.Name)
	}
}

func TestMedianSkipsMaskedAndAveragesEvenCounts(t *testing.T) {
	grid := testGrid(3, 1)
	stack := []*Raster{
		mustRaster(t, "a", grid, []float64{0.2, 0.1, 0}, []bool{true, true, false}),
		mustRaster(t, "b", grid, []float64{0.4, 0.9, 0}, []bool{true, false, false}),
	}

	got, err := Median("m", stack)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.Data[0]-0.3) > 1e-12 {
		t.Errorf("pixel 0: got %v, want 0.3", got.Data[0])
	}
	if got.Data[1] != 0.1 {
		t.Errorf("pixel 1: got %v, want 0.1", got.Data[1])
	}
	if !reflect.DeepEqual(got.Valid, []bool{true, true, false}) {
		t.Errorf("got valid %v", got.Valid)
	}
}

func TestMedianErrors(t *testing.T) {
	if _, err := Median("m", nil); !errors.Is(err, ErrEmptyStack) {
		t.Errorf("got %v, want ErrEmptyStack", err)
	}
	a := New("a", testGrid(2, 2))
	b := New("b", testGrid(3, 2))
	if _, err := Median("m", []*Raster{a, b}); !errors.Is(err, ErrGridMismatch) {
		t.Errorf("got %v, want ErrGridMismatch", err)
	}
}

func TestMedianIsDeterministic(t *testing.T) {
	grid := testGrid(2, 2)
	stack := []*Raster{
		mustRaster(t, "a", grid, []float64{0.3, 0.7, 0.1, 0.25}, []bool{true, true, true, true}),
		mustRaster(t, "b", grid, []float64{0.5, 0.2, 0.9, 0.75}, []bool{true, false, true, true}),
		mustRaster(t, "c", grid, []float64{0.4, 0.6, 0.8, 0.5}, []bool{true, true, false, true}),
	}
	first, err := Median("m", stack)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Median("m", stack)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("composites differ: %v vs %v", first.Data, second.Data)
	}
}

func TestUpdateMask(t *testing.T) {
	grid := testGrid(3, 1)
	r := mustRaster(t, "r", grid, []float64{1, 2, 3}, []bool{true, true, false})
	m := Mask{Grid: grid, Values: []bool{false, true, true}}

	got, err := UpdateMask(r, m)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Valid, []bool{false, true, false}) {
		t.Errorf("got valid %v", got.Valid)
	}
	if !reflect.DeepEqual(got.Data, []float64{1, 2, 3}) {
		t.Errorf("values changed: %v", got.Data)
	}
}

func TestSubtractPropagatesMask(t *testing.T) {
	grid := testGrid(3, 1)
	ndvi2018 := mustRaster(t, "NDVI_2018", grid, []float64{0.5, 0.4, 0.3}, []bool{true, false, true})
	ndvi2024 := mustRaster(t, "NDVI_2024", grid, []float64{0.7, 0.6, 0.1}, []bool{true, true, true})

	got, err := Subtract("NDVI_Change", ndvi2024, ndvi2018)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.Data[0]-0.2) > 1e-12 || math.Abs(got.Data[2]+0.2) > 1e-12 {
		t.Errorf("got %v", got.Data)
	}
	if !reflect.DeepEqual(got.Valid, []bool{true, false, true}) {
		t.Errorf("got valid %v, want pixel 1 masked", got.Valid)
	}
}

func TestFromValues(t *testing.T) {
	grid := testGrid(4, 1)
	r, err := FromValues("r", grid, []float64{-3000, 1, math.NaN(), 2}, -3000, true)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(r.Valid, []bool{false, true, false, true}) {
		t.Errorf("got valid %v", r.Valid)
	}
	if _, err := FromValues("r", grid, []float64{1}, 0, false); !errors.Is(err, ErrGridMismatch) {
		t.Errorf("got %v, want ErrGridMismatch", err)
	}
}

func TestStats(t *testing.T) {
	grid := testGrid(4, 1)
	r := mustRaster(t, "r", grid, []float64{0.2, 0.4, 0.9, 0.6}, []bool{true, true, false, true})
	s := Stats(r)
	if s.Count != 3 || s.Total != 4 {
		t.Errorf("got count %d total %d", s.Count, s.Total)
	}
	if s.Min != 0.2 || s.Max != 0.6 {
		t.Errorf("got min %v max %v", s.Min, s.Max)
	}
	if math.Abs(s.Mean-0.4) > 1e-12 {
		t.Errorf("got mean %v", s.Mean)
	}
	if s.Coverage != 0.75 {
		t.Errorf("got coverage %v", s.Coverage)
	}
}

func TestGridBounds(t *testing.T) {
	g := Grid{Width: 10, Height: 5, GeoTransform: [6]float64{5, 0.5, 0, 55, 0, -0.5}}
	want := [4]float64{5, 52.5, 10, 55}
	if got := g.Bounds(); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestUnion(t *testing.T) {
	west := Grid{Width: 2, Height: 2, GeoTransform: [6]float64{0, 1, 0, 0, 0, -1}, Projection: "SINU"}
	east := Grid{Width: 2, Height: 2, GeoTransform: [6]float64{2, 1, 0, 0, 0, -1}, Projection: "SINU"}
	south := Grid{Width: 2, Height: 1, GeoTransform: [6]float64{0, 1, 0, -2, 0, -1}}

	got, err := Union(west, east, south)
	if err != nil {
		t.Fatal(err)
	}
	want := Grid{Width: 4, Height: 3, GeoTransform: [6]float64{0, 1, 0, 0, 0, -1}, Projection: "SINU"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if got, err := Union(west); err != nil || !got.Equal(west) {
		t.Errorf("union of one grid: got %+v, %v", got, err)
	}

	coarse := Grid{Width: 1, Height: 1, GeoTransform: [6]float64{4, 2, 0, 0, 0, -2}}
	if _, err := Union(west, coarse); !errors.Is(err, ErrGridMismatch) {
		t.Errorf("got %v, want ErrGridMismatch", err)
	}
	other := Grid{Width: 2, Height: 2, GeoTransform: [6]float64{4, 1, 0, 0, 0, -1}, Projection: "LAEA"}
	if _, err := Union(west, other); !errors.Is(err, ErrGridMismatch) {
		t.Errorf("got %v, want ErrGridMismatch", err)
	}
}
