package cellsio

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/golang/geo/s2"

	"ndvi-tools/celltools"
)

func testCells() []celltools.S2CellData {
	return []celltools.S2CellData{
		{Cell: s2.CellID(1152921779484753920), Data: 0.5, Count: 3, Coverage: 0.25, GeomString: "POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))"},
		{Cell: s2.CellID(1153105397926592512), Data: -0.125, Count: 1, Coverage: 1, GeomString: "POLYGON((1 0, 2 0, 2 1, 1 1, 1 0))"},
	}
}

func TestWriteToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.csv")
	if err := WriteToCSV(testCells(), path); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		csvHeader,
		{"1152921779484753920", "0.5", "3", "0.25", "POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))"},
		{"1153105397926592512", "-0.125", "1", "1", "POLYGON((1 0, 2 0, 2 1, 1 1, 1 0))"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("got %v, want %v", records, want)
	}
}

func TestWriteToParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.parquet")
	cells := testCells()
	if err := WriteToParquet(cells, path); err != nil {
		t.Fatal(err)
	}

	rows, err := ReadParquet(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []CellRow{toRow(cells[0]), toRow(cells[1])}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("got %v, want %v", rows, want)
	}
}

func TestWriteEmptyParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	if err := WriteToParquet(nil, path); err != nil {
		t.Fatal(err)
	}
	rows, err := ReadParquet(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows", len(rows))
	}
}
