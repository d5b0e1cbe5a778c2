package report

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writePNG(t testing.TB, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range w {
		img.SetNRGBA(i, 0, color.NRGBA{G: 0x80, A: 0xff})
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestYearPages(t *testing.T) {
	imageOf := func(year int) string { return fmt.Sprintf("layers/%d.png", year) }
	got := YearPages("Germany", time.September, []int{2020, 2018, 2019, 2018}, imageOf)
	want := []Page{
		{Year: 2018, Caption: "Germany September 2018 NDVI", Image: "layers/2018.png"},
		{Year: 2019, Caption: "Germany September 2019 NDVI", Image: "layers/2019.png"},
		{Year: 2020, Caption: "Germany September 2020 NDVI", Image: "layers/2020.png"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	years := []int{2024, 2018, 2021}
	for _, year := range years {
		writePNG(t, filepath.Join(dir, fmt.Sprintf("%d.png", year)), 40, 20)
	}
	pages := YearPages("Germany", time.September, years, func(year int) string {
		return filepath.Join(dir, fmt.Sprintf("%d.png", year))
	})

	path := filepath.Join(dir, DefaultPath)
	if err := Write(path, pages, WithTitle("NDVI"), WithoutCompression()); err != nil {
		t.Fatal(err)
	}
	pdf, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(pdf, []byte("/Count 3")) {
		t.Error("report should have 3 pages")
	}
	last := -1
	for _, caption := range []string{
		"Germany September 2018 NDVI",
		"Germany September 2021 NDVI",
		"Germany September 2024 NDVI",
	} {
		at := bytes.Index(pdf, []byte("("+caption+")"))
		if at < 0 {
			t.Fatalf("caption %q missing", caption)
		}
		if at < last {
			t.Errorf("caption %q out of order", caption)
		}
		last = at
	}
}

func TestWriteMissingImage(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "2018.png"), 4, 4)
	pages := []Page{
		{Year: 2018, Caption: "Germany September 2018 NDVI", Image: filepath.Join(dir, "2018.png")},
		{Year: 2019, Caption: "Germany September 2019 NDVI", Image: filepath.Join(dir, "2019.png")},
	}
	path := filepath.Join(dir, "report.pdf")
	if err := Write(path, pages); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("got %v, want ErrNotExist", err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("no report should be written")
	}
	if err := Write(path, nil); !errors.Is(err, ErrNoPages) {
		t.Errorf("got %v, want ErrNoPages", err)
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, boxW, boxH float64
		wantW, wantH     float64
	}{
		{800, 400, 190, 265, 190, 95},
		{400, 800, 190, 190, 95, 190},
		{0, 10, 190, 265, 190, 265},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, tt.boxW, tt.boxH)
		if math.Abs(w-tt.wantW) > 1e-9 || math.Abs(h-tt.wantH) > 1e-9 {
			t.Errorf("fit(%v, %v, %v, %v) = %v, %v, want %v, %v", tt.w, tt.h, tt.boxW, tt.boxH, w, h, tt.wantW, tt.wantH)
		}
	}
}
