package display

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"ndvi-tools/rasterio"
)

const (
	// DefaultCRS is the map projection layers are drawn in, ETRS89-LAEA Europe.
	DefaultCRS = "EPSG:3035"
	// DefaultWidth is the rendered width in pixels.
	DefaultWidth = 800
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileName turns a layer name into a file name, e.g.
// "MODIS NDVI Sep 2018 (F+A)" -> "MODIS_NDVI_Sep_2018_F_A.png".
func FileName(layer string) string {
	name := strings.Trim(unsafeChars.ReplaceAllString(layer, "_"), "_")
	return name + ".png"
}

// PNGRenderer writes each layer as a PNG in Dir. Masked pixels are
// transparent. Layers carrying a projection are warped into CRS and Width
// pixels wide first; an empty CRS paints the native grid.
type PNGRenderer struct {
	Dir   string
	CRS   string
	Width int
}

func (p PNGRenderer) AddLayer(ctx context.Context, layer Layer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ramp, err := layer.Style.Ramp()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return err
	}

	if p.CRS != "" && layer.Raster.Grid.Projection != "" {
		warped, err := rasterio.ReprojectWidth(layer.Raster, p.CRS, p.Width)
		if err != nil {
			return err
		}
		layer.Raster = warped
	}

	img := Render(layer, ramp)
	path := filepath.Join(p.Dir, FileName(layer.Name))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logrus.Error(err)
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return err
	}
	logrus.Infof("Rendered layer %q to %s", layer.Name, path)
	return f.Sync()
}

// Render paints the layer's raster with ramp.
func Render(layer Layer, ramp Ramp) *image.NRGBA {
	r := layer.Raster
	img := image.NewNRGBA(image.Rect(0, 0, r.Grid.Width, r.Grid.Height))
	for row := 0; row < r.Grid.Height; row++ {
		for col := 0; col < r.Grid.Width; col++ {
			v, ok := r.At(col, row)
			if !ok {
				img.SetNRGBA(col, row, color.NRGBA{})
				continue
			}
			c := ramp.Color(v)
			img.SetNRGBA(col, row, color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A})
		}
	}
	return img
}
