// Package display renders composites as styled map layers.
package display

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
	"sync"

	"ndvi-tools/raster"
)

// Style maps pixel values in [Min, Max] linearly onto Palette.
type Style struct {
	Min     float64  `mapstructure:"min" yaml:"min"`
	Max     float64  `mapstructure:"max" yaml:"max"`
	Palette []string `mapstructure:"palette" yaml:"palette"`
}

var (
	NDVIStyle = Style{Min: 0.0, Max: 1.0, Palette: []string{"white", "yellow", "green"}}

	ChangeStyle = Style{Min: -0.3, Max: 0.3, Palette: []string{"red", "white", "green"}}
)

// Layer is a raster registered for display under a name.
type Layer struct {
	Name   string
	Style  Style
	Raster *raster.Raster
}

type Renderer interface {
	AddLayer(ctx context.Context, layer Layer) error
}

var namedColors = map[string]color.RGBA{
	"white":  {0xff, 0xff, 0xff, 0xff},
	"black":  {0x00, 0x00, 0x00, 0xff},
	"red":    {0xff, 0x00, 0x00, 0xff},
	"green":  {0x00, 0x80, 0x00, 0xff},
	"blue":   {0x00, 0x00, 0xff, 0xff},
	"yellow": {0xff, 0xff, 0x00, 0xff},
	"orange": {0xff, 0xa5, 0x00, 0xff},
	"brown":  {0xa5, 0x2a, 0x2a, 0xff},
}

// ParseColor accepts CSS colour names from namedColors and #rrggbb or
// rrggbb hex strings.
func ParseColor(s string) (color.RGBA, error) {
	if c, ok := namedColors[strings.ToLower(s)]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("unknown colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("unknown colour %q", s)
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}, nil
}

// Ramp is a compiled Style.
type Ramp struct {
	min, max float64
	stops    []color.RGBA
}

func (s Style) Ramp() (Ramp, error) {
	if len(s.Palette) == 0 {
		return Ramp{}, fmt.Errorf("empty palette")
	}
	if !(s.Max > s.Min) {
		return Ramp{}, fmt.Errorf("style range [%v, %v] is empty", s.Min, s.Max)
	}
	ramp := Ramp{min: s.Min, max: s.Max}
	for _, name := range s.Palette {
		c, err := ParseColor(name)
		if err != nil {
			return Ramp{}, err
		}
		ramp.stops = append(ramp.stops, c)
	}
	return ramp, nil
}

// Color returns the colour for v. Values outside the range clamp to the end
// stops.
func (r Ramp) Color(v float64) color.RGBA {
	if len(r.stops) == 1 {
		return r.stops[0]
	}
	t := (v - r.min) / (r.max - r.min)
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(r.stops)-1)
	i := int(pos)
	if i >= len(r.stops)-1 {
		return r.stops[len(r.stops)-1]
	}
	frac := pos - float64(i)
	a, b := r.stops[i], r.stops[i+1]
	return color.RGBA{
		R: lerp(a.R, b.R, frac),
		G: lerp(a.G, b.G, frac),
		B: lerp(a.B, b.B, frac),
		A: 0xff,
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

// Recorder keeps layers in memory.
type Recorder struct {
	mu     sync.Mutex
	Layers []Layer
}

func (r *Recorder) AddLayer(_ context.Context, layer Layer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Layers = append(r.Layers, layer)
	return nil
}

// Names returns the recorded layer names in insertion order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.Layers))
	for i, l := range r.Layers {
		names[i] = l.Name
	}
	return names
}
