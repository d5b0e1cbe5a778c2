package raster

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Map applies f to every valid pixel. Masked pixels stay masked and the
// acquisition time is carried over.
func Map(r *Raster, f func(v float64) float64) *Raster {
	out := r.Clone()
	for i, v := range r.Data {
		if r.Valid[i] {
			out.Data[i] = f(v)
		}
	}
	return out
}

// Scale multiplies every valid pixel by factor.
func Scale(r *Raster, factor float64) *Raster {
	return Map(r, func(v float64) float64 { return v * factor })
}

func Rename(r *Raster, name string) *Raster {
	out := *r
	out.Name = name
	return &out
}

// Median reduces a stack of rasters on one grid to the per-pixel median of
// the valid values. Pixels with no valid value in any input are masked. An
// even number of values yields the mean of the two middle ones.
func Median(name string, stack []*Raster) (*Raster, error) {
	if len(stack) == 0 {
		return nil, ErrEmptyStack
	}
	grid := stack[0].Grid
	for _, r := range stack[1:] {
		if err := checkGrids(grid, r.Grid); err != nil {
			return nil, err
		}
	}

	out := New(name, grid)
	values := make([]float64, 0, len(stack))
	for i := range out.Data {
		values = values[:0]
		for _, r := range stack {
			if r.Valid[i] {
				values = append(values, r.Data[i])
			}
		}
		if len(values) == 0 {
			continue
		}
		out.Data[i] = MedianOf(values)
		out.Valid[i] = true
	}
	return out, nil
}

// MedianOf sorts values in place and returns their median.
func MedianOf(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return stat.Mean(values[n/2-1:n/2+1], nil)
}

// UpdateMask masks every pixel where m is false. Values of the pixels that
// stay valid are untouched.
func UpdateMask(r *Raster, m Mask) (*Raster, error) {
	if err := checkGrids(r.Grid, m.Grid); err != nil {
		return nil, err
	}
	out := r.Clone()
	for i, keep := range m.Values {
		out.Valid[i] = r.Valid[i] && keep
	}
	return out, nil
}

// Subtract returns a - b. A pixel masked in either input is masked in the
// result.
func Subtract(name string, a, b *Raster) (*Raster, error) {
	if err := checkGrids(a.Grid, b.Grid); err != nil {
		return nil, err
	}
	out := New(name, a.Grid)
	for i := range out.Data {
		if a.Valid[i] && b.Valid[i] {
			out.Data[i] = a.Data[i] - b.Data[i]
			out.Valid[i] = true
		}
	}
	return out, nil
}
