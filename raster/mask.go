package raster

import "fmt"

// Mask is a boolean raster. True keeps a pixel, false masks it.
type Mask struct {
	Grid   Grid
	Values []bool
}

func NewMask(grid Grid) Mask {
	return Mask{Grid: grid, Values: make([]bool, grid.Size())}
}

// MaskWhere evaluates pred on every valid pixel of r. Masked pixels of r
// are false in the result.
func MaskWhere(r *Raster, pred func(v float64) bool) Mask {
	m := NewMask(r.Grid)
	for i, v := range r.Data {
		m.Values[i] = r.Valid[i] && pred(v)
	}
	return m
}

func (m Mask) Or(o Mask) (Mask, error) {
	return m.combine(o, func(a, b bool) bool { return a || b })
}

func (m Mask) And(o Mask) (Mask, error) {
	return m.combine(o, func(a, b bool) bool { return a && b })
}

func (m Mask) combine(o Mask, op func(a, b bool) bool) (Mask, error) {
	if err := checkGrids(m.Grid, o.Grid); err != nil {
		return Mask{}, err
	}
	if len(m.Values) != len(o.Values) {
		return Mask{}, fmt.Errorf("%w: mask lengths %d and %d", ErrGridMismatch, len(m.Values), len(o.Values))
	}
	out := NewMask(m.Grid)
	for i := range m.Values {
		out.Values[i] = op(m.Values[i], o.Values[i])
	}
	return out, nil
}

func (m Mask) Count() int {
	var n int
	for _, v := range m.Values {
		if v {
			n++
		}
	}
	return n
}
