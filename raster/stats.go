package raster

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the valid pixels of a raster. Coverage is the share of
// grid pixels that are valid.
type Summary struct {
	Name     string
	Count    int
	Total    int
	Coverage float64
	Min      float64
	Max      float64
	Mean     float64
	StdDev   float64
}

func Stats(r *Raster) Summary {
	values := make([]float64, 0, len(r.Data))
	for i, v := range r.Data {
		if r.Valid[i] {
			values = append(values, v)
		}
	}
	s := Summary{Name: r.Name, Count: len(values), Total: r.Grid.Size()}
	if s.Total > 0 {
		s.Coverage = float64(s.Count) / float64(s.Total)
	}
	if len(values) == 0 {
		return s
	}
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	if len(values) == 1 {
		s.Mean = values[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	return s
}
