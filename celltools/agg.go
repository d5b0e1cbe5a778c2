package celltools

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"ndvi-tools/raster"
)

func Mean(inData ...float64) float64 {
	return stat.Mean(inData, nil)
}

func Sum(inData ...float64) float64 {
	return floats.Sum(inData)
}

func Max(inData ...float64) float64 {
	return floats.Max(inData)
}

func Min(inData ...float64) float64 {
	return floats.Min(inData)
}

// Median averages the two middle values of an even count.
func Median(inData ...float64) float64 {
	values := append([]float64(nil), inData...)
	return raster.MedianOf(values)
}
