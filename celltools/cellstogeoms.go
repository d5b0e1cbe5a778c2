package celltools

import (
	"fmt"
	"strings"

	"github.com/golang/geo/s2"
)

// cellToWKT returns the cell outline as a closed lon/lat polygon.
func cellToWKT(cell s2.Cell) string {
	var b strings.Builder
	b.WriteString("POLYGON((")
	for k := 0; k < 4; k++ {
		latlng := s2.LatLngFromPoint(cell.Vertex(k))
		fmt.Fprintf(&b, "%v %v, ", latlng.Lng.Degrees(), latlng.Lat.Degrees())
	}
	closingPoint := s2.LatLngFromPoint(cell.Vertex(0))
	fmt.Fprintf(&b, "%v %v))", closingPoint.Lng.Degrees(), closingPoint.Lat.Degrees())
	return b.String()
}

// CellIDs returns the cells of data in order.
func CellIDs(data []S2CellData) []s2.CellID {
	ids := make([]s2.CellID, len(data))
	for i, d := range data {
		ids[i] = d.Cell
	}
	return ids
}
