package cellsio

import (
	"errors"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"

	"ndvi-tools/celltools"
)

// RowBufferSize is the number of rows written between flushes.
const RowBufferSize = 64 * 1024

type CellRow struct {
	S2id     int64   `parquet:"s2_id"`
	Value    float64 `parquet:"value"`
	Count    int64   `parquet:"count"`
	Coverage float64 `parquet:"coverage"`
	Geom     string  `parquet:"geom"`
}

func toRow(cell celltools.S2CellData) CellRow {
	return CellRow{
		S2id:     int64(cell.Cell),
		Value:    cell.Data,
		Count:    int64(cell.Count),
		Coverage: cell.Coverage,
		Geom:     cell.GeomString,
	}
}

// WriteToParquet writes cellData as snappy-compressed row groups of at
// most RowBufferSize rows.
func WriteToParquet(cellData []celltools.S2CellData, path string) (err error) {
	output, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, output.Close())
	}()

	schema := parquet.SchemaOf(new(CellRow))
	writer := parquet.NewGenericWriter[CellRow](output, schema, parquet.Compression(&parquet.Snappy))

	rowBuf := make([]CellRow, 0, min(RowBufferSize, len(cellData)))
	for i, cell := range cellData {
		rowBuf = append(rowBuf, toRow(cell))
		if len(rowBuf) < RowBufferSize && i < len(cellData)-1 {
			continue
		}
		logrus.Debugf("Writing cells up to %d", i)
		if _, err := writer.Write(rowBuf); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
		rowBuf = rowBuf[:0]
	}
	return writer.Close()
}

// ReadParquet loads every row of a file written by WriteToParquet.
func ReadParquet(path string) ([]CellRow, error) {
	return parquet.ReadFile[CellRow](path)
}
