package cellsio

import (
	"encoding/csv"
	"errors"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"ndvi-tools/celltools"
)

var csvHeader = []string{"s2_id", "value", "count", "coverage", "geom"}

func WriteToCSV(cellData []celltools.S2CellData, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for i, cell := range cellData {
		if i%10000 == 0 {
			logrus.Debugf("Writing cell %d", i)
		}
		record := []string{
			strconv.FormatInt(int64(cell.Cell), 10),
			strconv.FormatFloat(cell.Data, 'g', -1, 64),
			strconv.Itoa(cell.Count),
			strconv.FormatFloat(cell.Coverage, 'g', -1, 64),
			cell.GeomString,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}
