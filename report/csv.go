package report

import (
	"encoding/csv"
	"io"

	"ckreport/database"

	"github.com/pkg/errors"
)

// WriteCSV writes each section's rows in order, with one blank line between sections.
func WriteCSV(w io.Writer, sections ...[][]database.Cell) error {
	dataWriter := csv.NewWriter(w)

	for i, rows := range sections {
		if i > 0 {
			if err := dataWriter.Write([]string{}); err != nil {
				return errors.Wrap(err, "write csv")
			}
		}
		for _, cells := range rows {
			var row []string
			for _, c := range cells {
				row = append(row, c.String())
			}
			if err := dataWriter.Write(row); err != nil {
				return errors.Wrap(err, "write csv")
			}
		}
	}

	dataWriter.Flush()
	return errors.Wrap(dataWriter.Error(), "flush csv")
}
