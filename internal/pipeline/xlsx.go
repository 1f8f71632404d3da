package pipeline

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/outreach-cli/internal/model"
)

// ReadOrganizationsXLSX parses the first sheet of an XLSX workbook.
// The first row is the header and follows the same column matching as
// the CSV reader.
func ReadOrganizationsXLSX(path string) ([]model.Organization, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "opening xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Wrap(model.ErrInvalidInput, "xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Wrap(model.ErrInvalidInput, "xlsx sheet is empty")
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return orgsFromRows(rows[0], rows[1:])
}
