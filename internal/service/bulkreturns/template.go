package bulkreturns

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
)

// Fixed row labels. The upload parser depends on this exact layout: eight
// header rows, one row per period bucket, then the two trailer rows.
var headerLabels = []string{
	"Licence number",
	"Return reference",
	"Site description",
	"Purpose",
	"Nil return Y/N",
	"Did you use a meter Y/N",
	"Meter make",
	"Meter serial number",
}

const (
	trailerDoNotEdit = "Do not edit"
	trailerReference = "Unique return reference"
)

// Template is one frequency's bulk return grid for a cycle. Column 0 is the
// label column; each due return appended adds one data column. Row and column
// order is stable so the same input order produces byte-identical output.
type Template struct {
	cycle     ReturnCycle
	frequency values.Frequency
	rows      [][]string
	rowIndex  map[string]int
	columns   int
}

// NewTemplate lays out the empty grid for a cycle at the given frequency
func NewTemplate(cycle ReturnCycle, frequency values.Frequency) *Template {
	t := &Template{
		cycle:     cycle,
		frequency: frequency,
		rowIndex:  map[string]int{},
	}

	for _, label := range headerLabels {
		t.rows = append(t.rows, []string{label})
	}
	for _, line := range returns.GenerateLines(cycle.StartDate, cycle.EndDate, frequency) {
		t.rowIndex[line.Key()] = len(t.rows)
		t.rows = append(t.rows, []string{line.Label()})
	}
	t.rows = append(t.rows, []string{trailerDoNotEdit})
	t.rows = append(t.rows, []string{trailerReference})

	return t
}

// Frequency returns the reporting frequency the grid is laid out for
func (t *Template) Frequency() values.Frequency {
	return t.frequency
}

// Columns returns the number of data columns appended so far
func (t *Template) Columns() int {
	return t.columns
}

// IsEmpty reports whether no return has been added yet
func (t *Template) IsEmpty() bool {
	return t.columns == 0
}

// Rows exposes the grid; row 0..7 headers, then periods, then trailers
func (t *Template) Rows() [][]string {
	return t.rows
}

// AddReturn appends one data column for a due return. Every line bucket of
// the return must match a template row exactly; a return whose granularity
// does not align to the cycle's row boundaries is rejected with a
// PERIOD_MISALIGNED error rather than silently dropped.
func (t *Template) AddReturn(wr *returns.WaterReturn) error {
	if wr.Frequency.String() != t.frequency.String() {
		return errors.NewBusinessError("FREQUENCY_MISMATCH",
			"return frequency does not match the template frequency").
			WithDetails(map[string]interface{}{
				"returnId":  wr.ReturnID,
				"frequency": wr.Frequency.String(),
				"template":  t.frequency.String(),
			})
	}

	column := make([]string, len(t.rows))
	column[0] = wr.LicenceNumber
	column[1] = returnReference(wr.ReturnID)
	column[2] = wr.Metadata.Description
	column[3] = PurposeString(wr.Metadata.Purposes)
	column[4] = yesNo(wr.IsNilReturn())
	column[5] = yesNo(wr.Reading.IsOneMeter())
	if meter := wr.CurrentMeter(); meter != nil {
		column[6] = meter.Manufacturer
		column[7] = meter.SerialNumber
	}

	lines := wr.GetLines()
	if len(lines) == 0 {
		lines = returns.GenerateLines(wr.StartDate, wr.EndDate, wr.Frequency)
	}
	for _, line := range lines {
		row, ok := t.rowIndex[line.Key()]
		if !ok {
			return errors.NewBusinessError("PERIOD_MISALIGNED",
				"return line periods do not align to the template grid").
				WithDetails(map[string]interface{}{
					"returnId": wr.ReturnID,
					"period":   line.Key(),
				})
		}
		if line.Quantity != nil {
			column[row] = line.Quantity.String()
		}
	}

	column[len(t.rows)-1] = wr.ReturnID

	for i, value := range column {
		t.rows[i] = append(t.rows[i], value)
	}
	t.columns++
	return nil
}

// CSV serializes the grid as comma-separated UTF-8 text
func (t *Template) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(t.rows); err != nil {
		return nil, errors.Wrap(err, "writing template csv")
	}
	return buf.Bytes(), nil
}

// Filename derives the archive entry name for a company's template,
// pluralised when the grid carries more than one return.
func (t *Template) Filename(companyName string) string {
	plural := ""
	if t.columns > 1 {
		plural = "s"
	}
	return companyName + " " + t.frequency.DisplayName() + " return" + plural + ".csv"
}

// returnReference extracts the return requirement reference from a return id
// of the form v1:region:licence:reference:start:end
func returnReference(returnID string) string {
	parts := strings.Split(returnID, ":")
	if len(parts) < 4 {
		return returnID
	}
	return parts[3]
}
