package bulkreturns

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
)

const (
	dayLabelFormat   = "2 January 2006"
	monthLabelFormat = "January 2006"
	weekLabelPrefix  = "Week ending "
)

// UploadedReturn is one data column recovered from a completed template:
// the return it belongs to plus its quantity lines in row order.
type UploadedReturn struct {
	ReturnID  string
	IsNil     bool
	UsedMeter bool
	Frequency values.Frequency
	Lines     []returns.LineInput
}

// ParseTemplate reads a completed bulk return CSV back into per-return
// quantity lines. The layout must be the exact structural inverse of
// generation: the eight header rows, the period rows, then the two trailer
// rows. Anything that cannot be mapped back to a period fails parsing rather
// than silently misplacing quantities.
func ParseTemplate(r io.Reader) ([]UploadedReturn, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewValidationError("MALFORMED_TEMPLATE",
			"uploaded file is not valid CSV").WithCause(err)
	}
	if len(rows) < len(headerLabels)+3 {
		return nil, errors.NewValidationError("MALFORMED_TEMPLATE",
			"uploaded file is too short to be a return template")
	}

	for i, label := range headerLabels {
		if len(rows[i]) == 0 || rows[i][0] != label {
			return nil, errors.NewValidationError("MALFORMED_TEMPLATE",
				fmt.Sprintf("header row %d is %q, expected %q", i, firstCell(rows[i]), label))
		}
	}

	last := len(rows) - 1
	if firstCell(rows[last]) != trailerReference || firstCell(rows[last-1]) != trailerDoNotEdit {
		return nil, errors.NewValidationError("MALFORMED_TEMPLATE",
			"trailer rows are missing or out of order")
	}

	periodRows := rows[len(headerLabels) : last-1]
	frequency, err := detectFrequency(firstCell(periodRows[0]))
	if err != nil {
		return nil, err
	}

	periods := make([]returns.LineInput, len(periodRows))
	var prevEnd time.Time
	for i, row := range periodRows {
		start, end, err := parsePeriodLabel(firstCell(row), frequency)
		if err != nil {
			return nil, err
		}
		// Weekly labels only carry the week-ending date. The final week of a
		// cycle is clamped short, so starts are chained off the previous
		// row's end rather than assumed to be seven-day spans.
		if frequency.IsWeekly() && i > 0 {
			start = prevEnd.AddDate(0, 0, 1)
		}
		prevEnd = end
		periods[i] = returns.LineInput{
			StartDate: start.Format("2006-01-02"),
			EndDate:   end.Format("2006-01-02"),
		}
	}

	columns := 0
	for _, row := range rows {
		if len(row) > columns {
			columns = len(row)
		}
	}

	var uploaded []UploadedReturn
	for col := 1; col < columns; col++ {
		returnID := cell(rows[last], col)
		if returnID == "" {
			return nil, errors.NewValidationError("MISSING_RETURN_REFERENCE",
				fmt.Sprintf("column %d has no unique return reference", col))
		}

		ur := UploadedReturn{
			ReturnID:  returnID,
			IsNil:     strings.EqualFold(cell(rows[4], col), "Y"),
			UsedMeter: strings.EqualFold(cell(rows[5], col), "Y"),
			Frequency: frequency,
			Lines:     make([]returns.LineInput, len(periods)),
		}

		for i := range periods {
			ur.Lines[i] = periods[i]
			raw := cell(rows[len(headerLabels)+i], col)
			if raw == "" {
				continue
			}
			quantity, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, errors.NewValidationError("INVALID_QUANTITY",
					fmt.Sprintf("column %d row %q: %q is not a number",
						col, firstCell(rows[len(headerLabels)+i]), raw))
			}
			ur.Lines[i].Quantity = &quantity
		}

		uploaded = append(uploaded, ur)
	}

	return uploaded, nil
}

// detectFrequency infers the template frequency from the first period label
func detectFrequency(label string) (values.Frequency, error) {
	switch {
	case strings.HasPrefix(label, weekLabelPrefix):
		return values.MustNewFrequency(values.FrequencyWeek), nil
	default:
		if _, err := time.Parse(dayLabelFormat, label); err == nil {
			return values.MustNewFrequency(values.FrequencyDay), nil
		}
		if _, err := time.Parse(monthLabelFormat, label); err == nil {
			return values.MustNewFrequency(values.FrequencyMonth), nil
		}
		return values.Frequency{}, unmappedRow(label)
	}
}

// parsePeriodLabel recovers the (start, end) boundaries a row was generated
// from. This is the inverse of Line.Label for each frequency.
func parsePeriodLabel(label string, frequency values.Frequency) (time.Time, time.Time, error) {
	switch {
	case frequency.IsDaily():
		day, err := time.Parse(dayLabelFormat, label)
		if err != nil {
			return time.Time{}, time.Time{}, unmappedRow(label)
		}
		return day, day, nil

	case frequency.IsWeekly():
		if !strings.HasPrefix(label, weekLabelPrefix) {
			return time.Time{}, time.Time{}, unmappedRow(label)
		}
		end, err := time.Parse(dayLabelFormat, strings.TrimPrefix(label, weekLabelPrefix))
		if err != nil {
			return time.Time{}, time.Time{}, unmappedRow(label)
		}
		return end.AddDate(0, 0, -6), end, nil

	default:
		start, err := time.Parse(monthLabelFormat, label)
		if err != nil {
			return time.Time{}, time.Time{}, unmappedRow(label)
		}
		return start, frequency.BucketEnd(start), nil
	}
}

func unmappedRow(label string) error {
	return errors.NewValidationError("UNMAPPED_TEMPLATE_ROW",
		fmt.Sprintf("cannot map data to period: row label %q is not a recognised period", label))
}

func firstCell(row []string) string {
	return cell(row, 0)
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
