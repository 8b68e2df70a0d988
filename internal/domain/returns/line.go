package returns

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
)

const dateFormat = "2006-01-02"

// Line is a single time-bucketed quantity entry on a return. Quantity is nil
// until the user has reported a value for the bucket; nil and zero are
// distinct states.
type Line struct {
	StartDate  time.Time        `json:"startDate"`
	EndDate    time.Time        `json:"endDate"`
	Quantity   *decimal.Decimal `json:"quantity"`
	TimePeriod values.Frequency `json:"timePeriod"`
}

// NewLine creates a line after checking the dates align to the declared
// reporting frequency. The end date may be clamped short of the natural
// bucket end when the bucket is the last in a return period.
func NewLine(startDate, endDate time.Time, quantity *decimal.Decimal, timePeriod values.Frequency) (Line, error) {
	if endDate.Before(startDate) {
		return Line{}, fmt.Errorf("line end date %s before start date %s",
			endDate.Format(dateFormat), startDate.Format(dateFormat))
	}
	if endDate.After(timePeriod.BucketEnd(startDate)) {
		return Line{}, fmt.Errorf("line %s - %s does not align to a %s bucket",
			startDate.Format(dateFormat), endDate.Format(dateFormat), timePeriod)
	}

	return Line{
		StartDate:  startDate,
		EndDate:    endDate,
		Quantity:   quantity,
		TimePeriod: timePeriod,
	}, nil
}

// Key returns the start/end pair as a stable map key
func (l Line) Key() string {
	return l.StartDate.Format(dateFormat) + "_" + l.EndDate.Format(dateFormat)
}

// Label returns the row label used in bulk return templates
func (l Line) Label() string {
	switch {
	case l.TimePeriod.IsDaily():
		return formatDayLabel(l.StartDate)
	case l.TimePeriod.IsWeekly():
		return "Week ending " + formatDayLabel(l.EndDate)
	default:
		return l.StartDate.Format("January 2006")
	}
}

func formatDayLabel(date time.Time) string {
	return fmt.Sprintf("%d %s", date.Day(), date.Format("January 2006"))
}

// GenerateLines produces the empty line buckets covering the given date range
// at the given frequency. The first bucket always starts on startDate; the
// final bucket is clamped to endDate. Bucket order is ascending and stable:
// template layout depends on it being byte-identical between runs.
func GenerateLines(startDate, endDate time.Time, frequency values.Frequency) []Line {
	var lines []Line

	for cursor := startDate; !cursor.After(endDate); {
		bucketEnd := frequency.BucketEnd(cursor)
		if bucketEnd.After(endDate) {
			bucketEnd = endDate
		}

		lines = append(lines, Line{
			StartDate:  cursor,
			EndDate:    bucketEnd,
			TimePeriod: frequency,
		})

		cursor = bucketEnd.AddDate(0, 0, 1)
	}

	return lines
}
