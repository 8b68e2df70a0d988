package values

import (
	"encoding/json"
	"fmt"
	"time"
)

// AbstractionPeriod represents the window of the year during which a licence
// permits abstraction, as a start/end day-month pair. Periods may wrap the
// year boundary (e.g. 1 Oct - 30 Apr).
type AbstractionPeriod struct {
	startDay   int
	startMonth int
	endDay     int
	endMonth   int
}

// daysInMonth uses a leap year so 29 Feb is accepted as a period boundary.
var daysInMonth = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// NewAbstractionPeriod creates a new AbstractionPeriod value object with validation
func NewAbstractionPeriod(startDay, startMonth, endDay, endMonth int) (AbstractionPeriod, error) {
	if err := validateDayMonth(startDay, startMonth); err != nil {
		return AbstractionPeriod{}, fmt.Errorf("invalid period start: %w", err)
	}
	if err := validateDayMonth(endDay, endMonth); err != nil {
		return AbstractionPeriod{}, fmt.Errorf("invalid period end: %w", err)
	}

	return AbstractionPeriod{
		startDay:   startDay,
		startMonth: startMonth,
		endDay:     endDay,
		endMonth:   endMonth,
	}, nil
}

// MustNewAbstractionPeriod creates an AbstractionPeriod and panics on error (for constants/tests)
func MustNewAbstractionPeriod(startDay, startMonth, endDay, endMonth int) AbstractionPeriod {
	p, err := NewAbstractionPeriod(startDay, startMonth, endDay, endMonth)
	if err != nil {
		panic(err)
	}
	return p
}

// FullYear is the 1 Jan - 31 Dec period used when a licence carries no
// abstraction period metadata.
func FullYear() AbstractionPeriod {
	return AbstractionPeriod{startDay: 1, startMonth: 1, endDay: 31, endMonth: 12}
}

func validateDayMonth(day, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("month %d out of range", month)
	}
	if day < 1 || day > daysInMonth[month] {
		return fmt.Errorf("day %d out of range for month %d", day, month)
	}
	return nil
}

// StartDay returns the day component of the period start
func (p AbstractionPeriod) StartDay() int {
	return p.startDay
}

// StartMonth returns the month component of the period start
func (p AbstractionPeriod) StartMonth() int {
	return p.startMonth
}

// EndDay returns the day component of the period end
func (p AbstractionPeriod) EndDay() int {
	return p.endDay
}

// EndMonth returns the month component of the period end
func (p AbstractionPeriod) EndMonth() int {
	return p.endMonth
}

// IsEmpty checks if the period is the zero value
func (p AbstractionPeriod) IsEmpty() bool {
	return p == AbstractionPeriod{}
}

// Wraps reports whether the period crosses the year boundary
func (p AbstractionPeriod) Wraps() bool {
	return ordinal(p.startDay, p.startMonth) > ordinal(p.endDay, p.endMonth)
}

// Contains reports whether the given date falls inside the period,
// handling wrap-around periods
func (p AbstractionPeriod) Contains(date time.Time) bool {
	d := ordinal(date.Day(), int(date.Month()))
	start := ordinal(p.startDay, p.startMonth)
	end := ordinal(p.endDay, p.endMonth)

	if start <= end {
		return d >= start && d <= end
	}
	return d >= start || d <= end
}

// Equal checks if two AbstractionPeriod values are equal
func (p AbstractionPeriod) Equal(other AbstractionPeriod) bool {
	return p == other
}

func (p AbstractionPeriod) String() string {
	return fmt.Sprintf("%d %s - %d %s",
		p.startDay, time.Month(p.startMonth), p.endDay, time.Month(p.endMonth))
}

// ordinal collapses a day-month pair into a single comparable value
func ordinal(day, month int) int {
	return month*100 + day
}

type abstractionPeriodJSON struct {
	PeriodStartDay   int `json:"periodStartDay"`
	PeriodStartMonth int `json:"periodStartMonth"`
	PeriodEndDay     int `json:"periodEndDay"`
	PeriodEndMonth   int `json:"periodEndMonth"`
}

// MarshalJSON implements JSON marshaling using the regulatory metadata key names
func (p AbstractionPeriod) MarshalJSON() ([]byte, error) {
	return json.Marshal(abstractionPeriodJSON{
		PeriodStartDay:   p.startDay,
		PeriodStartMonth: p.startMonth,
		PeriodEndDay:     p.endDay,
		PeriodEndMonth:   p.endMonth,
	})
}

// UnmarshalJSON implements JSON unmarshaling
func (p *AbstractionPeriod) UnmarshalJSON(data []byte) error {
	var raw abstractionPeriodJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	period, err := NewAbstractionPeriod(raw.PeriodStartDay, raw.PeriodStartMonth, raw.PeriodEndDay, raw.PeriodEndMonth)
	if err != nil {
		return err
	}

	*p = period
	return nil
}
