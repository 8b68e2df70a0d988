package bulkreturns

import (
	"time"
)

// Cycle boundary constants. Winter (all-year) cycles run 1 April to 31 March;
// summer cycles run 1 November to 31 October. Returns fall due 27 days after
// the cycle opens.
const (
	winterStartDay   = 1
	winterStartMonth = time.April
	summerStartDay   = 1
	summerStartMonth = time.November

	dueDateOffsetDays = 27
)

// ReturnCycle is a regulatory annual reporting window. Cycles are always
// derived from a reference date, never stored.
type ReturnCycle struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	DueDate   time.Time `json:"dueDate"`
	IsSummer  bool      `json:"isSummer"`
}

// CycleFromDate computes the return cycle containing the reference date
func CycleFromDate(ref time.Time, isSummer bool) ReturnCycle {
	startDay, startMonth := winterStartDay, winterStartMonth
	if isSummer {
		startDay, startMonth = summerStartDay, summerStartMonth
	}

	start := time.Date(ref.Year(), startMonth, startDay, 0, 0, 0, 0, time.UTC)
	if ref.Before(start) {
		start = start.AddDate(-1, 0, 0)
	}

	return ReturnCycle{
		StartDate: start,
		EndDate:   start.AddDate(1, 0, -1),
		DueDate:   start.AddDate(0, 0, dueDateOffsetDays),
		IsSummer:  isSummer,
	}
}

// Contains reports whether a reporting window falls inside the cycle
func (c ReturnCycle) Contains(startDate, endDate time.Time) bool {
	return !startDate.Before(c.StartDate) && !endDate.After(c.EndDate)
}
