package returns

import (
	"github.com/shopspring/decimal"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
)

// quantityPrecision is the number of decimal places quantities are stored to
const quantityPrecision = 3

// LineInput carries a submitted quantity for one reporting period
type LineInput struct {
	StartDate string           `json:"startDate"`
	EndDate   string           `json:"endDate"`
	Quantity  *decimal.Decimal `json:"quantity"`
}

// Lines is the ordered collection of a return's line buckets. Lines are only
// ever replaced in bulk; individual lines are never patched.
type Lines struct {
	lines []Line
}

// NewLines wraps an existing ordered line set
func NewLines(lines []Line) Lines {
	return Lines{lines: lines}
}

// Slice returns the underlying lines in bucket order
func (ls Lines) Slice() []Line {
	return ls.lines
}

// IsEmpty reports whether any buckets exist
func (ls Lines) IsEmpty() bool {
	return len(ls.lines) == 0
}

// Total sums quantities across all lines, treating nil as zero
func (ls Lines) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range ls.lines {
		if line.Quantity != nil {
			total = total.Add(*line.Quantity)
		}
	}
	return total
}

// DistributeSingleTotal spreads a single total quantity equally across the
// buckets that fall inside the abstraction period; buckets outside the period
// are zeroed. A bucket counts as in-period when either endpoint falls inside
// it, so a bucket straddling the period boundary receives a full equal share
// rather than a day-weighted one. The final in-period bucket absorbs the
// rounding remainder so the line total equals the input exactly.
func (ls *Lines) DistributeSingleTotal(total decimal.Decimal, period values.AbstractionPeriod) {
	var inPeriod []int
	for i, line := range ls.lines {
		if period.Contains(line.StartDate) || period.Contains(line.EndDate) {
			inPeriod = append(inPeriod, i)
		}
	}

	zero := decimal.Zero
	for i := range ls.lines {
		q := zero
		ls.lines[i].Quantity = &q
	}

	if len(inPeriod) == 0 {
		return
	}

	share := total.Div(decimal.NewFromInt(int64(len(inPeriod)))).Round(quantityPrecision)
	allocated := decimal.Zero

	for n, i := range inPeriod {
		q := share
		if n == len(inPeriod)-1 {
			q = total.Sub(allocated)
		}
		allocated = allocated.Add(q)
		ls.lines[i].Quantity = &q
	}
}

// merge maps submitted quantities onto generated buckets by exact date match.
// An input that matches no bucket means the caller built the form from a
// different grid and the whole submission is rejected. Buckets inside the
// abstraction period that arrive without a quantity default to zero; buckets
// outside it stay empty, matching the zeroing rule of DistributeSingleTotal.
func merge(generated []Line, inputs []LineInput, period values.AbstractionPeriod) ([]Line, error) {
	byKey := make(map[string]int, len(generated))
	for i, line := range generated {
		byKey[line.Key()] = i
	}

	for _, input := range inputs {
		key := input.StartDate + "_" + input.EndDate
		i, ok := byKey[key]
		if !ok {
			return nil, errors.NewBusinessError("PERIOD_MISALIGNED",
				"submitted line does not align to a reporting period").
				WithDetails(map[string]interface{}{
					"startDate": input.StartDate,
					"endDate":   input.EndDate,
				})
		}
		generated[i].Quantity = input.Quantity
	}

	if period.IsEmpty() {
		return generated, nil
	}
	for i := range generated {
		if generated[i].Quantity != nil {
			continue
		}
		if period.Contains(generated[i].StartDate) || period.Contains(generated[i].EndDate) {
			q := decimal.Zero
			generated[i].Quantity = &q
		}
	}

	return generated, nil
}
