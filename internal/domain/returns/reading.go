package returns

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
)

// Method is how quantities on a return were collected
type Method string

const (
	MethodOneMeter           Method = "oneMeter"
	MethodAbstractionVolumes Method = "abstractionVolumes"
)

// ReadingType distinguishes physically measured data from estimates
type ReadingType string

const (
	ReadingTypeMeasured  ReadingType = "measured"
	ReadingTypeEstimated ReadingType = "estimated"
)

// Reading holds how the quantities on a return were collected: the method,
// whether they are measured or estimated, the reporting units, and any
// single-total or custom abstraction period settings.
//
// The (method, type) pair is kept legal by the setters: a single meter is by
// definition measured, so SetMethod(MethodOneMeter) cascades the type and
// SetReadingType rejects the estimated/oneMeter combination.
type Reading struct {
	method           Method
	readingType      ReadingType
	units            values.Units
	totalFlag        bool
	total            *decimal.Decimal
	totalCustomDates bool
	totalStartDate   *time.Time
	totalEndDate     *time.Time
	customPeriod     values.AbstractionPeriod
}

// NewReading creates an empty reading sub-model defaulting to cubic metres
func NewReading() *Reading {
	return &Reading{
		units: values.MustNewUnits(values.UnitsCubicMetres),
	}
}

// SetMethod sets the collection method. Selecting a single meter forces the
// reading type to measured.
func (r *Reading) SetMethod(method Method) error {
	switch method {
	case MethodOneMeter:
		r.method = method
		r.readingType = ReadingTypeMeasured
	case MethodAbstractionVolumes:
		r.method = method
	default:
		return errors.NewValidationError("INVALID_METHOD",
			"method must be oneMeter or abstractionVolumes")
	}
	return nil
}

// SetReadingType sets whether quantities are measured or estimated
func (r *Reading) SetReadingType(readingType ReadingType) error {
	if readingType != ReadingTypeMeasured && readingType != ReadingTypeEstimated {
		return errors.NewValidationError("INVALID_READING_TYPE",
			"reading type must be measured or estimated")
	}
	if r.method == MethodOneMeter && readingType == ReadingTypeEstimated {
		return errors.NewBusinessError("METER_CANNOT_ESTIMATE",
			"a single meter reading cannot be an estimate")
	}
	r.readingType = readingType
	return nil
}

// SetUnits sets the reporting units
func (r *Reading) SetUnits(units values.Units) {
	r.units = units
}

// SetSingleTotal records that the user reported one total quantity rather
// than per-period values. Passing false clears any previous total.
func (r *Reading) SetSingleTotal(totalFlag bool, total *decimal.Decimal) error {
	if totalFlag && total == nil {
		return errors.NewValidationError("MISSING_TOTAL",
			"a total quantity is required when the single total flag is set")
	}
	r.totalFlag = totalFlag
	if totalFlag {
		r.total = total
	} else {
		r.total = nil
		r.totalCustomDates = false
		r.totalStartDate = nil
		r.totalEndDate = nil
	}
	return nil
}

// SetCustomTotalDates restricts a single total to an explicit date range
func (r *Reading) SetCustomTotalDates(startDate, endDate time.Time) error {
	if !r.totalFlag {
		return errors.NewBusinessError("NO_SINGLE_TOTAL",
			"custom total dates require the single total flag")
	}
	if endDate.Before(startDate) {
		return errors.NewValidationError("INVALID_DATE_RANGE",
			"custom total end date is before the start date")
	}
	r.totalCustomDates = true
	r.totalStartDate = &startDate
	r.totalEndDate = &endDate
	return nil
}

// SetCustomAbstractionPeriod overrides the regulatory default abstraction
// period for line generation
func (r *Reading) SetCustomAbstractionPeriod(period values.AbstractionPeriod) {
	r.customPeriod = period
}

// ClearCustomAbstractionPeriod reverts to the regulatory default
func (r *Reading) ClearCustomAbstractionPeriod() {
	r.customPeriod = values.AbstractionPeriod{}
}

// CustomAbstractionPeriod returns the custom period if one is set
func (r *Reading) CustomAbstractionPeriod() (values.AbstractionPeriod, bool) {
	return r.customPeriod, !r.customPeriod.IsEmpty()
}

// IsOneMeter reports whether quantities come from a single meter
func (r *Reading) IsOneMeter() bool {
	return r.method == MethodOneMeter
}

// IsVolumes reports whether quantities are reported as abstraction volumes
func (r *Reading) IsVolumes() bool {
	return r.method == MethodAbstractionVolumes
}

// IsMeasured reports whether quantities are physically measured
func (r *Reading) IsMeasured() bool {
	return r.readingType == ReadingTypeMeasured
}

// IsEstimated reports whether quantities are estimates
func (r *Reading) IsEstimated() bool {
	return r.readingType == ReadingTypeEstimated
}

// IsSingleTotal reports whether one total is spread across the period
func (r *Reading) IsSingleTotal() bool {
	return r.totalFlag
}

// Total returns the single total quantity if one was reported
func (r *Reading) Total() *decimal.Decimal {
	return r.total
}

// Method returns the collection method
func (r *Reading) Method() Method {
	return r.method
}

// Type returns the reading type
func (r *Reading) Type() ReadingType {
	return r.readingType
}

// Units returns the reporting units
func (r *Reading) Units() values.Units {
	return r.units
}

type readingJSON struct {
	Method           Method                    `json:"method"`
	Type             ReadingType               `json:"type"`
	Units            values.Units              `json:"units"`
	TotalFlag        bool                      `json:"totalFlag"`
	Total            *decimal.Decimal          `json:"total,omitempty"`
	TotalCustomDates bool                      `json:"totalCustomDates"`
	TotalStartDate   *time.Time                `json:"totalCustomDateStart,omitempty"`
	TotalEndDate     *time.Time                `json:"totalCustomDateEnd,omitempty"`
	CustomPeriod     *values.AbstractionPeriod `json:"customAbstractionPeriod,omitempty"`
}

// MarshalJSON implements JSON marshaling
func (r *Reading) MarshalJSON() ([]byte, error) {
	out := readingJSON{
		Method:           r.method,
		Type:             r.readingType,
		Units:            r.units,
		TotalFlag:        r.totalFlag,
		Total:            r.total,
		TotalCustomDates: r.totalCustomDates,
		TotalStartDate:   r.totalStartDate,
		TotalEndDate:     r.totalEndDate,
	}
	if !r.customPeriod.IsEmpty() {
		period := r.customPeriod
		out.CustomPeriod = &period
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements JSON unmarshaling
func (r *Reading) UnmarshalJSON(data []byte) error {
	var raw readingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.method = raw.Method
	r.readingType = raw.Type
	r.units = raw.Units
	r.totalFlag = raw.TotalFlag
	r.total = raw.Total
	r.totalCustomDates = raw.TotalCustomDates
	r.totalStartDate = raw.TotalStartDate
	r.totalEndDate = raw.TotalEndDate
	if raw.CustomPeriod != nil {
		r.customPeriod = *raw.CustomPeriod
	} else {
		r.customPeriod = values.AbstractionPeriod{}
	}
	return nil
}

// ToObject produces the externally-transmissible projection of the reading
func (r *Reading) ToObject() map[string]interface{} {
	obj := map[string]interface{}{
		"method":    string(r.method),
		"type":      string(r.readingType),
		"units":     r.units.String(),
		"totalFlag": r.totalFlag,
	}
	if r.total != nil {
		obj["total"] = r.total.String()
	}
	if r.totalCustomDates {
		obj["totalCustomDates"] = true
		obj["totalCustomDateStart"] = r.totalStartDate.Format(dateFormat)
		obj["totalCustomDateEnd"] = r.totalEndDate.Format(dateFormat)
	}
	if period, ok := r.CustomAbstractionPeriod(); ok {
		obj["customAbstractionPeriod"] = period
	}
	return obj
}
