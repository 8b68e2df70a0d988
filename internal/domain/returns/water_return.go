package returns

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/validation"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
)

// Status is the lifecycle state of a return
type Status string

const (
	StatusDue       Status = "due"
	StatusReceived  Status = "received"
	StatusCompleted Status = "completed"
	StatusVoid      Status = "void"
)

// UserType distinguishes agency staff from licence holders
type UserType string

const (
	UserTypeInternal UserType = "internal"
	UserTypeExternal UserType = "external"
)

// User is the person submitting a return
type User struct {
	Email    string   `json:"email"`
	EntityID string   `json:"entityId"`
	Type     UserType `json:"type"`
}

// Metadata carries the regulatory context a return was generated against,
// including the NALD abstraction period defaults.
type Metadata struct {
	Description string                   `json:"description,omitempty"`
	Purposes    []string                 `json:"purposes,omitempty"`
	IsSummer    bool                     `json:"isSummer"`
	Nald        values.AbstractionPeriod `json:"nald"`
}

// Version is one historical submission of a return
type Version struct {
	VersionNumber int       `json:"versionNumber"`
	Email         string    `json:"email,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// WaterReturn is the aggregate root for an abstraction return submission.
// It is rebuilt from persisted state at the start of each wizard step,
// mutated in place through its setters, and persisted back at the end of the
// step. Once completed it no longer accepts status changes.
type WaterReturn struct {
	ReturnID      string
	LicenceNumber string
	ReceivedDate  *time.Time
	VersionNumber int
	IsCurrent     bool
	Status        Status
	IsNil         bool
	UnderQuery    bool
	Meters        []*Meter
	Reading       *Reading
	Metadata      Metadata
	StartDate     time.Time
	EndDate       time.Time
	Frequency     values.Frequency
	User          *User
	Versions      []Version

	lines Lines
}

// NewWaterReturn creates a due return for the given reporting window
func NewWaterReturn(returnID, licenceNumber string, startDate, endDate time.Time, frequency values.Frequency, metadata Metadata) (*WaterReturn, error) {
	if err := validation.ValidateReturnID(returnID); err != nil {
		return nil, errors.NewValidationError("INVALID_RETURN_ID", err.Error())
	}
	if err := validation.ValidateLicenceNumber(licenceNumber); err != nil {
		return nil, errors.NewValidationError("INVALID_LICENCE_NUMBER", err.Error())
	}
	if endDate.Before(startDate) {
		return nil, errors.NewValidationError("INVALID_DATE_RANGE",
			"return end date is before the start date")
	}

	return &WaterReturn{
		ReturnID:      returnID,
		LicenceNumber: licenceNumber,
		Status:        StatusDue,
		Reading:       NewReading(),
		Meters:        []*Meter{},
		Metadata:      metadata,
		StartDate:     startDate,
		EndDate:       endDate,
		Frequency:     frequency,
	}, nil
}

// SetNilReturn flags the return as reporting no abstraction. Quantity detail
// is retained in memory but excluded from the external projection.
func (wr *WaterReturn) SetNilReturn(isNil bool) {
	wr.IsNil = isNil
}

// IsNilReturn reports whether this is a nil return
func (wr *WaterReturn) IsNilReturn() bool {
	return wr.IsNil
}

// SetUser records the submitting user after validating the email and CRM
// entity ID formats. These are last-line defensive checks; the form layer is
// the primary validator.
func (wr *WaterReturn) SetUser(email, entityID string, isInternal bool) error {
	if err := validation.ValidateEmail(email); err != nil {
		return errors.NewValidationError("INVALID_EMAIL", err.Error())
	}
	if err := validation.ValidateEntityID(entityID); err != nil {
		return errors.NewValidationError("INVALID_ENTITY_ID", err.Error())
	}

	userType := UserTypeExternal
	if isInternal {
		userType = UserTypeInternal
	}
	wr.User = &User{Email: email, EntityID: entityID, Type: userType}
	return nil
}

// SetStatus replaces the status. Completed is terminal: once a return is
// completed further status changes are silently ignored.
func (wr *WaterReturn) SetStatus(status Status) {
	if wr.Status == StatusCompleted {
		return
	}
	wr.Status = status
}

// SetReceivedDate sets the received date; with no argument semantics, a nil
// date means "now" at call time.
func (wr *WaterReturn) SetReceivedDate(date *time.Time) {
	if date == nil {
		now := clock.Now()
		wr.ReceivedDate = &now
		return
	}
	wr.ReceivedDate = date
}

// SetUnderQuery flags the return as under query by agency staff
func (wr *WaterReturn) SetUnderQuery(underQuery bool) {
	wr.UnderQuery = underQuery
}

// SetLines regenerates the bucket set for the return window and maps the
// submitted quantities onto it, replacing the full line set. The effective
// abstraction period (the reading's custom period when one is set, else the
// regulatory default) decides which unsupplied buckets default to zero.
func (wr *WaterReturn) SetLines(inputs []LineInput) error {
	generated := GenerateLines(wr.StartDate, wr.EndDate, wr.Frequency)
	merged, err := merge(generated, inputs, wr.GetAbstractionPeriod())
	if err != nil {
		return err
	}
	wr.lines = NewLines(merged)
	return nil
}

// Lines returns the raw line collection
func (wr *WaterReturn) Lines() Lines {
	return wr.lines
}

// GetLines returns the externally-visible lines: nothing for a nil return,
// meter-derived volumes when the return is from a single meter, otherwise
// the raw line set. Meter dial readings stay in the reporting units; their
// derived volumes are converted to cubic metres here.
func (wr *WaterReturn) GetLines() []Line {
	if wr.IsNil {
		return nil
	}
	if wr.Reading != nil && wr.Reading.IsOneMeter() {
		meter := wr.CurrentMeter()
		if meter == nil {
			return nil
		}
		lines := meter.VolumeLines(wr.Frequency)
		units := wr.Reading.Units()
		for i := range lines {
			if lines[i].Quantity != nil {
				q := units.ToCubicMetres(*lines[i].Quantity)
				lines[i].Quantity = &q
			}
		}
		return lines
	}
	return wr.lines.Slice()
}

// CurrentMeter returns the meter the return's readings belong to. The data
// model allows several but only the first is meaningful for a oneMeter
// return.
func (wr *WaterReturn) CurrentMeter() *Meter {
	if len(wr.Meters) == 0 {
		return nil
	}
	return wr.Meters[0]
}

// SetMeter replaces the meter set with a single meter
func (wr *WaterReturn) SetMeter(meter *Meter) {
	wr.Meters = []*Meter{meter}
}

// UpdateSingleTotalLines redistributes the reading's single total quantity
// across the line buckets inside the effective abstraction period. Returns
// the aggregate to allow chaining.
func (wr *WaterReturn) UpdateSingleTotalLines() *WaterReturn {
	total := wr.Reading.Total()
	if total == nil {
		return wr
	}
	if wr.lines.IsEmpty() {
		wr.lines = NewLines(GenerateLines(wr.StartDate, wr.EndDate, wr.Frequency))
	}
	wr.lines.DistributeSingleTotal(*total, wr.GetAbstractionPeriod())
	return wr
}

// IncrementVersionNumber bumps the version by exactly one (starting at 1)
// and marks this version as current. There is no decrement.
func (wr *WaterReturn) IncrementVersionNumber() {
	wr.VersionNumber++
	wr.IsCurrent = true
}

// GetAbstractionPeriod returns the custom period from the reading sub-model
// if one is set, falling back to the regulatory metadata default.
func (wr *WaterReturn) GetAbstractionPeriod() values.AbstractionPeriod {
	if wr.Reading != nil {
		if period, ok := wr.Reading.CustomAbstractionPeriod(); ok {
			return period
		}
	}
	return wr.Metadata.Nald
}

// GetReturnTotal sums quantities across all lines, treating nil as zero
func (wr *WaterReturn) GetReturnTotal() decimal.Decimal {
	return wr.lines.Total()
}

// ToObject produces the externally-persistable projection. A nil return
// carries no quantity data: the lines, meters and reading keys are absent,
// not nulled. An estimated return has no physical meter, so meters is forced
// empty.
func (wr *WaterReturn) ToObject() map[string]interface{} {
	obj := map[string]interface{}{
		"returnId":      wr.ReturnID,
		"licenceNumber": wr.LicenceNumber,
		"receivedDate":  nil,
		"versionNumber": wr.VersionNumber,
		"isCurrent":     wr.IsCurrent,
		"status":        string(wr.Status),
		"isNil":         wr.IsNil,
		"isUnderQuery":  wr.UnderQuery,
		"metadata":      wr.Metadata,
		"startDate":     wr.StartDate.Format(dateFormat),
		"endDate":       wr.EndDate.Format(dateFormat),
		"frequency":     wr.Frequency.String(),
		"user":          wr.User,
		"versions":      wr.Versions,
	}
	if wr.ReceivedDate != nil {
		obj["receivedDate"] = wr.ReceivedDate.Format(dateFormat)
	}

	if wr.IsNil {
		return obj
	}

	meters := make([]map[string]interface{}, 0, len(wr.Meters))
	if wr.Reading == nil || !wr.Reading.IsEstimated() {
		for _, m := range wr.Meters {
			meters = append(meters, m.ToObject())
		}
	}
	obj["meters"] = meters

	if wr.Reading != nil {
		obj["reading"] = wr.Reading.ToObject()
	}

	lines := wr.GetLines()
	lineObjs := make([]map[string]interface{}, 0, len(lines))
	for _, line := range lines {
		lineObj := map[string]interface{}{
			"startDate":  line.StartDate.Format(dateFormat),
			"endDate":    line.EndDate.Format(dateFormat),
			"timePeriod": line.TimePeriod.String(),
			"quantity":   nil,
		}
		if line.Quantity != nil {
			lineObj["quantity"] = line.Quantity.String()
		}
		lineObjs = append(lineObjs, lineObj)
	}
	obj["lines"] = lineObjs

	return obj
}

// waterReturnJSON is the full-fidelity shape used for wizard state
// persistence; unlike ToObject it never suppresses detail, so a user can
// untick "nil return" without losing entered quantities.
type waterReturnJSON struct {
	ReturnID      string           `json:"returnId"`
	LicenceNumber string           `json:"licenceNumber"`
	ReceivedDate  *time.Time       `json:"receivedDate,omitempty"`
	VersionNumber int              `json:"versionNumber,omitempty"`
	IsCurrent     bool             `json:"isCurrent"`
	Status        Status           `json:"status"`
	IsNil         bool             `json:"isNil"`
	UnderQuery    bool             `json:"isUnderQuery"`
	Meters        []*Meter         `json:"meters"`
	Reading       *Reading         `json:"reading"`
	Lines         []Line           `json:"lines"`
	Metadata      Metadata         `json:"metadata"`
	StartDate     time.Time        `json:"startDate"`
	EndDate       time.Time        `json:"endDate"`
	Frequency     values.Frequency `json:"frequency"`
	User          *User            `json:"user,omitempty"`
	Versions      []Version        `json:"versions,omitempty"`
}

// MarshalJSON implements JSON marshaling
func (wr *WaterReturn) MarshalJSON() ([]byte, error) {
	return json.Marshal(waterReturnJSON{
		ReturnID:      wr.ReturnID,
		LicenceNumber: wr.LicenceNumber,
		ReceivedDate:  wr.ReceivedDate,
		VersionNumber: wr.VersionNumber,
		IsCurrent:     wr.IsCurrent,
		Status:        wr.Status,
		IsNil:         wr.IsNil,
		UnderQuery:    wr.UnderQuery,
		Meters:        wr.Meters,
		Reading:       wr.Reading,
		Lines:         wr.lines.Slice(),
		Metadata:      wr.Metadata,
		StartDate:     wr.StartDate,
		EndDate:       wr.EndDate,
		Frequency:     wr.Frequency,
		User:          wr.User,
		Versions:      wr.Versions,
	})
}

// UnmarshalJSON implements JSON unmarshaling
func (wr *WaterReturn) UnmarshalJSON(data []byte) error {
	var raw waterReturnJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	wr.ReturnID = raw.ReturnID
	wr.LicenceNumber = raw.LicenceNumber
	wr.ReceivedDate = raw.ReceivedDate
	wr.VersionNumber = raw.VersionNumber
	wr.IsCurrent = raw.IsCurrent
	wr.Status = raw.Status
	wr.IsNil = raw.IsNil
	wr.UnderQuery = raw.UnderQuery
	wr.Meters = raw.Meters
	wr.Reading = raw.Reading
	wr.lines = NewLines(raw.Lines)
	wr.Metadata = raw.Metadata
	wr.StartDate = raw.StartDate
	wr.EndDate = raw.EndDate
	wr.Frequency = raw.Frequency
	wr.User = raw.User
	wr.Versions = raw.Versions

	if wr.Reading == nil {
		wr.Reading = NewReading()
	}
	if wr.Meters == nil {
		wr.Meters = []*Meter{}
	}
	return nil
}
