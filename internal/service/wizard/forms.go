package wizard

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Form payloads for each wizard step. The schema layer here is the primary
// validator; the aggregate's own setter checks are a second line of defense.

type StartForm struct {
	IsNil *bool `json:"isNil" validate:"required"`
}

type MethodForm struct {
	Method      string `json:"method" validate:"required,oneof=oneMeter abstractionVolumes"`
	ReadingType string `json:"type" validate:"required_if=Method abstractionVolumes,omitempty,oneof=measured estimated"`
}

type MeterResetForm struct {
	MeterReset *bool `json:"meterReset" validate:"required"`
}

type UnitsForm struct {
	Units string `json:"units" validate:"required,oneof=m³ l Ml gal"`
}

type LineQuantityForm struct {
	StartDate string           `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string           `json:"endDate" validate:"required,datetime=2006-01-02"`
	Quantity  *decimal.Decimal `json:"quantity"`
}

type QuantitiesForm struct {
	IsSingleTotal bool               `json:"isSingleTotal"`
	Total         *decimal.Decimal   `json:"total" validate:"required_if=IsSingleTotal true"`
	Lines         []LineQuantityForm `json:"lines" validate:"required_if=IsSingleTotal false,dive"`
}

type MeterReadingForm struct {
	StartDate string           `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string           `json:"endDate" validate:"required,datetime=2006-01-02"`
	Reading   *decimal.Decimal `json:"reading"`
}

type MeterReadingsForm struct {
	StartReading *decimal.Decimal   `json:"startReading" validate:"required"`
	Readings     []MeterReadingForm `json:"readings" validate:"required,min=1,dive"`
}

type MeterDetailsForm struct {
	Manufacturer string `json:"manufacturer" validate:"required,max=64"`
	SerialNumber string `json:"serialNumber" validate:"required,max=32"`
	IsMultiplier bool   `json:"isMultiplier"`
}

type ConfirmForm struct {
	Email      string `json:"email" validate:"required,email"`
	EntityID   string `json:"entityId" validate:"required,uuid"`
	IsInternal bool   `json:"isInternal"`
	UnderQuery bool   `json:"isUnderQuery"`
}

// FieldErrors maps a form field to its validation failure messages
type FieldErrors map[string][]string

// decodeAndValidate unmarshals a step payload and runs the schema checks,
// returning field-level errors rather than an exception for user mistakes.
func decodeAndValidate(v *validator.Validate, payload []byte, form interface{}) (FieldErrors, error) {
	if err := json.Unmarshal(payload, form); err != nil {
		return FieldErrors{"": {"request body is not valid JSON"}}, nil
	}

	err := v.Struct(form)
	if err == nil {
		return nil, nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, fmt.Errorf("form schema misconfigured: %w", err)
	}

	fields := FieldErrors{}
	for _, fe := range validationErrs {
		name := fieldName(fe)
		fields[name] = append(fields[name], fieldMessage(fe))
	}
	return fields, nil
}

// fieldName lowercases the leading struct segment off the namespace so
// errors are keyed the way the JSON payload spells them
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if ns == "" {
		return fe.Field()
	}
	return strings.ToLower(ns[:1]) + ns[1:]
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "this field is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("requires at least %s entries", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func parseFormDate(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}
