package returns

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
)

// MeterReading is one cumulative dial reading covering a reporting period.
// A nil Reading means the user skipped the period; the previous reading
// carries forward.
type MeterReading struct {
	StartDate time.Time        `json:"startDate"`
	EndDate   time.Time        `json:"endDate"`
	Reading   *decimal.Decimal `json:"reading"`
}

// Meter identifies a physical meter and its cumulative readings. Volumes are
// always derived from consecutive reading differences; they are never stored.
type Meter struct {
	Manufacturer string           `json:"manufacturer"`
	SerialNumber string           `json:"serialNumber"`
	Multiplier   int              `json:"multiplier"`
	StartReading *decimal.Decimal `json:"startReading,omitempty"`
	Readings     []MeterReading   `json:"readings,omitempty"`
}

// NewMeter creates a meter with the default ×1 multiplier
func NewMeter() *Meter {
	return &Meter{Multiplier: 1}
}

// SetDetails records the meter identity
func (m *Meter) SetDetails(manufacturer, serialNumber string) error {
	if manufacturer == "" {
		return errors.NewValidationError("MISSING_MANUFACTURER",
			"meter manufacturer is required")
	}
	if serialNumber == "" {
		return errors.NewValidationError("MISSING_SERIAL_NUMBER",
			"meter serial number is required")
	}
	m.Manufacturer = manufacturer
	m.SerialNumber = serialNumber
	return nil
}

// SetMultiplier sets the dial multiplier, which is exactly 1 or 10
func (m *Meter) SetMultiplier(multiplier int) error {
	if multiplier != 1 && multiplier != 10 {
		return errors.NewValidationError("INVALID_MULTIPLIER",
			"meter multiplier must be 1 or 10")
	}
	m.Multiplier = multiplier
	return nil
}

// SetReadings replaces the start reading and the full reading set. Readings
// must be non-decreasing over time; a dial cannot run backwards.
func (m *Meter) SetReadings(startReading decimal.Decimal, readings []MeterReading) error {
	previous := startReading
	for _, r := range readings {
		if r.Reading == nil {
			continue
		}
		if r.Reading.LessThan(previous) {
			return errors.NewBusinessError("DECREASING_READING",
				"meter readings cannot decrease over time").
				WithDetails(map[string]interface{}{
					"startDate": r.StartDate.Format(dateFormat),
					"reading":   r.Reading.String(),
					"previous":  previous.String(),
				})
		}
		previous = *r.Reading
	}

	m.StartReading = &startReading
	m.Readings = readings
	return nil
}

// VolumeLines derives line-shaped volumes from the readings: each period's
// volume is the difference between its reading and the last known reading,
// multiplied by the dial multiplier. Periods without a reading produce a nil
// quantity.
func (m *Meter) VolumeLines(frequency values.Frequency) []Line {
	lines := make([]Line, 0, len(m.Readings))

	previous := decimal.Zero
	if m.StartReading != nil {
		previous = *m.StartReading
	}
	multiplier := decimal.NewFromInt(int64(m.Multiplier))

	for _, r := range m.Readings {
		line := Line{
			StartDate:  r.StartDate,
			EndDate:    r.EndDate,
			TimePeriod: frequency,
		}
		if r.Reading != nil {
			volume := r.Reading.Sub(previous).Mul(multiplier)
			line.Quantity = &volume
			previous = *r.Reading
		}
		lines = append(lines, line)
	}

	return lines
}

// ToObject produces the externally-transmissible projection of the meter
func (m *Meter) ToObject() map[string]interface{} {
	obj := map[string]interface{}{
		"manufacturer": m.Manufacturer,
		"serialNumber": m.SerialNumber,
		"multiplier":   m.Multiplier,
	}
	if m.StartReading != nil {
		obj["startReading"] = m.StartReading.String()
	}
	if len(m.Readings) > 0 {
		readings := make(map[string]interface{}, len(m.Readings))
		for _, r := range m.Readings {
			key := r.StartDate.Format(dateFormat) + "_" + r.EndDate.Format(dateFormat)
			if r.Reading != nil {
				readings[key] = r.Reading.String()
			} else {
				readings[key] = nil
			}
		}
		obj["readings"] = readings
	}
	return obj
}
