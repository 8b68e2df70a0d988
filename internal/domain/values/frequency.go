package values

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Frequency represents the reporting frequency of a return's line buckets
type Frequency struct {
	frequency string
}

// Supported reporting frequencies
const (
	FrequencyDay   = "day"
	FrequencyWeek  = "week"
	FrequencyMonth = "month"
)

var (
	supportedFrequencies = map[string]bool{
		FrequencyDay:   true,
		FrequencyWeek:  true,
		FrequencyMonth: true,
	}

	// Display names used in template filenames ("daily return.csv" etc.)
	frequencyDisplayNames = map[string]string{
		FrequencyDay:   "daily",
		FrequencyWeek:  "weekly",
		FrequencyMonth: "monthly",
	}
)

// NewFrequency creates a new Frequency value object with validation
func NewFrequency(frequency string) (Frequency, error) {
	normalized := strings.ToLower(strings.TrimSpace(frequency))
	if !supportedFrequencies[normalized] {
		return Frequency{}, fmt.Errorf("frequency '%s' is not supported", frequency)
	}
	return Frequency{frequency: normalized}, nil
}

// MustNewFrequency creates a Frequency and panics on error (for constants/tests)
func MustNewFrequency(frequency string) Frequency {
	f, err := NewFrequency(frequency)
	if err != nil {
		panic(err)
	}
	return f
}

// String returns the canonical frequency name
func (f Frequency) String() string {
	return f.frequency
}

// DisplayName returns the adjective form used in filenames and labels
func (f Frequency) DisplayName() string {
	return frequencyDisplayNames[f.frequency]
}

// IsEmpty checks if the frequency is the zero value
func (f Frequency) IsEmpty() bool {
	return f.frequency == ""
}

// Equal checks if two Frequency values are equal
func (f Frequency) Equal(other Frequency) bool {
	return f.frequency == other.frequency
}

// IsDaily reports whether the frequency is day
func (f Frequency) IsDaily() bool {
	return f.frequency == FrequencyDay
}

// IsWeekly reports whether the frequency is week
func (f Frequency) IsWeekly() bool {
	return f.frequency == FrequencyWeek
}

// IsMonthly reports whether the frequency is month
func (f Frequency) IsMonthly() bool {
	return f.frequency == FrequencyMonth
}

// BucketEnd returns the inclusive end date of the bucket starting at the
// given date. Weekly buckets run Sunday to Saturday in the source data, so
// a week bucket is always start+6 days; monthly buckets end on the last day
// of the start's month.
func (f Frequency) BucketEnd(start time.Time) time.Time {
	switch f.frequency {
	case FrequencyDay:
		return start
	case FrequencyWeek:
		return start.AddDate(0, 0, 6)
	case FrequencyMonth:
		return start.AddDate(0, 1, 0).AddDate(0, 0, -start.Day())
	default:
		return start
	}
}

// MarshalJSON implements JSON marshaling
func (f Frequency) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.frequency)
}

// UnmarshalJSON implements JSON unmarshaling
func (f *Frequency) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	frequency, err := NewFrequency(raw)
	if err != nil {
		return err
	}

	*f = frequency
	return nil
}
