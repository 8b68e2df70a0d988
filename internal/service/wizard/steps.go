package wizard

// Step identifies one screen of the return submission wizard
type Step int

const (
	StepStart Step = iota
	StepMethod
	StepMeterReset
	StepUnits
	StepQuantities
	StepMeterReadings
	StepMeterDetails
	StepConfirm
	StepSubmitted
)

func (s Step) String() string {
	switch s {
	case StepStart:
		return "start"
	case StepMethod:
		return "method"
	case StepMeterReset:
		return "meter_reset"
	case StepUnits:
		return "units"
	case StepQuantities:
		return "quantities"
	case StepMeterReadings:
		return "meter_readings"
	case StepMeterDetails:
		return "meter_details"
	case StepConfirm:
		return "confirm"
	case StepSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Path returns the URL path for the step; the return identifier is carried
// in the query string by the caller.
func (s Step) Path() string {
	switch s {
	case StepStart:
		return "/return"
	case StepMethod:
		return "/return/method"
	case StepMeterReset:
		return "/return/meter-reset"
	case StepUnits:
		return "/return/units"
	case StepQuantities:
		return "/return/quantities"
	case StepMeterReadings:
		return "/return/meter/readings"
	case StepMeterDetails:
		return "/return/meter/details"
	case StepConfirm:
		return "/return/confirm"
	case StepSubmitted:
		return "/return/submitted"
	default:
		return "/return"
	}
}

// StepFromPath resolves a URL path back to its step
func StepFromPath(path string) (Step, bool) {
	for _, s := range AllSteps() {
		if s.Path() == path {
			return s, true
		}
	}
	return StepStart, false
}

// AllSteps returns every step in forward display order
func AllSteps() []Step {
	return []Step{
		StepStart,
		StepMethod,
		StepMeterReset,
		StepUnits,
		StepQuantities,
		StepMeterReadings,
		StepMeterDetails,
		StepConfirm,
		StepSubmitted,
	}
}
