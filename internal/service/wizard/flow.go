package wizard

import (
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
)

// NextPath computes the step that follows the given one, driven entirely by
// the aggregate's current answers. The wizard keeps no navigation history:
// state is the single source of truth for both directions.
func NextPath(wr *returns.WaterReturn, step Step) Step {
	switch step {
	case StepStart:
		if wr.IsNilReturn() {
			return StepConfirm
		}
		return StepMethod

	case StepMethod:
		if wr.Reading.IsOneMeter() {
			return StepMeterReset
		}
		return StepUnits

	case StepMeterReset:
		return StepUnits

	case StepUnits:
		if wr.Reading.IsVolumes() {
			return StepQuantities
		}
		return StepMeterReadings

	case StepQuantities:
		if wr.Reading.IsMeasured() {
			return StepMeterDetails
		}
		return StepConfirm

	case StepMeterReadings:
		return StepMeterDetails

	case StepMeterDetails:
		return StepConfirm

	case StepConfirm:
		return StepSubmitted

	default:
		return StepSubmitted
	}
}

// PreviousPath computes the back-link for a step against the aggregate's
// current state, not the state at the time the forward step was taken. A
// user who changes an earlier answer sees a recomputed back-link.
func PreviousPath(wr *returns.WaterReturn, step Step) Step {
	switch step {
	case StepMethod:
		return StepStart

	case StepMeterReset:
		return StepMethod

	case StepUnits:
		if wr.Reading.IsOneMeter() {
			return StepMeterReset
		}
		return StepMethod

	case StepQuantities, StepMeterReadings:
		return StepUnits

	case StepMeterDetails:
		if wr.Reading.IsVolumes() {
			return StepQuantities
		}
		return StepMeterReadings

	case StepConfirm:
		switch {
		case wr.IsNilReturn():
			return StepStart
		case wr.Reading.IsMeasured():
			return StepMeterDetails
		default:
			return StepQuantities
		}

	case StepSubmitted:
		return StepConfirm

	default:
		return StepStart
	}
}
