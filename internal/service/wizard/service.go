package wizard

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
)

// Service drives the return submission wizard. Each step loads the aggregate
// from the state store, applies exactly one mutation on a valid POST, saves,
// and answers with the next path computed from the updated state.
type Service struct {
	store    StateStore
	logger   *zap.Logger
	validate *validator.Validate
}

// NewService creates a new wizard service
func NewService(store StateStore, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		logger:   logger,
		validate: validator.New(),
	}
}

// StepView is the render model for a GET: the form prefilled from the
// aggregate plus the back-link computed from current state.
type StepView struct {
	Step     string      `json:"step"`
	Path     string      `json:"path"`
	Back     string      `json:"back,omitempty"`
	ReturnID string      `json:"returnId"`
	Form     interface{} `json:"form,omitempty"`
}

// StepResult is the outcome of a POST: a redirect on success, field-level
// errors on validation failure. Validation failure never mutates state.
type StepResult struct {
	Redirect    string      `json:"redirect,omitempty"`
	FieldErrors FieldErrors `json:"fieldErrors,omitempty"`
}

// OK reports whether the step was applied
func (r *StepResult) OK() bool {
	return len(r.FieldErrors) == 0
}

// PathFor builds the URL for a step carrying the return identifier
func PathFor(step Step, returnID string) string {
	return step.Path() + "?returnId=" + url.QueryEscape(returnID)
}

// GetStep loads the aggregate and produces the render model for a step
func (s *Service) GetStep(ctx context.Context, returnID string, step Step) (*StepView, error) {
	wr, err := s.store.Get(ctx, returnID)
	if err != nil {
		return nil, errors.Wrap(err, "loading return")
	}

	view := &StepView{
		Step:     step.String(),
		Path:     PathFor(step, returnID),
		ReturnID: returnID,
		Form:     s.prefill(wr, step),
	}
	if step != StepStart && step != StepSubmitted {
		view.Back = PathFor(PreviousPath(wr, step), returnID)
	}
	return view, nil
}

// PostStep validates a step payload and, on success, applies the step's
// mutation and persists the aggregate. The redirect carries the return
// identifier in the query string.
func (s *Service) PostStep(ctx context.Context, returnID string, step Step, payload []byte) (*StepResult, error) {
	wr, err := s.store.Get(ctx, returnID)
	if err != nil {
		return nil, errors.Wrap(err, "loading return")
	}

	fieldErrs, err := s.applyStep(wr, step, payload)
	if err != nil {
		return nil, err
	}
	if len(fieldErrs) > 0 {
		return &StepResult{FieldErrors: fieldErrs}, nil
	}

	if step == StepConfirm {
		if err := s.store.Submit(ctx, wr); err != nil {
			return nil, errors.Wrap(err, "submitting return")
		}
		s.logger.Info("return submitted",
			zap.String("return_id", wr.ReturnID),
			zap.Int("version", wr.VersionNumber))
	} else {
		if err := s.store.Set(ctx, wr); err != nil {
			return nil, errors.Wrap(err, "saving return")
		}
	}

	return &StepResult{Redirect: PathFor(NextPath(wr, step), returnID)}, nil
}

// applyStep decodes, validates and applies the single mutation for a step.
// Domain-level business failures on user-entered data (a decreasing meter
// reading, a misaligned line) surface as field errors, not exceptions.
func (s *Service) applyStep(wr *returns.WaterReturn, step Step, payload []byte) (FieldErrors, error) {
	switch step {
	case StepStart:
		var form StartForm
		if fe, err := decodeAndValidate(s.validate, payload, &form); fe != nil || err != nil {
			return fe, err
		}
		// Mutation: nil-return flag
		wr.SetNilReturn(*form.IsNil)
		return nil, nil

	case StepMethod:
		var form MethodForm
		if fe, err := decodeAndValidate(s.validate, payload, &form); fe != nil || err != nil {
			return fe, err
		}
		// Mutation: collection method (cascades reading type for oneMeter)
		if err := wr.Reading.SetMethod(returns.Method(form.Method)); err != nil {
			return nil, err
		}
		if form.ReadingType != "" && !wr.Reading.IsOneMeter() {
			if err := wr.Reading.SetReadingType(returns.ReadingType(form.ReadingType)); err != nil {
				return nil, err
			}
		}
		return nil, nil

	case StepMeterReset:
		var form MeterResetForm
		if fe, err := decodeAndValidate(s.validate, payload, &form); fe != nil || err != nil {
			return fe, err
		}
		// Mutation: a reset meter cannot provide readings, so the method
		// falls back to abstraction volumes
		method := returns.MethodOneMeter
		if *form.MeterReset {
			method = returns.MethodAbstractionVolumes
		}
		return nil, wr.Reading.SetMethod(method)

	case StepUnits:
		var form UnitsForm
		if fe, err := decodeAndValidate(s.validate, payload, &form); fe != nil || err != nil {
			return fe, err
		}
		units, err := values.NewUnits(form.Units)
		if err != nil {
			return FieldErrors{"units": {err.Error()}}, nil
		}
		// Mutation: reporting units
		wr.Reading.SetUnits(units)
		return nil, nil

	case StepQuantities:
		var form QuantitiesForm
		if fe, err := decodeAndValidate(s.validate, payload, &form); fe != nil || err != nil {
			return fe, err
		}
		// Mutation: full line set, either from a single total or per period.
		// Quantities arrive in the reporting units chosen earlier and are
		// stored as cubic metres.
		units := wr.Reading.Units()
		if form.IsSingleTotal {
			total := form.Total
			if total != nil {
				converted := units.ToCubicMetres(*total)
				total = &converted
			}
			if err := wr.Reading.SetSingleTotal(true, total); err != nil {
				return nil, err
			}
			wr.UpdateSingleTotalLines()
			return nil, nil
		}
		inputs := make([]returns.LineInput, 0, len(form.Lines))
		for _, l := range form.Lines {
			quantity := l.Quantity
			if quantity != nil {
				converted := units.ToCubicMetres(*quantity)
				quantity = &converted
			}
			inputs = append(inputs, returns.LineInput{
				StartDate: l.StartDate,
				EndDate:   l.EndDate,
				Quantity:  quantity,
			})
		}
		if err := wr.SetLines(inputs); err != nil {
			if errors.IsBusiness(err) {
				return FieldErrors{"lines": {err.Error()}}, nil
			}
			return nil, err
		}
		return nil, nil

	case StepMeterReadings:
		var form MeterReadingsForm
		if fe, err := decodeAndValidate(s.validate, payload, &form); fe != nil || err != nil {
			return fe, err
		}
		meter := wr.CurrentMeter()
		if meter == nil {
			meter = returns.NewMeter()
		}
		readings := make([]returns.MeterReading, 0, len(form.Readings))
		for _, r := range form.Readings {
			readings = append(readings, returns.MeterReading{
				StartDate: parseFormDate(r.StartDate),
				EndDate:   parseFormDate(r.EndDate),
				Reading:   r.Reading,
			})
		}
		// Mutation: meter reading set
		if err := meter.SetReadings(*form.StartReading, readings); err != nil {
			if errors.IsBusiness(err) {
				return FieldErrors{"readings": {err.Error()}}, nil
			}
			return nil, err
		}
		wr.SetMeter(meter)
		return nil, nil

	case StepMeterDetails:
		var form MeterDetailsForm
		if fe, err := decodeAndValidate(s.validate, payload, &form); fe != nil || err != nil {
			return fe, err
		}
		meter := wr.CurrentMeter()
		if meter == nil {
			meter = returns.NewMeter()
		}
		// Mutation: meter identity and multiplier
		if err := meter.SetDetails(form.Manufacturer, form.SerialNumber); err != nil {
			return nil, err
		}
		multiplier := 1
		if form.IsMultiplier {
			multiplier = 10
		}
		if err := meter.SetMultiplier(multiplier); err != nil {
			return nil, err
		}
		wr.SetMeter(meter)
		return nil, nil

	case StepConfirm:
		var form ConfirmForm
		if fe, err := decodeAndValidate(s.validate, payload, &form); fe != nil || err != nil {
			return fe, err
		}
		// Mutation: the submission itself. The four effects are atomic from
		// the caller's perspective: in-memory mutations followed by one
		// persistence call.
		if err := wr.SetUser(form.Email, form.EntityID, form.IsInternal); err != nil {
			return nil, err
		}
		wr.SetUnderQuery(form.UnderQuery)
		wr.SetStatus(returns.StatusCompleted)
		wr.SetReceivedDate(nil)
		// Increments on every confirm, including a re-submit of an already
		// completed return. SetStatus is idempotent but this is not; see the
		// regression test before relying on it.
		wr.IncrementVersionNumber()
		return nil, nil

	default:
		return nil, fmt.Errorf("step %s does not accept submissions", step)
	}
}

// prefill builds the form values a GET pre-populates from current state
func (s *Service) prefill(wr *returns.WaterReturn, step Step) interface{} {
	switch step {
	case StepStart:
		isNil := wr.IsNilReturn()
		return StartForm{IsNil: &isNil}

	case StepMethod:
		return MethodForm{
			Method:      string(wr.Reading.Method()),
			ReadingType: string(wr.Reading.Type()),
		}

	case StepMeterReset:
		return MeterResetForm{}

	case StepUnits:
		return UnitsForm{Units: wr.Reading.Units().String()}

	case StepQuantities:
		lines := wr.Lines().Slice()
		if len(lines) == 0 {
			lines = returns.GenerateLines(wr.StartDate, wr.EndDate, wr.Frequency)
		}
		form := QuantitiesForm{
			IsSingleTotal: wr.Reading.IsSingleTotal(),
			Total:         wr.Reading.Total(),
		}
		for _, l := range lines {
			form.Lines = append(form.Lines, LineQuantityForm{
				StartDate: l.StartDate.Format("2006-01-02"),
				EndDate:   l.EndDate.Format("2006-01-02"),
				Quantity:  l.Quantity,
			})
		}
		return form

	case StepMeterReadings:
		form := MeterReadingsForm{}
		meter := wr.CurrentMeter()
		if meter != nil {
			form.StartReading = meter.StartReading
			for _, r := range meter.Readings {
				form.Readings = append(form.Readings, MeterReadingForm{
					StartDate: r.StartDate.Format("2006-01-02"),
					EndDate:   r.EndDate.Format("2006-01-02"),
					Reading:   r.Reading,
				})
			}
			return form
		}
		for _, l := range returns.GenerateLines(wr.StartDate, wr.EndDate, wr.Frequency) {
			form.Readings = append(form.Readings, MeterReadingForm{
				StartDate: l.StartDate.Format("2006-01-02"),
				EndDate:   l.EndDate.Format("2006-01-02"),
			})
		}
		return form

	case StepMeterDetails:
		form := MeterDetailsForm{}
		if meter := wr.CurrentMeter(); meter != nil {
			form.Manufacturer = meter.Manufacturer
			form.SerialNumber = meter.SerialNumber
			form.IsMultiplier = meter.Multiplier == 10
		}
		return form

	case StepConfirm:
		return map[string]interface{}{
			"isNil":      wr.IsNilReturn(),
			"total":      wr.GetReturnTotal().String(),
			"lines":      wr.GetLines(),
			"underQuery": wr.UnderQuery,
		}

	default:
		return nil
	}
}
