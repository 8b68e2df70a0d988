package wizard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/service/wizard"
)

const (
	testReturnID = "v1:1:03/28/78/0033:10021668:2018-04-01:2019-03-31"
	testLicence  = "03/28/78/0033"
)

func newTestReturn(t *testing.T) *returns.WaterReturn {
	t.Helper()

	nald := values.MustNewAbstractionPeriod(1, 4, 31, 10)
	wr, err := returns.NewWaterReturn(
		testReturnID,
		testLicence,
		time.Date(2018, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2019, 3, 31, 0, 0, 0, 0, time.UTC),
		values.MustNewFrequency(values.FrequencyMonth),
		returns.Metadata{Description: "Borehole A", Nald: nald},
	)
	require.NoError(t, err)
	return wr
}

func TestNextPath(t *testing.T) {
	tests := []struct {
		name  string
		setup func(wr *returns.WaterReturn)
		from  wizard.Step
		want  wizard.Step
	}{
		{
			name:  "nil return skips straight to confirmation",
			setup: func(wr *returns.WaterReturn) { wr.SetNilReturn(true) },
			from:  wizard.StepStart,
			want:  wizard.StepConfirm,
		},
		{
			name:  "non-nil return asks for the method",
			setup: func(wr *returns.WaterReturn) { wr.SetNilReturn(false) },
			from:  wizard.StepStart,
			want:  wizard.StepMethod,
		},
		{
			name: "one meter asks about resets before units",
			setup: func(wr *returns.WaterReturn) {
				require.NoError(t, wr.Reading.SetMethod(returns.MethodOneMeter))
			},
			from: wizard.StepMethod,
			want: wizard.StepMeterReset,
		},
		{
			name: "volumes go straight to units",
			setup: func(wr *returns.WaterReturn) {
				require.NoError(t, wr.Reading.SetMethod(returns.MethodAbstractionVolumes))
			},
			from: wizard.StepMethod,
			want: wizard.StepUnits,
		},
		{
			name: "units lead to quantities for volumes",
			setup: func(wr *returns.WaterReturn) {
				require.NoError(t, wr.Reading.SetMethod(returns.MethodAbstractionVolumes))
			},
			from: wizard.StepUnits,
			want: wizard.StepQuantities,
		},
		{
			name: "units lead to readings for one meter",
			setup: func(wr *returns.WaterReturn) {
				require.NoError(t, wr.Reading.SetMethod(returns.MethodOneMeter))
			},
			from: wizard.StepUnits,
			want: wizard.StepMeterReadings,
		},
		{
			name: "measured volumes still need meter details",
			setup: func(wr *returns.WaterReturn) {
				require.NoError(t, wr.Reading.SetMethod(returns.MethodAbstractionVolumes))
				require.NoError(t, wr.Reading.SetReadingType(returns.ReadingTypeMeasured))
			},
			from: wizard.StepQuantities,
			want: wizard.StepMeterDetails,
		},
		{
			name: "estimated volumes skip meter details",
			setup: func(wr *returns.WaterReturn) {
				require.NoError(t, wr.Reading.SetMethod(returns.MethodAbstractionVolumes))
				require.NoError(t, wr.Reading.SetReadingType(returns.ReadingTypeEstimated))
			},
			from: wizard.StepQuantities,
			want: wizard.StepConfirm,
		},
		{
			name:  "meter readings always need meter details",
			setup: func(wr *returns.WaterReturn) {},
			from:  wizard.StepMeterReadings,
			want:  wizard.StepMeterDetails,
		},
		{
			name:  "confirmation completes the journey",
			setup: func(wr *returns.WaterReturn) {},
			from:  wizard.StepConfirm,
			want:  wizard.StepSubmitted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wr := newTestReturn(t)
			tt.setup(wr)
			assert.Equal(t, tt.want, wizard.NextPath(wr, tt.from))
		})
	}
}

func TestPreviousPath(t *testing.T) {
	tests := []struct {
		name  string
		setup func(wr *returns.WaterReturn)
		from  wizard.Step
		want  wizard.Step
	}{
		{
			name: "units back to meter reset for one meter",
			setup: func(wr *returns.WaterReturn) {
				require.NoError(t, wr.Reading.SetMethod(returns.MethodOneMeter))
			},
			from: wizard.StepUnits,
			want: wizard.StepMeterReset,
		},
		{
			name: "units back to method for volumes",
			setup: func(wr *returns.WaterReturn) {
				require.NoError(t, wr.Reading.SetMethod(returns.MethodAbstractionVolumes))
			},
			from: wizard.StepUnits,
			want: wizard.StepMethod,
		},
		{
			name: "meter details back to quantities for volumes",
			setup: func(wr *returns.WaterReturn) {
				require.NoError(t, wr.Reading.SetMethod(returns.MethodAbstractionVolumes))
				require.NoError(t, wr.Reading.SetReadingType(returns.ReadingTypeMeasured))
			},
			from: wizard.StepMeterDetails,
			want: wizard.StepQuantities,
		},
		{
			name: "meter details back to readings for one meter",
			setup: func(wr *returns.WaterReturn) {
				require.NoError(t, wr.Reading.SetMethod(returns.MethodOneMeter))
			},
			from: wizard.StepMeterDetails,
			want: wizard.StepMeterReadings,
		},
		{
			name:  "confirm back to start for nil return",
			setup: func(wr *returns.WaterReturn) { wr.SetNilReturn(true) },
			from:  wizard.StepConfirm,
			want:  wizard.StepStart,
		},
		{
			name: "confirm back to meter details when measured",
			setup: func(wr *returns.WaterReturn) {
				require.NoError(t, wr.Reading.SetMethod(returns.MethodOneMeter))
			},
			from: wizard.StepConfirm,
			want: wizard.StepMeterDetails,
		},
		{
			name: "confirm back to quantities when estimated",
			setup: func(wr *returns.WaterReturn) {
				require.NoError(t, wr.Reading.SetMethod(returns.MethodAbstractionVolumes))
				require.NoError(t, wr.Reading.SetReadingType(returns.ReadingTypeEstimated))
			},
			from: wizard.StepConfirm,
			want: wizard.StepQuantities,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wr := newTestReturn(t)
			tt.setup(wr)
			assert.Equal(t, tt.want, wizard.PreviousPath(wr, tt.from))
		})
	}
}

// Every configuration must reach the submitted step in a bounded number of
// forward transitions without revisiting a step.
func TestForwardFlowTerminates(t *testing.T) {
	configs := []struct {
		name  string
		setup func(wr *returns.WaterReturn)
	}{
		{"nil return", func(wr *returns.WaterReturn) { wr.SetNilReturn(true) }},
		{"one meter", func(wr *returns.WaterReturn) {
			require.NoError(t, wr.Reading.SetMethod(returns.MethodOneMeter))
		}},
		{"volumes measured", func(wr *returns.WaterReturn) {
			require.NoError(t, wr.Reading.SetMethod(returns.MethodAbstractionVolumes))
			require.NoError(t, wr.Reading.SetReadingType(returns.ReadingTypeMeasured))
		}},
		{"volumes estimated", func(wr *returns.WaterReturn) {
			require.NoError(t, wr.Reading.SetMethod(returns.MethodAbstractionVolumes))
			require.NoError(t, wr.Reading.SetReadingType(returns.ReadingTypeEstimated))
		}},
	}

	for _, cfg := range configs {
		t.Run(cfg.name, func(t *testing.T) {
			wr := newTestReturn(t)
			cfg.setup(wr)

			visited := map[wizard.Step]bool{}
			step := wizard.StepStart
			hops := 0
			for step != wizard.StepSubmitted {
				require.False(t, visited[step], "revisited step %s", step)
				visited[step] = true
				step = wizard.NextPath(wr, step)
				hops++
				require.LessOrEqual(t, hops, len(wizard.AllSteps()),
					"flow did not terminate")
			}
			assert.LessOrEqual(t, hops, 8)
		})
	}
}

// PreviousPath is recomputed from current state, so changing an earlier
// answer moves the back-link too.
func TestPreviousPathFollowsStateChanges(t *testing.T) {
	wr := newTestReturn(t)

	require.NoError(t, wr.Reading.SetMethod(returns.MethodOneMeter))
	assert.Equal(t, wizard.StepMeterReset, wizard.PreviousPath(wr, wizard.StepUnits))

	require.NoError(t, wr.Reading.SetMethod(returns.MethodAbstractionVolumes))
	assert.Equal(t, wizard.StepMethod, wizard.PreviousPath(wr, wizard.StepUnits))
}
