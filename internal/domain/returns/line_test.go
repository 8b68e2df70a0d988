package returns_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewLine(t *testing.T) {
	day := values.MustNewFrequency("day")
	week := values.MustNewFrequency("week")

	tests := []struct {
		name      string
		start     time.Time
		end       time.Time
		frequency values.Frequency
		wantErr   bool
	}{
		{
			name:      "daily line",
			start:     date(2018, 4, 1),
			end:       date(2018, 4, 1),
			frequency: day,
		},
		{
			name:      "weekly line",
			start:     date(2018, 4, 1),
			end:       date(2018, 4, 7),
			frequency: week,
		},
		{
			name:      "clamped final weekly bucket",
			start:     date(2019, 3, 31),
			end:       date(2019, 3, 31),
			frequency: week,
		},
		{
			name:      "end before start",
			start:     date(2018, 4, 2),
			end:       date(2018, 4, 1),
			frequency: day,
			wantErr:   true,
		},
		{
			name:      "daily line spanning two days",
			start:     date(2018, 4, 1),
			end:       date(2018, 4, 2),
			frequency: day,
			wantErr:   true,
		},
		{
			name:      "weekly line spanning eight days",
			start:     date(2018, 4, 1),
			end:       date(2018, 4, 8),
			frequency: week,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := returns.NewLine(tt.start, tt.end, nil, tt.frequency)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateLines(t *testing.T) {
	cycleStart := date(2018, 4, 1)
	cycleEnd := date(2019, 3, 31)

	t.Run("daily generation covers every day", func(t *testing.T) {
		lines := returns.GenerateLines(cycleStart, cycleEnd, values.MustNewFrequency("day"))
		require.Len(t, lines, 365)
		assert.Equal(t, cycleStart, lines[0].StartDate)
		assert.Equal(t, cycleEnd, lines[364].StartDate)
		assert.Equal(t, cycleEnd, lines[364].EndDate)
	})

	t.Run("weekly generation clamps the final bucket", func(t *testing.T) {
		lines := returns.GenerateLines(cycleStart, cycleEnd, values.MustNewFrequency("week"))
		require.Len(t, lines, 53)
		assert.Equal(t, date(2018, 4, 7), lines[0].EndDate)
		last := lines[len(lines)-1]
		assert.Equal(t, date(2019, 3, 31), last.StartDate)
		assert.Equal(t, cycleEnd, last.EndDate)
	})

	t.Run("monthly generation produces twelve calendar months", func(t *testing.T) {
		lines := returns.GenerateLines(cycleStart, cycleEnd, values.MustNewFrequency("month"))
		require.Len(t, lines, 12)
		assert.Equal(t, date(2018, 4, 30), lines[0].EndDate)
		assert.Equal(t, date(2019, 2, 1), lines[10].StartDate)
		assert.Equal(t, date(2019, 2, 28), lines[10].EndDate)
		assert.Equal(t, date(2019, 3, 1), lines[11].StartDate)
		assert.Equal(t, cycleEnd, lines[11].EndDate)
	})

	t.Run("generation is deterministic", func(t *testing.T) {
		a := returns.GenerateLines(cycleStart, cycleEnd, values.MustNewFrequency("week"))
		b := returns.GenerateLines(cycleStart, cycleEnd, values.MustNewFrequency("week"))
		assert.Equal(t, a, b)
	})
}

func TestLine_Label(t *testing.T) {
	tests := []struct {
		name      string
		frequency string
		start     time.Time
		end       time.Time
		want      string
	}{
		{
			name:      "daily label",
			frequency: "day",
			start:     date(2018, 4, 1),
			end:       date(2018, 4, 1),
			want:      "1 April 2018",
		},
		{
			name:      "weekly label uses week ending",
			frequency: "week",
			start:     date(2018, 4, 1),
			end:       date(2018, 4, 7),
			want:      "Week ending 7 April 2018",
		},
		{
			name:      "monthly label",
			frequency: "month",
			start:     date(2019, 2, 1),
			end:       date(2019, 2, 28),
			want:      "February 2019",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := returns.NewLine(tt.start, tt.end, nil, values.MustNewFrequency(tt.frequency))
			require.NoError(t, err)
			assert.Equal(t, tt.want, line.Label())
		})
	}
}
