package interval

import (
	"testing"
	"time"

	apperrors "fleetbook/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse(DateLayout, s)
	return t
}

func TestNewRejectsDegenerateRanges(t *testing.T) {
	_, err := New(day("2024-06-10"), day("2024-06-10"))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = New(day("2024-06-12"), day("2024-06-10"))
	assert.True(t, apperrors.IsValidation(err))
}

func TestNewTruncatesToDays(t *testing.T) {
	iv, err := New(time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC), time.Date(2024, 6, 12, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, day("2024-06-10"), iv.Start)
	assert.Equal(t, day("2024-06-12"), iv.End)
	assert.Equal(t, 2, iv.Days())
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("2024-13-01", "2024-06-12")
	assert.True(t, apperrors.IsValidation(err))
	_, err = Parse("2024-06-01", "tomorrow")
	assert.True(t, apperrors.IsValidation(err))
}

func TestOverlaps(t *testing.T) {
	booked := MustParse("2024-06-10", "2024-06-13")

	tests := []struct {
		name string
		iv   Interval
		want bool
	}{
		{"overlapping tail", MustParse("2024-06-12", "2024-06-15"), true},
		{"touching end", MustParse("2024-06-13", "2024-06-15"), false},
		{"touching start", MustParse("2024-06-08", "2024-06-10"), false},
		{"inside", MustParse("2024-06-11", "2024-06-12"), true},
		{"covering", MustParse("2024-06-01", "2024-06-30"), true},
		{"disjoint", MustParse("2024-07-01", "2024-07-02"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, booked.Overlaps(tt.iv))
			assert.Equal(t, tt.want, tt.iv.Overlaps(booked), "overlap must be symmetric")
		})
	}
}

func TestEachDayAndContains(t *testing.T) {
	iv := MustParse("2024-06-29", "2024-07-02")
	days := iv.EachDay()
	require.Len(t, days, 3)
	assert.Equal(t, day("2024-06-29"), days[0])
	assert.Equal(t, day("2024-07-01"), days[2])

	assert.True(t, iv.Contains(day("2024-06-30")))
	assert.False(t, iv.Contains(day("2024-07-02")))
	assert.Equal(t, "[2024-06-29, 2024-07-02)", iv.String())
}

func TestDays(t *testing.T) {
	tests := []struct {
		name string
		iv   Interval
		want int
	}{
		{"single day", MustParse("2024-06-10", "2024-06-11"), 1},
		{"across a month end", MustParse("2024-06-29", "2024-07-02"), 3},
		{"leap year february", MustParse("2024-02-01", "2024-03-01"), 29},
		{"open ended", From(day("2024-06-01")), 2913021},
		{"inverted", Interval{Start: day("2024-06-12"), End: day("2024-06-10")}, 0},
		{"zero", Interval{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.iv.Days())
		})
	}
}
