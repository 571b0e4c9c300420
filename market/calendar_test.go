package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"wednesday_midday", time.Date(2016, 10, 5, 12, 0, 0, 0, time.UTC), true},
		{"friday_before_close", time.Date(2016, 10, 7, 20, 0, 0, 0, time.UTC), true},
		{"friday_after_close", time.Date(2016, 10, 7, 21, 0, 0, 0, time.UTC), false},
		{"saturday", time.Date(2016, 10, 8, 12, 0, 0, 0, time.UTC), false},
		{"sunday_early", time.Date(2016, 10, 9, 20, 0, 0, 0, time.UTC), false},
		{"sunday_reopen", time.Date(2016, 10, 9, 21, 0, 0, 0, time.UTC), true},
		{"monday_morning", time.Date(2016, 10, 10, 0, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.open, IsOpen(tt.at))
		})
	}
}

func TestWindowsAllows(t *testing.T) {
	t.Parallel()

	ws := Windows{
		{Start: 6, End: 22},
	}

	assert.True(t, ws.Allows(time.Date(2016, 2, 27, 19, 30, 0, 0, time.UTC)))
	assert.True(t, ws.Allows(time.Date(2016, 2, 27, 6, 0, 0, 0, time.UTC)))
	assert.False(t, ws.Allows(time.Date(2016, 2, 27, 23, 30, 0, 0, time.UTC)))
	assert.False(t, ws.Allows(time.Date(2016, 2, 27, 5, 59, 0, 0, time.UTC)))
	assert.False(t, ws.Allows(time.Date(2016, 2, 27, 22, 0, 0, 0, time.UTC)))
}

func TestWindowsWeekdays(t *testing.T) {
	t.Parallel()

	ws := Windows{
		{Days: []time.Weekday{time.Monday, time.Tuesday}, Start: 8, End: 17},
	}

	monday := time.Date(2016, 10, 10, 9, 0, 0, 0, time.UTC)
	friday := time.Date(2016, 10, 14, 9, 0, 0, 0, time.UTC)

	assert.True(t, ws.Allows(monday))
	assert.False(t, ws.Allows(friday))
}

func TestWindowsEmptyAllowsAll(t *testing.T) {
	t.Parallel()

	var ws Windows
	assert.True(t, ws.Allows(time.Date(2016, 10, 8, 3, 0, 0, 0, time.UTC)))
}
