package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(9*60+30), got)
	assert.Equal(t, "09:30", got.String())

	for _, bad := range []string{"9:30", "09:60", "24:00", "0930", "", "ab:cd"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestTimeOfDayAt(t *testing.T) {
	tod, err := ParseTimeOfDay("14:45")
	require.NoError(t, err)

	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	at := tod.At(date)
	assert.Equal(t, 14, at.Hour())
	assert.Equal(t, 45, at.Minute())
	assert.Equal(t, date.Day(), at.Day())
}

func TestWeekdayOf(t *testing.T) {
	// 2026-03-09 is a Monday.
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, Mon, WeekdayOf(monday))
	assert.Equal(t, Sat, WeekdayOf(monday.AddDate(0, 0, 5)))
	assert.Equal(t, Sun, WeekdayOf(monday.AddDate(0, 0, 6)))
}

func TestDefaultTemplate(t *testing.T) {
	wt := DefaultTemplate()
	assert.Equal(t, []Weekday{Mon, Tue, Wed, Thu, Fri}, wt.Days())

	w, ok := wt.Window(Wed)
	require.True(t, ok)
	assert.Equal(t, "09:00", w.Start.String())
	assert.Equal(t, "17:00", w.End.String())

	_, ok = wt.Window(Sun)
	assert.False(t, ok)
}

func TestTemplateValidate(t *testing.T) {
	start, _ := ParseTimeOfDay("10:00")
	end, _ := ParseTimeOfDay("08:00")

	bad := WeeklyTemplate{Mon: {Start: start, End: end}}
	assert.Error(t, bad.Validate())

	good := WeeklyTemplate{Mon: {Start: end, End: start}}
	assert.NoError(t, good.Validate())
}
