package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHolidays marks a fixed set of dates as holidays
type stubHolidays struct {
	dates map[string]bool
}

func (s *stubHolidays) IsHoliday(ctx context.Context, date time.Time, countryCodes []string) (bool, error) {
	return s.dates[date.Format("2006-01-02")], nil
}

func warsawLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)
	return loc
}

func weekdayCampaign() *models.Campaign {
	return &models.Campaign{
		AllowedWeekdays:   pq.StringArray{"MON", "TUE", "WED", "THU", "FRI"},
		WindowStartHour:   9,
		WindowStartMinute: 0,
		WindowEndHour:     17,
		WindowEndMinute:   0,
		RespectHolidays:   true,
		TargetCountries:   pq.StringArray{"PL"},
	}
}

func TestIsSendableNowInsideWindow(t *testing.T) {
	loc := warsawLocation(t)
	v := NewWindowValidator(&stubHolidays{dates: map[string]bool{}}, loc)
	c := weekdayCampaign()

	// Monday 2026-03-02 10:30 local
	at := time.Date(2026, time.March, 2, 10, 30, 0, 0, loc)
	ok, reason, err := v.IsSendableNow(context.Background(), c, at)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestIsSendableNowRejectsWeekend(t *testing.T) {
	loc := warsawLocation(t)
	v := NewWindowValidator(&stubHolidays{dates: map[string]bool{}}, loc)
	c := weekdayCampaign()

	// Saturday 2026-03-07
	at := time.Date(2026, time.March, 7, 10, 30, 0, 0, loc)
	ok, reason, err := v.IsSendableNow(context.Background(), c, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, WindowReasonWeekday, reason)
}

func TestIsSendableNowWindowEndExclusive(t *testing.T) {
	loc := warsawLocation(t)
	v := NewWindowValidator(&stubHolidays{dates: map[string]bool{}}, loc)
	c := weekdayCampaign()

	// 16:59 is in, 17:00 is out
	in := time.Date(2026, time.March, 2, 16, 59, 0, 0, loc)
	ok, _, err := v.IsSendableNow(context.Background(), c, in)
	require.NoError(t, err)
	assert.True(t, ok)

	out := time.Date(2026, time.March, 2, 17, 0, 0, 0, loc)
	ok, reason, err := v.IsSendableNow(context.Background(), c, out)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, WindowReasonTime, reason)
}

func TestIsSendableNowBeforeWindowStart(t *testing.T) {
	loc := warsawLocation(t)
	v := NewWindowValidator(&stubHolidays{dates: map[string]bool{}}, loc)
	c := weekdayCampaign()

	at := time.Date(2026, time.March, 2, 8, 59, 0, 0, loc)
	ok, reason, err := v.IsSendableNow(context.Background(), c, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, WindowReasonTime, reason)
}

func TestIsSendableNowRejectsHoliday(t *testing.T) {
	loc := warsawLocation(t)
	v := NewWindowValidator(&stubHolidays{dates: map[string]bool{"2026-03-02": true}}, loc)
	c := weekdayCampaign()

	at := time.Date(2026, time.March, 2, 10, 30, 0, 0, loc)
	ok, reason, err := v.IsSendableNow(context.Background(), c, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, WindowReasonHoliday, reason)
}

func TestIsSendableNowIgnoresHolidayWhenDisabled(t *testing.T) {
	loc := warsawLocation(t)
	v := NewWindowValidator(&stubHolidays{dates: map[string]bool{"2026-03-02": true}}, loc)
	c := weekdayCampaign()
	c.RespectHolidays = false

	at := time.Date(2026, time.March, 2, 10, 30, 0, 0, loc)
	ok, _, err := v.IsSendableNow(context.Background(), c, at)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNextEligibleSlotReturnsOpenInstantUnchanged(t *testing.T) {
	loc := warsawLocation(t)
	v := NewWindowValidator(&stubHolidays{dates: map[string]bool{}}, loc)
	c := weekdayCampaign()

	at := time.Date(2026, time.March, 2, 10, 30, 0, 0, loc)
	slot, err := v.NextEligibleSlot(context.Background(), c, at)
	require.NoError(t, err)
	assert.True(t, slot.Equal(at))
}

func TestNextEligibleSlotSkipsWeekend(t *testing.T) {
	loc := warsawLocation(t)
	v := NewWindowValidator(&stubHolidays{dates: map[string]bool{}}, loc)
	c := weekdayCampaign()

	// Friday 2026-03-06 18:00, after the window closed
	from := time.Date(2026, time.March, 6, 18, 0, 0, 0, loc)
	slot, err := v.NextEligibleSlot(context.Background(), c, from)
	require.NoError(t, err)

	// Monday 2026-03-09 09:00
	want := time.Date(2026, time.March, 9, 9, 0, 0, 0, loc)
	assert.True(t, slot.Equal(want), "got %s, want %s", slot, want)
}

func TestNextEligibleSlotSkipsHoliday(t *testing.T) {
	loc := warsawLocation(t)
	v := NewWindowValidator(&stubHolidays{dates: map[string]bool{"2026-03-03": true}}, loc)
	c := weekdayCampaign()

	// Monday 17:30, window closed; Tuesday is a holiday
	from := time.Date(2026, time.March, 2, 17, 30, 0, 0, loc)
	slot, err := v.NextEligibleSlot(context.Background(), c, from)
	require.NoError(t, err)

	// Wednesday 2026-03-04 09:00
	want := time.Date(2026, time.March, 4, 9, 0, 0, 0, loc)
	assert.True(t, slot.Equal(want), "got %s, want %s", slot, want)
}

func TestNextDayWindowStart(t *testing.T) {
	loc := warsawLocation(t)
	v := NewWindowValidator(&stubHolidays{dates: map[string]bool{}}, loc)
	c := weekdayCampaign()

	// Monday mid-window defers to Tuesday 09:00, never later the same day
	after := time.Date(2026, time.March, 2, 10, 30, 0, 0, loc)
	slot, err := v.NextDayWindowStart(context.Background(), c, after)
	require.NoError(t, err)

	want := time.Date(2026, time.March, 3, 9, 0, 0, 0, loc)
	assert.True(t, slot.Equal(want), "got %s, want %s", slot, want)
}
