// Package dispatch implements the campaign dispatch engine: sending-window
// validation, identity quota management, queue planning, atomic reservations
// and crash recovery.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
)

// HolidayChecker answers whether a date is a public holiday in any of the
// given countries. Implementations are expected to be cache-backed and safe
// to call synchronously.
type HolidayChecker interface {
	IsHoliday(ctx context.Context, date time.Time, countryCodes []string) (bool, error)
}

// Window rejection reasons
const (
	WindowReasonWeekday = "weekday"
	WindowReasonTime    = "time_of_day"
	WindowReasonHoliday = "holiday"
)

// WindowValidator decides whether a campaign may send at a given instant.
// All calendar math happens in the platform timezone.
type WindowValidator struct {
	holidays HolidayChecker
	loc      *time.Location
}

func NewWindowValidator(holidays HolidayChecker, loc *time.Location) *WindowValidator {
	if loc == nil {
		loc = time.UTC
	}
	return &WindowValidator{holidays: holidays, loc: loc}
}

// Location returns the timezone all window math is evaluated in
func (v *WindowValidator) Location() *time.Location {
	return v.loc
}

// IsSendableNow checks the campaign's weekday set, daily time range and
// holiday calendar against the given instant. The end of the range is
// exclusive. Returns the rejection reason when not sendable.
func (v *WindowValidator) IsSendableNow(ctx context.Context, c *models.Campaign, at time.Time) (bool, string, error) {
	local := at.In(v.loc)

	if !c.AllowsWeekday(utils.WeekdayCode(local.Weekday())) {
		return false, WindowReasonWeekday, nil
	}

	minuteOfDay := local.Hour()*60 + local.Minute()
	start := c.WindowStartHour*60 + c.WindowStartMinute
	end := c.WindowEndHour*60 + c.WindowEndMinute
	if minuteOfDay < start || minuteOfDay >= end {
		return false, WindowReasonTime, nil
	}

	if c.RespectHolidays && len(c.TargetCountries) > 0 && v.holidays != nil {
		holiday, err := v.holidays.IsHoliday(ctx, local, c.TargetCountries)
		if err != nil {
			return false, "", fmt.Errorf("holiday lookup failed: %w", err)
		}
		if holiday {
			return false, WindowReasonHoliday, nil
		}
	}

	return true, "", nil
}

// NextEligibleSlot walks forward day by day (bounded to 30 days) and returns
// the next instant at or after from where the campaign's window is open. When
// from already falls inside an open window it is returned unchanged. Falls
// back to from+7d when no eligible day is found within the bound.
func (v *WindowValidator) NextEligibleSlot(ctx context.Context, c *models.Campaign, from time.Time) (time.Time, error) {
	local := from.In(v.loc)

	for day := 0; day < 30; day++ {
		candidate := local.AddDate(0, 0, day)
		windowStart := utils.AtTimeOfDay(candidate, c.WindowStartHour, c.WindowStartMinute, v.loc)

		at := windowStart
		if day == 0 && local.After(windowStart) {
			at = local
		}

		ok, _, err := v.IsSendableNow(ctx, c, at)
		if err != nil {
			return time.Time{}, err
		}
		if ok {
			return at, nil
		}
	}

	return from.AddDate(0, 0, 7), nil
}

// NextDayWindowStart returns the first eligible window start strictly after
// the day of after. Used for end-of-day deferrals.
func (v *WindowValidator) NextDayWindowStart(ctx context.Context, c *models.Campaign, after time.Time) (time.Time, error) {
	tomorrow := utils.StartOfDay(after.In(v.loc).AddDate(0, 0, 1), v.loc)
	return v.NextEligibleSlot(ctx, c, tomorrow)
}
