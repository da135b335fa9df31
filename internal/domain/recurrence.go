package domain

import "time"

// Next computes the occurrence after due for the given policy. The second
// return value is false when the recurrence is exhausted: either the policy
// is nil or the computed instant falls past the policy's end instant.
//
// Daily and weekly add a fixed duration. Monthly advances the calendar month
// and clamps the day to the last valid day of the target month instead of
// letting the date normalize into the following month (Jan 31 + 1 month is
// Feb 28/29, not Mar 2/3). The anchor day, when recorded, is restored on
// months long enough to hold it, so Jan 31 -> Feb 28 -> Mar 31.
func Next(due time.Time, policy *Recurrence) (time.Time, bool) {
	if policy == nil || !policy.Interval.IsValid() {
		return time.Time{}, false
	}

	var next time.Time
	switch policy.Interval {
	case IntervalDaily:
		next = due.Add(24 * time.Hour)
	case IntervalWeekly:
		next = due.Add(7 * 24 * time.Hour)
	case IntervalMonthly:
		next = nextMonth(due, policy.AnchorDay)
	default:
		return time.Time{}, false
	}

	if policy.Until != nil && next.After(*policy.Until) {
		return time.Time{}, false
	}
	return next, true
}

func nextMonth(due time.Time, anchorDay int) time.Time {
	day := anchorDay
	if day <= 0 {
		day = due.Day()
	}

	year, month := due.Year(), due.Month()+1
	if month > time.December {
		year, month = year+1, time.January
	}

	if last := daysIn(year, month); day > last {
		day = last
	}

	return time.Date(year, month, day,
		due.Hour(), due.Minute(), due.Second(), due.Nanosecond(), due.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
