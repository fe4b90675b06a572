// Package schedule computes publish timestamps for daily posting
// queues: fixed morning/afternoon/evening blocks, filename-extension
// overrides, and the evenly sliced all-day window.
package schedule

import (
	"time"

	"github.com/snappedhq/postqueue/app/naming"
)

// Base hours in UTC chosen so that, at the Eastern reference offset,
// they display as 7am / 12pm / 4pm.
const (
	MorningPostHour   = 12
	AfternoonPostHour = 17
	EveningPostHour   = 21
)

// Start hours for the filename time extensions. The evening hour falls
// on the day after the queue date.
const (
	MorningExtHour   = 15
	AfternoonExtHour = 19
	EveningExtHour   = 1

	AllDayStartHour = 14
	AllDayEndHour   = 24
)

const PostSpacing = 2 * time.Minute

// Static hour offsets from US Eastern. This is deliberately not a tz
// database lookup: queue timestamps must be reproducible across runs,
// at the cost of a one-hour drift around DST transitions.
var timezoneAdjustments = map[string]int{
	"America/New_York":    0,
	"America/Chicago":     -1,
	"America/Denver":      -2,
	"America/Phoenix":     -2,
	"America/Los_Angeles": -3,
	"America/Anchorage":   -4,
	"Pacific/Honolulu":    -5,
}

// HourAdjustment returns the static offset for an IANA zone name.
// Unknown zones get the Eastern offset of zero.
func HourAdjustment(tzName string) int {
	return timezoneAdjustments[tzName]
}

// NextOccurrence returns the UTC timestamp for baseHour on the given
// date, shifted by the client's static timezone adjustment. The hour
// wraps within the same calendar date.
func NextOccurrence(baseHour int, tzName string, date time.Time) time.Time {
	adjusted := (baseHour + HourAdjustment(tzName)) % 24
	if adjusted < 0 {
		adjusted += 24
	}
	return time.Date(date.Year(), date.Month(), date.Day(), adjusted, 0, 0, 0, time.UTC)
}

// TimeBlocks returns the three legacy posting blocks for a date.
func TimeBlocks(tzName string, date time.Time) [3]time.Time {
	return [3]time.Time{
		NextOccurrence(MorningPostHour, tzName, date),
		NextOccurrence(AfternoonPostHour, tzName, date),
		NextOccurrence(EveningPostHour, tzName, date),
	}
}

// ExtensionStart returns the base timestamp for a time-extension
// bucket. The all-day bucket start doubles as the window origin for
// AllDaySlots.
func ExtensionStart(bucket naming.TimeBucket, tzName string, date time.Time) time.Time {
	switch bucket {
	case naming.BucketMorning:
		return NextOccurrence(MorningExtHour, tzName, date)
	case naming.BucketAfternoon:
		return NextOccurrence(AfternoonExtHour, tzName, date)
	case naming.BucketEvening:
		return NextOccurrence(EveningExtHour, tzName, date.AddDate(0, 0, 1))
	case naming.BucketAllDay:
		return NextOccurrence(AllDayStartHour, tzName, date)
	default:
		return NextOccurrence(MorningPostHour, tzName, date)
	}
}

// AllDayWindow is the length of the all-day posting window.
const AllDayWindow = time.Duration(AllDayEndHour-AllDayStartHour) * time.Hour

// AllDaySlots spreads n posts across the all-day window: the window is
// cut into n+1 slices and post i (1-based) lands at start + i slices,
// so the last post always stays strictly inside the window.
func AllDaySlots(n int, tzName string, date time.Time) []time.Time {
	if n <= 0 {
		return nil
	}

	start := ExtensionStart(naming.BucketAllDay, tzName, date)
	step := AllDayWindow / time.Duration(n+1)

	slots := make([]time.Time, n)
	for i := range slots {
		slots[i] = start.Add(time.Duration(i+1) * step)
	}
	return slots
}
