package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Period identifies a recurring billing period unit.
type Period string

// Billing period units accepted by the mandate schedule.
const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// UnlimitedCollections is sent in place of "no limit"; the remote protocol
// has no explicit infinity sentinel.
const UnlimitedCollections = 999

// ErrUnsupportedPeriod is returned when a billing period has no remote
// frequency code. Callers must reject the subscription instead of defaulting.
var ErrUnsupportedPeriod = errors.New("schedule: unsupported billing period")

// Schedule carries the mandate schedule fields derived from a subscription.
type Schedule struct {
	Frequency     string
	Interval      int
	EffectiveDate time.Time
	ExpiryDate    time.Time
	HasExpiry     bool
	MaxFrequency  int
}

// FrequencyCode maps a billing period to its remote frequency code.
func FrequencyCode(p Period) (string, error) {
	switch p {
	case PeriodDay:
		return "DL", nil
	case PeriodWeek:
		return "WK", nil
	case PeriodMonth:
		return "MT", nil
	case PeriodYear:
		return "YR", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPeriod, p)
	}
}

// Compute derives the mandate schedule for a subscription starting today.
//
// interval is the number of period units between collections. length is the
// total number of billing cycles, 0 meaning unlimited. When trialLength > 0
// the first collection is pushed out by the trial before billing starts.
func Compute(today time.Time, period Period, interval, length int, trialPeriod Period, trialLength int) (Schedule, error) {
	freq, err := FrequencyCode(period)
	if err != nil {
		return Schedule{}, err
	}
	if interval < 1 {
		return Schedule{}, fmt.Errorf("schedule: interval must be positive, got %d", interval)
	}
	if length < 0 {
		return Schedule{}, fmt.Errorf("schedule: length must not be negative, got %d", length)
	}

	effective := today
	if trialLength > 0 {
		effective, err = AddPeriods(today, trialPeriod, trialLength)
		if err != nil {
			return Schedule{}, err
		}
	}

	s := Schedule{
		Frequency:     freq,
		Interval:      interval,
		EffectiveDate: effective,
		MaxFrequency:  length,
	}
	if length == 0 {
		s.MaxFrequency = UnlimitedCollections
	}

	// One cycle (or open-ended) mandates carry no expiry.
	remaining := length - 1
	if length <= 1 {
		return s, nil
	}

	switch period {
	case PeriodMonth, PeriodYear:
		// The mandate expires on the last calendar day of the month
		// preceding the month the final cycle would start in.
		finalStart, err := AddPeriods(effective, period, remaining*interval)
		if err != nil {
			return Schedule{}, err
		}
		firstOfMonth := time.Date(finalStart.Year(), finalStart.Month(), 1, 0, 0, 0, 0, finalStart.Location())
		s.ExpiryDate = firstOfMonth.AddDate(0, 0, -1)
	case PeriodDay, PeriodWeek:
		expiry, err := AddPeriods(effective, period, remaining*interval)
		if err != nil {
			return Schedule{}, err
		}
		s.ExpiryDate = expiry
	}
	s.HasExpiry = true
	return s, nil
}

// AddPeriods advances t by n period units using calendar arithmetic. Month
// and year additions clamp to the last day of the target month, so Jan 31
// plus one month lands on the final day of February rather than rolling over.
func AddPeriods(t time.Time, period Period, n int) (time.Time, error) {
	switch period {
	case PeriodDay:
		return t.AddDate(0, 0, n), nil
	case PeriodWeek:
		return t.AddDate(0, 0, 7*n), nil
	case PeriodMonth:
		return addMonthsClamped(t, n), nil
	case PeriodYear:
		return addMonthsClamped(t, 12*n), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedPeriod, period)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	shifted := first.AddDate(0, months, 0)
	if last := daysInMonth(shifted.Year(), shifted.Month()); day > last {
		day = last
	}
	return time.Date(shifted.Year(), shifted.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}
