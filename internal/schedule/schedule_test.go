package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/payex-bridge/internal/schedule"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFrequencyCodeTotal(t *testing.T) {
	cases := map[schedule.Period]string{
		schedule.PeriodDay:   "DL",
		schedule.PeriodWeek:  "WK",
		schedule.PeriodMonth: "MT",
		schedule.PeriodYear:  "YR",
	}
	for period, want := range cases {
		code, err := schedule.FrequencyCode(period)
		require.NoError(t, err)
		require.Equal(t, want, code)
	}
}

func TestFrequencyCodeRejectsUnknownPeriod(t *testing.T) {
	_, err := schedule.FrequencyCode("fortnight")
	require.ErrorIs(t, err, schedule.ErrUnsupportedPeriod)
}

func TestComputeMonthlyExpiryEndOfBillingMonth(t *testing.T) {
	s, err := schedule.Compute(date(2024, time.January, 15), schedule.PeriodMonth, 1, 3, "", 0)
	require.NoError(t, err)
	require.Equal(t, "MT", s.Frequency)
	require.Equal(t, date(2024, time.January, 15), s.EffectiveDate)
	require.True(t, s.HasExpiry)
	// Third cycle starts 2024-03-15; the mandate runs out at the end of February,
	// which is the 29th in a leap year.
	require.Equal(t, date(2024, time.February, 29), s.ExpiryDate)
	require.Equal(t, 3, s.MaxFrequency)
}

func TestComputeDailyExpiryCalendarOffset(t *testing.T) {
	s, err := schedule.Compute(date(2024, time.March, 1), schedule.PeriodDay, 1, 5, "", 0)
	require.NoError(t, err)
	require.Equal(t, "DL", s.Frequency)
	require.True(t, s.HasExpiry)
	require.Equal(t, date(2024, time.March, 5), s.ExpiryDate)
}

func TestComputeWeeklyHonoursInterval(t *testing.T) {
	s, err := schedule.Compute(date(2024, time.March, 1), schedule.PeriodWeek, 2, 3, "", 0)
	require.NoError(t, err)
	// Two remaining cycles, two weeks apart each.
	require.Equal(t, date(2024, time.March, 1).AddDate(0, 0, 28), s.ExpiryDate)
}

func TestComputeUnlimitedLengthHasNoExpiry(t *testing.T) {
	s, err := schedule.Compute(date(2024, time.June, 10), schedule.PeriodMonth, 1, 0, "", 0)
	require.NoError(t, err)
	require.False(t, s.HasExpiry)
	require.Equal(t, schedule.UnlimitedCollections, s.MaxFrequency)
}

func TestComputeSingleCycleHasNoExpiry(t *testing.T) {
	s, err := schedule.Compute(date(2024, time.June, 10), schedule.PeriodYear, 1, 1, "", 0)
	require.NoError(t, err)
	require.False(t, s.HasExpiry)
	require.Equal(t, 1, s.MaxFrequency)
}

func TestComputeTrialShiftsEffectiveDate(t *testing.T) {
	s, err := schedule.Compute(date(2024, time.January, 1), schedule.PeriodMonth, 1, 2, schedule.PeriodWeek, 2)
	require.NoError(t, err)
	require.Equal(t, date(2024, time.January, 15), s.EffectiveDate)
	// Second cycle starts 2024-02-15, so the mandate expires end of January.
	require.Equal(t, date(2024, time.January, 31), s.ExpiryDate)
}

func TestComputeRejectsUnsupportedPeriod(t *testing.T) {
	_, err := schedule.Compute(date(2024, time.January, 1), "quarter", 1, 3, "", 0)
	require.ErrorIs(t, err, schedule.ErrUnsupportedPeriod)
}

func TestComputeRejectsNonPositiveInterval(t *testing.T) {
	_, err := schedule.Compute(date(2024, time.January, 1), schedule.PeriodMonth, 0, 3, "", 0)
	require.Error(t, err)
}

func TestAddPeriodsClampsMonthEnd(t *testing.T) {
	got, err := schedule.AddPeriods(date(2024, time.January, 31), schedule.PeriodMonth, 1)
	require.NoError(t, err)
	require.Equal(t, date(2024, time.February, 29), got)

	got, err = schedule.AddPeriods(date(2023, time.January, 31), schedule.PeriodMonth, 1)
	require.NoError(t, err)
	require.Equal(t, date(2023, time.February, 28), got)
}
