package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseSelectionPolicy(t *testing.T) {
	p, err := ParseSelectionPolicy("")
	require.NoError(t, err)
	require.Equal(t, PickNone, p)

	p, err = ParseSelectionPolicy(" Monthly ")
	require.NoError(t, err)
	require.Equal(t, PickMonthly, p)

	_, err = ParseSelectionPolicy("weekly")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSelectEnds(t *testing.T) {
	c := mustCutoff(t, "2025-01-01")
	snaps := []Snapshot{snapAt("20230101000000"), snapAt("20210101000000"), snapAt("20220101000000")}

	end := Select(snaps, PickClosestToEnd, time.Time{}, c)
	require.Len(t, end, 1)
	require.Equal(t, "20230101000000", end[0].WaybackTimestamp())

	start := Select(snaps, PickClosestToStart, time.Time{}, c)
	require.Len(t, start, 1)
	require.Equal(t, "20210101000000", start[0].WaybackTimestamp())

	all := Select(snaps, PickNone, time.Time{}, c)
	require.Len(t, all, 3)
	require.Equal(t, "20210101000000", all[0].WaybackTimestamp())
}

func TestSelectClosestToDateTieGoesEarlier(t *testing.T) {
	c := mustCutoff(t, "2025-01-01")
	target := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	snaps := []Snapshot{
		{Timestamp: target.Add(24 * time.Hour)},
		{Timestamp: target.Add(-24 * time.Hour)},
		{Timestamp: target.Add(-30 * 24 * time.Hour)},
	}

	got := Select(snaps, PickClosestToDate, target, c)
	require.Len(t, got, 1)
	require.Equal(t, target.Add(-24*time.Hour), got[0].Timestamp)
}

func TestSelectMonthlyOverFourteenMonths(t *testing.T) {
	c := mustCutoff(t, "2025-01-01")
	var snaps []Snapshot
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 14; i++ {
		month := start.AddDate(0, i, 0)
		snaps = append(snaps,
			Snapshot{Timestamp: month.AddDate(0, 0, 2)},
			Snapshot{Timestamp: month.AddDate(0, 0, 20)},
			Snapshot{Timestamp: month.AddDate(0, 0, 9)},
		)
	}

	got := Select(snaps, PickMonthly, time.Time{}, c)
	require.Len(t, got, 14)
	for i, s := range got {
		month := start.AddDate(0, i, 0)
		require.Equal(t, month.AddDate(0, 0, 20), s.Timestamp)
		require.Equal(t, fmt.Sprintf("%04d-%02d", month.Year(), int(month.Month())), s.Bucket)
	}
}

func TestSelectYearlyRespectsCutoff(t *testing.T) {
	c := mustCutoff(t, "2023-06-01")
	snaps := []Snapshot{
		snapAt("20220301000000"),
		snapAt("20221130000000"),
		snapAt("20230201000000"),
		snapAt("20230530000000"),
		snapAt("20230915000000"),
		snapAt("20240110000000"),
	}

	got := Select(snaps, PickYearly, time.Time{}, c)
	require.Len(t, got, 2)
	require.Equal(t, "2022", got[0].Bucket)
	require.Equal(t, "20221130000000", got[0].WaybackTimestamp())
	require.Equal(t, "2023", got[1].Bucket)
	require.Equal(t, "20230530000000", got[1].WaybackTimestamp())
}

func TestSelectEmpty(t *testing.T) {
	c := mustCutoff(t, "2023-06-01")
	for _, p := range SelectionPolicies {
		require.Empty(t, Select(nil, p, time.Time{}, c))
	}
	require.Empty(t, Select([]Snapshot{snapAt("20240101000000")}, PickClosestToEnd, time.Time{}, c))
}
