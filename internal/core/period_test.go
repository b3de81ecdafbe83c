package core

import (
	"errors"
	"testing"
)

func TestPeriodRange(t *testing.T) {
	today := NewDate(2024, 3, 15)
	cases := []struct {
		period     Period
		start, end Date
	}{
		{PeriodThisMonth, NewDate(2024, 3, 1), NewDate(2024, 4, 1)},
		{PeriodLastMonth, NewDate(2024, 2, 1), NewDate(2024, 3, 1)},
		{PeriodLast3Months, NewDate(2024, 1, 1), NewDate(2024, 4, 1)},
		{PeriodThisYear, NewDate(2024, 1, 1), NewDate(2025, 1, 1)},
	}
	for _, tc := range cases {
		t.Run(string(tc.period), func(t *testing.T) {
			got := tc.period.Range(today)
			if got.Start != tc.start || got.End != tc.end {
				t.Errorf("Range(%s) = %s, want [%s, %s)", today, got, tc.start, tc.end)
			}
		})
	}
}

func TestPeriodRangeAcrossYearBoundary(t *testing.T) {
	jan := NewDate(2024, 1, 20)
	if got := PeriodLastMonth.Range(jan); got.Start != NewDate(2023, 12, 1) || got.End != NewDate(2024, 1, 1) {
		t.Errorf("lastMonth in January = %s", got)
	}
	if got := PeriodLast3Months.Range(jan); got.Start != NewDate(2023, 11, 1) || got.End != NewDate(2024, 2, 1) {
		t.Errorf("last3Months in January = %s", got)
	}
	dec := NewDate(2023, 12, 31)
	if got := PeriodThisMonth.Range(dec); got.End != NewDate(2024, 1, 1) {
		t.Errorf("thisMonth in December ends %s", got.End)
	}
}

func TestDateFilterStart(t *testing.T) {
	today := NewDate(2024, 6, 10)
	cases := []struct {
		filter  DateFilter
		want    Date
		bounded bool
	}{
		{FilterAll, Date{}, false},
		{FilterLast7Days, NewDate(2024, 6, 3), true},
		{FilterLast30Days, NewDate(2024, 5, 11), true},
		{FilterThisMonth, NewDate(2024, 6, 1), true},
	}
	for _, tc := range cases {
		got, ok := tc.filter.Start(today)
		if ok != tc.bounded || got != tc.want {
			t.Errorf("%s.Start(%s) = %s, %v; want %s, %v", tc.filter, today, got, ok, tc.want, tc.bounded)
		}
	}
}

func TestParseFilterAndPeriod(t *testing.T) {
	if f, err := ParseDateFilter("last30days"); err != nil || f != FilterLast30Days {
		t.Errorf("ParseDateFilter = %v, %v", f, err)
	}
	if _, err := ParseDateFilter("week"); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("expected ErrUnknownFilter, got %v", err)
	}
	if p, err := ParsePeriod("lastMonth"); err != nil || p != PeriodLastMonth {
		t.Errorf("ParsePeriod = %v, %v", p, err)
	}
	if _, err := ParsePeriod("decade"); !errors.Is(err, ErrUnknownPeriod) {
		t.Errorf("expected ErrUnknownPeriod, got %v", err)
	}
}

func TestDateRangeContains(t *testing.T) {
	r := PeriodThisMonth.Range(NewDate(2024, 3, 15))
	if !r.Contains(NewDate(2024, 3, 1)) || !r.Contains(NewDate(2024, 3, 31)) {
		t.Errorf("range should contain both ends of March")
	}
	if r.Contains(NewDate(2024, 4, 1)) {
		t.Errorf("end bound must be exclusive")
	}
	if r.Days() != 31 {
		t.Errorf("Days() = %d, want 31", r.Days())
	}
}
