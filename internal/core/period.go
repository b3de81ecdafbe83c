package core

import (
	"errors"
	"fmt"
	"time"
)

// DateFilter bounds the receipt list from below.
type DateFilter string

const (
	FilterAll        DateFilter = "all"
	FilterLast7Days  DateFilter = "last7days"
	FilterLast30Days DateFilter = "last30days"
	FilterThisMonth  DateFilter = "thisMonth"
)

// Period selects the dashboard range.
type Period string

const (
	PeriodThisMonth   Period = "thisMonth"
	PeriodLastMonth   Period = "lastMonth"
	PeriodLast3Months Period = "last3Months"
	PeriodThisYear    Period = "thisYear"
)

var (
	ErrUnknownFilter = errors.New("unknown date filter")
	ErrUnknownPeriod = errors.New("unknown dashboard period")
)

// DateRange is the half-open interval [Start, End).
type DateRange struct {
	Start Date
	End   Date
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start.Time) && d.Before(r.End.Time)
}

// Days is the number of calendar days covered.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start.Time).Hours() / 24)
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start, r.End)
}

// DateFilters lists the filters in display order.
func DateFilters() []DateFilter {
	return []DateFilter{FilterAll, FilterLast7Days, FilterLast30Days, FilterThisMonth}
}

func ParseDateFilter(s string) (DateFilter, error) {
	for _, f := range DateFilters() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
}

// Start returns the inclusive lower bound for the filter relative to today.
// The second result is false when the filter is unbounded.
func (f DateFilter) Start(today Date) (Date, bool) {
	switch f {
	case FilterLast7Days:
		return today.AddDays(-7), true
	case FilterLast30Days:
		return today.AddDays(-30), true
	case FilterThisMonth:
		return firstOfMonth(today, 0), true
	default:
		return Date{}, false
	}
}

func (f DateFilter) Label() string {
	switch f {
	case FilterLast7Days:
		return "7 dias"
	case FilterLast30Days:
		return "30 dias"
	case FilterThisMonth:
		return "Este mês"
	default:
		return "Todas"
	}
}

// Periods lists the dashboard periods in display order.
func Periods() []Period {
	return []Period{PeriodThisMonth, PeriodLastMonth, PeriodLast3Months, PeriodThisYear}
}

func ParsePeriod(s string) (Period, error) {
	for _, p := range Periods() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
}

// Range computes the half-open range for the period relative to today.
// Unknown periods fall back to the current year.
func (p Period) Range(today Date) DateRange {
	switch p {
	case PeriodThisMonth:
		return DateRange{Start: firstOfMonth(today, 0), End: firstOfMonth(today, 1)}
	case PeriodLastMonth:
		return DateRange{Start: firstOfMonth(today, -1), End: firstOfMonth(today, 0)}
	case PeriodLast3Months:
		return DateRange{Start: firstOfMonth(today, -2), End: firstOfMonth(today, 1)}
	default:
		return DateRange{Start: NewDate(today.Year(), 1, 1), End: NewDate(today.Year()+1, 1, 1)}
	}
}

func (p Period) Label() string {
	switch p {
	case PeriodThisMonth:
		return "Este mês"
	case PeriodLastMonth:
		return "Mês passado"
	case PeriodLast3Months:
		return "3 meses"
	default:
		return "Este ano"
	}
}

// firstOfMonth returns day 1 of the month offset months away from d.
func firstOfMonth(d Date, offset int) Date {
	return Date{Time: time.Date(d.Year(), d.Month()+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)}
}
