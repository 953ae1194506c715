// Package holidays computes US federal holidays for the dashboard status line.
package holidays

import "time"

// Name returns the federal holiday falling on the given date, if any.
func Name(t time.Time) (string, bool) {
	y, m, d := t.Date()

	switch {
	case m == time.January && d == 1:
		return "New Year's Day", true
	case m == time.June && d == 19:
		return "Juneteenth", true
	case m == time.July && d == 4:
		return "Independence Day", true
	case m == time.November && d == 11:
		return "Veterans Day", true
	case m == time.December && d == 25:
		return "Christmas Day", true
	}

	switch {
	case sameDay(t, nthWeekday(y, time.January, time.Monday, 3)):
		return "Martin Luther King Jr. Day", true
	case sameDay(t, nthWeekday(y, time.February, time.Monday, 3)):
		return "Presidents' Day", true
	case sameDay(t, lastWeekday(y, time.May, time.Monday)):
		return "Memorial Day", true
	case sameDay(t, nthWeekday(y, time.September, time.Monday, 1)):
		return "Labor Day", true
	case sameDay(t, nthWeekday(y, time.October, time.Monday, 2)):
		return "Indigenous Peoples' Day", true
	case sameDay(t, nthWeekday(y, time.November, time.Thursday, 4)):
		return "Thanksgiving", true
	}

	return "", false
}

// IsFederal reports whether the date is a US federal holiday.
func IsFederal(t time.Time) bool {
	_, ok := Name(t)
	return ok
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// nthWeekday returns the nth occurrence of a weekday in the given month.
func nthWeekday(year int, month time.Month, day time.Weekday, n int) time.Time {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(day) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the last occurrence of a weekday in the given month.
func lastWeekday(year int, month time.Month, day time.Weekday) time.Time {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(t.Weekday()) - int(day) + 7) % 7
	return t.AddDate(0, 0, -offset)
}
