package datecodec

import (
	"sort"
	"testing"
	"time"
)

func TestDate_AddMonths(t *testing.T) {
	tests := []struct {
		name string
		in   Date
		n    int
		want Date
	}{
		{"same day next month", NewDate(2020, time.January, 6), 1, NewDate(2020, time.February, 6)},
		{"clamp into leap february", NewDate(2020, time.January, 31), 1, NewDate(2020, time.February, 29)},
		{"clamp into short february", NewDate(2021, time.January, 31), 1, NewDate(2021, time.February, 28)},
		{"previous month clamps", NewDate(2020, time.March, 31), -1, NewDate(2020, time.February, 29)},
		{"leap day minus one month", NewDate(2020, time.February, 29), -1, NewDate(2020, time.January, 29)},
		{"across year boundary", NewDate(2020, time.January, 31), -1, NewDate(2019, time.December, 31)},
		{"thirty first into thirty day month", NewDate(2020, time.May, 31), 1, NewDate(2020, time.June, 30)},
		{"twelve months", NewDate(2020, time.February, 29), 12, NewDate(2021, time.February, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.AddMonths(tt.n); got != tt.want {
				t.Errorf("%v.AddMonths(%d) = %v, want %v", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestDate_DaysSince(t *testing.T) {
	weekly := NewDate(2020, time.January, 6)

	if got := NewDate(2020, time.January, 13).DaysSince(weekly); got != 7 {
		t.Errorf("DaysSince = %d, want 7", got)
	}
	if got := NewDate(2020, time.January, 12).DaysSince(weekly); got != 6 {
		t.Errorf("DaysSince = %d, want 6", got)
	}
	if got := NewDate(2019, time.December, 30).DaysSince(weekly); got != -7 {
		t.Errorf("DaysSince = %d, want -7", got)
	}
	// 2020 is a leap year
	if got := NewDate(2020, time.March, 1).DaysSince(NewDate(2020, time.February, 28)); got != 2 {
		t.Errorf("DaysSince across leap day = %d, want 2", got)
	}
}

func TestDate_StringOrderMatchesChronology(t *testing.T) {
	dates := []Date{
		NewDate(2020, time.October, 1),
		NewDate(999, time.January, 1),
		NewDate(2020, time.February, 9),
		NewDate(2019, time.December, 31),
	}

	rendered := make([]string, len(dates))
	for i, d := range dates {
		rendered[i] = d.String()
	}
	sort.Strings(rendered)
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for i := range dates {
		if rendered[i] != dates[i].String() {
			t.Errorf("position %d: lexicographic %q, chronological %q", i, rendered[i], dates[i])
		}
	}
	if got := NewDate(999, time.January, 1).String(); got != "0999-01-01" {
		t.Errorf("String() = %q, want zero padded year", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2020-01-13")
	if err != nil {
		t.Fatalf("ParseDate() error: %v", err)
	}
	if d != NewDate(2020, time.January, 13) {
		t.Errorf("ParseDate() = %v", d)
	}
	if _, err := ParseDate("13/01/2020"); err == nil {
		t.Error("expected error for non ISO date")
	}
	if !(Date{}).IsZero() {
		t.Error("zero Date must report IsZero")
	}
}
