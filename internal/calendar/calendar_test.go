package calendar

import (
	"testing"
	"time"

	"finledger/internal/core"
)

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		name string
		from core.Date
		n    int
		want core.Date
	}{
		{"jan 31 to leap feb", core.NewDate(2024, 1, 31), 1, core.NewDate(2024, 2, 29)},
		{"jan 31 to common feb", core.NewDate(2023, 1, 31), 1, core.NewDate(2023, 2, 28)},
		{"across year end", core.NewDate(2024, 11, 15), 2, core.NewDate(2025, 1, 15)},
		{"backwards", core.NewDate(2024, 3, 31), -1, core.NewDate(2024, 2, 29)},
		{"backwards across year", core.NewDate(2024, 1, 31), -2, core.NewDate(2023, 11, 30)},
		{"zero months", core.NewDate(2024, 6, 30), 0, core.NewDate(2024, 6, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddMonths(tt.from, tt.n); !got.Equal(tt.want) {
				t.Errorf("AddMonths(%s, %d) = %s, want %s", tt.from, tt.n, got, tt.want)
			}
		})
	}
}

func TestAddYears(t *testing.T) {
	if got := AddYears(core.NewDate(2024, 2, 29), 1); !got.Equal(core.NewDate(2025, 2, 28)) {
		t.Errorf("AddYears leap day = %s", got)
	}
	if got := AddYears(core.NewDate(2024, 2, 29), 4); !got.Equal(core.NewDate(2028, 2, 29)) {
		t.Errorf("AddYears four years = %s", got)
	}
}

func TestLastDayOfMonth(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tt := range tests {
		if got := LastDayOfMonth(tt.year, tt.month); got != tt.want {
			t.Errorf("LastDayOfMonth(%d, %s) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestMonthsAndDaysBetween(t *testing.T) {
	if got := MonthsBetween(core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 1)); got != 1 {
		t.Errorf("MonthsBetween adjacent months = %d, want 1", got)
	}
	if got := MonthsBetween(core.NewDate(2024, 5, 10), core.NewDate(2023, 12, 1)); got != -5 {
		t.Errorf("MonthsBetween backwards = %d, want -5", got)
	}
	if got := MonthsBetween(core.NewDate(2024, 5, 1), core.NewDate(2024, 5, 31)); got != 0 {
		t.Errorf("MonthsBetween same month = %d, want 0", got)
	}
	if got := DaysBetween(core.NewDate(2024, 2, 28), core.NewDate(2024, 3, 1)); got != 2 {
		t.Errorf("DaysBetween over leap day = %d, want 2", got)
	}
}

func TestTodayUsesClockZone(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	c := FixedClock{T: time.Date(2024, 3, 1, 23, 30, 0, 0, loc)}
	if got := Today(c); !got.Equal(core.NewDate(2024, 3, 1)) {
		t.Errorf("Today = %s, want 2024-03-01", got)
	}
}
