package model

import "testing"

func TestDatetimeComponents(t *testing.T) {
	d := NewDatetime(2024, 3, 15, 14, 30)
	if d != 202403151430 {
		t.Fatalf("NewDatetime = %d, want 202403151430", d)
	}
	if d.Year() != 2024 || d.Month() != 3 || d.Day() != 15 {
		t.Errorf("date components = %d-%d-%d, want 2024-3-15", d.Year(), d.Month(), d.Day())
	}
	if d.Hour() != 14 || d.Minute() != 30 {
		t.Errorf("time components = %d:%d, want 14:30", d.Hour(), d.Minute())
	}
	if d.MinuteOfDay() != 14*60+30 {
		t.Errorf("MinuteOfDay = %d, want %d", d.MinuteOfDay(), 14*60+30)
	}
	if d.Date() != 20240315 {
		t.Errorf("Date = %d, want 20240315", d.Date())
	}
}

func TestDateDatetime(t *testing.T) {
	d := Date(20240315)
	if d.Datetime() != 202403150000 {
		t.Errorf("Datetime = %d, want 202403150000", d.Datetime())
	}
}

func TestPeriodStart(t *testing.T) {
	// 2024-01-03 is a Wednesday.
	wed := NewDatetime(2024, 1, 3, 0, 0)

	tests := []struct {
		name   string
		d      Datetime
		period Period
		want   Datetime
	}{
		{"week from wednesday", wed, PeriodWeek, NewDatetime(2024, 1, 1, 0, 0)},
		{"week from monday", NewDatetime(2024, 1, 1, 0, 0), PeriodWeek, NewDatetime(2024, 1, 1, 0, 0)},
		{"week crossing month", NewDatetime(2024, 2, 1, 0, 0), PeriodWeek, NewDatetime(2024, 1, 29, 0, 0)},
		{"month", NewDatetime(2024, 3, 15, 0, 0), PeriodMonth, NewDatetime(2024, 3, 1, 0, 0)},
		{"quarter q2", NewDatetime(2024, 5, 20, 0, 0), PeriodQuarter, NewDatetime(2024, 4, 1, 0, 0)},
		{"quarter q4", NewDatetime(2024, 12, 31, 0, 0), PeriodQuarter, NewDatetime(2024, 10, 1, 0, 0)},
		{"halfyear h1", NewDatetime(2024, 6, 30, 0, 0), PeriodHalfYear, NewDatetime(2024, 1, 1, 0, 0)},
		{"halfyear h2", NewDatetime(2024, 7, 1, 0, 0), PeriodHalfYear, NewDatetime(2024, 7, 1, 0, 0)},
		{"year", NewDatetime(2024, 11, 5, 0, 0), PeriodYear, NewDatetime(2024, 1, 1, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.PeriodStart(tt.period); got != tt.want {
				t.Errorf("PeriodStart(%s) = %d, want %d", tt.period, got, tt.want)
			}
		})
	}
}
