package model

import "testing"

func TestParsePeriod(t *testing.T) {
	for _, s := range []string{"day", "min1", "week", "month", "quarter", "halfyear", "year", "min15", "min30", "min60", "hour2"} {
		if _, err := ParsePeriod(s); err != nil {
			t.Errorf("ParsePeriod(%q) returned error: %v", s, err)
		}
	}
	if _, err := ParsePeriod("min5"); err == nil {
		t.Error("ParsePeriod(\"min5\") should fail")
	}
	if _, err := ParsePeriod(""); err == nil {
		t.Error("ParsePeriod(\"\") should fail")
	}
}

func TestPeriodBase(t *testing.T) {
	tests := []struct {
		p    Period
		base Period
	}{
		{PeriodDay, PeriodDay},
		{PeriodWeek, PeriodDay},
		{PeriodYear, PeriodDay},
		{PeriodMin1, PeriodMin1},
		{PeriodMin15, PeriodMin1},
		{PeriodHour2, PeriodMin1},
	}
	for _, tt := range tests {
		if got := tt.p.Base(); got != tt.base {
			t.Errorf("%s.Base() = %s, want %s", tt.p, got, tt.base)
		}
	}
	if !PeriodDay.IsBase() || !PeriodMin1.IsBase() {
		t.Error("day and min1 must be base periods")
	}
	if PeriodWeek.IsBase() {
		t.Error("week must not be a base period")
	}
}

func TestPriceRoundTrip(t *testing.T) {
	p := PriceFromFloat(12.345)
	if p != 12345 {
		t.Fatalf("PriceFromFloat(12.345) = %d, want 12345", p)
	}
	if got := p.Float64(); got != 12.345 {
		t.Errorf("Float64 = %v, want 12.345", got)
	}
	if PriceFromFloat(0.0015) != 2 {
		t.Errorf("rounding: PriceFromFloat(0.0015) = %d, want 2", PriceFromFloat(0.0015))
	}
}

func TestBarMerge(t *testing.T) {
	b := Bar{
		Datetime: 202403150931,
		Open:     10000, High: 10100, Low: 9900, Close: 10050,
		Volume: 100, Amount: 1000,
	}
	b.Merge(Bar{
		Datetime: 202403150931,
		Open:     10050, High: 10200, Low: 9950, Close: 10150,
		Volume: 50, Amount: 500,
	})

	if b.Open != 10000 {
		t.Errorf("open must stand, got %d", b.Open)
	}
	if b.High != 10200 {
		t.Errorf("high = %d, want 10200", b.High)
	}
	if b.Low != 9900 {
		t.Errorf("low = %d, want 9900", b.Low)
	}
	if b.Close != 10150 {
		t.Errorf("close = %d, want 10150", b.Close)
	}
	if b.Volume != 150 || b.Amount != 1500 {
		t.Errorf("volume/amount = %d/%d, want 150/1500", b.Volume, b.Amount)
	}
}
