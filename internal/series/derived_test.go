package series

import (
	"testing"

	"github.com/yourorg/market-data-service/internal/model"
)

func TestDerivedMonthAggregate(t *testing.T) {
	s := NewBarSeries(model.PeriodDay)
	// Three January days and two February days.
	days := []struct {
		date   model.Date
		open   model.Price
		high   model.Price
		low    model.Price
		close  model.Price
		volume int64
	}{
		{20240129, 10000, 10100, 9900, 10050, 100},
		{20240130, 10050, 10300, 10000, 10200, 120},
		{20240131, 10200, 10250, 9800, 9900, 80},
		{20240201, 9900, 10000, 9850, 9950, 60},
		{20240202, 9950, 10400, 9950, 10350, 90},
	}
	for _, d := range days {
		if _, err := s.Append(model.Bar{
			Datetime: d.date.Datetime(),
			Open:     d.open, High: d.high, Low: d.low, Close: d.close,
			Volume: d.volume, Amount: d.volume * 10,
		}); err != nil {
			t.Fatalf("append %d: %v", d.date, err)
		}
	}

	bars, err := s.Derived(model.PeriodMonth, 0, 999912312359)
	if err != nil {
		t.Fatalf("derived: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("derived months = %d, want 2", len(bars))
	}

	jan := bars[0]
	if jan.Datetime != 202401010000 {
		t.Errorf("january stamp = %d, want 202401010000", jan.Datetime)
	}
	if jan.Open != 10000 || jan.Close != 9900 {
		t.Errorf("january open/close = %d/%d, want 10000/9900", jan.Open, jan.Close)
	}
	if jan.High != 10300 || jan.Low != 9800 {
		t.Errorf("january extremes = %d/%d, want 10300/9800", jan.High, jan.Low)
	}
	if jan.Volume != 300 {
		t.Errorf("january volume = %d, want 300", jan.Volume)
	}

	feb := bars[1]
	if feb.Datetime != 202402010000 {
		t.Errorf("february stamp = %d, want 202402010000", feb.Datetime)
	}
	if feb.Open != 9900 || feb.Close != 10350 || feb.Volume != 150 {
		t.Errorf("february aggregate wrong: %+v", feb)
	}
}

func TestDerivedWeekStampsMonday(t *testing.T) {
	s := NewBarSeries(model.PeriodDay)
	// 2024-01-03 (Wed) and 2024-01-04 (Thu): one week, Monday 2024-01-01.
	s.Append(dayBar(20240103, 10000, 100))
	s.Append(dayBar(20240104, 10100, 100))
	// 2024-01-08 is the next Monday.
	s.Append(dayBar(20240108, 10200, 100))

	bars, err := s.Derived(model.PeriodWeek, 0, 999912312359)
	if err != nil {
		t.Fatalf("derived: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("derived weeks = %d, want 2", len(bars))
	}
	if bars[0].Datetime != 202401010000 {
		t.Errorf("first week stamp = %d, want 202401010000", bars[0].Datetime)
	}
	if bars[1].Datetime != 202401080000 {
		t.Errorf("second week stamp = %d, want 202401080000", bars[1].Datetime)
	}
}

func TestDerivedIntradayBuckets(t *testing.T) {
	s := NewBarSeries(model.PeriodMin1)
	// End-stamped minute bars: 09:31..09:45 form one 15-minute bucket,
	// 09:46 opens the next.
	var total int64
	for m := 31; m <= 46; m++ {
		dt := model.NewDatetime(2024, 1, 2, 9, m)
		if _, err := s.Append(model.Bar{
			Datetime: dt, Open: 10000, High: 10000, Low: 10000, Close: 10000, Volume: 10,
		}); err != nil {
			t.Fatalf("append %d: %v", dt, err)
		}
		total += 10
	}

	bars, err := s.Derived(model.PeriodMin15, 0, 999912312359)
	if err != nil {
		t.Fatalf("derived: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("derived buckets = %d, want 2", len(bars))
	}
	if bars[0].Datetime != model.NewDatetime(2024, 1, 2, 9, 31) {
		t.Errorf("first bucket stamp = %d, want first base bar", bars[0].Datetime)
	}
	if bars[0].Volume != 150 {
		t.Errorf("first bucket volume = %d, want 150", bars[0].Volume)
	}
	if bars[1].Datetime != model.NewDatetime(2024, 1, 2, 9, 46) {
		t.Errorf("second bucket stamp = %d", bars[1].Datetime)
	}

	var derived int64
	for _, b := range bars {
		derived += b.Volume
	}
	if derived != total {
		t.Errorf("derived volume = %d, want base total %d", derived, total)
	}
}

func TestDerivedIndexConsistency(t *testing.T) {
	s := NewBarSeries(model.PeriodDay)
	dates := []model.Date{20240102, 20240115, 20240201, 20240215, 20240301, 20240415, 20240701}
	for _, d := range dates {
		s.Append(dayBar(d, 10000, 100))
	}

	// The incrementally maintained index must match a from-scratch rebuild.
	for _, p := range derivedFor[model.PeriodDay] {
		incremental := append([]model.IndexEntry(nil), s.Index(p)...)
		s.RebuildIndex(p)
		rebuilt := s.Index(p)
		if len(incremental) != len(rebuilt) {
			t.Fatalf("%s: incremental %d entries, rebuilt %d", p, len(incremental), len(rebuilt))
		}
		for i := range rebuilt {
			if incremental[i] != rebuilt[i] {
				t.Errorf("%s entry %d: incremental %+v, rebuilt %+v", p, i, incremental[i], rebuilt[i])
			}
		}
	}
}

func TestDerivedRejectsBasePeriod(t *testing.T) {
	s := NewBarSeries(model.PeriodDay)
	if _, err := s.Derived(model.PeriodDay, 0, 999912312359); err == nil {
		t.Error("Derived must reject a base period")
	}
	if _, err := s.Derived(model.PeriodMin15, 0, 999912312359); err == nil {
		t.Error("Derived must reject a period with a different base")
	}
}
