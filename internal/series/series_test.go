package series

import (
	"errors"
	"testing"

	"github.com/yourorg/market-data-service/internal/model"
)

func dayBar(date model.Date, close model.Price, volume int64) model.Bar {
	return model.Bar{
		Datetime: date.Datetime(),
		Open:     close - 10, High: close + 20, Low: close - 20, Close: close,
		Volume: volume, Amount: volume * 10,
	}
}

func TestAppendRejectsOutOfOrder(t *testing.T) {
	s := NewBarSeries(model.PeriodDay)
	if _, err := s.Append(dayBar(20240102, 10000, 100)); err != nil {
		t.Fatalf("append: %v", err)
	}
	_, err := s.Append(dayBar(20240101, 9000, 50))
	if !errors.Is(err, model.ErrOutOfOrder) {
		t.Fatalf("err = %v, want ErrOutOfOrder", err)
	}
	if s.Len() != 1 {
		t.Errorf("rejected append mutated the series, len = %d", s.Len())
	}
}

func TestAppendAmendsLiveBar(t *testing.T) {
	s := NewBarSeries(model.PeriodMin1)
	dt := model.NewDatetime(2024, 1, 2, 9, 31)
	first := model.Bar{Datetime: dt, Open: 10000, High: 10000, Low: 10000, Close: 10000, Volume: 100, Amount: 1000}
	second := model.Bar{Datetime: dt, Open: 10010, High: 10050, Low: 9990, Close: 10020, Volume: 50, Amount: 500}

	if amended, err := s.Append(first); err != nil || amended {
		t.Fatalf("first append: amended=%v err=%v", amended, err)
	}
	amended, err := s.Append(second)
	if err != nil || !amended {
		t.Fatalf("second append: amended=%v err=%v", amended, err)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1 after amend", s.Len())
	}

	got, _ := s.Last()
	if got.Open != 10000 {
		t.Errorf("open = %d, want the original 10000", got.Open)
	}
	if got.High != 10050 || got.Low != 9990 {
		t.Errorf("extremes = %d/%d, want 10050/9990", got.High, got.Low)
	}
	if got.Close != 10020 {
		t.Errorf("close = %d, want 10020", got.Close)
	}
	if got.Volume != 150 {
		t.Errorf("volume = %d, want 150", got.Volume)
	}
}

func TestRolloverClosesLiveBar(t *testing.T) {
	s := NewBarSeries(model.PeriodMin1)
	dt1 := model.NewDatetime(2024, 1, 2, 9, 31)
	dt2 := model.NewDatetime(2024, 1, 2, 9, 32)

	s.Append(model.Bar{Datetime: dt1, Open: 10000, High: 10000, Low: 10000, Close: 10000, Volume: 100})
	s.Append(model.Bar{Datetime: dt2, Open: 10010, High: 10010, Low: 10010, Close: 10010, Volume: 40})

	// The closed bar is now immutable: an update for it is out of order.
	if _, err := s.Append(model.Bar{Datetime: dt1, Close: 9999}); !errors.Is(err, model.ErrOutOfOrder) {
		t.Fatalf("amending a closed bar: err = %v, want ErrOutOfOrder", err)
	}

	bars := s.Range(dt1, dt1).Slice()
	if len(bars) != 1 || bars[0].Close != 10000 || bars[0].Volume != 100 {
		t.Errorf("closed bar changed: %+v", bars)
	}
}

func TestAppendBatchAtomicity(t *testing.T) {
	s := NewBarSeries(model.PeriodDay)
	s.Append(dayBar(20240101, 10000, 100))

	// Batch with an internal regression must leave no partial state.
	bad := []model.Bar{
		dayBar(20240102, 10100, 100),
		dayBar(20240104, 10200, 100),
		dayBar(20240103, 10150, 100),
	}
	if err := s.AppendBatch(bad); !errors.Is(err, model.ErrOutOfOrder) {
		t.Fatalf("err = %v, want ErrOutOfOrder", err)
	}
	if s.Len() != 1 {
		t.Fatalf("rejected batch mutated the series, len = %d", s.Len())
	}

	// A batch opening at the live bar's datetime amends it.
	good := []model.Bar{
		dayBar(20240101, 10050, 20),
		dayBar(20240102, 10100, 100),
	}
	if err := s.AppendBatch(good); err != nil {
		t.Fatalf("append batch: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	bars := s.Range(0, 999912312359).Slice()
	if bars[0].Volume != 120 {
		t.Errorf("amended live bar volume = %d, want 120", bars[0].Volume)
	}
}

func TestRangeBounds(t *testing.T) {
	s := NewBarSeries(model.PeriodDay)
	for _, d := range []model.Date{20240101, 20240102, 20240103, 20240104} {
		s.Append(dayBar(d, 10000, 100))
	}

	c := s.Range(model.Date(20240102).Datetime(), model.Date(20240103).Datetime())
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	bars := c.Slice()
	if bars[0].Datetime != 202401020000 || bars[1].Datetime != 202401030000 {
		t.Errorf("bounds wrong: %d..%d", bars[0].Datetime, bars[1].Datetime)
	}

	if got := s.Range(202501010000, 202512310000).Len(); got != 0 {
		t.Errorf("empty range len = %d, want 0", got)
	}
}

func TestCursorSnapshotIsolation(t *testing.T) {
	s := NewBarSeries(model.PeriodMin1)
	dt := model.NewDatetime(2024, 1, 2, 9, 31)
	s.Append(model.Bar{Datetime: dt, Open: 10000, High: 10000, Low: 10000, Close: 10000, Volume: 100})

	c := s.Range(0, 999912312359)

	// Amend the live bar after the cursor was taken.
	s.Append(model.Bar{Datetime: dt, Close: 10500, High: 10500, Low: 10000, Volume: 50})

	if !c.Next() {
		t.Fatal("cursor empty")
	}
	if c.Bar().Close != 10000 || c.Bar().Volume != 100 {
		t.Errorf("cursor observed a later amendment: %+v", c.Bar())
	}

	// Restartable: Reset rewinds to the same snapshot.
	c.Reset()
	if !c.Next() || c.Bar().Close != 10000 {
		t.Error("cursor not restartable")
	}
}
