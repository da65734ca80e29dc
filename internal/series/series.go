package series

import (
	"fmt"
	"sort"

	"github.com/yourorg/market-data-service/internal/model"
)

// BarSeries holds the bars of one (symbol, base period) in append order,
// together with the derived-period indices built over them. The series
// performs no locking of its own; callers serialize access per symbol.
type BarSeries struct {
	period model.Period
	bars   []model.Bar
	index  map[model.Period][]model.IndexEntry
}

// NewBarSeries creates an empty series for a base period.
func NewBarSeries(period model.Period) *BarSeries {
	return &BarSeries{
		period: period,
		index:  make(map[model.Period][]model.IndexEntry),
	}
}

// Len returns the number of stored bars.
func (s *BarSeries) Len() int { return len(s.bars) }

// Last returns the most recent bar, false when the series is empty.
func (s *BarSeries) Last() (model.Bar, bool) {
	if len(s.bars) == 0 {
		return model.Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Append applies one bar. A bar carrying the live bar's datetime amends
// it in place (merge semantics); a later datetime closes the live bar and
// opens a new one; an earlier datetime is rejected whole with
// ErrOutOfOrder. Returns true when the live bar was amended.
func (s *BarSeries) Append(b model.Bar) (bool, error) {
	n := len(s.bars)
	if n > 0 {
		last := s.bars[n-1].Datetime
		if b.Datetime < last {
			return false, fmt.Errorf("%w: bar %d before last %d", model.ErrOutOfOrder, b.Datetime, last)
		}
		if b.Datetime == last {
			// Live bar: replace as one value, never field by field.
			merged := s.bars[n-1]
			merged.Merge(b)
			s.bars[n-1] = merged
			return true, nil
		}
	}
	s.bars = append(s.bars, b)
	s.extendIndices()
	return false, nil
}

// AppendBatch applies a batch atomically: the whole batch is validated
// against the series before anything is written, so a rejected batch
// leaves no partial state behind.
func (s *BarSeries) AppendBatch(batch []model.Bar) error {
	prev := model.Datetime(0)
	if n := len(s.bars); n > 0 {
		prev = s.bars[n-1].Datetime
	}
	for i, b := range batch {
		if b.Datetime < prev || (i > 0 && b.Datetime == prev) {
			return fmt.Errorf("%w: batch bar %d at %d", model.ErrOutOfOrder, i, b.Datetime)
		}
		prev = b.Datetime
	}
	for _, b := range batch {
		if _, err := s.Append(b); err != nil {
			return err
		}
	}
	return nil
}

// Range returns a cursor over the bars with start <= datetime <= end.
// The cursor iterates a copied snapshot: it is restartable and can never
// observe a later amendment of the live bar.
func (s *BarSeries) Range(start, end model.Datetime) *Cursor {
	lo := sort.Search(len(s.bars), func(i int) bool { return s.bars[i].Datetime >= start })
	hi := sort.Search(len(s.bars), func(i int) bool { return s.bars[i].Datetime > end })
	snap := make([]model.Bar, hi-lo)
	copy(snap, s.bars[lo:hi])
	return &Cursor{bars: snap, pos: -1}
}

// Cursor is a finite, restartable iterator over a bar snapshot.
type Cursor struct {
	bars []model.Bar
	pos  int
}

// NewCursor wraps an already-materialized bar slice in a cursor.
func NewCursor(bars []model.Bar) *Cursor { return &Cursor{bars: bars, pos: -1} }

// Next advances the cursor, returning false when exhausted.
func (c *Cursor) Next() bool {
	if c.pos+1 >= len(c.bars) {
		return false
	}
	c.pos++
	return true
}

// Bar returns the bar at the current position.
func (c *Cursor) Bar() model.Bar { return c.bars[c.pos] }

// Reset rewinds the cursor to before the first bar.
func (c *Cursor) Reset() { c.pos = -1 }

// Len returns the number of bars the cursor covers.
func (c *Cursor) Len() int { return len(c.bars) }

// Slice drains the cursor into a slice.
func (c *Cursor) Slice() []model.Bar {
	out := make([]model.Bar, 0, len(c.bars))
	for c.Next() {
		out = append(out, c.Bar())
	}
	c.Reset()
	return out
}
