package series

import (
	"fmt"
	"sort"

	"github.com/yourorg/market-data-service/internal/model"
)

// TickSeries holds one symbol's ticks in append order plus the per-day
// index into them. Runs per trading day are variable length; readers go
// through the day index, never by scanning.
type TickSeries struct {
	ticks []model.Tick
	days  []model.DayIndexEntry
}

// NewTickSeries creates an empty tick series.
func NewTickSeries() *TickSeries { return &TickSeries{} }

// Len returns the number of stored ticks.
func (s *TickSeries) Len() int { return len(s.ticks) }

// Days returns the day-index entries.
func (s *TickSeries) Days() []model.DayIndexEntry { return s.days }

// Append adds one tick. Equal datetimes are allowed (several trades in
// one minute); an earlier datetime is rejected with ErrOutOfOrder. The
// first tick of a new calendar day creates the day-index entry before
// the tick itself is visible. Returns true when a new day was opened.
func (s *TickSeries) Append(t model.Tick) (bool, error) {
	if n := len(s.ticks); n > 0 && t.Datetime < s.ticks[n-1].Datetime {
		return false, fmt.Errorf("%w: tick %d before last %d",
			model.ErrOutOfOrder, t.Datetime, s.ticks[n-1].Datetime)
	}
	newDay := false
	day := t.Datetime.Date()
	if len(s.days) == 0 || s.days[len(s.days)-1].Date < day {
		s.days = append(s.days, model.DayIndexEntry{Date: day, Start: int64(len(s.ticks))})
		newDay = true
	}
	s.ticks = append(s.ticks, t)
	return newDay, nil
}

// ForDay returns a copy of the ticks of one calendar day, empty when the
// day has none.
func (s *TickSeries) ForDay(date model.Date) []model.Tick {
	i := sort.Search(len(s.days), func(i int) bool { return s.days[i].Date >= date })
	if i == len(s.days) || s.days[i].Date != date {
		return nil
	}
	from := s.days[i].Start
	to := int64(len(s.ticks))
	if i+1 < len(s.days) {
		to = s.days[i+1].Start
	}
	out := make([]model.Tick, to-from)
	copy(out, s.ticks[from:to])
	return out
}
