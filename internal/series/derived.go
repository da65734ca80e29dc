package series

import (
	"fmt"
	"sort"

	"github.com/yourorg/market-data-service/internal/model"
)

// derivedFor lists the views maintained over each base period.
var derivedFor = map[model.Period][]model.Period{
	model.PeriodDay: {
		model.PeriodWeek, model.PeriodMonth, model.PeriodQuarter,
		model.PeriodHalfYear, model.PeriodYear,
	},
	model.PeriodMin1: {
		model.PeriodMin15, model.PeriodMin30, model.PeriodMin60, model.PeriodHour2,
	},
}

// sameBucket reports whether two base-bar datetimes fall in the same
// derived period.
func sameBucket(p model.Period, a, b model.Datetime) bool {
	if m := p.Minutes(); m > 0 {
		// Intraday bars are stamped at bucket end: the 09:31 bar covers
		// (09:30, 09:31], so the bucket boundary sits one minute back.
		return a.Date() == b.Date() && (a.MinuteOfDay()-1)/m == (b.MinuteOfDay()-1)/m
	}
	return a.PeriodStart(p) == b.PeriodStart(p)
}

// entryStamp returns the datetime an index entry carries: the canonical
// period start for calendar periods, the first base bar's datetime for
// intraday brackets.
func entryStamp(p model.Period, first model.Datetime) model.Datetime {
	if p.Minutes() > 0 {
		return first
	}
	return first.PeriodStart(p)
}

// extendIndices brings every derived index up to date after a bar was
// appended. Amendments never move a bar across a bucket boundary, so
// only appends reach here.
func (s *BarSeries) extendIndices() {
	n := len(s.bars)
	cur := s.bars[n-1].Datetime
	for _, p := range derivedFor[s.period] {
		idx := s.index[p]
		if len(idx) == 0 || !sameBucket(p, s.bars[idx[len(idx)-1].Start].Datetime, cur) {
			s.index[p] = append(idx, model.IndexEntry{
				Datetime: entryStamp(p, cur),
				Start:    int64(n - 1),
			})
		}
	}
}

// RebuildIndex recomputes the index of one derived period from scratch.
// Used at warm-up after loading a series from disk.
func (s *BarSeries) RebuildIndex(p model.Period) {
	idx := s.index[p][:0]
	for i, b := range s.bars {
		if len(idx) == 0 || !sameBucket(p, s.bars[idx[len(idx)-1].Start].Datetime, b.Datetime) {
			idx = append(idx, model.IndexEntry{Datetime: entryStamp(p, b.Datetime), Start: int64(i)})
		}
	}
	s.index[p] = idx
}

// RebuildAllIndices recomputes every derived index for the series.
func (s *BarSeries) RebuildAllIndices() {
	for _, p := range derivedFor[s.period] {
		s.RebuildIndex(p)
	}
}

// Index returns the entries of one derived period.
func (s *BarSeries) Index(p model.Period) []model.IndexEntry { return s.index[p] }

// Derived aggregates the bars of a derived period over start..end. Each
// returned bar is recomputed from its base bracket: open from the first
// base bar, close from the last, extremes and sums over the bracket.
func (s *BarSeries) Derived(p model.Period, start, end model.Datetime) ([]model.Bar, error) {
	if p.Base() != s.period || p.IsBase() {
		return nil, fmt.Errorf("period %s is not derived from %s", p, s.period)
	}
	idx := s.index[p]
	lo := sort.Search(len(idx), func(i int) bool { return idx[i].Datetime >= start })
	hi := sort.Search(len(idx), func(i int) bool { return idx[i].Datetime > end })

	out := make([]model.Bar, 0, hi-lo)
	for i := lo; i < hi; i++ {
		from := idx[i].Start
		to := int64(len(s.bars))
		if i+1 < len(idx) {
			to = idx[i+1].Start
		}
		out = append(out, aggregate(idx[i].Datetime, s.bars[from:to]))
	}
	return out, nil
}

// aggregate folds a base-bar bracket into one derived bar.
func aggregate(stamp model.Datetime, bracket []model.Bar) model.Bar {
	agg := model.Bar{
		Datetime: stamp,
		Open:     bracket[0].Open,
		High:     bracket[0].High,
		Low:      bracket[0].Low,
		Close:    bracket[len(bracket)-1].Close,
	}
	for _, b := range bracket {
		if b.High > agg.High {
			agg.High = b.High
		}
		if b.Low < agg.Low {
			agg.Low = b.Low
		}
		agg.Volume += b.Volume
		agg.Amount += b.Amount
	}
	return agg
}
