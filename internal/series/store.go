package series

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yourorg/market-data-service/internal/model"

	"go.uber.org/zap"
)

// Store owns every bar and tick series plus their backing files. Store
// methods are safe to look up concurrently; mutations of one symbol's
// data must be serialized by the caller (the registry's per-symbol
// locks do this).
type Store struct {
	dir    string
	logger *zap.Logger

	mu        sync.RWMutex
	bars      map[string]*BarSeries
	ticks     map[string]*TickSeries
	barFiles  map[string]*os.File
	tickFiles map[string]*os.File
}

// Open loads every series file found under dir into memory.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{
		dir:       dir,
		logger:    logger,
		bars:      make(map[string]*BarSeries),
		ticks:     make(map[string]*TickSeries),
		barFiles:  make(map[string]*os.File),
		tickFiles: make(map[string]*os.File),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read data dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".bars"):
			base := strings.TrimSuffix(name, ".bars")
			i := strings.LastIndex(base, "_")
			if i < 0 {
				continue
			}
			code, period := base[:i], model.Period(base[i+1:])
			if !period.IsBase() {
				continue
			}
			bars, err := readBarFile(filepath.Join(s.dir, name))
			if err != nil {
				return err
			}
			bs := NewBarSeries(period)
			bs.bars = bars
			s.bars[seriesKey(code, period)] = bs
		case strings.HasSuffix(name, ".ticks"):
			code := strings.TrimSuffix(name, ".ticks")
			ticks, err := readTickFile(filepath.Join(s.dir, name))
			if err != nil {
				return err
			}
			ts := NewTickSeries()
			for _, t := range ticks {
				if _, err := ts.Append(t); err != nil {
					return fmt.Errorf("tick series %s: %w", code, err)
				}
			}
			s.ticks[code] = ts
		}
	}
	s.logger.Info("Time-series store loaded",
		zap.Int("bar_series", len(s.bars)),
		zap.Int("tick_series", len(s.ticks)))
	return nil
}

func seriesKey(code string, p model.Period) string { return code + "_" + string(p) }

// WarmUp rebuilds every derived index after a cold load.
func (s *Store) WarmUp() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, bs := range s.bars {
		bs.RebuildAllIndices()
	}
}

// Bars returns the series for a (symbol, base period), creating it on
// first use.
func (s *Store) Bars(code string, p model.Period) *BarSeries {
	key := seriesKey(code, p)
	s.mu.RLock()
	bs := s.bars[key]
	s.mu.RUnlock()
	if bs != nil {
		return bs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if bs = s.bars[key]; bs == nil {
		bs = NewBarSeries(p)
		s.bars[key] = bs
	}
	return bs
}

// Ticks returns the tick series for a symbol, creating it on first use.
func (s *Store) Ticks(code string) *TickSeries {
	s.mu.RLock()
	ts := s.ticks[code]
	s.mu.RUnlock()
	if ts != nil {
		return ts
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts = s.ticks[code]; ts == nil {
		ts = NewTickSeries()
		s.ticks[code] = ts
	}
	return ts
}

// AppendBar applies one bar to a base series and persists it. An amend
// overwrites the live bar's record in place; an append extends the file.
func (s *Store) AppendBar(code string, p model.Period, b model.Bar) (bool, error) {
	if !p.IsBase() {
		return false, fmt.Errorf("period %s is not a stored granularity", p)
	}
	bs := s.Bars(code, p)
	amended, err := bs.Append(b)
	if err != nil {
		return false, err
	}
	if err := s.persistBarTail(code, p, bs, bs.Len()-1); err != nil {
		return amended, err
	}
	return amended, nil
}

// AppendBars applies a batch atomically; nothing is visible or persisted
// if validation rejects any record.
func (s *Store) AppendBars(code string, p model.Period, batch []model.Bar) error {
	if !p.IsBase() {
		return fmt.Errorf("period %s is not a stored granularity", p)
	}
	if len(batch) == 0 {
		return nil
	}
	bs := s.Bars(code, p)
	from := bs.Len() - 1
	if from < 0 {
		from = 0
	}
	if err := bs.AppendBatch(batch); err != nil {
		return err
	}
	return s.persistBarTail(code, p, bs, from)
}

// persistBarTail writes records from position from to the series end.
func (s *Store) persistBarTail(code string, p model.Period, bs *BarSeries, from int) error {
	f, err := s.barFile(code, p)
	if err != nil {
		return err
	}
	buf := make([]byte, barRecordSize)
	for i := from; i < bs.Len(); i++ {
		encodeBar(buf, bs.bars[i])
		if err := writeRecordAt(f, buf, int64(i)); err != nil {
			return fmt.Errorf("persist bar %s/%s: %w", code, p, err)
		}
	}
	return nil
}

// AppendTick applies one tick and persists it, extending the day-index
// file first when a new trading day opens.
func (s *Store) AppendTick(code string, t model.Tick) error {
	ts := s.Ticks(code)
	newDay, err := ts.Append(t)
	if err != nil {
		return err
	}
	f, err := s.tickFile(code)
	if err != nil {
		return err
	}
	if newDay {
		if err := writeDayIndexFile(filepath.Join(s.dir, code+".ticks.idx"), ts.days); err != nil {
			return fmt.Errorf("persist day index %s: %w", code, err)
		}
	}
	buf := make([]byte, tickRecordSize)
	encodeTick(buf, ts.ticks[ts.Len()-1])
	if err := writeRecordAt(f, buf, int64(ts.Len()-1)); err != nil {
		return fmt.Errorf("persist tick %s: %w", code, err)
	}
	return nil
}

// ReadRange returns a snapshot cursor over a base series.
func (s *Store) ReadRange(code string, p model.Period, start, end model.Datetime) *Cursor {
	return s.Bars(code, p.Base()).Range(start, end)
}

// ReadDerived aggregates a derived period over start..end.
func (s *Store) ReadDerived(code string, p model.Period, start, end model.Datetime) ([]model.Bar, error) {
	return s.Bars(code, p.Base()).Derived(p, start, end)
}

// ReadTicksForDay returns one day's ticks via the day index.
func (s *Store) ReadTicksForDay(code string, date model.Date) []model.Tick {
	return s.Ticks(code).ForDay(date)
}

func (s *Store) barFile(code string, p model.Period) (*os.File, error) {
	key := seriesKey(code, p)
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.barFiles[key]; ok {
		return f, nil
	}
	f, err := openRecordFile(filepath.Join(s.dir, key+".bars"))
	if err != nil {
		return nil, err
	}
	s.barFiles[key] = f
	return f, nil
}

func (s *Store) tickFile(code string) (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.tickFiles[code]; ok {
		return f, nil
	}
	f, err := openRecordFile(filepath.Join(s.dir, code+".ticks"))
	if err != nil {
		return nil, err
	}
	s.tickFiles[code] = f
	return f, nil
}

// Flush rewrites the derived-period index files so the on-disk layout
// carries the same index series the in-memory views use.
func (s *Store) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key, bs := range s.bars {
		for _, p := range derivedFor[bs.period] {
			code := strings.TrimSuffix(key, "_"+string(bs.period))
			path := filepath.Join(s.dir, seriesKey(code, p)+".idx")
			if err := writeIndexFile(path, bs.index[p]); err != nil {
				return err
			}
		}
	}
	for _, f := range s.barFiles {
		if err := f.Sync(); err != nil {
			return err
		}
	}
	for _, f := range s.tickFiles {
		if err := f.Sync(); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and releases every file handle.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		s.logger.Error("Failed to flush time-series store", zap.Error(err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.barFiles {
		f.Close()
	}
	for _, f := range s.tickFiles {
		f.Close()
	}
	s.barFiles = map[string]*os.File{}
	s.tickFiles = map[string]*os.File{}
	return nil
}
