package importer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/market-data-service/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Registry is the slice of the registry surface the importer commits
// through.
type Registry interface {
	GetMarket(code string) (model.Market, error)
	GetSymbols() []model.Symbol
	LastBar(code string, p model.Period) (model.Bar, bool, error)
	ApplyBars(code string, p model.Period, batch []model.Bar) error
	RecordImportedRange(ctx context.Context, code string, first, last model.Date) error
}

// Request describes one bulk import run.
type Request struct {
	Markets []string
	Periods []model.Period
	// Cutoff excludes source records dated at or after it. Zero means no
	// cutoff; a run without one during the trading session needs
	// Confirmed, because the source file may still be written by an
	// external producer and end-of-day fields would not be final.
	Cutoff    model.Date
	Confirmed bool
}

// SymbolResult is the outcome of one per-symbol commit.
type SymbolResult struct {
	Code     string
	Period   model.Period
	Imported int
	Skipped  int
	Err      error
}

// Report aggregates a run.
type Report struct {
	Imported int
	Skipped  int
	Results  []SymbolResult
	Failed   []*model.ImportError
}

// Session is a trading-session window in wall-clock minutes of day.
type Session struct {
	StartMinute int
	EndMinute   int
}

// ParseSession parses "HH:MM"/"HH:MM" bounds.
func ParseSession(start, end string) (Session, error) {
	parse := func(s string) (int, error) {
		t, err := time.Parse("15:04", s)
		if err != nil {
			return 0, err
		}
		return t.Hour()*60 + t.Minute(), nil
	}
	sm, err := parse(start)
	if err != nil {
		return Session{}, err
	}
	em, err := parse(end)
	if err != nil {
		return Session{}, err
	}
	return Session{StartMinute: sm, EndMinute: em}, nil
}

// Contains reports whether t falls inside the window.
func (s Session) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	return m >= s.StartMinute && m <= s.EndMinute
}

// Scheduler runs parallel historical imports through the registry. Each
// symbol is one work item: source I/O happens into a local buffer with
// no registry lock held, then the commit is a single atomic per-symbol
// batch apply.
type Scheduler struct {
	reg     Registry
	src     Source
	workers int
	session Session
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
	closed  bool
}

// NewScheduler creates a scheduler with a bounded worker pool.
func NewScheduler(reg Registry, src Source, workers int, session Session, logger *zap.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		reg:     reg,
		src:     src,
		workers: workers,
		session: session,
		logger:  logger,
		now:     time.Now,
	}
}

// Run imports every requested (market, period, symbol) partition.
// Partition failures are isolated: a failed symbol surfaces as one
// ImportError in the report, other symbols are unaffected. A cancelled
// context lets in-flight commits finish atomically and discards queued
// partitions.
func (s *Scheduler) Run(ctx context.Context, req Request) (*Report, error) {
	if req.Cutoff == 0 && !req.Confirmed && s.session.Contains(s.now()) {
		return nil, model.ErrRequiresConfirmation
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, model.ErrShuttingDown
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()
	defer cancel()

	report := &Report{}
	var reportMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, market := range req.Markets {
		m, err := s.reg.GetMarket(market)
		if err != nil {
			return nil, err
		}
		symbols := s.marketSymbols(m.Code)
		for _, period := range req.Periods {
			if !period.IsBase() {
				continue
			}
			for _, code := range symbols {
				market, period, code := m.Code, period, code
				g.Go(func() error {
					if gctx.Err() != nil {
						return nil // queued but not started: discard
					}
					res := s.importSymbol(gctx, market, period, code, req.Cutoff)
					reportMu.Lock()
					report.Results = append(report.Results, res)
					report.Imported += res.Imported
					report.Skipped += res.Skipped
					if res.Err != nil {
						var ie *model.ImportError
						if errors.As(res.Err, &ie) {
							report.Failed = append(report.Failed, ie)
						}
					}
					reportMu.Unlock()
					return nil
				})
			}
		}
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	s.logger.Info("Import run finished",
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

// marketSymbols lists the valid lookup codes of one market.
func (s *Scheduler) marketSymbols(marketCode string) []string {
	m, err := s.reg.GetMarket(marketCode)
	if err != nil {
		return nil
	}
	var out []string
	for _, sym := range s.reg.GetSymbols() {
		if sym.Valid && sym.MarketID == m.ID {
			out = append(out, strings.ToUpper(m.Code+sym.Code))
		}
	}
	return out
}

// importSymbol reads one symbol's source records into a local buffer and
// commits them as one atomic batch. Records already stored are dropped
// first, which makes re-importing an identical batch a no-op.
func (s *Scheduler) importSymbol(ctx context.Context, market string, p model.Period, code string, cutoff model.Date) SymbolResult {
	res := SymbolResult{Code: code, Period: p}

	bars, skipped, err := s.src.Read(ctx, market, p, strings.ToLower(code), cutoff)
	if err != nil {
		res.Err = &model.ImportError{Symbol: code, Err: err}
		return res
	}
	res.Skipped = skipped
	if len(bars) == 0 {
		return res
	}

	if last, ok, err := s.reg.LastBar(code, p); err != nil {
		res.Err = &model.ImportError{Symbol: code, Err: err}
		return res
	} else if ok {
		i := 0
		for i < len(bars) && bars[i].Datetime <= last.Datetime {
			i++
		}
		bars = bars[i:]
	}
	if len(bars) == 0 {
		return res
	}

	if err := s.reg.ApplyBars(code, p, bars); err != nil {
		res.Err = &model.ImportError{Symbol: code, Err: err}
		return res
	}
	res.Imported = len(bars)

	if p == model.PeriodDay {
		first := bars[0].Datetime.Date()
		lastDate := bars[len(bars)-1].Datetime.Date()
		if err := s.reg.RecordImportedRange(ctx, code, first, lastDate); err != nil {
			s.logger.Warn("Failed to record imported range",
				zap.String("code", code), zap.Error(err))
		}
	}
	return res
}

// Shutdown cancels the current run and waits for in-flight partitions to
// finish their atomic commits. Further runs are rejected.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
