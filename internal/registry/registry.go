package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/market-data-service/internal/model"
	"github.com/yourorg/market-data-service/internal/repository"
	"github.com/yourorg/market-data-service/internal/series"

	"go.uber.org/zap"
)

// Drainer is a component whose in-flight work must finish before the
// registry releases its stores. The importer and the ingestion pipelines
// attach themselves here; Shutdown drains them in attach order.
type Drainer interface {
	Shutdown(ctx context.Context) error
}

// Registry is the composition root over the metadata catalog and the
// time-series store. It is an explicit, constructed instance owned by
// the host application; all reads and writes go through it under its
// locking discipline. One category lock guards the symbol catalog, one
// the holiday calendar, and one lock per symbol guards that symbol's
// bar and tick series, so writers in one category never block readers
// in another.
type Registry struct {
	logger *zap.Logger
	meta   *repository.Store
	store  *series.Store

	catalogMu sync.RWMutex
	markets   map[int64]model.Market
	types     map[int64]model.SymbolType
	symbols   map[string]model.Symbol // lookup code -> symbol
	weights   map[int64][]model.WeightAdjustment

	holidayMu sync.RWMutex
	holidays  map[model.Date]struct{}

	lockMu   sync.Mutex
	symLocks map[string]*sync.RWMutex

	notifier *notifier

	shutdownMu sync.Mutex
	drainers   []Drainer
	draining   bool
	closed     bool

	drainTimeout time.Duration
}

// Open performs the one-time bulk load of the metadata catalog and the
// derived-index warm-up. A load failure is fatal: the registry must not
// start in an unknown state.
func Open(ctx context.Context, meta *repository.Store, store *series.Store, drainTimeout time.Duration, logger *zap.Logger) (*Registry, error) {
	catalog, err := meta.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial metadata load: %w", err)
	}

	r := &Registry{
		logger:       logger,
		meta:         meta,
		store:        store,
		markets:      make(map[int64]model.Market),
		types:        make(map[int64]model.SymbolType),
		symbols:      make(map[string]model.Symbol),
		weights:      make(map[int64][]model.WeightAdjustment),
		holidays:     make(map[model.Date]struct{}),
		symLocks:     make(map[string]*sync.RWMutex),
		drainTimeout: drainTimeout,
	}
	r.installCatalog(catalog)

	store.WarmUp()
	r.notifier = newNotifier(logger)

	logger.Info("Registry initialized",
		zap.Int("markets", len(catalog.Markets)),
		zap.Int("symbols", len(catalog.Symbols)),
		zap.Int("holidays", len(catalog.Holidays)))
	return r, nil
}

func (r *Registry) installCatalog(c *model.Catalog) {
	r.catalogMu.Lock()
	for _, m := range c.Markets {
		r.markets[m.ID] = m
	}
	for _, t := range c.Types {
		r.types[t.ID] = t
	}
	for _, s := range c.Symbols {
		if m, ok := r.markets[s.MarketID]; ok {
			r.symbols[lookupCode(m.Code, s.Code)] = s
		}
	}
	for _, w := range c.Weights {
		r.weights[w.SymbolID] = append(r.weights[w.SymbolID], w)
	}
	r.catalogMu.Unlock()

	r.holidayMu.Lock()
	for _, d := range c.Holidays {
		r.holidays[d] = struct{}{}
	}
	r.holidayMu.Unlock()
}

// lookupCode builds the registry key: market code + symbol code,
// upper-cased ("SH" + "000001" -> "SH000001").
func lookupCode(marketCode, symbolCode string) string {
	return strings.ToUpper(marketCode + symbolCode)
}

func (r *Registry) symLock(code string) *sync.RWMutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	l, ok := r.symLocks[code]
	if !ok {
		l = &sync.RWMutex{}
		r.symLocks[code] = l
	}
	return l
}

// GetSymbol resolves a symbol by its full lookup code.
func (r *Registry) GetSymbol(code string) (model.Symbol, error) {
	r.catalogMu.RLock()
	defer r.catalogMu.RUnlock()
	s, ok := r.symbols[strings.ToUpper(code)]
	if !ok {
		return model.Symbol{}, fmt.Errorf("symbol %s: %w", code, model.ErrNotFound)
	}
	return s, nil
}

// GetSymbols returns a snapshot of every catalogued symbol.
func (r *Registry) GetSymbols() []model.Symbol {
	r.catalogMu.RLock()
	defer r.catalogMu.RUnlock()
	out := make([]model.Symbol, 0, len(r.symbols))
	for _, s := range r.symbols {
		out = append(out, s)
	}
	return out
}

// GetMarket resolves a market by short code.
func (r *Registry) GetMarket(code string) (model.Market, error) {
	r.catalogMu.RLock()
	defer r.catalogMu.RUnlock()
	for _, m := range r.markets {
		if strings.EqualFold(m.Code, code) {
			return m, nil
		}
	}
	return model.Market{}, fmt.Errorf("market %s: %w", code, model.ErrNotFound)
}

// GetMarkets returns a snapshot of all markets.
func (r *Registry) GetMarkets() []model.Market {
	r.catalogMu.RLock()
	defer r.catalogMu.RUnlock()
	out := make([]model.Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	return out
}

// GetSymbolType resolves a symbol's trading parameters.
func (r *Registry) GetSymbolType(id int64) (model.SymbolType, error) {
	r.catalogMu.RLock()
	defer r.catalogMu.RUnlock()
	t, ok := r.types[id]
	if !ok {
		return model.SymbolType{}, fmt.Errorf("symbol type %d: %w", id, model.ErrNotFound)
	}
	return t, nil
}

// GetWeights returns one symbol's corporate actions ordered by ex-date.
func (r *Registry) GetWeights(code string) ([]model.WeightAdjustment, error) {
	s, err := r.GetSymbol(code)
	if err != nil {
		return nil, err
	}
	r.catalogMu.RLock()
	defer r.catalogMu.RUnlock()
	ws := r.weights[s.ID]
	out := make([]model.WeightAdjustment, len(ws))
	copy(out, ws)
	return out, nil
}

// IsHoliday reports whether the calendar marks the day as a holiday.
func (r *Registry) IsHoliday(date model.Date) bool {
	r.holidayMu.RLock()
	defer r.holidayMu.RUnlock()
	_, ok := r.holidays[date]
	return ok
}

// ReplaceHolidays persists and installs a new holiday calendar wholesale.
func (r *Registry) ReplaceHolidays(ctx context.Context, dates []model.Date) error {
	if err := r.meta.Holidays.Reload(ctx, dates); err != nil {
		return err
	}
	fresh := make(map[model.Date]struct{}, len(dates))
	for _, d := range dates {
		fresh[d] = struct{}{}
	}
	r.holidayMu.Lock()
	r.holidays = fresh
	r.holidayMu.Unlock()
	return nil
}

// UpsertSymbol writes through to the catalog and refreshes the in-memory
// entry.
func (r *Registry) UpsertSymbol(ctx context.Context, sym model.Symbol) (model.Symbol, error) {
	r.catalogMu.RLock()
	m, ok := r.markets[sym.MarketID]
	_, typeOK := r.types[sym.TypeID]
	r.catalogMu.RUnlock()
	if !ok {
		return model.Symbol{}, fmt.Errorf("market %d: %w", sym.MarketID, model.ErrNotFound)
	}
	if !typeOK {
		return model.Symbol{}, fmt.Errorf("symbol type %d: %w", sym.TypeID, model.ErrNotFound)
	}

	// Persist first; the catalog lock is only held for the map update.
	id, err := r.meta.Symbols.Upsert(ctx, &sym)
	if err != nil {
		return model.Symbol{}, err
	}
	sym.ID = id

	r.catalogMu.Lock()
	r.symbols[lookupCode(m.Code, sym.Code)] = sym
	r.catalogMu.Unlock()
	return sym, nil
}

// DelistSymbol flips a symbol invalid with its final trading date. The
// row and its series stay: delisting is history, not deletion.
func (r *Registry) DelistSymbol(ctx context.Context, code string, endDate model.Date) error {
	s, err := r.GetSymbol(code)
	if err != nil {
		return err
	}
	if err := r.meta.Symbols.Delist(ctx, s.ID, endDate); err != nil {
		return err
	}

	key := lookupKeyOf(s, r)
	r.catalogMu.Lock()
	if cur, ok := r.symbols[key]; ok {
		cur.Valid = false
		cur.EndDate = endDate
		r.symbols[key] = cur
	}
	r.catalogMu.Unlock()
	return nil
}

// AppendWeightAdjustment persists one corporate-action record and keeps
// the per-symbol ordering by ex-date.
func (r *Registry) AppendWeightAdjustment(ctx context.Context, w model.WeightAdjustment) error {
	id, err := r.meta.Weights.Append(ctx, &w)
	if err != nil {
		return err
	}
	w.ID = id
	r.catalogMu.Lock()
	defer r.catalogMu.Unlock()
	ws := append(r.weights[w.SymbolID], w)
	for i := len(ws) - 1; i > 0 && ws[i-1].ExDate > ws[i].ExDate; i-- {
		ws[i-1], ws[i] = ws[i], ws[i-1]
	}
	r.weights[w.SymbolID] = ws
	return nil
}

// GetBars reads bars for a symbol over start..end. Base periods return
// the stored series; derived periods are aggregated through the period
// index. The cursor iterates a snapshot and never observes a torn bar.
func (r *Registry) GetBars(code string, p model.Period, start, end model.Datetime) (*series.Cursor, error) {
	s, err := r.GetSymbol(code)
	if err != nil {
		return nil, err
	}
	key := lookupKeyOf(s, r)
	l := r.symLock(key)
	l.RLock()
	defer l.RUnlock()
	if p.IsBase() {
		return r.store.ReadRange(key, p, start, end), nil
	}
	bars, err := r.store.ReadDerived(key, p, start, end)
	if err != nil {
		return nil, err
	}
	return series.NewCursor(bars), nil
}

// GetTicks reads one day's ticks for a symbol.
func (r *Registry) GetTicks(code string, date model.Date) ([]model.Tick, error) {
	s, err := r.GetSymbol(code)
	if err != nil {
		return nil, err
	}
	key := lookupKeyOf(s, r)
	l := r.symLock(key)
	l.RLock()
	defer l.RUnlock()
	return r.store.ReadTicksForDay(key, date), nil
}

// LastBar returns the most recent stored bar of a base series.
func (r *Registry) LastBar(code string, p model.Period) (model.Bar, bool, error) {
	s, err := r.GetSymbol(code)
	if err != nil {
		return model.Bar{}, false, err
	}
	key := lookupKeyOf(s, r)
	l := r.symLock(key)
	l.RLock()
	defer l.RUnlock()
	b, ok := r.store.Bars(key, p.Base()).Last()
	return b, ok, nil
}

// RecordImportedRange refreshes catalog bookkeeping after a successful
// day-bar import: the symbol's first stored date and the market's last
// known trading date.
func (r *Registry) RecordImportedRange(ctx context.Context, code string, first, last model.Date) error {
	s, err := r.GetSymbol(code)
	if err != nil {
		return err
	}
	if err := r.meta.Symbols.UpdateStartDate(ctx, s.ID, first); err != nil {
		return err
	}
	if err := r.meta.Markets.UpdateLastDate(ctx, s.MarketID, last); err != nil {
		return err
	}

	r.catalogMu.Lock()
	m := r.markets[s.MarketID]
	if last > m.LastDate {
		m.LastDate = last
		r.markets[s.MarketID] = m
	}
	key := lookupCode(m.Code, s.Code)
	if cur, ok := r.symbols[key]; ok {
		if first < cur.StartDate || cur.StartDate == 0 {
			cur.StartDate = first
		}
		cur.Valid = true
		cur.EndDate = model.OpenEndDate
		r.symbols[key] = cur
	}
	r.catalogMu.Unlock()
	return nil
}

// ApplyBar is the sole bar write path, serialized per symbol. The live
// bar is amended as a single value replace; readers holding the symbol
// read lock can never see a half-written bar.
func (r *Registry) ApplyBar(code string, p model.Period, b model.Bar) error {
	if r.isClosed() {
		return model.ErrShuttingDown
	}
	s, err := r.GetSymbol(code)
	if err != nil {
		return err
	}
	key := lookupKeyOf(s, r)
	l := r.symLock(key)
	l.Lock()
	defer l.Unlock()
	amended, err := r.store.AppendBar(key, p, b)
	if err != nil {
		return err
	}
	// Enqueued under the symbol lock so listeners observe events in
	// apply order. The publish never blocks.
	r.notifier.publish(BarEvent{Code: key, Period: p, Bar: b, Amended: amended})
	return nil
}

// ApplyBars commits a batch atomically for one symbol: either every bar
// becomes visible or none does. One notification covers the batch.
func (r *Registry) ApplyBars(code string, p model.Period, batch []model.Bar) error {
	if r.isClosed() {
		return model.ErrShuttingDown
	}
	if len(batch) == 0 {
		return nil
	}
	s, err := r.GetSymbol(code)
	if err != nil {
		return err
	}
	key := lookupKeyOf(s, r)
	l := r.symLock(key)
	l.Lock()
	defer l.Unlock()
	if err := r.store.AppendBars(key, p, batch); err != nil {
		return err
	}
	r.notifier.publish(BarEvent{Code: key, Period: p, Bar: batch[len(batch)-1]})
	return nil
}

// ApplyTick appends one tick to the symbol's tick series.
func (r *Registry) ApplyTick(code string, t model.Tick) error {
	if r.isClosed() {
		return model.ErrShuttingDown
	}
	s, err := r.GetSymbol(code)
	if err != nil {
		return err
	}
	key := lookupKeyOf(s, r)
	l := r.symLock(key)
	l.Lock()
	defer l.Unlock()
	return r.store.AppendTick(key, t)
}

// lookupKeyOf rebuilds the series key for a resolved symbol.
func lookupKeyOf(s model.Symbol, r *Registry) string {
	r.catalogMu.RLock()
	defer r.catalogMu.RUnlock()
	m := r.markets[s.MarketID]
	return lookupCode(m.Code, s.Code)
}

// RegisterBarListener subscribes to bar-update events. Callbacks run in
// registration order on the notifier goroutine.
func (r *Registry) RegisterBarListener(fn BarListener) ListenerHandle {
	return r.notifier.register(fn)
}

// UnregisterBarListener removes a listener.
func (r *Registry) UnregisterBarListener(h ListenerHandle) {
	r.notifier.unregister(h)
}

// AttachDrainer registers a component to be drained during Shutdown,
// in attach order, before the stores are released.
func (r *Registry) AttachDrainer(d Drainer) {
	r.shutdownMu.Lock()
	defer r.shutdownMu.Unlock()
	r.drainers = append(r.drainers, d)
}

func (r *Registry) isClosed() bool {
	r.shutdownMu.Lock()
	defer r.shutdownMu.Unlock()
	return r.closed
}

// Shutdown drains attached writers, then the notifier queue, then
// releases the time-series store. The ordering is the contract: no
// subscriber may outlive the stores it references. The write gate stays
// open through the drain phase so an in-flight import partition can
// finish its atomic commit; only after every drainer returns are new
// writes rejected. Safe to call once.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.shutdownMu.Lock()
	if r.draining || r.closed {
		r.shutdownMu.Unlock()
		return nil
	}
	r.draining = true
	drainers := make([]Drainer, len(r.drainers))
	copy(drainers, r.drainers)
	r.shutdownMu.Unlock()

	for _, d := range drainers {
		if err := d.Shutdown(ctx); err != nil {
			r.logger.Warn("Component drain failed during shutdown", zap.Error(err))
		}
	}

	r.shutdownMu.Lock()
	r.closed = true
	r.shutdownMu.Unlock()

	r.notifier.close(r.drainTimeout)

	if err := r.store.Close(); err != nil {
		return fmt.Errorf("close time-series store: %w", err)
	}
	r.logger.Info("Registry shut down")
	return nil
}
