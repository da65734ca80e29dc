package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yourorg/market-data-service/internal/model"
	"github.com/yourorg/market-data-service/internal/series"

	"go.uber.org/zap"
)

// newTestRegistry wires a registry over a temp-dir store with a small
// in-memory catalog, bypassing the metadata database.
func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := series.Open(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	r := &Registry{
		logger:       zap.NewNop(),
		store:        store,
		markets:      map[int64]model.Market{1: {ID: 1, Code: "SH", Name: "Shanghai"}},
		types:        map[int64]model.SymbolType{1: {ID: 1, Precision: 2}},
		symbols:      make(map[string]model.Symbol),
		weights:      make(map[int64][]model.WeightAdjustment),
		holidays:     map[model.Date]struct{}{20240101: {}},
		symLocks:     make(map[string]*sync.RWMutex),
		drainTimeout: time.Second,
	}
	r.symbols["SH000001"] = model.Symbol{
		ID: 1, MarketID: 1, Code: "000001", Name: "SSE Index", TypeID: 1,
		Valid: true, StartDate: 20240101, EndDate: model.OpenEndDate,
	}
	r.notifier = newNotifier(r.logger)
	t.Cleanup(func() { r.Shutdown(context.Background()) })
	return r
}

func minuteBar(minute int, close model.Price, volume int64) model.Bar {
	return model.Bar{
		Datetime: model.NewDatetime(2024, 1, 2, 9, minute),
		Open:     close, High: close, Low: close, Close: close,
		Volume: volume,
	}
}

func TestGetSymbolLookup(t *testing.T) {
	r := newTestRegistry(t)

	s, err := r.GetSymbol("sh000001")
	if err != nil {
		t.Fatalf("lookup must be case-insensitive: %v", err)
	}
	if s.Code != "000001" {
		t.Errorf("code = %s, want 000001", s.Code)
	}

	if _, err := r.GetSymbol("SZ999999"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown symbol err = %v, want ErrNotFound", err)
	}
	if _, err := r.GetMarket("SH"); err != nil {
		t.Errorf("get market: %v", err)
	}
	if !r.IsHoliday(20240101) || r.IsHoliday(20240102) {
		t.Error("holiday calendar wrong")
	}
}

func TestApplyBarAmendsAndReads(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.ApplyBar("SH000001", model.PeriodMin1, minuteBar(31, 10000, 100)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := r.ApplyBar("SH000001", model.PeriodMin1, minuteBar(31, 10050, 50)); err != nil {
		t.Fatalf("amend: %v", err)
	}

	c, err := r.GetBars("SH000001", model.PeriodMin1, 0, 999912312359)
	if err != nil {
		t.Fatalf("get bars: %v", err)
	}
	bars := c.Slice()
	if len(bars) != 1 {
		t.Fatalf("bars = %d, want 1 merged live bar", len(bars))
	}
	if bars[0].Close != 10050 || bars[0].Volume != 150 {
		t.Errorf("merged bar = %+v", bars[0])
	}

	// Derived reads go through the same facade.
	r.ApplyBar("SH000001", model.PeriodMin1, minuteBar(46, 10100, 20))
	dc, err := r.GetBars("SH000001", model.PeriodMin15, 0, 999912312359)
	if err != nil {
		t.Fatalf("get derived bars: %v", err)
	}
	if dc.Len() != 2 {
		t.Errorf("derived buckets = %d, want 2", dc.Len())
	}
}

func TestListenerOrdering(t *testing.T) {
	r := newTestRegistry(t)

	type call struct {
		listener int
		datetime model.Datetime
	}
	var mu sync.Mutex
	var calls []call

	record := func(listener int) BarListener {
		return func(ev BarEvent) {
			mu.Lock()
			calls = append(calls, call{listener: listener, datetime: ev.Bar.Datetime})
			mu.Unlock()
		}
	}
	r.RegisterBarListener(record(1))
	h2 := r.RegisterBarListener(record(2))

	for m := 31; m <= 33; m++ {
		if err := r.ApplyBar("SH000001", model.PeriodMin1, minuteBar(m, 10000, 10)); err != nil {
			t.Fatalf("apply %d: %v", m, err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(calls)
		mu.Unlock()
		if n >= 6 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("listeners saw %d calls, want 6", n)
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < 6; i += 2 {
		wantDt := model.NewDatetime(2024, 1, 2, 9, 31+i/2)
		if calls[i].listener != 1 || calls[i+1].listener != 2 {
			t.Errorf("event %d listener order = %d,%d, want 1,2", i/2, calls[i].listener, calls[i+1].listener)
		}
		if calls[i].datetime != wantDt || calls[i+1].datetime != wantDt {
			t.Errorf("event %d datetime = %d/%d, want %d", i/2, calls[i].datetime, calls[i+1].datetime, wantDt)
		}
	}

	r.UnregisterBarListener(h2)
}

func TestConcurrentReadersSeeWholeBars(t *testing.T) {
	r := newTestRegistry(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for m := 31; m <= 59; m++ {
			p := model.Price(10000 + m)
			r.ApplyBar("SH000001", model.PeriodMin1, model.Bar{
				Datetime: model.NewDatetime(2024, 1, 2, 9, m),
				Open:     p, High: p, Low: p, Close: p, Volume: int64(m),
			})
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				c, err := r.GetBars("SH000001", model.PeriodMin1, 0, 999912312359)
				if err != nil {
					t.Errorf("get bars: %v", err)
					return
				}
				for c.Next() {
					b := c.Bar()
					// Every bar is written whole; a mixed-field bar means
					// a torn read.
					if b.Open != b.Close || b.High != b.Low || b.Open != b.High {
						t.Errorf("torn bar observed: %+v", b)
						return
					}
				}
			}
		}()
	}
	<-done
	wg.Wait()
}

type orderedDrainer struct {
	id    int
	mu    *sync.Mutex
	order *[]int
}

func (d *orderedDrainer) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	*d.order = append(*d.order, d.id)
	d.mu.Unlock()
	return nil
}

func TestShutdownOrderAndIdempotence(t *testing.T) {
	r := newTestRegistry(t)

	var mu sync.Mutex
	var order []int
	r.AttachDrainer(&orderedDrainer{id: 1, mu: &mu, order: &order})
	r.AttachDrainer(&orderedDrainer{id: 2, mu: &mu, order: &order})

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("drain order = %v, want [1 2]", order)
	}

	if err := r.ApplyBar("SH000001", model.PeriodMin1, minuteBar(31, 10000, 10)); !errors.Is(err, model.ErrShuttingDown) {
		t.Errorf("apply after shutdown err = %v, want ErrShuttingDown", err)
	}
	if err := r.ApplyTick("SH000001", model.Tick{Datetime: 202401020931, Price: 10000, Volume: 1}); !errors.Is(err, model.ErrShuttingDown) {
		t.Errorf("tick after shutdown err = %v, want ErrShuttingDown", err)
	}

	// A second shutdown is a no-op.
	if err := r.Shutdown(context.Background()); err != nil {
		t.Errorf("second shutdown: %v", err)
	}
}

// commitOnDrain commits a batch from inside the drain phase, the way an
// import partition finishing mid-shutdown does.
type commitOnDrain struct {
	r   *Registry
	err error
}

func (d *commitOnDrain) Shutdown(ctx context.Context) error {
	d.err = d.r.ApplyBars("SH000001", model.PeriodDay, []model.Bar{{
		Datetime: 202401020000,
		Open:     10000, High: 10000, Low: 10000, Close: 10000, Volume: 100,
	}})
	return nil
}

func TestShutdownLetsInFlightCommitFinish(t *testing.T) {
	r := newTestRegistry(t)
	d := &commitOnDrain{r: r}
	r.AttachDrainer(d)

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if d.err != nil {
		t.Fatalf("commit during the drain phase must finish atomically: %v", d.err)
	}
	// Only after the drainers return does the write gate close.
	if err := r.ApplyBar("SH000001", model.PeriodMin1, minuteBar(31, 10000, 10)); !errors.Is(err, model.ErrShuttingDown) {
		t.Errorf("apply after drain err = %v, want ErrShuttingDown", err)
	}
}

func TestListenerObservesApplyOrder(t *testing.T) {
	r := newTestRegistry(t)

	var mu sync.Mutex
	var seen []model.Datetime
	r.RegisterBarListener(func(ev BarEvent) {
		mu.Lock()
		seen = append(seen, ev.Bar.Datetime)
		mu.Unlock()
	})

	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	var next, applied int64
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				n := atomic.AddInt64(&next, 1)
				dt := model.DatetimeFromTime(base.Add(time.Duration(n) * time.Minute))
				err := r.ApplyBar("SH000001", model.PeriodMin1, model.Bar{
					Datetime: dt, Open: 10000, High: 10000, Low: 10000, Close: 10000, Volume: 1,
				})
				switch {
				case err == nil:
					atomic.AddInt64(&applied, 1)
				case errors.Is(err, model.ErrOutOfOrder):
					// lost the race to a writer holding a later datetime
				default:
					t.Errorf("apply: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	want := int(atomic.LoadInt64(&applied))
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n >= want {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("listener saw %d events, want %d", n, want)
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("event %d out of order: %d after %d", i, seen[i], seen[i-1])
		}
	}
}

func TestGetWeightsCopies(t *testing.T) {
	r := newTestRegistry(t)
	r.weights[1] = []model.WeightAdjustment{
		{ID: 1, SymbolID: 1, ExDate: 20240110, Dividend: 500},
		{ID: 2, SymbolID: 1, ExDate: 20240210, Dividend: 300},
	}

	ws, err := r.GetWeights("SH000001")
	if err != nil {
		t.Fatalf("get weights: %v", err)
	}
	if len(ws) != 2 {
		t.Fatalf("weights = %d, want 2", len(ws))
	}
	ws[0].Dividend = 0
	if r.weights[1][0].Dividend != 500 {
		t.Error("GetWeights must return a copy")
	}
}
