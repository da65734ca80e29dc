package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/yourorg/market-data-service/internal/model"

	"go.uber.org/zap"
)

// Registry is the write-side surface the pipeline amends bars through.
type Registry interface {
	GetSymbol(code string) (model.Symbol, error)
	ApplyBar(code string, p model.Period, b model.Bar) error
	ApplyTick(code string, t model.Tick) error
}

// State is the pipeline lifecycle position. Transitions only move
// forward; a stopped pipeline cannot be restarted.
type State int32

const (
	StateStopped State = iota
	StateConnecting
	StateSubscribed
	StateReceiving
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReceiving:
		return "receiving"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Connector opens the transport. Injected so tests can run the pipeline
// against an in-memory source.
type Connector func(ctx context.Context) (MessageSource, error)

// Stats are the pipeline's observability counters.
type Stats struct {
	Received     uint64
	Applied      uint64
	DecodeErrors uint64
	Dropped      uint64
}

// Pipeline subscribes to the quote transport and amends live bars
// through the registry. Decode failures are dropped and counted, never
// fatal. Listener fan-out happens on the registry's notifier goroutine,
// never on the receive loop.
type Pipeline struct {
	reg      Registry
	connect  Connector
	prefixes []string
	logger   *zap.Logger

	state   atomic.Int32
	started atomic.Bool

	received     atomic.Uint64
	applied      atomic.Uint64
	decodeErrors atomic.Uint64
	dropped      atomic.Uint64

	src    MessageSource
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a pipeline. prefixes filter inbound quotes by lookup-code
// prefix ("SH", "SH600"); empty means no filter.
func New(reg Registry, connect Connector, prefixes []string, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		reg:      reg,
		connect:  connect,
		prefixes: prefixes,
		logger:   logger,
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State { return State(p.state.Load()) }

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:     p.received.Load(),
		Applied:      p.applied.Load(),
		DecodeErrors: p.decodeErrors.Load(),
		Dropped:      p.dropped.Load(),
	}
}

// Start connects, subscribes and enters the receive loop on a dedicated
// goroutine. A pipeline instance starts at most once.
func (p *Pipeline) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return fmt.Errorf("pipeline cannot be restarted")
	}
	p.state.Store(int32(StateConnecting))

	src, err := p.connect(ctx)
	if err != nil {
		p.state.Store(int32(StateStopped))
		return fmt.Errorf("%w: %v", model.ErrConnectFailed, err)
	}
	p.src = src
	p.state.Store(int32(StateSubscribed))

	loopCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go p.receive(loopCtx)
	p.state.Store(int32(StateReceiving))
	p.logger.Info("Ingestion pipeline receiving", zap.Strings("prefixes", p.prefixes))
	return nil
}

func (p *Pipeline) receive(ctx context.Context) {
	defer p.wg.Done()
	for {
		raw, err := p.src.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || p.State() == StateStopping {
				return
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			p.logger.Warn("Transport read failed", zap.Error(err))
			continue
		}
		p.received.Add(1)
		p.handle(raw)
	}
}

func (p *Pipeline) handle(raw []byte) {
	q, err := DecodeQuote(raw)
	if err != nil {
		p.decodeErrors.Add(1)
		return
	}
	code := strings.ToUpper(q.Market + q.Code)
	if !p.match(code) {
		p.dropped.Add(1)
		return
	}
	if _, err := p.reg.GetSymbol(code); err != nil {
		p.dropped.Add(1)
		return
	}

	if err := p.reg.ApplyBar(code, model.PeriodMin1, q.Bar()); err != nil {
		if errors.Is(err, model.ErrOutOfOrder) {
			p.dropped.Add(1)
			return
		}
		p.logger.Warn("Failed to apply bar", zap.String("code", code), zap.Error(err))
		return
	}
	p.applied.Add(1)

	tick := model.Tick{
		Datetime: q.Datetime,
		Price:    q.Close,
		Volume:   q.Volume,
		Side:     q.Side(),
	}
	if err := p.reg.ApplyTick(code, tick); err != nil && !errors.Is(err, model.ErrOutOfOrder) {
		p.logger.Warn("Failed to apply tick", zap.String("code", code), zap.Error(err))
	}
}

func (p *Pipeline) match(code string) bool {
	if len(p.prefixes) == 0 {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(code, strings.ToUpper(prefix)) {
			return true
		}
	}
	return false
}

// Shutdown stops intake, drains the receive loop and closes the
// transport. Terminal: the pipeline ends in StateStopped for good.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	cur := p.State()
	if cur == StateStopped || cur == StateStopping {
		return nil
	}
	p.state.Store(int32(StateStopping))
	if p.cancel != nil {
		p.cancel()
	}
	var closeErr error
	if p.src != nil {
		closeErr = p.src.Close()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("Pipeline drain timed out, forcing stop")
	}
	p.state.Store(int32(StateStopped))
	stats := p.Stats()
	p.logger.Info("Ingestion pipeline stopped",
		zap.Uint64("received", stats.Received),
		zap.Uint64("applied", stats.Applied),
		zap.Uint64("decode_errors", stats.DecodeErrors),
		zap.Uint64("dropped", stats.Dropped))
	return closeErr
}
