package registry

import (
	"sync"
	"time"

	"github.com/yourorg/market-data-service/internal/model"

	"go.uber.org/zap"
)

// BarEvent describes one applied bar update.
type BarEvent struct {
	Code    string
	Period  model.Period
	Bar     model.Bar
	Amended bool
}

// BarListener receives bar-update events. Listeners run one at a time on
// the notifier's goroutine, in registration order, never on the goroutine
// that applied the bar.
type BarListener func(BarEvent)

// ListenerHandle identifies a registered listener for removal.
type ListenerHandle int64

type listenerEntry struct {
	id ListenerHandle
	fn BarListener
}

// notifier is the single-consumer FIFO between the write path and
// listener callbacks. Publishing never blocks: the buffer grows instead,
// so a slow listener cannot stall the receive loop.
type notifier struct {
	logger *zap.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []BarEvent
	closed bool
	done   chan struct{}

	lmu       sync.Mutex
	listeners []listenerEntry
	nextID    ListenerHandle
}

func newNotifier(logger *zap.Logger) *notifier {
	n := &notifier{
		logger: logger,
		done:   make(chan struct{}),
	}
	n.cond = sync.NewCond(&n.mu)
	go n.run()
	return n
}

func (n *notifier) register(fn BarListener) ListenerHandle {
	n.lmu.Lock()
	defer n.lmu.Unlock()
	n.nextID++
	n.listeners = append(n.listeners, listenerEntry{id: n.nextID, fn: fn})
	return n.nextID
}

func (n *notifier) unregister(h ListenerHandle) {
	n.lmu.Lock()
	defer n.lmu.Unlock()
	for i, e := range n.listeners {
		if e.id == h {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}

// publish enqueues one event in FIFO order. Events arriving after close
// are dropped.
func (n *notifier) publish(ev BarEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.buf = append(n.buf, ev)
	n.cond.Signal()
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		n.mu.Lock()
		for len(n.buf) == 0 && !n.closed {
			n.cond.Wait()
		}
		if len(n.buf) == 0 && n.closed {
			n.mu.Unlock()
			return
		}
		batch := n.buf
		n.buf = nil
		n.mu.Unlock()

		for _, ev := range batch {
			n.lmu.Lock()
			listeners := make([]listenerEntry, len(n.listeners))
			copy(listeners, n.listeners)
			n.lmu.Unlock()
			for _, e := range listeners {
				e.fn(ev)
			}
		}
	}
}

// close stops intake and waits for the queue to drain, up to timeout.
// On expiry it logs a warning and returns rather than hanging shutdown.
func (n *notifier) close(timeout time.Duration) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		<-n.done
		return
	}
	n.closed = true
	n.cond.Broadcast()
	n.mu.Unlock()

	select {
	case <-n.done:
	case <-time.After(timeout):
		n.logger.Warn("Notifier drain timed out, forcing shutdown",
			zap.Duration("timeout", timeout))
	}
}
