package execution

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// signalItem wraps a queued signal with its heap index.
type signalItem struct {
	signal *types.PendingSignal
	index  int
}

// signalHeap orders by priority ascending, created_at ascending on ties.
type signalHeap []*signalItem

func (h signalHeap) Len() int { return len(h) }

func (h signalHeap) Less(i, j int) bool {
	if h[i].signal.Priority != h[j].signal.Priority {
		return h[i].signal.Priority < h[j].signal.Priority
	}
	return h[i].signal.CreatedAt.Before(h[j].signal.CreatedAt)
}

func (h signalHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *signalHeap) Push(x any) {
	item := x.(*signalItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *signalHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// SignalQueue is a bounded priority queue of pending signals with at
// most one entry per ticker. Admission is the only concurrent entry
// point into the engine, so the queue is internally synchronized.
type SignalQueue struct {
	mu         sync.Mutex
	heap       signalHeap
	byTicker   map[string]*signalItem
	maxSignals int
	defaultTTL time.Duration
	onExpire   func(types.PendingSignal)
}

// NewSignalQueue builds a queue with the given capacity and default TTL.
// onExpire, if non-nil, is invoked for every signal dropped by lazy
// expiration.
func NewSignalQueue(maxSignals int, defaultTTL time.Duration, onExpire func(types.PendingSignal)) *SignalQueue {
	if maxSignals <= 0 {
		maxSignals = 100
	}
	if defaultTTL <= 0 {
		defaultTTL = 4 * time.Hour
	}
	return &SignalQueue{
		byTicker:   make(map[string]*signalItem),
		maxSignals: maxSignals,
		defaultTTL: defaultTTL,
		onExpire:   onExpire,
	}
}

// Add admits a signal. It returns ErrDuplicateTicker when the ticker is
// already queued, ErrQueueFull at capacity, and ErrSignalExpired for
// dead-on-arrival signals. The new signal is never allowed to evict an
// existing one.
func (q *SignalQueue) Add(sig types.PendingSignal) error {
	if err := sig.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = now
	}
	if sig.Expired(now) {
		return fmt.Errorf("%w: %s", types.ErrSignalExpired, sig.Ticker)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.byTicker[sig.Ticker]; exists {
		return fmt.Errorf("%w: %s", types.ErrDuplicateTicker, sig.Ticker)
	}
	if len(q.heap) >= q.maxSignals {
		return fmt.Errorf("%w: %d signals", types.ErrQueueFull, len(q.heap))
	}

	if sig.ExpiresAt == nil {
		exp := sig.CreatedAt.Add(q.defaultTTL)
		sig.ExpiresAt = &exp
	}

	item := &signalItem{signal: &sig}
	heap.Push(&q.heap, item)
	q.byTicker[sig.Ticker] = item
	return nil
}

// PopReady removes and returns up to limit non-expired signals in
// priority order. Expired signals encountered on the way are dropped
// lazily and reported via onExpire.
func (q *SignalQueue) PopReady(now time.Time, limit int) []types.PendingSignal {
	q.mu.Lock()
	var expired []types.PendingSignal
	out := make([]types.PendingSignal, 0, limit)
	for len(out) < limit && len(q.heap) > 0 {
		item := heap.Pop(&q.heap).(*signalItem)
		delete(q.byTicker, item.signal.Ticker)
		if item.signal.Expired(now) {
			expired = append(expired, *item.signal)
			continue
		}
		out = append(out, *item.signal)
	}
	q.mu.Unlock()

	if q.onExpire != nil {
		for _, sig := range expired {
			q.onExpire(sig)
		}
	}
	return out
}

// Peek returns the best non-expired signal. It is side-effect-free:
// expired entries are left for PopReady or PruneExpired to collect.
func (q *SignalQueue) Peek() (types.PendingSignal, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now().UTC()

	var best *types.PendingSignal
	for _, item := range q.heap {
		sig := item.signal
		if sig.Expired(now) {
			continue
		}
		if best == nil || sig.Priority < best.Priority ||
			(sig.Priority == best.Priority && sig.CreatedAt.Before(best.CreatedAt)) {
			best = sig
		}
	}
	if best == nil {
		return types.PendingSignal{}, false
	}
	return *best, true
}

// Size returns the number of queued signals, including not-yet-pruned
// expired entries.
func (q *SignalQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Contains reports whether a ticker has a queued signal.
func (q *SignalQueue) Contains(ticker string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byTicker[ticker]
	return ok
}

// Remove drops the queued signal for ticker, if any.
func (q *SignalQueue) Remove(ticker string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.byTicker[ticker]
	if !ok {
		return false
	}
	heap.Remove(&q.heap, item.index)
	delete(q.byTicker, ticker)
	return true
}

// PruneExpired drops all expired signals and returns the count.
func (q *SignalQueue) PruneExpired(now time.Time) int {
	q.mu.Lock()
	var expired []types.PendingSignal
	for _, item := range q.byTicker {
		if item.signal.Expired(now) {
			expired = append(expired, *item.signal)
		}
	}
	for _, sig := range expired {
		item := q.byTicker[sig.Ticker]
		heap.Remove(&q.heap, item.index)
		delete(q.byTicker, sig.Ticker)
	}
	q.mu.Unlock()

	if q.onExpire != nil {
		for _, sig := range expired {
			q.onExpire(sig)
		}
	}
	return len(expired)
}

// Snapshot returns all queued signals in priority order without
// removing them. Used by state persistence.
func (q *SignalQueue) Snapshot() []types.PendingSignal {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]types.PendingSignal, 0, len(q.heap))
	for _, item := range q.heap {
		out = append(out, *item.signal)
	}
	// Heap order is partial; sort into service order for a stable dump.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
