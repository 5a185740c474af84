package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/meshkit/announce"
	"github.com/vinayprograms/meshkit/logging"
)

// DefaultTTL is the staleness window when none is configured. Announcers
// heartbeat every few seconds, so three missed intervals plus slack is
// plenty before an entry is presumed gone.
const DefaultTTL = 30 * time.Second

// Memory is the in-memory Registry implementation. Expiry is enforced both
// lazily (every read filters on expiry) and eagerly (a background sweeper
// deletes and notifies); either alone would satisfy the contract, the sweep
// just keeps watcher events timely.
type Memory struct {
	mu       sync.RWMutex
	entries  map[string]entry
	order    []string // keys in first-seen order
	watchers []chan Event
	closed   bool
	stopCh   chan struct{}

	ttl    time.Duration
	logger *logging.Logger
}

type entry struct {
	ann       announce.Announcement
	expiresAt time.Time
}

// Config configures the in-memory registry.
type Config struct {
	// TTL is how long an unrefreshed announcement stays discoverable.
	// Zero means DefaultTTL; negative disables expiry.
	TTL time.Duration

	// Logger for expiry events. Default: logging.New().
	Logger *logging.Logger
}

// NewMemory creates a new in-memory registry and starts its sweeper.
func NewMemory(cfg Config) *Memory {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}

	r := &Memory{
		entries: make(map[string]entry),
		stopCh:  make(chan struct{}),
		ttl:     ttl,
		logger:  logger.WithComponent("registry"),
	}

	if ttl > 0 {
		go r.sweepLoop()
	}

	return r
}

// Upsert adds or refreshes the entry for an announcement.
func (r *Memory) Upsert(a announce.Announcement) {
	if announce.Validate(a) != nil {
		return
	}
	if a.LastSeen.IsZero() {
		a.LastSeen = time.Now()
	}

	key := a.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	_, exists := r.entries[key]
	r.entries[key] = entry{ann: a, expiresAt: r.expiry(a.LastSeen)}
	if !exists {
		r.order = append(r.order, key)
	}

	eventType := EventAdded
	if exists {
		eventType = EventUpdated
	}
	r.notifyWatchers(Event{Type: eventType, Announcement: a})
}

// Deregister removes an entry by key.
func (r *Memory) Deregister(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	e, exists := r.entries[key]
	if !exists {
		return ErrNotFound
	}

	r.remove(key)
	r.notifyWatchers(Event{Type: EventRemoved, Announcement: e.ann})
	return nil
}

// Discover returns all non-expired entries keyed by announcement key.
func (r *Memory) Discover() map[string]announce.Announcement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	result := make(map[string]announce.Announcement, len(r.entries))
	for key, e := range r.entries {
		if r.expired(e, now) {
			continue
		}
		result[key] = e.ann
	}
	return result
}

// Snapshot returns non-expired entries in first-seen order.
func (r *Memory) Snapshot() []announce.Announcement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	result := make([]announce.Announcement, 0, len(r.order))
	for _, key := range r.order {
		e, ok := r.entries[key]
		if !ok || r.expired(e, now) {
			continue
		}
		result = append(result, e.ann)
	}
	return result
}

// Find returns the first entry whose name contains substr, case-insensitive.
// Among multiple matches the most recently seen wins.
func (r *Memory) Find(substr string) *announce.Announcement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(substr)
	now := time.Now()

	var best *announce.Announcement
	for _, key := range r.order {
		e, ok := r.entries[key]
		if !ok || r.expired(e, now) {
			continue
		}
		if !strings.Contains(strings.ToLower(e.ann.Name), needle) {
			continue
		}
		if best == nil || e.ann.LastSeen.After(best.LastSeen) {
			a := e.ann
			best = &a
		}
	}
	return best
}

// Watch returns a channel of registry events.
func (r *Memory) Watch() (<-chan Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	ch := make(chan Event, 64)
	r.watchers = append(r.watchers, ch)
	return ch, nil
}

// Close shuts down the registry and its sweeper.
func (r *Memory) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	close(r.stopCh)

	for _, ch := range r.watchers {
		close(ch)
	}
	r.watchers = nil
	return nil
}

// expiry computes the expiry instant for a refresh time.
func (r *Memory) expiry(lastSeen time.Time) time.Time {
	if r.ttl <= 0 {
		return time.Time{}
	}
	return lastSeen.Add(r.ttl)
}

// expired reports staleness. A zero expiry never expires.
func (r *Memory) expired(e entry, now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// remove deletes an entry and its order slot. Must hold the write lock.
func (r *Memory) remove(key string) {
	delete(r.entries, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// notifyWatchers sends an event to all watchers. Must hold the lock.
func (r *Memory) notifyWatchers(event Event) {
	for _, ch := range r.watchers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

// sweepLoop periodically evicts stale entries.
func (r *Memory) sweepLoop() {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep deletes every expired entry and notifies watchers.
func (r *Memory) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	now := time.Now()
	var stale []string
	for key, e := range r.entries {
		if r.expired(e, now) {
			stale = append(stale, key)
		}
	}

	for _, key := range stale {
		e := r.entries[key]
		r.remove(key)
		r.logger.Expired(e.ann.Name, now.Sub(e.ann.LastSeen))
		r.notifyWatchers(Event{Type: EventExpired, Announcement: e.ann})
	}
}
