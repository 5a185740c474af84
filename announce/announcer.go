package announce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vinayprograms/meshkit/logging"
)

// Heartbeat errors.
var (
	ErrAlreadyStarted = errors.New("heartbeat already started")
	ErrNotStarted     = errors.New("heartbeat not started")
)

// Target receives local announcements. The discovery registry implements
// this; tests can substitute a recorder.
type Target interface {
	Upsert(a Announcement)
}

// Broadcaster pushes local announcements onto the network transport.
// Implementations must be fire-and-forget: failures are their own to log.
type Broadcaster interface {
	Schedule(a Announcement)
}

// Announcer is the process-local API any component uses to publish its own
// announcement. Announcing is fire and forget: transport failures never
// propagate to the caller, and repeated calls are idempotent upserts.
type Announcer struct {
	origin      string
	logger      *logging.Logger
	target      Target
	broadcaster Broadcaster // may be nil in local-only mode

	mu    sync.Mutex
	local map[string]Announcement // name -> latest local announcement

	interval time.Duration
	running  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Config configures an Announcer.
type Config struct {
	// Target receives every upsert. Required.
	Target Target

	// Broadcaster receives announcements for network publication.
	// Nil means local-only mode.
	Broadcaster Broadcaster

	// Interval between heartbeat re-announcements.
	// Default: 5 seconds.
	Interval time.Duration

	// Logger for announce events. Default: logging.New().
	Logger *logging.Logger
}

// New creates an Announcer with a fresh origin identity.
func New(cfg Config) *Announcer {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}
	return &Announcer{
		origin:      uuid.NewString(),
		logger:      logger.WithComponent("announcer"),
		target:      cfg.Target,
		broadcaster: cfg.Broadcaster,
		local:       make(map[string]Announcement),
		interval:    interval,
	}
}

// Origin returns this process instance's identity.
func (an *Announcer) Origin() string {
	return an.origin
}

// Announce upserts the local announcement for a.Name, replacing any prior
// entry with the same name from this process, and schedules it for the next
// broadcast cycle. Invalid announcements are logged and dropped; nothing is
// ever returned to the caller.
func (an *Announcer) Announce(a Announcement) {
	if err := Validate(a); err != nil {
		an.logger.Warn("announcement rejected", map[string]interface{}{
			"service": a.Name,
			"error":   err.Error(),
		})
		return
	}

	a.Origin = an.origin
	a.LastSeen = time.Now()

	an.mu.Lock()
	an.local[a.Name] = a
	an.mu.Unlock()

	an.push(a)
	an.logger.Announced(a.Name, len(a.Capabilities))
}

// Withdraw removes a local announcement. The entry ages out of peer
// registries via TTL; withdrawal only stops refreshing it.
func (an *Announcer) Withdraw(name string) {
	an.mu.Lock()
	delete(an.local, name)
	an.mu.Unlock()
}

// Local returns a snapshot of this process's announcements.
func (an *Announcer) Local() []Announcement {
	an.mu.Lock()
	defer an.mu.Unlock()
	result := make([]Announcement, 0, len(an.local))
	for _, a := range an.local {
		result = append(result, a)
	}
	return result
}

// push delivers one announcement to the registry and the broadcaster.
func (an *Announcer) push(a Announcement) {
	if an.target != nil {
		an.target.Upsert(a)
	}
	if an.broadcaster != nil {
		an.broadcaster.Schedule(a)
	}
}

// StartHeartbeat begins re-announcing all local announcements at the
// configured interval, refreshing LastSeen each tick. The first refresh is
// immediate.
func (an *Announcer) StartHeartbeat(ctx context.Context) error {
	if an.running.Swap(true) {
		return ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}

	an.stopCh = make(chan struct{})
	an.doneCh = make(chan struct{})

	go an.run(ctx)
	return nil
}

// run is the heartbeat loop.
func (an *Announcer) run(ctx context.Context) {
	defer close(an.doneCh)

	an.refresh()

	ticker := time.NewTicker(an.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			an.running.Store(false)
			return
		case <-an.stopCh:
			return
		case <-ticker.C:
			an.refresh()
		}
	}
}

// refresh re-pushes every local announcement with a fresh LastSeen.
func (an *Announcer) refresh() {
	an.mu.Lock()
	now := time.Now()
	batch := make([]Announcement, 0, len(an.local))
	for name, a := range an.local {
		a.LastSeen = now
		an.local[name] = a
		batch = append(batch, a)
	}
	an.mu.Unlock()

	for _, a := range batch {
		an.push(a)
	}
}

// StopHeartbeat stops the heartbeat loop.
func (an *Announcer) StopHeartbeat() error {
	if !an.running.Swap(false) {
		return ErrNotStarted
	}
	close(an.stopCh)
	<-an.doneCh
	return nil
}
