package transport

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/vinayprograms/meshkit/announce"
	"github.com/vinayprograms/meshkit/logging"
	"github.com/vinayprograms/meshkit/registry"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New("transport already started")
	ErrNotStarted     = errors.New("transport not started")
)

// Config configures the mDNS transport.
type Config struct {
	// Registry receives discovered peer announcements and supplies the
	// entries persisted to the cold-start cache. Required.
	Registry registry.Registry

	// Origin is this process's announcement origin. Broadcasts carrying
	// it are our own reflections and are dropped on receipt.
	Origin string

	// ServiceType is the mDNS service type. Default: DefaultServiceType.
	ServiceType string

	// Domain is the mDNS domain. Default: DefaultDomain.
	Domain string

	// Interval between broadcast cycles. Default: DefaultInterval.
	Interval time.Duration

	// CachePath is the cold-start cache file. Empty disables caching.
	CachePath string

	// Logger for transport events. Default: logging.New().
	Logger *logging.Logger
}

// mdnsServer is the slice of *zeroconf.Server the transport uses,
// indirected so registration can be faked in tests.
type mdnsServer interface {
	Shutdown()
}

// registerFunc performs one mDNS registration.
type registerFunc func(instance, serviceType, domain string, port int, txt []string) (mdnsServer, error)

// Zeroconf broadcasts local announcements over mDNS and feeds peer
// broadcasts into the registry. It implements announce.Broadcaster.
//
// When the host cannot do multicast (no network, sandboxed, firewalled)
// the transport degrades to local-only mode: Start still succeeds, in-process
// announcements keep working, and only LAN visibility is lost.
type Zeroconf struct {
	cfg      Config
	logger   *logging.Logger
	register registerFunc

	mu        sync.Mutex
	scheduled map[string]announce.Announcement
	servers   map[string]mdnsServer
	published map[string]string // key -> TXT fingerprint last registered
	degraded  bool

	running atomic.Bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewZeroconf creates the transport. Start must be called before any
// broadcast or discovery happens.
func NewZeroconf(cfg Config) *Zeroconf {
	if cfg.ServiceType == "" {
		cfg.ServiceType = DefaultServiceType
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}

	return &Zeroconf{
		cfg:    cfg,
		logger: logger.WithComponent("transport"),
		register: func(instance, serviceType, domain string, port int, txt []string) (mdnsServer, error) {
			return zeroconf.Register(instance, serviceType, domain, port, txt, nil)
		},
		scheduled: make(map[string]announce.Announcement),
		servers:   make(map[string]mdnsServer),
		published: make(map[string]string),
	}
}

// Schedule records an announcement for broadcast. Safe to call before
// Start; the first broadcast cycle picks it up. Announcements without a
// port have no callable network endpoint and stay local.
func (z *Zeroconf) Schedule(a announce.Announcement) {
	z.mu.Lock()
	z.scheduled[a.Key()] = a
	z.mu.Unlock()

	if z.running.Load() {
		z.syncRegistrations()
	}
}

// Withdraw stops broadcasting an announcement and removes its mDNS
// registration.
func (z *Zeroconf) Withdraw(key string) {
	z.mu.Lock()
	delete(z.scheduled, key)
	delete(z.published, key)
	srv := z.servers[key]
	delete(z.servers, key)
	z.mu.Unlock()

	if srv != nil {
		srv.Shutdown()
	}
}

// Start loads the cold-start cache, begins browsing for peers and starts
// the broadcast loop. Multicast failure is not fatal; the transport logs
// the degrade and keeps serving in-process traffic.
func (z *Zeroconf) Start(ctx context.Context) error {
	if !z.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	z.loadColdStart()

	runCtx, cancel := context.WithCancel(ctx)
	z.cancel = cancel
	z.doneCh = make(chan struct{})

	if err := z.startBrowse(runCtx); err != nil {
		z.mu.Lock()
		z.degraded = true
		z.mu.Unlock()
		z.logger.TransportDegraded(err)
	}

	go z.run(runCtx)
	return nil
}

// Stop shuts down broadcasts, persists the cache and releases the browser.
func (z *Zeroconf) Stop() error {
	if !z.running.CompareAndSwap(true, false) {
		return ErrNotStarted
	}

	z.cancel()
	<-z.doneCh

	z.mu.Lock()
	servers := z.servers
	z.servers = make(map[string]mdnsServer)
	z.published = make(map[string]string)
	z.mu.Unlock()
	for _, srv := range servers {
		srv.Shutdown()
	}

	z.persistCache()
	return nil
}

// LocalOnly reports whether the transport has degraded to local-only mode.
func (z *Zeroconf) LocalOnly() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.degraded
}

// run is the broadcast loop: every interval it repairs missing or stale
// mDNS registrations and persists the cache.
func (z *Zeroconf) run(ctx context.Context) {
	defer close(z.doneCh)

	ticker := time.NewTicker(z.cfg.Interval)
	defer ticker.Stop()

	z.syncRegistrations()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			z.syncRegistrations()
			z.persistCache()
		}
	}
}

// syncRegistrations makes the live mDNS registrations match the scheduled
// set, re-registering any announcement whose broadcast text changed.
// Registration is network I/O, so the scheduled set is snapshotted under
// the lock and registered outside it; Schedule and Withdraw stay
// responsive during a slow registration.
func (z *Zeroconf) syncRegistrations() {
	type job struct {
		key         string
		a           announce.Announcement
		txt         []string
		fingerprint string
	}

	z.mu.Lock()
	if z.degraded {
		z.mu.Unlock()
		return
	}
	var jobs []job
	for key, a := range z.scheduled {
		if a.Port == 0 {
			continue // nothing for a peer to dial
		}
		txt := encodeTXT(a)
		fingerprint := strings.Join(txt, "\x00")
		if z.published[key] == fingerprint {
			continue
		}
		jobs = append(jobs, job{key: key, a: a, txt: txt, fingerprint: fingerprint})
	}
	z.mu.Unlock()

	for _, j := range jobs {
		z.mu.Lock()
		old := z.servers[j.key]
		delete(z.servers, j.key)
		delete(z.published, j.key)
		z.mu.Unlock()
		if old != nil {
			old.Shutdown()
		}

		srv, err := z.register(instanceName(j.a), z.cfg.ServiceType, z.cfg.Domain, j.a.Port, j.txt)
		if err != nil {
			z.mu.Lock()
			z.degraded = true
			z.mu.Unlock()
			z.logger.TransportDegraded(err)
			return
		}

		z.mu.Lock()
		if _, still := z.scheduled[j.key]; !still {
			// Withdrawn while registering
			z.mu.Unlock()
			srv.Shutdown()
			continue
		}
		z.servers[j.key] = srv
		z.published[j.key] = j.fingerprint
		z.mu.Unlock()

		z.logger.Debug("broadcast", map[string]interface{}{
			"service": j.a.Name,
			"port":    portString(j.a.Port),
		})
	}
}

// startBrowse begins listening for peer broadcasts.
func (z *Zeroconf) startBrowse(ctx context.Context) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return err
	}

	entries := make(chan *zeroconf.ServiceEntry, 16)
	if err := resolver.Browse(ctx, z.cfg.ServiceType, z.cfg.Domain, entries); err != nil {
		return err
	}

	go func() {
		for entry := range entries {
			z.absorb(entry)
		}
	}()
	return nil
}

// absorb converts a browsed mDNS entry into a registry upsert, dropping
// reflections of our own broadcasts.
func (z *Zeroconf) absorb(entry *zeroconf.ServiceEntry) {
	a := decodeTXT(parseInstanceName(entry.Instance), entry.Text)
	if a.Origin != "" && a.Origin == z.cfg.Origin {
		return
	}

	a.Port = entry.Port
	a.Host = entry.HostName
	if len(entry.AddrIPv4) > 0 {
		a.Host = entry.AddrIPv4[0].String()
	}
	a.LastSeen = time.Now()

	z.cfg.Registry.Upsert(a)
	z.logger.Discovered(a.Name, a.Host, a.Port)
}

// loadColdStart seeds the registry from the cache file. A missing or
// unreadable cache means a cold start with an empty registry, nothing more.
func (z *Zeroconf) loadColdStart() {
	if z.cfg.CachePath == "" {
		return
	}

	cached, err := LoadCache(z.cfg.CachePath)
	if err != nil {
		z.logger.CacheSkipped(z.cfg.CachePath, err)
		return
	}

	now := time.Now()
	for _, a := range cached {
		// Cached peers are trusted for one TTL window; live broadcasts
		// confirm them or expiry removes them.
		a.LastSeen = now
		z.cfg.Registry.Upsert(a)
	}
	if len(cached) > 0 {
		z.logger.Info("cache_loaded", map[string]interface{}{
			"path":     z.cfg.CachePath,
			"services": len(cached),
		})
	}
}

// persistCache writes the current network-visible registry state to disk.
func (z *Zeroconf) persistCache() {
	if z.cfg.CachePath == "" {
		return
	}
	if err := SaveCache(z.cfg.CachePath, z.cfg.Registry.Discover()); err != nil {
		z.logger.Warn("cache_write_failed", map[string]interface{}{
			"path":  z.cfg.CachePath,
			"error": err.Error(),
		})
	}
}
