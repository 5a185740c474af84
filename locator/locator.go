// Package locator resolves service names to callable instances, hiding
// whether a service lives in this process or across the network.
//
// Local services are singletons: the locator hands back the same instance
// for the lifetime of the process. Network services resolve to HTTP proxy
// clients cached for a short TTL (default 30 seconds), so a service that
// moves hosts is picked up within one TTL window without re-resolving on
// every call.
package locator

import (
	"sync"
	"time"

	"github.com/vinayprograms/meshkit/announce"
	meshErrors "github.com/vinayprograms/meshkit/errors"
	"github.com/vinayprograms/meshkit/logging"
	"github.com/vinayprograms/meshkit/registry"
	"github.com/vinayprograms/meshkit/service"
)

// DefaultProxyTTL bounds how long a cached network proxy is trusted before
// the registry is consulted again.
const DefaultProxyTTL = 30 * time.Second

// Config configures a Locator.
type Config struct {
	// Registry used to resolve names not registered locally. Required.
	Registry registry.Registry

	// ProxyTTL overrides DefaultProxyTTL. Negative disables proxy caching.
	ProxyTTL time.Duration

	// CallTimeout for network proxies. Default: service.DefaultCallTimeout.
	CallTimeout time.Duration

	// Logger for resolution events. Default: logging.New().
	Logger *logging.Logger
}

// Locator resolves names to services. It implements the router's Resolver.
type Locator struct {
	registry    registry.Registry
	proxyTTL    time.Duration
	callTimeout time.Duration
	logger      *logging.Logger

	mu      sync.Mutex
	locals  map[string]service.Service
	proxies map[string]proxyEntry
}

type proxyEntry struct {
	svc       service.Service
	expiresAt time.Time
}

// New creates a Locator.
func New(cfg Config) *Locator {
	proxyTTL := cfg.ProxyTTL
	if proxyTTL == 0 {
		proxyTTL = DefaultProxyTTL
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = service.DefaultCallTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}

	return &Locator{
		registry:    cfg.Registry,
		proxyTTL:    proxyTTL,
		callTimeout: callTimeout,
		logger:      logger.WithComponent("locator"),
		locals:      make(map[string]service.Service),
		proxies:     make(map[string]proxyEntry),
	}
}

// RegisterLocal pins a name to an in-process instance. Subsequent Get calls
// for the name return this exact instance; re-registering replaces it.
func (l *Locator) RegisterLocal(name string, svc service.Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locals[name] = svc
	delete(l.proxies, name)
}

// Get resolves a name to a callable service. By default the local path is
// tried first; preferNetwork flips the order. Both paths are tried before
// giving up, so a caller asking for the network flavor of a service that
// only exists locally still gets the local one.
func (l *Locator) Get(name string, preferNetwork bool) (service.Service, error) {
	first, second := l.getLocal, l.getNetwork
	if preferNetwork {
		first, second = second, first
	}

	if svc, ok := first(name); ok {
		return svc, nil
	}
	if svc, ok := second(name); ok {
		return svc, nil
	}
	return nil, meshErrors.NotFound("no service named "+name, meshErrors.WithService(name))
}

// Resolve turns an announcement into a callable service. Announcements
// carrying an instance dispatch directly; network announcements go through
// the proxy cache.
func (l *Locator) Resolve(a announce.Announcement) (service.Service, error) {
	if a.IsLocal() {
		return a.Instance, nil
	}
	if a.IsNetwork() {
		return l.proxyFor(a), nil
	}
	// The announcement names a service we cannot reach from here; a local
	// registration under the same name is the last resort.
	if svc, ok := l.getLocal(a.Name); ok {
		return svc, nil
	}
	return nil, meshErrors.ServiceOffline(a.Name)
}

// Forget drops any cached proxy for a name, forcing re-resolution on the
// next Get. Local registrations are unaffected.
func (l *Locator) Forget(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.proxies, name)
}

// getLocal checks registered singletons first, then the registry for an
// in-process announcement.
func (l *Locator) getLocal(name string) (service.Service, bool) {
	l.mu.Lock()
	if svc, ok := l.locals[name]; ok {
		l.mu.Unlock()
		return svc, true
	}
	l.mu.Unlock()

	if l.registry == nil {
		return nil, false
	}
	a := l.registry.Find(name)
	if a == nil || !a.IsLocal() {
		return nil, false
	}

	// Adopt the announced instance as the singleton for this name.
	l.mu.Lock()
	defer l.mu.Unlock()
	if svc, ok := l.locals[name]; ok {
		return svc, true
	}
	l.locals[name] = a.Instance
	return a.Instance, true
}

// getNetwork resolves through the proxy cache, falling back to a registry
// lookup when the cached proxy is absent or expired.
func (l *Locator) getNetwork(name string) (service.Service, bool) {
	l.mu.Lock()
	if e, ok := l.proxies[name]; ok && (e.expiresAt.IsZero() || time.Now().Before(e.expiresAt)) {
		l.mu.Unlock()
		return e.svc, true
	}
	l.mu.Unlock()

	if l.registry == nil {
		return nil, false
	}
	a := l.registry.Find(name)
	if a == nil || !a.IsNetwork() {
		return nil, false
	}
	return l.proxyFor(*a), true
}

// proxyFor returns the cached proxy for an announcement, creating and
// caching one when needed.
func (l *Locator) proxyFor(a announce.Announcement) service.Service {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.proxies[a.Name]; ok && (e.expiresAt.IsZero() || time.Now().Before(e.expiresAt)) {
		return e.svc
	}

	svc := service.NewClient(a.Name, a.Host, a.Port, l.callTimeout)
	if l.proxyTTL > 0 {
		l.proxies[a.Name] = proxyEntry{svc: svc, expiresAt: time.Now().Add(l.proxyTTL)}
	}
	l.logger.Debug("proxy_created", map[string]interface{}{
		"service": a.Name,
		"host":    a.Host,
		"port":    a.Port,
	})
	return svc
}
