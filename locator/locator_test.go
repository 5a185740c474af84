package locator

import (
	"context"
	"testing"
	"time"

	"github.com/vinayprograms/meshkit/announce"
	meshErrors "github.com/vinayprograms/meshkit/errors"
	"github.com/vinayprograms/meshkit/registry"
	"github.com/vinayprograms/meshkit/service"
)

type stubService struct{ id string }

func (s *stubService) Ask(ctx context.Context, query string, args map[string]interface{}) (interface{}, error) {
	return s.id, nil
}
func (s *stubService) Tell(format string, data interface{}) string { return s.id }
func (s *stubService) Do(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
	return s.id, nil
}

func newLocator(t *testing.T, cfg Config) (*Locator, registry.Registry) {
	t.Helper()
	reg := registry.NewMemory(registry.Config{})
	t.Cleanup(func() { reg.Close() })
	cfg.Registry = reg
	return New(cfg), reg
}

func TestLocalSingleton(t *testing.T) {
	l, _ := newLocator(t, Config{})
	inst := &stubService{id: "one"}
	l.RegisterLocal("db", inst)

	first, err := l.Get("db", false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, _ := l.Get("db", false)
	if first != second || first != service.Service(inst) {
		t.Error("local resolution must return the same singleton instance")
	}
}

func TestLocalWinsByDefault(t *testing.T) {
	l, reg := newLocator(t, Config{})
	inst := &stubService{id: "local"}
	l.RegisterLocal("db", inst)
	reg.Upsert(announce.Announcement{
		Name: "db", Origin: "remote", Host: "10.0.0.9", Port: 8421,
		Capabilities: []string{"storage"},
	})

	got, err := l.Get("db", false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != service.Service(inst) {
		t.Error("local instance should win when preferNetwork is false")
	}
}

func TestPreferNetwork(t *testing.T) {
	l, reg := newLocator(t, Config{})
	inst := &stubService{id: "local"}
	l.RegisterLocal("db", inst)
	reg.Upsert(announce.Announcement{
		Name: "db", Origin: "remote", Host: "10.0.0.9", Port: 8421,
		Capabilities: []string{"storage"},
	})

	got, err := l.Get("db", true)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == service.Service(inst) {
		t.Error("preferNetwork should resolve to the proxy, not the local instance")
	}
}

func TestPreferNetworkFallsBackToLocal(t *testing.T) {
	l, _ := newLocator(t, Config{})
	inst := &stubService{id: "only-local"}
	l.RegisterLocal("db", inst)

	got, err := l.Get("db", true)
	if err != nil {
		t.Fatalf("both paths should be tried before failing: %v", err)
	}
	if got != service.Service(inst) {
		t.Error("network miss should fall back to the local instance")
	}
}

func TestAdoptsAnnouncedInstance(t *testing.T) {
	l, reg := newLocator(t, Config{})
	inst := &stubService{id: "announced"}
	reg.Upsert(announce.Announcement{
		Name: "engine", Origin: "p",
		Capabilities: []string{"queries"},
		Instance:     inst,
	})

	got, err := l.Get("engine", false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != service.Service(inst) {
		t.Error("Get should adopt the instance carried by a local announcement")
	}
}

func TestProxyCached(t *testing.T) {
	l, reg := newLocator(t, Config{})
	reg.Upsert(announce.Announcement{
		Name: "db", Origin: "remote", Host: "10.0.0.9", Port: 8421,
		Capabilities: []string{"storage"},
	})

	first, err := l.Get("db", true)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, _ := l.Get("db", true)
	if first != second {
		t.Error("proxy should be cached within its TTL")
	}
}

func TestProxyExpires(t *testing.T) {
	l, reg := newLocator(t, Config{ProxyTTL: 20 * time.Millisecond})
	reg.Upsert(announce.Announcement{
		Name: "db", Origin: "remote", Host: "10.0.0.9", Port: 8421,
		Capabilities: []string{"storage"},
	})

	first, _ := l.Get("db", true)
	time.Sleep(40 * time.Millisecond)
	second, _ := l.Get("db", true)
	if first == second {
		t.Error("expired proxy should be rebuilt from the registry")
	}
}

func TestForget(t *testing.T) {
	l, reg := newLocator(t, Config{})
	reg.Upsert(announce.Announcement{
		Name: "db", Origin: "remote", Host: "10.0.0.9", Port: 8421,
		Capabilities: []string{"storage"},
	})

	first, _ := l.Get("db", true)
	l.Forget("db")
	second, _ := l.Get("db", true)
	if first == second {
		t.Error("Forget should drop the cached proxy")
	}
}

func TestUnknownName(t *testing.T) {
	l, _ := newLocator(t, Config{})

	_, err := l.Get("nonexistent", false)
	if !meshErrors.Is(err, meshErrors.ErrCodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
	if meshErrors.ServiceName(err) != "nonexistent" {
		t.Errorf("error should carry the looked-up name")
	}
}

func TestResolve(t *testing.T) {
	l, _ := newLocator(t, Config{})
	inst := &stubService{id: "x"}

	got, err := l.Resolve(announce.Announcement{Name: "x", Instance: inst})
	if err != nil || got != service.Service(inst) {
		t.Errorf("Resolve(local) = %v, %v", got, err)
	}

	got, err = l.Resolve(announce.Announcement{Name: "net", Host: "10.0.0.9", Port: 8421})
	if err != nil || got == nil {
		t.Errorf("Resolve(network) = %v, %v", got, err)
	}

	_, err = l.Resolve(announce.Announcement{Name: "ghost"})
	if !meshErrors.Is(err, meshErrors.ErrCodeServiceOffline) {
		t.Errorf("Resolve(unreachable) = %v, want SERVICE_OFFLINE", err)
	}
}
