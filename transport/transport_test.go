package transport

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/vinayprograms/meshkit/announce"
	"github.com/vinayprograms/meshkit/registry"
)

func TestTXTRoundTrip(t *testing.T) {
	a := announce.Announcement{
		Name:         "Tournament Model",
		Capabilities: []string{"track tournaments", "attendance metrics"},
		Examples:     []string{"show me all tournaments"},
		Origin:       "abc123",
	}

	// The fallback is the sanitized mDNS label; the name= key must win
	txt := encodeTXT(a)
	got := decodeTXT(parseInstanceName(instanceName(a)), txt)

	if got.Name != "Tournament Model" {
		t.Errorf("Name = %q, want the verbatim announced name", got.Name)
	}
	if got.Origin != "abc123" {
		t.Errorf("Origin = %q", got.Origin)
	}
	if len(got.Capabilities) != 2 || got.Capabilities[0] != "track tournaments" {
		t.Errorf("Capabilities = %v", got.Capabilities)
	}
	if len(got.Examples) != 1 || got.Examples[0] != "show me all tournaments" {
		t.Errorf("Examples = %v", got.Examples)
	}
}

func TestTXTTruncation(t *testing.T) {
	a := announce.Announcement{
		Name:         "verbose",
		Capabilities: []string{strings.Repeat("capability text ", 50)},
		Origin:       "p",
	}

	for _, kv := range encodeTXT(a) {
		if len(kv) > MaxTXTValue+len("examples=") {
			t.Errorf("TXT value exceeds ceiling: %d bytes", len(kv))
		}
	}

	got := decodeTXT(a.Name, encodeTXT(a))
	joined := strings.Join(got.Capabilities, "; ")
	if !strings.HasSuffix(joined, "...") {
		t.Error("truncated capability text should end with ellipsis")
	}
}

func TestWireNameSurvives(t *testing.T) {
	// Names the instance label mangles: spaces, and a natural trailing
	// hex segment that the fallback parser would strip.
	for _, name := range []string{"Organization Stats", "builder-cafef00d"} {
		a := announce.Announcement{
			Name:         name,
			Capabilities: []string{"c"},
			Origin:       "deadbeef-1234",
		}
		got := decodeTXT(parseInstanceName(instanceName(a)), encodeTXT(a))
		if got.Name != name {
			t.Errorf("announced %q, peer sees %q", name, got.Name)
		}
	}
}

func TestTXTIgnoresJunk(t *testing.T) {
	got := decodeTXT("svc", []string{"no-equals-sign", "unknown=value", "caps=a; b"})
	if len(got.Capabilities) != 2 {
		t.Errorf("Capabilities = %v", got.Capabilities)
	}
}

func TestInstanceName(t *testing.T) {
	a := announce.Announcement{Name: "Query Engine", Origin: "deadbeef-1234"}
	instance := instanceName(a)
	if strings.Contains(instance, " ") {
		t.Errorf("instance name must be a DNS label, got %q", instance)
	}
	if got := parseInstanceName(instance); got != "Query-Engine" {
		t.Errorf("parseInstanceName = %q", got)
	}

	// No origin suffix to strip
	if got := parseInstanceName("plain"); got != "plain" {
		t.Errorf("parseInstanceName(plain) = %q", got)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.json")

	anns := map[string]announce.Announcement{
		"db@p1": {
			Name:         "db",
			Capabilities: []string{"storage"},
			Host:         "192.168.1.10",
			Port:         8421,
			Origin:       "p1",
			LastSeen:     time.Now(),
		},
		"local@p1": {
			Name:         "local",
			Capabilities: []string{"in-process only"},
			Origin:       "p1",
		},
	}

	if err := SaveCache(path, anns); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	loaded, err := LoadCache(path)
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d entries, want 1 (in-process entries must not be cached)", len(loaded))
	}
	got := loaded[0]
	if got.Name != "db" || got.Host != "192.168.1.10" || got.Port != 8421 {
		t.Errorf("loaded = %+v", got)
	}
	if len(got.Capabilities) != 1 || got.Capabilities[0] != "storage" {
		t.Errorf("Capabilities = %v", got.Capabilities)
	}
}

func TestCacheMissingFile(t *testing.T) {
	loaded, err := LoadCache(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing cache must not be an error, got %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("loaded = %v, want empty", loaded)
	}
}

func TestCacheCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadCache(path); err == nil {
		t.Error("corrupt cache should surface an error for the caller to log")
	}
}

type fakeServer struct{}

func (fakeServer) Shutdown() {}

func TestRegistrationDoesNotBlockSchedule(t *testing.T) {
	z := NewZeroconf(Config{Origin: "self"})
	entered := make(chan struct{})
	release := make(chan struct{})
	z.register = func(string, string, string, int, []string) (mdnsServer, error) {
		close(entered)
		<-release
		return fakeServer{}, nil
	}
	defer close(release)

	z.Schedule(announce.Announcement{Name: "slow", Origin: "self", Port: 8421})
	go z.syncRegistrations()
	<-entered

	// The broadcast cycle is mid-registration; scheduling must not wait
	done := make(chan struct{})
	go func() {
		z.Schedule(announce.Announcement{Name: "other", Origin: "self", Port: 8422})
		z.Withdraw("other@self")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Schedule/Withdraw blocked behind mDNS registration")
	}
}

func TestBroadcastCarriesVerbatimName(t *testing.T) {
	var mu sync.Mutex
	var gotInstance string
	var gotTXT []string

	z := NewZeroconf(Config{Origin: "self"})
	z.register = func(instance, _, _ string, _ int, txt []string) (mdnsServer, error) {
		mu.Lock()
		gotInstance = instance
		gotTXT = txt
		mu.Unlock()
		return fakeServer{}, nil
	}

	z.Schedule(announce.Announcement{
		Name:         "Organization Stats",
		Origin:       "self",
		Port:         8421,
		Capabilities: []string{"show top organizations by attendance"},
	})
	z.syncRegistrations()

	mu.Lock()
	defer mu.Unlock()
	if strings.Contains(gotInstance, " ") {
		t.Errorf("instance label must be DNS-safe, got %q", gotInstance)
	}
	found := false
	for _, kv := range gotTXT {
		if kv == "name=Organization Stats" {
			found = true
		}
	}
	if !found {
		t.Errorf("broadcast TXT must carry the verbatim name, got %v", gotTXT)
	}
}

func TestScheduleBeforeStart(t *testing.T) {
	z := NewZeroconf(Config{Origin: "self"})

	z.Schedule(announce.Announcement{Name: "svc", Origin: "self", Port: 8421})
	z.Schedule(announce.Announcement{Name: "svc", Origin: "self", Port: 8422})

	z.mu.Lock()
	defer z.mu.Unlock()
	if len(z.scheduled) != 1 {
		t.Fatalf("scheduled = %d, want 1 (rescheduling replaces)", len(z.scheduled))
	}
	if z.scheduled["svc@self"].Port != 8422 {
		t.Error("latest schedule should win")
	}
}

func TestAbsorb(t *testing.T) {
	reg := registry.NewMemory(registry.Config{})
	defer reg.Close()
	z := NewZeroconf(Config{Registry: reg, Origin: "self"})

	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "Query-Engine-deadbeef"},
		HostName:      "peer.local.",
		Port:          8421,
		Text:          []string{"name=Query Engine", "origin=peer", "caps=tournament queries"},
	}
	z.absorb(entry)

	found := reg.Find("query engine")
	if found == nil {
		t.Fatal("absorbed entry should land in the registry under its verbatim name")
	}
	if found.Port != 8421 || found.Origin != "peer" {
		t.Errorf("absorbed = %+v", found)
	}

	// Our own broadcast reflected back must be dropped
	self := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "Echo-cafebabe"},
		Port:          9000,
		Text:          []string{"origin=self", "caps=echo"},
	}
	z.absorb(self)
	if reg.Find("Echo") != nil {
		t.Error("own reflection must not be re-registered")
	}
}

func TestWithdraw(t *testing.T) {
	z := NewZeroconf(Config{Origin: "self"})
	z.Schedule(announce.Announcement{Name: "svc", Origin: "self", Port: 8421})
	z.Withdraw("svc@self")

	z.mu.Lock()
	defer z.mu.Unlock()
	if len(z.scheduled) != 0 {
		t.Error("withdraw should remove the scheduled entry")
	}
}
