// Package registry provides discovery and caching of service announcements.
//
// # Overview
//
// The Registry is the shared map behind "announce anywhere, discover
// anywhere": the Announcer and the transport listener feed it, the router
// and locator query it. Entries are keyed by (name, origin) so duplicate
// service names from different processes coexist, and every entry carries an
// expiry derived from its last refresh; an announcement that stops
// heartbeating simply disappears from Discover results.
//
// # Basic Usage
//
// Feed and query a registry:
//
//	reg := registry.NewMemory(registry.Config{TTL: 30 * time.Second})
//	defer reg.Close()
//
//	reg.Upsert(announce.Announcement{
//	    Name:         "Query Engine",
//	    Capabilities: []string{"natural language tournament queries"},
//	})
//
//	for _, a := range reg.Discover() {
//	    fmt.Println(a.Name)
//	}
//
//	if a := reg.Find("query"); a != nil {
//	    fmt.Println("found", a.Name)
//	}
//
// Watch for changes:
//
//	events, _ := reg.Watch()
//	for event := range events {
//	    fmt.Printf("%s: %s\n", event.Type, event.Announcement.Name)
//	}
//
// # Consistency
//
// This is a best-effort LAN directory. There is no consensus, no
// exactly-once delivery, and no guarantee two processes agree on the
// registry contents at any instant; staleness is bounded only by the TTL.
// Construct one Registry per process and share it by handle: components
// take a Registry rather than reaching for a global, which keeps tests
// hermetic.
package registry
