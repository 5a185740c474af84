// Package directory is the built-in service every mesh process can host:
// a queryable index of everything currently announced. It answers through
// the same ask/tell/do contract as any other service, so "what services
// are there" is itself just a routed question.
//
// Search runs on a bleve in-memory index over announcement names,
// capability text and example text, with light fuzziness so "tournment"
// still finds the tournament service. The index tracks the registry
// through its watch channel.
package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/vinayprograms/meshkit/announce"
	meshErrors "github.com/vinayprograms/meshkit/errors"
	"github.com/vinayprograms/meshkit/logging"
	"github.com/vinayprograms/meshkit/registry"
	"github.com/vinayprograms/meshkit/service"
)

// Name is the directory's own service name.
const Name = "mesh-directory"

// Capabilities the directory announces for itself.
var Capabilities = []string{
	"list announced services and their capabilities",
	"search services by capability text",
}

// Examples the directory announces for itself.
var Examples = []string{
	"what services are available",
	"find a service that tracks tournaments",
}

// Entry is one search or listing result.
type Entry struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	Host         string   `json:"host,omitempty"`
	Port         int      `json:"port,omitempty"`
	Score        float64  `json:"score,omitempty"`
}

// indexDoc is the shape bleve indexes per announcement.
type indexDoc struct {
	Name         string `json:"name"`
	Capabilities string `json:"capabilities"`
	Examples     string `json:"examples"`
}

// Directory implements service.Service over a registry.
type Directory struct {
	registry registry.Registry
	index    bleve.Index
	logger   *logging.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

var _ service.Service = (*Directory)(nil)

// New creates a Directory, indexes the registry's current contents and
// starts tracking changes.
func New(reg registry.Registry, logger *logging.Logger) (*Directory, error) {
	if logger == nil {
		logger = logging.New()
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, meshErrors.Wrap(err, "creating directory index")
	}

	d := &Directory{
		registry: reg,
		index:    index,
		logger:   logger.WithComponent("directory"),
		done:     make(chan struct{}),
	}

	for key, a := range reg.Discover() {
		d.indexAnnouncement(key, a)
	}

	events, err := reg.Watch()
	if err != nil {
		index.Close()
		return nil, meshErrors.Wrap(err, "watching registry")
	}
	go d.track(events)

	return d, nil
}

// Announcement returns the directory's own announcement, carrying itself
// as the local instance.
func (d *Directory) Announcement() announce.Announcement {
	return announce.Announcement{
		Name:         Name,
		Capabilities: Capabilities,
		Examples:     Examples,
		Instance:     d,
	}
}

// Ask searches the index. An empty or list-like query returns the full
// listing; anything else is a fuzzy full-text search over names,
// capabilities and examples.
func (d *Directory) Ask(ctx context.Context, query string, args map[string]interface{}) (interface{}, error) {
	query = strings.TrimSpace(query)
	if query == "" || isListQuery(query) {
		return d.List(), nil
	}
	return d.Search(query)
}

// Tell renders directory results. "text" gives a one-line-per-service
// listing; anything else falls through to JSON, then to the generic
// fallback.
func (d *Directory) Tell(format string, data interface{}) string {
	entries, ok := data.([]Entry)
	if !ok {
		return service.RenderJSON(data)
	}

	switch format {
	case "text", "":
		if len(entries) == 0 {
			return "no services announced"
		}
		var b strings.Builder
		for _, e := range entries {
			fmt.Fprintf(&b, "%s: %s\n", e.Name, strings.Join(e.Capabilities, "; "))
		}
		return strings.TrimRight(b.String(), "\n")
	default:
		return service.RenderJSON(entries)
	}
}

// Do supports "refresh", which rebuilds the index from the registry. The
// watch channel drops events under sustained load; refresh is the manual
// resync.
func (d *Directory) Do(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
	switch action {
	case "refresh":
		n, err := d.Refresh()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"indexed": n}, nil
	default:
		return nil, meshErrors.New(meshErrors.ErrCodeUnsupported, "unknown action "+action,
			meshErrors.WithService(Name))
	}
}

// List returns every live announcement as entries, in first-seen order.
func (d *Directory) List() []Entry {
	snapshot := d.registry.Snapshot()
	entries := make([]Entry, 0, len(snapshot))
	for _, a := range snapshot {
		entries = append(entries, Entry{
			Name:         a.Name,
			Capabilities: a.Capabilities,
			Host:         a.Host,
			Port:         a.Port,
		})
	}
	return entries
}

// Search runs a fuzzy full-text query and returns matching entries,
// best first.
func (d *Directory) Search(query string) ([]Entry, error) {
	match := bleve.NewMatchQuery(query)
	match.SetFuzziness(1)
	request := bleve.NewSearchRequest(match)
	request.Size = 25

	result, err := d.index.Search(request)
	if err != nil {
		return nil, meshErrors.Wrap(err, "directory search", meshErrors.WithService(Name))
	}

	live := d.registry.Discover()
	entries := make([]Entry, 0, len(result.Hits))
	for _, hit := range result.Hits {
		a, ok := live[hit.ID]
		if !ok {
			continue // indexed but expired since
		}
		entries = append(entries, Entry{
			Name:         a.Name,
			Capabilities: a.Capabilities,
			Host:         a.Host,
			Port:         a.Port,
			Score:        hit.Score,
		})
	}
	return entries, nil
}

// Refresh rebuilds the index from the registry and returns the number of
// indexed announcements.
func (d *Directory) Refresh() (int, error) {
	live := d.registry.Discover()

	// Re-index live entries; stale index docs are filtered at search time
	// and replaced here when their keys recur.
	for key, a := range live {
		d.indexAnnouncement(key, a)
	}
	return len(live), nil
}

// Close releases the index. The watch goroutine stops when the registry
// closes its event channel.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.index.Close()
}

// track mirrors registry events into the index.
func (d *Directory) track(events <-chan registry.Event) {
	defer close(d.done)
	for event := range events {
		key := event.Announcement.Key()
		switch event.Type {
		case registry.EventAdded, registry.EventUpdated:
			d.indexAnnouncement(key, event.Announcement)
		case registry.EventRemoved, registry.EventExpired:
			d.mu.Lock()
			if !d.closed {
				d.index.Delete(key)
			}
			d.mu.Unlock()
		}
	}
}

func (d *Directory) indexAnnouncement(key string, a announce.Announcement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	doc := indexDoc{
		Name:         a.Name,
		Capabilities: strings.Join(a.Capabilities, " "),
		Examples:     strings.Join(a.Examples, " "),
	}
	if err := d.index.Index(key, doc); err != nil {
		d.logger.Warn("index_failed", map[string]interface{}{
			"service": a.Name,
			"error":   err.Error(),
		})
	}
}

// isListQuery spots queries that just want the full listing.
func isListQuery(query string) bool {
	q := strings.ToLower(query)
	for _, marker := range []string{"list", "all services", "available", "what services"} {
		if strings.Contains(q, marker) {
			return true
		}
	}
	return false
}
