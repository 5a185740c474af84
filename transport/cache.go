package transport

import (
	"encoding/json"
	"os"
	"time"

	"github.com/vinayprograms/meshkit/announce"
)

// cacheEntry is the on-disk shape of one cached service, keyed by name in
// the enclosing map.
type cacheEntry struct {
	Host         string    `json:"host,omitempty"`
	Port         int       `json:"port,omitempty"`
	Capabilities []string  `json:"capabilities"`
	Examples     []string  `json:"examples,omitempty"`
	Origin       string    `json:"origin,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
}

// LoadCache reads the cold-start cache. A missing file is a normal cold
// start and yields an empty result; a corrupt file is an error the caller
// logs and ignores. The cache only ever saves startup latency, so every
// failure path degrades to "start empty".
func LoadCache(path string) ([]announce.Announcement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries map[string]cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	result := make([]announce.Announcement, 0, len(entries))
	for name, e := range entries {
		a := announce.Announcement{
			Name:         name,
			Capabilities: e.Capabilities,
			Examples:     e.Examples,
			Host:         e.Host,
			Port:         e.Port,
			Origin:       e.Origin,
			LastSeen:     e.LastSeen,
		}
		if announce.Validate(a) != nil {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

// SaveCache writes network-reachable announcements to the cache file,
// keyed by service name. In-process-only entries are skipped; they cannot
// outlive the process that announced them. Name collisions across origins
// collapse to one entry, which is acceptable for a best-effort cache.
func SaveCache(path string, anns map[string]announce.Announcement) error {
	entries := make(map[string]cacheEntry, len(anns))
	for _, a := range anns {
		if !a.IsNetwork() {
			continue
		}
		entries[a.Name] = cacheEntry{
			Host:         a.Host,
			Port:         a.Port,
			Capabilities: a.Capabilities,
			Examples:     a.Examples,
			Origin:       a.Origin,
			LastSeen:     a.LastSeen,
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
