// Package announce defines the Announcement record and the process-local
// Announcer that publishes it. Services announce themselves once at startup
// and the heartbeat loop keeps the announcement fresh; everything else
// (discovery, routing, binding) works off the announced record.
package announce

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vinayprograms/meshkit/service"
)

// Common errors.
var (
	ErrInvalidName = errors.New("invalid service name")
	ErrInvalidPort = errors.New("invalid port")
)

// Announcement is the unit published and stored by the mesh. Duplicate
// names from different processes are allowed and coexist; the registry keys
// entries by (Name, Origin).
type Announcement struct {
	// Name is the human-readable service name. Not globally unique.
	Name string `json:"name"`

	// Capabilities are free-text descriptions of what the service does,
	// in announcement order. They are the primary corpus for routing.
	Capabilities []string `json:"capabilities"`

	// Examples are free-text example invocations. Searchable, but weighted
	// lower than capabilities when routing.
	Examples []string `json:"examples,omitempty"`

	// Host and Port are the optional network location. Absent for purely
	// in-process announcements.
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// Instance is a direct in-process reference to the implementation.
	// Only set for services living in this process; never serialized.
	// An Announcement with Instance set is never treated as a network
	// entry, and one with only Host/Port must be resolved through the
	// locator before use.
	Instance service.Service `json:"-"`

	// Origin identifies the announcing process instance.
	Origin string `json:"origin,omitempty"`

	// LastSeen is refreshed on every (re)announce or heartbeat.
	LastSeen time.Time `json:"last_seen"`
}

// Key returns the registry key for this announcement. Two processes
// announcing the same name produce distinct keys.
func (a Announcement) Key() string {
	if a.Origin == "" {
		return a.Name
	}
	return a.Name + "@" + a.Origin
}

// IsLocal reports whether the announcement carries an in-process instance.
func (a Announcement) IsLocal() bool {
	return a.Instance != nil
}

// IsNetwork reports whether the announcement must be resolved through a
// network proxy before use.
func (a Announcement) IsNetwork() bool {
	return a.Instance == nil && a.Host != "" && a.Port > 0
}

// Validate checks the announcement is well formed.
func Validate(a Announcement) error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrInvalidName
	}
	if a.Port < 0 || a.Port > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// Summary flattens the capability list into a single string capped at max
// bytes, for transports whose records have a payload ceiling. The full text
// survives only in-process; the wire carries this truncation. That loss of
// fidelity is a known limitation of the wire format, not a defect.
func (a Announcement) Summary(max int) string {
	return truncate(strings.Join(a.Capabilities, "; "), max)
}

// ExampleSummary is Summary for the example strings.
func (a Announcement) ExampleSummary(max int) string {
	return truncate(strings.Join(a.Examples, "; "), max)
}

// truncate caps s at max bytes, ending on a rune boundary so the result is
// always valid UTF-8, with a trailing ellipsis when anything was cut.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}

	cut := max
	marker := ""
	if max > 3 {
		cut = max - 3
		marker = "..."
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}
