// Package registry provides the shared discovery registry: the mutex-guarded
// map of announcements fed by the transport listener and queried by the
// router and by any caller of Discover.
package registry

import (
	"errors"

	"github.com/vinayprograms/meshkit/announce"
)

// Common errors.
var (
	ErrNotFound = errors.New("announcement not found")
	ErrClosed   = errors.New("registry closed")
)

// EventType represents the type of registry event.
type EventType string

const (
	EventAdded   EventType = "added"
	EventUpdated EventType = "updated"
	EventRemoved EventType = "removed"
	EventExpired EventType = "expired"
)

// Event represents a change in the registry.
type Event struct {
	// Type indicates what happened.
	Type EventType

	// Announcement contains the record. For removal and expiry events,
	// this is the last known state.
	Announcement announce.Announcement
}

// Registry is the discovery surface over announced services.
//
// The mesh is a best-effort, eventually-consistent LAN directory: entries
// appear when a broadcast arrives and silently age out past their TTL.
// Nothing here is a consistency guarantee.
type Registry interface {
	// Upsert adds or refreshes the entry for an announcement, keyed by
	// (name, origin). Re-announcing never accumulates duplicates.
	Upsert(a announce.Announcement)

	// Deregister removes an entry by key.
	// Returns ErrNotFound if absent.
	Deregister(key string) error

	// Discover returns all non-expired entries, local and remote,
	// keyed by announcement key.
	Discover() map[string]announce.Announcement

	// Snapshot returns non-expired entries in first-seen order. The
	// router depends on this ordering for deterministic tie-breaking.
	Snapshot() []announce.Announcement

	// Find returns the first non-expired entry whose name contains the
	// substring case-insensitively, ties broken by most-recently-seen.
	// Returns nil when nothing matches.
	Find(substr string) *announce.Announcement

	// Watch returns a channel of registry events. The channel is closed
	// when the registry is closed. Multiple watchers are supported.
	Watch() (<-chan Event, error)

	// Close shuts down the registry and its sweeper.
	Close() error
}
