// Package router matches natural-language queries to announced services by
// keyword overlap and dispatches the winner through the uniform service
// contract.
//
// Scoring is deliberately naive: lowercase the query, split on whitespace,
// and count word hits against each announcement's capability and example
// text. Capability hits count double. There is no stemming, no synonyms and
// no embedding; a service that wants traffic should announce the words its
// callers will use.
package router

import (
	"context"
	"strings"

	"github.com/vinayprograms/meshkit/announce"
	meshErrors "github.com/vinayprograms/meshkit/errors"
	"github.com/vinayprograms/meshkit/logging"
	"github.com/vinayprograms/meshkit/registry"
	"github.com/vinayprograms/meshkit/service"
)

// Scoring weights. A capability is a promise, an example is an illustration,
// so capability overlap outranks example overlap.
const (
	capabilityWeight = 2
	exampleWeight    = 1
)

// Resolver turns an announcement into something callable. The locator
// package provides the production implementation; the default resolver
// handles the two plain cases without caching.
type Resolver interface {
	Resolve(a announce.Announcement) (service.Service, error)
}

// Match pairs an announcement with its score for a query.
type Match struct {
	Announcement announce.Announcement
	Score        int
}

// Config configures a Router.
type Config struct {
	// Registry supplies candidate announcements. Required.
	Registry registry.Registry

	// Resolver turns the winning announcement into a callable service.
	// Default: direct dispatch for local instances, an uncached HTTP
	// client for network entries.
	Resolver Resolver

	// Logger for routing decisions. Default: logging.New().
	Logger *logging.Logger
}

// Router scores queries against the registry and dispatches the winner.
type Router struct {
	registry registry.Registry
	resolver Resolver
	logger   *logging.Logger
}

// New creates a Router.
func New(cfg Config) *Router {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = directResolver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}

	return &Router{
		registry: cfg.Registry,
		resolver: resolver,
		logger:   logger.WithComponent("router"),
	}
}

// Route finds the best-matching service for a query and invokes its Ask
// operation. A query no service matches returns a NO_MATCH error; any
// failure past the match (resolution, transport, callee error, callee
// panic) comes back as the uniform CALL_FAILED payload naming the service.
func (r *Router) Route(ctx context.Context, query string, args map[string]interface{}) (interface{}, error) {
	best, score := r.Best(query)
	if best == nil {
		r.logger.RouteMiss(query)
		return nil, meshErrors.NoMatch(query)
	}
	r.logger.Routed(query, best.Name, score)

	svc, err := r.resolver.Resolve(*best)
	if err != nil {
		r.logger.CallFailed(best.Name, err)
		return nil, meshErrors.CallFailed(best.Name, err)
	}

	result, err := ask(ctx, svc, query, args)
	if err != nil {
		r.logger.CallFailed(best.Name, err)
		// The HTTP client already shapes remote failures; don't nest.
		if meshErrors.Is(err, meshErrors.ErrCodeCallFailed) {
			return nil, err
		}
		return nil, meshErrors.CallFailed(best.Name, err)
	}
	return result, nil
}

// Best returns the highest-scoring announcement for a query, or nil when
// nothing scores above zero. Ties go to the earliest-announced service, so
// routing is deterministic for a stable registry.
func (r *Router) Best(query string) (*announce.Announcement, int) {
	var best *announce.Announcement
	bestScore := 0

	for _, a := range r.registry.Snapshot() {
		score := Score(query, a)
		if score > bestScore {
			copy := a
			best = &copy
			bestScore = score
		}
	}
	return best, bestScore
}

// Matches scores every current announcement against a query, including
// zero scores. Useful for explaining routing decisions.
func (r *Router) Matches(query string) []Match {
	snapshot := r.registry.Snapshot()
	matches := make([]Match, 0, len(snapshot))
	for _, a := range snapshot {
		matches = append(matches, Match{Announcement: a, Score: Score(query, a)})
	}
	return matches
}

// Score computes the keyword-overlap score of a query against one
// announcement.
func Score(query string, a announce.Announcement) int {
	capabilities := lowerJoin(a.Capabilities)
	examples := lowerJoin(a.Examples)

	score := 0
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(capabilities, word) {
			score += capabilityWeight
		}
		if strings.Contains(examples, word) {
			score += exampleWeight
		}
	}
	return score
}

func lowerJoin(parts []string) string {
	return strings.ToLower(strings.Join(parts, " \x00 "))
}

// ask invokes the service, converting a panic into an error like the HTTP
// server does for remote callees. Local and remote dispatch fail the same
// way.
func ask(ctx context.Context, svc service.Service, query string, args map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = meshErrors.RecoverPanic(r)
		}
	}()
	return svc.Ask(ctx, query, args)
}

// directResolver is the default Resolver: local instances dispatch
// in-process, network entries get a fresh HTTP client per call.
type directResolver struct{}

func (directResolver) Resolve(a announce.Announcement) (service.Service, error) {
	if a.IsLocal() {
		return a.Instance, nil
	}
	if a.IsNetwork() {
		return service.NewClient(a.Name, a.Host, a.Port, service.DefaultCallTimeout), nil
	}
	return nil, meshErrors.ServiceOffline(a.Name)
}
