// Package service defines the uniform three-verb contract every mesh
// participant exposes, plus HTTP plumbing to serve a local instance and to
// proxy a remote one.
package service

import (
	"context"
	"encoding/json"
	"fmt"
)

// Service is the contract the router and locator dispatch through. It is a
// deliberately loose, string-keyed protocol: there is no fixed vocabulary of
// queries or actions, and callers must treat "unknown query/action" errors
// as a normal outcome rather than assuming success.
type Service interface {
	// Ask answers a read-style, side-effect-free query.
	Ask(ctx context.Context, query string, args map[string]interface{}) (interface{}, error)

	// Tell formats data (or the service's default state when data is nil)
	// into the requested representation. It never fails: an unknown format
	// falls back to a generic string rendering.
	Tell(format string, data interface{}) string

	// Do performs a write or side-effecting action. The action string is
	// parsed by the callee itself.
	Do(ctx context.Context, action string, args map[string]interface{}) (interface{}, error)
}

// Funcs adapts three functions to the Service interface. Nil members answer
// with an "unsupported" error (Ask/Do) or the fallback rendering (Tell).
type Funcs struct {
	AskFunc  func(ctx context.Context, query string, args map[string]interface{}) (interface{}, error)
	TellFunc func(format string, data interface{}) string
	DoFunc   func(ctx context.Context, action string, args map[string]interface{}) (interface{}, error)
}

// Ask implements Service.
func (f Funcs) Ask(ctx context.Context, query string, args map[string]interface{}) (interface{}, error) {
	if f.AskFunc == nil {
		return nil, fmt.Errorf("ask not supported")
	}
	return f.AskFunc(ctx, query, args)
}

// Tell implements Service.
func (f Funcs) Tell(format string, data interface{}) string {
	if f.TellFunc == nil {
		return Fallback(data)
	}
	return f.TellFunc(format, data)
}

// Do implements Service.
func (f Funcs) Do(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
	if f.DoFunc == nil {
		return nil, fmt.Errorf("do not supported")
	}
	return f.DoFunc(ctx, action, args)
}

// Fallback renders data as a generic string. Tell implementations use it for
// formats they do not recognize so the contract's "never throw" rule holds.
func Fallback(data interface{}) string {
	if data == nil {
		return ""
	}
	return fmt.Sprintf("%v", data)
}

// RenderJSON is a convenience for Tell implementations handling "json".
// Marshal failures degrade to the fallback rendering rather than erroring.
func RenderJSON(data interface{}) string {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return Fallback(data)
	}
	return string(out)
}
