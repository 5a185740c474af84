// Package service defines the ask/tell/do contract for mesh participants.
//
// # The contract
//
// Every service, local or remote, exposes exactly three operations:
//
//   - Ask: read-style query, side-effect-free from the caller's perspective
//   - Tell: pure formatting; never fails, unknown formats fall back to a
//     generic string rendering
//   - Do: write/side-effecting operation, action string parsed by the callee
//
// The contract is intentionally schema-less. Implementations are expected to
// answer unknown queries and actions with ordinary error values; callers are
// expected to handle those defensively instead of relying on a fixed
// vocabulary or versioning.
//
// # Implementing a service
//
//	type counter struct{ n int }
//
//	func (c *counter) Ask(ctx context.Context, query string, _ map[string]interface{}) (interface{}, error) {
//	    if strings.Contains(query, "count") {
//	        return c.n, nil
//	    }
//	    return nil, fmt.Errorf("unknown query %q", query)
//	}
//
//	func (c *counter) Tell(format string, data interface{}) string {
//	    if data == nil {
//	        data = c.n
//	    }
//	    switch format {
//	    case "json":
//	        return service.RenderJSON(data)
//	    default:
//	        return service.Fallback(data)
//	    }
//	}
//
//	func (c *counter) Do(ctx context.Context, action string, _ map[string]interface{}) (interface{}, error) {
//	    if strings.Contains(action, "increment") {
//	        c.n++
//	        return c.n, nil
//	    }
//	    return nil, fmt.Errorf("unknown action %q", action)
//	}
//
// Quick one-off services can use the Funcs adapter instead of a named type.
//
// # Network exposure
//
// Server publishes a local instance over HTTP (POST /ask, /tell, /do with
// JSON bodies); Client is the matching proxy that implements Service by
// forwarding. Remote failures are always returned as the uniform
// {service, error} payload from the errors package, bounded by a call
// timeout, so a misbehaving remote never surfaces a raw exception or hangs a
// caller indefinitely.
package service
