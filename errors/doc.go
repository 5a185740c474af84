// Package errors provides a structured error taxonomy for the capability
// mesh. Every failure that crosses a component boundary (transport, router,
// locator, remote service call) is expressed as a MeshError so callers can
// distinguish "retry", "re-resolve", and "give up" without string matching.
//
// # Error Categories
//
// Errors are classified into three categories:
//
//   - Transient: Temporary failures where retry may succeed (timeouts, an
//     announcement between heartbeats)
//   - Permanent: Failures where retry will not help (routing miss, invalid
//     input, guard violation)
//   - Internal: Unexpected errors indicating bugs or degraded subsystems
//
// # Propagation policy
//
// Components contain their own failures: transport errors degrade to
// local-only mode, routing misses are ErrCodeNoMatch values, and remote call
// failures become the uniform ErrCodeCallFailed payload carrying the service
// name. Only the guard package is allowed to terminate the process.
//
// # Usage
//
// Create a new error:
//
//	err := errors.CallFailed("database", cause)
//
// Wrap an existing error with context:
//
//	wrapped := errors.Wrap(err, "resolving service proxy")
//
// Check for a routing miss:
//
//	if errors.IsNoMatch(err) {
//	    // no service advertises this capability
//	}
//
// # JSON Serialization
//
// All errors serialize to the uniform {service, error} payload used on the
// wire, and deserialize back:
//
//	data, _ := json.Marshal(meshErr)
//	var back errors.Error
//	_ = json.Unmarshal(data, &back)
package errors
