// Package guard keeps service binaries from being run through the wrong
// door. The real entry point calls MarkEntryPoint first thing in main;
// every guarded run path calls Require. A run path reached without the
// mark prints a diagnostic and exits, which catches the classic mistake of
// invoking an internal command directly instead of through the host
// binary.
//
// Importing a guarded package is always safe; only executing a guarded
// path trips the guard. Setting MESHKIT_GUARD_BYPASS=1 disables
// enforcement for debugging.
package guard

import (
	"fmt"
	"io"
	"os"
	"sync"

	meshErrors "github.com/vinayprograms/meshkit/errors"
)

// BypassEnv disables enforcement when set to "1".
const BypassEnv = "MESHKIT_GUARD_BYPASS"

var (
	mu     sync.Mutex
	marked bool

	// exit and output are swapped out by tests.
	exit   func(code int) = os.Exit
	output io.Writer      = os.Stderr
)

// MarkEntryPoint records that execution entered through a sanctioned entry
// point. Call it first in main.
func MarkEntryPoint() {
	mu.Lock()
	defer mu.Unlock()
	marked = true
}

// Marked reports whether an entry point has been marked.
func Marked() bool {
	mu.Lock()
	defer mu.Unlock()
	return marked
}

// Bypassed reports whether enforcement is disabled by environment.
func Bypassed() bool {
	return os.Getenv(BypassEnv) == "1"
}

// Require enforces the guard on a run path. Outside a marked entry point
// it prints a diagnostic naming the path and the fix, then exits with
// status 1. Inside a marked entry point, or with the bypass set, it is a
// no-op.
func Require(name string) {
	if err := Check(name); err != nil {
		fmt.Fprintf(output, "%s cannot be run directly.\n", name)
		fmt.Fprintf(output, "Run it through the host binary, or set %s=1 to bypass.\n", BypassEnv)
		exit(1)
	}
}

// Check is the non-fatal variant of Require, for callers that want to
// refuse politely instead of exiting.
func Check(name string) error {
	if Marked() || Bypassed() {
		return nil
	}
	return meshErrors.New(meshErrors.ErrCodeGuardViolation,
		name+" executed outside a marked entry point",
		meshErrors.WithService(name))
}

// reset is test support.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	marked = false
}
