// Package logging provides leveled key=value console logging for mesh
// components. Discovery is chatty by nature; every background loop
// (broadcast, browse, sweep) logs through a component-scoped Logger so a
// single process hosting several services stays readable.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger writes structured log lines to a single output.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger writing to stderr at Info level.
func New() *Logger {
	return &Logger{
		output:   os.Stderr,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger tagged with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Mesh event helpers ---
// Fixed message vocabulary keeps log lines grep-able across processes.

// Announced logs a local announcement upsert.
func (l *Logger) Announced(name string, capabilities int) {
	l.Info("announced", map[string]interface{}{
		"service":      name,
		"capabilities": capabilities,
	})
}

// Discovered logs a peer announcement absorbed from the network.
func (l *Logger) Discovered(name, host string, port int) {
	l.Info("discovered", map[string]interface{}{
		"service": name,
		"host":    host,
		"port":    port,
	})
}

// Expired logs a registry entry dropped by TTL.
func (l *Logger) Expired(name string, age time.Duration) {
	l.Debug("expired", map[string]interface{}{
		"service": name,
		"age":     age.String(),
	})
}

// Routed logs a successful query dispatch.
func (l *Logger) Routed(query, service string, score int) {
	l.Debug("routed", map[string]interface{}{
		"query":   query,
		"service": service,
		"score":   score,
	})
}

// RouteMiss logs a query no service matched.
func (l *Logger) RouteMiss(query string) {
	l.Debug("route_miss", map[string]interface{}{
		"query": query,
	})
}

// CallFailed logs a remote service call converted into an error payload.
func (l *Logger) CallFailed(service string, err error) {
	l.Warn("call_failed", map[string]interface{}{
		"service": service,
		"error":   err.Error(),
	})
}

// TransportDegraded logs the fall back to local-only mode.
func (l *Logger) TransportDegraded(err error) {
	l.Warn("transport_degraded", map[string]interface{}{
		"error": err.Error(),
		"mode":  "local-only",
	})
}

// CacheSkipped logs an unreadable cold-start cache.
func (l *Logger) CacheSkipped(path string, err error) {
	l.Warn("cache_skipped", map[string]interface{}{
		"path":  path,
		"error": err.Error(),
	})
}

// SwitchOverwritten logs a duplicate flag registration replacing an earlier one.
func (l *Logger) SwitchOverwritten(flag string) {
	l.Warn("switch_overwritten", map[string]interface{}{
		"flag": flag,
	})
}
