// Package switches lets services contribute command-line flags to a host
// binary they know nothing about. A service announces its switches at
// registration time; the entry point collects every announced switch into
// one pflag set, parses the command line and runs the handler of the first
// switch the user actually set.
package switches

import (
	"strings"
	"sync"

	"github.com/spf13/pflag"

	meshErrors "github.com/vinayprograms/meshkit/errors"
	"github.com/vinayprograms/meshkit/logging"
)

// Kind describes what a switch accepts on the command line.
type Kind int

const (
	// KindBool is a presence flag: --report.
	KindBool Kind = iota

	// KindString takes a required value: --export csv.
	KindString
)

// Handler runs when a switch is set. It receives the parsed flag value
// ("true" for bool switches) and returns output for the caller to print.
type Handler func(value string) (string, error)

// Switch is one announced command-line flag.
type Switch struct {
	// Flag is the long flag name, without dashes. Required.
	Flag string

	// Shorthand is an optional one-letter alias.
	Shorthand string

	// Help is the usage text.
	Help string

	// Kind selects bool or string semantics. Default: KindBool.
	Kind Kind

	// Default is the default value for string switches.
	Default string

	// Handler runs when the switch is set. Required.
	Handler Handler
}

// Registry collects announced switches in registration order. Services
// announce from their own goroutines, so the registry is safe for
// concurrent use.
type Registry struct {
	mu       sync.Mutex
	order    []string
	switches map[string]Switch
	logger   *logging.Logger
}

// NewRegistry creates an empty switch registry.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.New()
	}
	return &Registry{
		switches: make(map[string]Switch),
		logger:   logger.WithComponent("switches"),
	}
}

// Announce registers a switch. Announcing a flag name that is already
// taken overwrites the earlier registration and logs a warning; last
// announcement wins, so a service loaded later can deliberately shadow an
// earlier one, and an accidental collision is at least visible in the log.
func (r *Registry) Announce(s Switch) error {
	s.Flag = strings.TrimSpace(strings.TrimLeft(s.Flag, "-"))
	if s.Flag == "" {
		return meshErrors.InvalidInput("switch flag name is empty")
	}
	if s.Handler == nil {
		return meshErrors.InvalidInput("switch " + s.Flag + " has no handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.switches[s.Flag]; exists {
		r.logger.SwitchOverwritten(s.Flag)
	} else {
		r.order = append(r.order, s.Flag)
	}
	r.switches[s.Flag] = s
	return nil
}

// Switches returns all announced switches in registration order.
func (r *Registry) Switches() []Switch {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Switch, 0, len(r.order))
	for _, flag := range r.order {
		result = append(result, r.switches[flag])
	}
	return result
}

// BuildFlagSet materializes the announced switches into a pflag set ready
// to parse os.Args. Each switch contributes exactly one flag.
func (r *Registry) BuildFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	for _, s := range r.Switches() {
		switch s.Kind {
		case KindString:
			fs.StringP(s.Flag, s.Shorthand, s.Default, s.Help)
		default:
			fs.BoolP(s.Flag, s.Shorthand, false, s.Help)
		}
	}
	return fs
}

// Handle runs the handler of the first set switch, in registration order.
// It returns the handler output and whether any switch fired. A command
// line that sets several switches runs only the first; the rest are
// ignored for this invocation.
func (r *Registry) Handle(fs *pflag.FlagSet) (string, bool, error) {
	for _, s := range r.Switches() {
		flag := s.Flag
		if !fs.Changed(flag) {
			continue
		}

		value := "true"
		if s.Kind == KindString {
			v, err := fs.GetString(flag)
			if err != nil {
				return "", true, meshErrors.Wrap(err, "reading switch "+flag)
			}
			value = v
		} else {
			v, err := fs.GetBool(flag)
			if err != nil {
				return "", true, meshErrors.Wrap(err, "reading switch "+flag)
			}
			if !v {
				continue
			}
		}

		out, err := s.Handler(value)
		if err != nil {
			return "", true, meshErrors.Wrap(err, "switch "+flag+" failed")
		}
		return out, true, nil
	}
	return "", false, nil
}

// Registrar contributes switches to a registry. Services export one of
// these instead of registering at import time; discovery stays an explicit
// call in the entry point.
type Registrar func(*Registry)

// Discover runs each registrar against the registry. A registrar that
// panics is logged and skipped; one broken service must not take the whole
// command line down.
func Discover(r *Registry, registrars ...Registrar) {
	for _, register := range registrars {
		func() {
			defer func() {
				if recovered := recover(); recovered != nil {
					err := meshErrors.RecoverPanic(recovered)
					r.logger.Warn("registrar_failed", map[string]interface{}{
						"error": err.Error(),
					})
				}
			}()
			register(r)
		}()
	}
}
