// Package shutdown coordinates the teardown of a mesh process. Teardown
// order matters here: announcements must be withdrawn before the transport
// stops broadcasting, service servers drain before the registry that
// routes to them closes. Handlers register with a phase; lower phases run
// first and handlers within a phase run concurrently.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/vinayprograms/meshkit/logging"
)

// Mesh teardown phases, lowest first.
const (
	// PhaseWithdraw pulls announcements so peers stop routing here.
	PhaseWithdraw = 10

	// PhaseTransport stops mDNS broadcast and browse.
	PhaseTransport = 20

	// PhaseServers drains the HTTP service servers.
	PhaseServers = 30

	// PhaseRegistry closes the registry and its sweeper.
	PhaseRegistry = 40
)

// DefaultTimeout bounds a signal-initiated shutdown.
const DefaultTimeout = 15 * time.Second

// Common errors.
var (
	ErrAlreadyShutdown = errors.New("shutdown already initiated")
	ErrTimeout         = errors.New("shutdown timeout exceeded")
	ErrHandlerFailed   = errors.New("one or more handlers failed")
)

// Func is a shutdown handler.
type Func func(ctx context.Context) error

type registration struct {
	name  string
	phase int
	fn    Func
}

// Config configures a Coordinator.
type Config struct {
	// Timeout for signal-initiated shutdown. Default: DefaultTimeout.
	Timeout time.Duration

	// Logger for per-handler progress. Default: logging.New().
	Logger *logging.Logger
}

// Coordinator runs registered handlers in phase order, once.
type Coordinator struct {
	timeout time.Duration
	logger  *logging.Logger

	mu       sync.Mutex
	handlers []registration

	once    sync.Once
	done    chan struct{}
	err     error
	signals chan os.Signal
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}

	return &Coordinator{
		timeout: timeout,
		logger:  logger.WithComponent("shutdown"),
		done:    make(chan struct{}),
		signals: make(chan os.Signal, 1),
	}
}

// Register adds a handler at a phase. Registration after shutdown has
// begun is silently dropped.
func (c *Coordinator) Register(name string, phase int, fn Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, phase: phase, fn: fn})
}

// Shutdown runs every handler, phase by phase, continuing past failures.
// The first failure becomes the overall error. A second call returns
// ErrAlreadyShutdown immediately if the first is still running, otherwise
// the first call's result.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	ran := false
	c.once.Do(func() {
		ran = true
		c.err = c.run(ctx)
		close(c.done)
	})
	if ran {
		return c.err
	}

	select {
	case <-c.done:
		return c.err
	default:
		return ErrAlreadyShutdown
	}
}

// ShutdownWithTimeout is Shutdown bounded by the configured timeout.
func (c *Coordinator) ShutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals triggers shutdown on SIGTERM or SIGINT.
func (c *Coordinator) HandleSignals() {
	signal.Notify(c.signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-c.signals
		c.logger.Info("signal_received")
		_ = c.ShutdownWithTimeout()
	}()
}

// Trigger injects a synthetic signal.
func (c *Coordinator) Trigger() {
	select {
	case c.signals <- syscall.SIGTERM:
	default:
	}
}

// Done is closed when shutdown completes.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err is the shutdown result. Valid only after Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) error {
	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	var overall error
	for start := 0; start < len(handlers); {
		end := start
		for end < len(handlers) && handlers[end].phase == handlers[start].phase {
			end++
		}

		select {
		case <-ctx.Done():
			return ErrTimeout
		default:
		}

		if err := c.runPhase(ctx, handlers[start:end]); err != nil && overall == nil {
			overall = ErrHandlerFailed
		}
		start = end
	}
	return overall
}

// runPhase runs one phase's handlers concurrently and returns the first
// failure.
func (c *Coordinator) runPhase(ctx context.Context, handlers []registration) error {
	errs := make([]error, len(handlers))
	var wg sync.WaitGroup

	for i, reg := range handlers {
		wg.Add(1)
		go func(i int, reg registration) {
			defer wg.Done()

			start := time.Now()
			err := reg.fn(ctx)
			errs[i] = err

			fields := map[string]interface{}{
				"handler": reg.name,
				"phase":   reg.phase,
				"took":    time.Since(start).String(),
			}
			if err != nil {
				fields["error"] = err.Error()
				c.logger.Warn("handler_failed", fields)
				return
			}
			c.logger.Debug("handler_done", fields)
		}(i, reg)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
