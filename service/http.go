package service

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	meshErrors "github.com/vinayprograms/meshkit/errors"
	"github.com/vinayprograms/meshkit/logging"
)

// Request is the JSON body for all three verbs. The verb itself is the URL
// path (/ask, /tell, /do).
type Request struct {
	Query  string                 `json:"query,omitempty"`
	Format string                 `json:"format,omitempty"`
	Action string                 `json:"action,omitempty"`
	Data   interface{}            `json:"data,omitempty"`
	Args   map[string]interface{} `json:"args,omitempty"`
}

// Response is the JSON reply. Exactly one of Result/Error is set; Error is
// the uniform {service, error} payload.
type Response struct {
	Result interface{}       `json:"result,omitempty"`
	Error  *meshErrors.Error `json:"error,omitempty"`
}

// Server exposes one local Service instance over HTTP so remote peers can
// reach it through a locator proxy.
type Server struct {
	name    string
	svc     Service
	logger  *logging.Logger
	httpSrv *http.Server
	ln      net.Listener
}

// ServerConfig configures an HTTP service server.
type ServerConfig struct {
	// Name is the announced service name, echoed in error payloads.
	Name string

	// Service is the instance being exposed.
	Service Service

	// Addr to bind. Default ":0" (kernel-assigned port).
	Addr string

	// Logger for request failures. Default: logging.New().
	Logger *logging.Logger
}

// NewServer creates a server for one service instance. It does not bind
// until Start.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}
	return &Server{
		name:   cfg.Name,
		svc:    cfg.Service,
		logger: logger.WithComponent("service-http"),
	}
}

// Start binds the listener and serves in a background goroutine.
// The bound port is available from Port after Start returns.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = ":0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return meshErrors.Wrap(err, "binding service listener", meshErrors.WithService(s.name))
	}
	s.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ask", s.handle)
	mux.HandleFunc("/tell", s.handle)
	mux.HandleFunc("/do", s.handle)

	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("serve failed", map[string]interface{}{
				"service": s.name,
				"error":   err.Error(),
			})
		}
	}()
	return nil
}

// Port returns the bound TCP port. Zero before Start.
func (s *Server) Port() int {
	if s.ln == nil {
		return 0
	}
	if addr, ok := s.ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	// Fallback parse for non-TCP listeners used in tests
	_, portStr, err := net.SplitHostPort(s.ln.Addr().String())
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(portStr)
	return port
}

// Shutdown stops serving, draining in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// handle dispatches one verb. Callee panics are recovered and converted into
// the uniform error payload so a misbehaving implementation never kills the
// host process or leaks a stack to the peer.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reply(w, http.StatusBadRequest, Response{
			Error: meshErrors.InvalidInput("malformed request body", meshErrors.WithService(s.name)),
		})
		return
	}

	var result interface{}
	var callErr error

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				callErr = meshErrors.RecoverPanic(rec)
			}
		}()
		switch r.URL.Path {
		case "/ask":
			result, callErr = s.svc.Ask(r.Context(), req.Query, req.Args)
		case "/tell":
			result = s.svc.Tell(req.Format, req.Data)
		case "/do":
			result, callErr = s.svc.Do(r.Context(), req.Action, req.Args)
		}
	}()

	if callErr != nil {
		s.logger.CallFailed(s.name, callErr)
		s.reply(w, http.StatusOK, Response{
			Error: meshErrors.CallFailed(s.name, callErr),
		})
		return
	}
	s.reply(w, http.StatusOK, Response{Result: result})
}

func (s *Server) reply(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode response failed", map[string]interface{}{
			"service": s.name,
			"error":   err.Error(),
		})
	}
}
