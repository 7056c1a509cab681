// Package viewhttp is the JSON and PNG API a rendering front end polls and
// drives. Every request is marshalled onto the controller's update loop.
package viewhttp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/park285/cheese-board/internal/boardctl"
	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/obslog"
	"github.com/park285/cheese-board/internal/pairing"
	"github.com/park285/cheese-board/pkg/boarddto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Deps are the collaborators the API drives.
type Deps struct {
	Controller *boardctl.Controller
	Prompter   *boardctl.RendezvousPrompter
	Notices    *boardctl.NoticeQueue
	Factory    *pairing.Factory
}

type clickOutcome struct {
	result boardctl.ClickResult
	err    error
}

type Server struct {
	deps    Deps
	addr    string
	timeout time.Duration
	srv     *fasthttp.Server

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending chan clickOutcome
	host    *pairing.PendingHost
}

type Option func(*Server)

// WithTimeout bounds how long a request waits on the update loop.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

func New(addr string, deps Deps, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		deps:    deps,
		addr:    addr,
		timeout: 5 * time.Second,
		baseCtx: ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &fasthttp.Server{
		Handler:      s.Handle,
		Name:         "cheese-board",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	obslog.L().Info("view_http_listen", zap.String("addr", s.addr))
	return s.srv.ListenAndServe(s.addr)
}

// Shutdown stops accepting requests and abandons any pending host.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.mu.Lock()
	host := s.host
	s.host = nil
	s.mu.Unlock()
	if host != nil {
		_ = host.Cancel()
	}
	return s.srv.ShutdownWithContext(ctx)
}

// Handle routes one request.
func (s *Server) Handle(rc *fasthttp.RequestCtx) {
	path, method := string(rc.Path()), string(rc.Method())
	switch {
	case path == "/api/snapshot" && method == fasthttp.MethodGet:
		s.handleSnapshot(rc)
	case path == "/api/click" && method == fasthttp.MethodPost:
		s.handleClick(rc)
	case path == "/api/promotion" && method == fasthttp.MethodGet:
		s.handlePromotionPrompt(rc)
	case path == "/api/promotion" && method == fasthttp.MethodPost:
		s.handlePromotionAnswer(rc)
	case path == "/api/new" && method == fasthttp.MethodPost:
		s.handleNewGame(rc)
	case path == "/api/reset" && method == fasthttp.MethodPost:
		s.handleReset(rc)
	case path == "/api/notices" && method == fasthttp.MethodGet:
		s.handleNotices(rc)
	case path == "/api/lobby" && method == fasthttp.MethodGet:
		s.handleLobby(rc)
	case path == "/board.png" && method == fasthttp.MethodGet:
		s.handleBoardImage(rc)
	case path == "/healthz":
		rc.SetStatusCode(fasthttp.StatusOK)
		rc.SetBodyString("ok")
	default:
		writeJSON(rc, fasthttp.StatusNotFound, boarddto.DomainError{Code: "not_found", Message: "no route for " + method + " " + path})
	}
}

func (s *Server) requestCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.baseCtx, s.timeout)
}

func writeJSON(rc *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		rc.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	rc.SetStatusCode(status)
	rc.SetContentType("application/json; charset=utf-8")
	rc.SetBody(body)
}

func decodeBody(rc *fasthttp.RequestCtx, v any) bool {
	body := rc.PostBody()
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeJSON(rc, fasthttp.StatusBadRequest, boarddto.DomainError{Code: "bad_request", Message: err.Error()})
		return false
	}
	return true
}

// writeError maps domain and transport failures to HTTP status codes.
func writeError(rc *fasthttp.RequestCtx, err error) {
	status, body := fasthttp.StatusInternalServerError, boarddto.DomainError{Code: "internal", Message: err.Error()}
	switch {
	case errors.Is(err, domain.ErrNetworkUnavailable):
		status, body.Code, body.Retryable = fasthttp.StatusBadGateway, "network_unavailable", true
	case errors.Is(err, domain.ErrNoAuthority):
		status, body.Code = fasthttp.StatusConflict, "no_game"
	case errors.Is(err, domain.ErrLoopClosed), errors.Is(err, context.Canceled):
		status, body.Code = fasthttp.StatusServiceUnavailable, "shutting_down"
	case errors.Is(err, context.DeadlineExceeded):
		status, body.Code, body.Retryable = fasthttp.StatusGatewayTimeout, "timeout", true
	}
	if status >= 500 {
		obslog.L().Warn("view_http_error", zap.ByteString("path", rc.Path()), zap.Int("status", status), zap.Error(err))
	}
	writeJSON(rc, status, body)
}
