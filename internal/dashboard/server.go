// Package dashboard serves the bot's JSON API, /health and /metrics.
//
// Write endpoints go through the same control entry points as the timers,
// so a dashboard post respects the cooldown and the in-flight guard.
package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"chirpbot/internal/action"
	"chirpbot/internal/control"
	"chirpbot/internal/state"
	logx "chirpbot/pkg/logx"
)

// Backend is the subset of control.Service the API needs.
type Backend interface {
	Tweets(ctx context.Context, limit int) []state.TweetRecord
	Follows(ctx context.Context) *state.FollowBook
	Cricket() bool
	SetMode(ctx context.Context, cricket bool) error
	Generate(ctx context.Context, category string) action.Result
	PostNow(ctx context.Context, category string) action.Result
	NextActions(ctx context.Context) map[string]*int64
	Status(ctx context.Context) control.Status
}

type Config struct {
	Addr          string
	Token         string
	AllowInsecure bool
	Pprof         bool
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

type Server struct {
	cfg     Config
	backend Backend
	metrics http.Handler
	log     logx.Logger
	started time.Time
}

// New builds a server. metrics may be nil.
func New(cfg Config, backend Backend, metrics http.Handler, log logx.Logger) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:5000"
	}
	return &Server{
		cfg:     cfg,
		backend: backend,
		metrics: metrics,
		log:     log.With(logx.Component("dashboard")),
		started: time.Now(),
	}
}

// Handler returns the routed API. Every route except /health requires the
// token when one is configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	auth := func(h http.HandlerFunc) http.Handler { return s.withAuth(h) }

	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /api/tweets", auth(s.tweets))
	mux.Handle("GET /api/followers", auth(s.followers))
	mux.Handle("GET /api/followers/daily", auth(s.followersDaily))
	mux.Handle("GET /api/followers/categories", auth(s.followersCategories))
	mux.Handle("GET /api/cricket-mode", auth(s.getMode))
	mux.Handle("POST /api/cricket-mode", auth(s.setMode))
	mux.Handle("POST /api/generate-tweet", auth(s.generate))
	mux.Handle("POST /api/tweet-now", auth(s.tweetNow))
	mux.Handle("GET /api/next-actions", auth(s.nextActions))
	mux.Handle("GET /api/status", auth(s.status))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.withAuth(s.metrics.ServeHTTP))
	}
	if s.cfg.Pprof {
		mux.Handle("/debug/pprof/", auth(hpprof.Index))
		mux.Handle("/debug/pprof/cmdline", auth(hpprof.Cmdline))
		mux.Handle("/debug/pprof/profile", auth(hpprof.Profile))
		mux.Handle("/debug/pprof/symbol", auth(hpprof.Symbol))
		mux.Handle("/debug/pprof/trace", auth(hpprof.Trace))
	}
	return s.withRecover(mux)
}

// Run serves until ctx ends. It is meant to run under a supervisor restart
// loop.
func (s *Server) Run(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if !s.cfg.AllowInsecure && s.cfg.Token == "" && !isLoopbackAddr(addr) {
		s.log.Error("dashboard refused to start: non-loopback addr requires token or allow_insecure",
			logx.String("addr", addr))
		return errors.New("dashboard: insecure bind")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("dashboard started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", s.cfg.Token != ""))
	err = srv.Serve(ln)
	if ctx.Err() != nil {
		return nil
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("dashboard: server exited unexpectedly")
	}
	return err
}

func (s *Server) withAuth(h http.HandlerFunc) http.Handler {
	tok := strings.TrimSpace(s.cfg.Token)
	if tok == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" && got == tok {
			h(w, r)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	})
}

func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("dashboard handler panic",
					logx.String("path", r.URL.Path),
					logx.Any("panic", rec),
					logx.Stack(logx.StackTrace(3, 32)),
				)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	host = strings.Trim(host, "[]")
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
