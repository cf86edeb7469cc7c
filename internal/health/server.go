// Package health serves the keep-alive endpoint used by hosting platforms and
// process supervisors. It shares no state with the reminder loop.
package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/process"

	rtsup "sleepbot/internal/runtime/supervisor"
	logx "sleepbot/pkg/logx"
)

const (
	DefaultAddr = ":10000"
	// PortEnv overrides the port part of Addr, the way PaaS hosts assign one.
	PortEnv = "PORT"

	rootText = "Sleep Enforcer Bot is running! 😴"
)

type Config struct {
	Enabled bool
	Addr    string
}

// Status is the /health payload.
type Status struct {
	Status     string `json:"status"`
	Bot        string `json:"bot"`
	UptimeSec  int64  `json:"uptime_sec"`
	Goroutines int    `json:"goroutines"`
	RSSBytes   uint64 `json:"rss_bytes,omitempty"`
}

type Server struct {
	cfg       Config
	log       logx.Logger
	botOnline func() bool
	started   time.Time

	mu   sync.Mutex
	srv  *http.Server
	sup  *rtsup.Supervisor
	addr string
}

// New builds the server; botOnline may be nil (reported as offline).
func New(cfg Config, botOnline func() bool, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, log: log, botOnline: botOnline, started: time.Now()}
}

// Addr is the bound listen address once serving, else "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the gin engine with both routes.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, rootText)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.status())
	})
	return r
}

func (s *Server) status() Status {
	st := Status{
		Status:     "healthy",
		Bot:        "offline",
		UptimeSec:  int64(time.Since(s.started).Seconds()),
		Goroutines: runtime.NumGoroutine(),
	}
	if s.botOnline != nil && s.botOnline() {
		st.Bot = "online"
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil && mi != nil {
			st.RSSBytes = mi.RSS
		}
	}
	return st
}

// Start serves under a restart loop until Stop or ctx cancellation.
func (s *Server) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	s.mu.Lock()
	if s.sup != nil {
		s.mu.Unlock()
		return
	}
	// the health endpoint is optional; never take the app down with it.
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "health"))),
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	s.mu.Unlock()

	sup.GoRestart("http.serve", s.serveOnce,
		rtsup.WithPublishFirstError(true),
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
	)
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv, sup := s.srv, s.sup
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return
	}

	if srv != nil {
		_ = srv.Shutdown(ctx)
	}
	sup.Cancel()
	_ = sup.Wait(ctx)

	s.mu.Lock()
	s.srv, s.addr = nil, ""
	s.mu.Unlock()
	s.log.Info("health server stopped")
}

func (s *Server) serveOnce(ctx context.Context) error {
	addr := ResolveAddr(s.cfg.Addr, os.Getenv(PortEnv))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		s.log.Error("health listen failed", logx.String("addr", addr), logx.Err(err))
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.srv, s.addr = srv, ln.Addr().String()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("health server started", logx.String("addr", ln.Addr().String()))
	err = srv.Serve(ln)

	if ctx.Err() != nil {
		return context.Canceled
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("health server exited unexpectedly")
	}
	return err
}

// ResolveAddr applies the port override to addr. Empty addr means DefaultAddr.
func ResolveAddr(addr, port string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = DefaultAddr
	}
	port = strings.TrimSpace(port)
	if port == "" {
		return addr
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, port)
}
