// Package dashboard serves the KPI board over HTTP: a JSON API for the grid,
// issues, timeline, color settings and per-session UI state, plus an SSE
// stream of cache changes and failed-mutation notices.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/kpiboard/internal/attachment"
	"github.com/zulandar/kpiboard/internal/client"
	"github.com/zulandar/kpiboard/internal/timeline"
	"github.com/zulandar/kpiboard/internal/uistate"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Client   *client.Client
	Sessions *uistate.Sessions   // default: in-memory sessions
	Files    *attachment.Service // default: in-memory storage
	Timeline timeline.Options    // layout defaults; Today and Mode are set per request
	Port     int
	Out      io.Writer

	GCInterval time.Duration // how often unused cache entries are swept; 0 disables
	GCGrace    time.Duration // idle time before an entry may be swept
	Heartbeat  time.Duration // SSE heartbeat period (default 15s)
}

// Server holds the handlers' dependencies.
type Server struct {
	client    *client.Client
	sessions  *uistate.Sessions
	files     *attachment.Service
	timeline  timeline.Options
	notices   *noticeHub
	heartbeat time.Duration
	now       func() time.Time
}

// NewServer validates opts and fills in defaults.
func NewServer(opts StartOpts) (*Server, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("dashboard: client is required")
	}
	s := &Server{
		client:    opts.Client,
		sessions:  opts.Sessions,
		files:     opts.Files,
		timeline:  opts.Timeline,
		notices:   newNoticeHub(),
		heartbeat: opts.Heartbeat,
		now:       time.Now,
	}
	if s.sessions == nil {
		s.sessions = uistate.NewSessions(uistate.NewMemoryBackend(), uistate.ThresholdSource(opts.Client.Thresholds))
	}
	if s.files == nil {
		s.files = attachment.NewService(attachment.NewMemoryStorage(), 0, "")
	}
	if s.heartbeat <= 0 {
		s.heartbeat = 15 * time.Second
	}
	return s, nil
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)
	return router
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	s, err := NewServer(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// SSE streams end with the server context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("dashboard: shutdown: %v", err)
		}
	}()

	if opts.GCInterval > 0 {
		go s.runGC(ctx, opts.GCInterval, opts.GCGrace)
	}

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// runGC sweeps idle cache entries every interval until ctx is cancelled.
func (s *Server) runGC(ctx context.Context, interval, grace time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.client.Cache().Sweep(grace)
		}
	}
}
