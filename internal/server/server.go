// Package server streams the damped needle to browsers over a websocket.
package server

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/olivier-w/climp-vu/internal/meter"
	"github.com/olivier-w/climp-vu/internal/session"
)

//go:embed web/index.html
var indexHTML []byte

const writeWait = 2 * time.Second

// Frame is one websocket update.
type Frame struct {
	Left       float64 `json:"left"`
	Right      float64 `json:"right"`
	LeftAngle  float64 `json:"leftAngle"`
	RightAngle float64 `json:"rightAngle"`
	// Swing is the angle at the top of the scale.
	Swing   float64 `json:"swing"`
	Running bool    `json:"running"`
}

// Server serves the needle page and its websocket feed. Every connection
// is its own display context with its own damper.
type Server struct {
	sess     *session.Session
	damper   meter.DamperConfig
	frame    time.Duration
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a server for sess. frame is the update interval.
func New(sess *session.Session, damper meter.DamperConfig, frame time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if frame <= 0 {
		frame = time.Second / 60
	}
	s := &Server{
		sess:   sess,
		damper: damper,
		frame:  frame,
		log:    logger,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// checkOrigin allows same-origin and local connections.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	host := r.Host
	if strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host) {
		return true
	}
	if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
		return true
	}
	s.log.Warn("rejected websocket connection", "origin", origin)
	return false
}

// Handler returns the routes: the page at / and the feed at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving meter", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.log.Debug("websocket client connected", "remote", r.RemoteAddr)

	// The page never sends anything; reading only detects the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	damper := meter.NewDamper(s.damper)
	ticker := time.NewTicker(s.frame)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			damper.Follow(s.sess.Cell())
			damper.Tick()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(s.frameFor(damper)); err != nil {
				s.log.Debug("websocket client gone", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

func (s *Server) frameFor(d *meter.Damper) Frame {
	pos := d.Positions()
	la, ra := d.Angles()
	return Frame{
		Left:       pos.Left,
		Right:      pos.Right,
		LeftAngle:  la,
		RightAngle: ra,
		Swing:      d.AngleMap().MaxAngle,
		Running:    s.sess.State() == session.Running,
	}
}
