// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package control provides an HTTP-over-unix-socket surface for managing a
// running warden process: health, status and shutdown without exposing a
// network port.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/wardenmc/warden/internal/xdg"
)

// HealthResponse is returned by the /health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse is returned by the /status endpoint.
type StatusResponse struct {
	Running       bool  `json:"running"`
	Ready         bool  `json:"ready"`
	PID           int   `json:"pid"`
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Quarantined is the current sandbox population.
	Quarantined int `json:"quarantined"`
}

// ShutdownResponse is returned by the /shutdown endpoint.
type ShutdownResponse struct {
	Message string `json:"message"`
}

// ShutdownFunc is called when shutdown is requested over the socket.
type ShutdownFunc func()

// StatusFunc supplies the live readiness and population figures.
type StatusFunc func() (ready bool, quarantined int)

// Server runs HTTP over a unix socket for process management.
type Server struct {
	startTime    time.Time
	listener     net.Listener
	httpServer   *http.Server
	socketPath   string
	shutdownFunc ShutdownFunc
	statusFunc   StatusFunc
	logger       *slog.Logger
	running      atomic.Bool
}

// NewServer creates a control socket server. statusFunc may be nil.
func NewServer(shutdownFunc ShutdownFunc, statusFunc StatusFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		startTime:    time.Now(),
		shutdownFunc: shutdownFunc,
		statusFunc:   statusFunc,
		logger:       logger,
	}
	s.running.Store(true)
	return s
}

// SocketPath returns the path of the control socket.
func SocketPath() (string, error) {
	runtimeDir, err := xdg.RuntimeDir()
	if err != nil {
		return "", oops.Code("CONTROL_NO_RUNTIME_DIR").Wrap(err)
	}
	return filepath.Join(runtimeDir, "warden.sock"), nil
}

// Start begins listening on the unix socket.
func (s *Server) Start() error {
	socketPath, err := SocketPath()
	if err != nil {
		return err
	}
	s.socketPath = socketPath

	if err := xdg.EnsureDir(filepath.Dir(socketPath)); err != nil {
		return err
	}
	// A stale socket from a crashed process blocks the listen.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return oops.Code("CONTROL_SOCKET_STALE").With("path", socketPath).Wrap(err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return oops.Code("CONTROL_LISTEN_FAILED").With("path", socketPath).Wrap(err)
	}
	s.listener = listener

	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = listener.Close()
		return oops.Code("CONTROL_CHMOD_FAILED").With("path", socketPath).Wrap(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /shutdown", s.handleShutdown)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control socket server error", "error", err)
		}
	}()

	s.logger.Info("control socket listening", "path", socketPath)
	return nil
}

// Stop gracefully shuts down the control socket server and removes the
// socket file.
func (s *Server) Stop(ctx context.Context) error {
	s.running.Store(false)

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return oops.Code("CONTROL_SHUTDOWN_FAILED").Wrap(err)
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("failed to close control socket listener", "error", err)
		}
	}
	if s.socketPath != "" {
		if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove control socket file",
				"path", s.socketPath,
				"error", err,
			)
		}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Running:       s.running.Load(),
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
	if s.statusFunc != nil {
		resp.Ready, resp.Quarantined = s.statusFunc()
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, ShutdownResponse{Message: "shutdown initiated"})

	// Asynchronously so the response reaches the client first.
	if s.shutdownFunc != nil {
		go s.shutdownFunc()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode control response", "error", err)
	}
}

// Client issues requests against a running process's control socket.
type Client struct {
	http *http.Client
}

// NewClient creates a client for the control socket at path.
func NewClient(path string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", path)
				},
			},
		},
	}
}

// Status fetches the live status of the process.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", &out); err != nil {
		return StatusResponse{}, err
	}
	return out, nil
}

// Shutdown asks the process to shut down gracefully.
func (c *Client) Shutdown(ctx context.Context) error {
	var out ShutdownResponse
	return c.do(ctx, http.MethodPost, "/shutdown", &out)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, "http://warden"+path, nil)
	if err != nil {
		return oops.Code("CONTROL_REQUEST_FAILED").Wrap(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return oops.Code("CONTROL_UNREACHABLE").Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return oops.Code("CONTROL_REQUEST_FAILED").
			With("status", resp.StatusCode).
			Errorf("control socket returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return oops.Code("CONTROL_BAD_RESPONSE").Wrap(err)
	}
	return nil
}
