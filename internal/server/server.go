package server

import (
	"context"
	"drivescore/internal/session"
	"net/http"
	"time"
)

// Server encapsulates the HTTP server of the application, providing controlled startup and shutdown.
type Server struct {
	// server — embedded HTTP server from net/http package, fully configured and ready to use.
	server *http.Server
}

// ListenAndServe starts the HTTP server and blocks until it stops.
// After Shutdown it returns http.ErrServerClosed.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server, letting active requests finish
// within the deadline of ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// NewServer creates and configures a new server instance.
//
// Parameters:
// - address: address and port to listen on (e.g., ":8080").
// - static: path to directory with the scoring page.
// - profile: score profile name recorded with archived runs.
// - sessions: registry of evaluation sessions.
// - runs: archive of exported runs (nil disables archiving).
//
// Sets timeouts for reading and writing, and limits header size.
func NewServer(
	address string,
	static string,
	profile string,
	sessions *session.Repository,
	runs RunArchive,
) *Server {
	router := NewApiV1Router(static, profile, sessions, runs)
	s := Server{&http.Server{
		Addr:           address,
		Handler:        router.Mux(),
		ReadTimeout:    time.Second * 3,
		WriteTimeout:   time.Second * 10,
		MaxHeaderBytes: 1024 * 10,
	}}

	return &s
}
