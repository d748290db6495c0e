package warranty

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// LocalUser is the identity every request gets when no basic-auth users are configured
const LocalUser = "local"

// Server handles HTTP requests for warranties
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials by username
type BasicAuth struct {
	Users map[string]string
	Realm string
}

// ParseUsers reads "alice:secret,bob:hunter2" into a user map
func ParseUsers(s string) (map[string]string, error) {
	users := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		user, pass, ok := strings.Cut(pair, ":")
		if !ok || user == "" || pass == "" {
			return nil, fmt.Errorf("invalid user entry %q, want user:password", pair)
		}
		users[user] = pass
	}
	return users, nil
}

type callerKey struct{}

// callerFrom returns the caller stored on the request context
func callerFrom(r *http.Request) Caller {
	c, _ := r.Context().Value(callerKey{}).(Caller)
	return c
}

func withCaller(r *http.Request, c Caller) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), callerKey{}, c))
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	if basicAuth.Realm == "" {
		basicAuth.Realm = "WarrantySafe"
	}
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials. ok is false only for credentials that were sent
// and are wrong.
func (s *Server) authenticate(r *http.Request) (caller Caller, ok bool) {
	if len(s.basicAuth.Users) == 0 {
		return Caller{UserID: LocalUser, Authenticated: true}, true
	}

	user, pass, present := r.BasicAuth()
	if !present {
		return Caller{}, true
	}
	want, known := s.basicAuth.Users[user]
	if !known || subtle.ConstantTimeCompare([]byte(pass), []byte(want)) != 1 {
		return Caller{}, false
	}
	return Caller{UserID: user, Authenticated: true}, true
}

func (s *Server) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Basic realm=%q`, s.basicAuth.Realm))
	jsonError(w, "Unauthorized", http.StatusUnauthorized)
}

// requireAuth rejects requests without a valid user
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.authenticate(r)
		if !ok || !caller.Authenticated {
			s.unauthorized(w)
			return
		}
		next(w, withCaller(r, caller))
	}
}

// optionalAuth lets anonymous requests through but still rejects bad credentials
func (s *Server) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.authenticate(r)
		if !ok {
			s.unauthorized(w)
			return
		}
		next(w, withCaller(r, caller))
	}
}

// corsMiddleware adds CORS headers to every response and answers preflight requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/scan", s.optionalAuth(s.handleScan))

	s.mux.HandleFunc("GET /api/warranties/{id}/file", s.requireAuth(s.handleGetFile))
	s.mux.HandleFunc("POST /api/warranties/{id}/reveal", s.requireAuth(s.handleReveal))
	s.mux.HandleFunc("GET /api/warranties/{id}", s.requireAuth(s.handleGetWarranty))
	s.mux.HandleFunc("DELETE /api/warranties/{id}", s.requireAuth(s.handleDeleteWarranty))
	s.mux.HandleFunc("GET /api/warranties", s.requireAuth(s.handleListWarranties))
	s.mux.HandleFunc("POST /api/warranties", s.requireAuth(s.handleUpload))

	s.mux.HandleFunc("GET /api/export.xlsx", s.requireAuth(s.handleExport))
	s.mux.HandleFunc("GET /api/account", s.requireAuth(s.handleAccount))
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	corsMiddleware(s.mux).ServeHTTP(w, r)
}
