// Package testserver serves a small HTTP API that hrun testcases and
// locust load tests can be pointed at. It covers the shapes testcases
// usually exercise: status codes, latency, echoing, and a token login
// followed by authenticated user lookups.
package testserver

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Server is the test API.
type Server struct {
	mux       *http.ServeMux
	log       *zap.Logger
	requestID atomic.Int64

	mu     sync.RWMutex
	tokens map[string]int64 // token -> user id
}

// Option configures a Server.
type Option func(*Server)

// WithLogger logs every request at debug level.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// NewServer creates a server with all routes registered.
func NewServer(opts ...Option) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		log:    zap.NewNop(),
		tokens: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Handler returns the server's handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

// Routes lists the registered endpoints for display.
var Routes = []struct{ Pattern, Help string }{
	{"GET /health", "health check"},
	{"GET /status/{code}", "respond with the given status code"},
	{"GET /delay/{ms}", "respond after ms milliseconds"},
	{"POST /echo", "echo the request body"},
	{"GET /random-delay", "random delay (?min=50&max=200)"},
	{"GET /fail-rate", "fail a percentage of requests (?rate=10)"},
	{"GET /json", "JSON document with request metadata"},
	{"GET /headers", "request headers as JSON"},
	{"POST /auth/login", "issue a bearer token"},
	{"GET /users/{id}", "user lookup, me resolves the bearer token"},
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status/{code}", s.handleStatus)
	s.mux.HandleFunc("GET /delay/{ms}", s.handleDelay)
	s.mux.HandleFunc("POST /echo", s.handleEcho)
	s.mux.HandleFunc("GET /random-delay", s.handleRandomDelay)
	s.mux.HandleFunc("GET /fail-rate", s.handleFailRate)
	s.mux.HandleFunc("GET /json", s.handleJSON)
	s.mux.HandleFunc("GET /headers", s.handleHeaders)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /users/{id}", s.handleUser)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.PathValue("code"))
	if err != nil || code < 100 || code > 599 {
		http.Error(w, "invalid status code", http.StatusBadRequest)
		return
	}
	w.WriteHeader(code)
	fmt.Fprintf(w, "%d %s", code, http.StatusText(code))
}

func (s *Server) handleDelay(w http.ResponseWriter, r *http.Request) {
	ms, err := strconv.Atoi(r.PathValue("ms"))
	if err != nil || ms < 0 {
		http.Error(w, "invalid delay", http.StatusBadRequest)
		return
	}
	sleep(r, time.Duration(ms)*time.Millisecond)
	fmt.Fprintf(w, "delayed %dms", ms)
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusInternalServerError)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(body)
}

func (s *Server) handleRandomDelay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minMs, err := strconv.Atoi(q.Get("min"))
	if err != nil || minMs < 0 {
		minMs = 0
	}
	maxMs, err := strconv.Atoi(q.Get("max"))
	if err != nil || maxMs < minMs {
		maxMs = minMs + 100
	}

	delay := minMs
	if maxMs > minMs {
		delay += rand.IntN(maxMs - minMs)
	}
	sleep(r, time.Duration(delay)*time.Millisecond)
	fmt.Fprintf(w, "delayed %dms (range: %d-%d)", delay, minMs, maxMs)
}

func (s *Server) handleFailRate(w http.ResponseWriter, r *http.Request) {
	rate, err := strconv.Atoi(r.URL.Query().Get("rate"))
	if err != nil || rate < 0 || rate > 100 {
		rate = 0
	}
	if rand.IntN(100) < rate {
		http.Error(w, "simulated failure", http.StatusInternalServerError)
		return
	}
	fmt.Fprint(w, "success")
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        s.requestID.Add(1),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"method":    r.Method,
		"path":      r.URL.Path,
		"message":   "Hello from test server",
	})
}

func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"headers": headers,
		"method":  r.Method,
		"path":    r.URL.Path,
	})
}

// handleLogin issues a token bound to a fresh user id.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	id := s.requestID.Add(1)
	token := "token-" + uuid.NewString()

	s.mu.Lock()
	s.tokens[token] = id
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"auth": map[string]any{"token": token, "expires_in": 3600},
		"user": map[string]any{"id": id, "name": "testuser"},
	})
}

// handleUser returns a user. For /users/me, user_id is the id bound to the
// bearer token when the token is known.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	auth := r.Header.Get("Authorization")

	authenticated := auth != ""
	if token, ok := bearer(auth); ok && userID == "me" {
		s.mu.RLock()
		id, known := s.tokens[token]
		s.mu.RUnlock()
		if known {
			userID = strconv.FormatInt(id, 10)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       userID,
		"name":          "Test User",
		"email":         "test@example.com",
		"authenticated": authenticated,
	})
}

func bearer(auth string) (string, bool) {
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return "", false
	}
	return auth[len(prefix):], true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sleep waits for d or until the client goes away.
func sleep(r *http.Request, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-r.Context().Done():
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
