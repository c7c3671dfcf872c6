// Package remotetest provides an in-memory memo service implementing the wire
// contract, for tests that need a real HTTP surface.
package remotetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"

	"easymemo/pkg/common"
)

type record struct {
	ID        string    `json:"_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Server is a fake memo service. Writes and reads can be failed on demand to
// exercise the client's offline and retry paths.
type Server struct {
	mu         sync.Mutex
	records    []record
	nextID     int
	healthy    bool
	failWrites bool

	jwtSecret string

	ListCalls   int
	CreateCalls int
	UpdateCalls int
	DeleteCalls int

	httpSrv *httptest.Server
}

// Option configures the fake server
type Option func(*Server)

// WithJWTSecret makes the server verify bearer tokens with the given secret.
// Requests without a token fall back to the guest scope and stay valid.
func WithJWTSecret(secret string) Option {
	return func(s *Server) { s.jwtSecret = secret }
}

// NewServer starts a fake memo service
func NewServer(opts ...Option) *Server {
	s := &Server{healthy: true, nextID: 1}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/memos", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Put("/{serverID}", s.handleUpdate)
		r.Delete("/{serverID}", s.handleDelete)
	})

	s.httpSrv = httptest.NewServer(r)
	return s
}

// URL returns the base URL of the fake service
func (s *Server) URL() string {
	return s.httpSrv.URL
}

// Close shuts the fake service down
func (s *Server) Close() {
	s.httpSrv.Close()
}

// SetHealthy flips the backing-store-reachable flag. While unhealthy the probe
// fails and every memo call returns 503.
func (s *Server) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

// SetFailWrites makes create/update/delete return 500 while reads keep working
func (s *Server) SetFailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = fail
}

// Count returns how many records the server holds
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Contents returns the stored memo bodies, newest-first
func (s *Server) Contents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := s.sortedLocked()
	out := make([]string, len(sorted))
	for i, rec := range sorted {
		out[i] = rec.Content
	}
	return out
}

// Seed inserts a record directly, bypassing the HTTP surface
func (s *Server) Seed(content string, createdAt time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := fmt.Sprintf("srv-%06d", s.nextID)
	s.nextID++
	s.records = append(s.records, record{
		ID:        id,
		Content:   content,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
	return id
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			// Anonymous scope; the guest header is accepted as-is.
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		if s.jwtSecret != "" {
			_, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return []byte(s.jwtSecret), nil
			})
			if err != nil {
				writeError(w, http.StatusForbidden, "invalid token")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	healthy := s.healthy
	s.mu.Unlock()

	if !healthy {
		writeError(w, http.StatusServiceUnavailable, "data store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ListCalls++
	if !s.healthy {
		writeError(w, http.StatusServiceUnavailable, "data store unreachable")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	params := common.PageParams{Page: page, PageSize: limit}.Normalize()

	sorted := s.sortedLocked()
	low, high := common.PageBounds(params, len(sorted))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"memos":      sorted[low:high],
		"pagination": common.BuildPageInfo(params.Page, params.PageSize, len(sorted)),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CreateCalls++
	if !s.healthy || s.failWrites {
		writeError(w, http.StatusServiceUnavailable, "data store unreachable")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	now := time.Now()
	rec := record{
		ID:        fmt.Sprintf("srv-%06d", s.nextID),
		Content:   strings.TrimSpace(req.Content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextID++
	s.records = append(s.records, rec)

	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.UpdateCalls++
	if !s.healthy || s.failWrites {
		writeError(w, http.StatusServiceUnavailable, "data store unreachable")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	serverID := chi.URLParam(r, "serverID")
	for i := range s.records {
		if s.records[i].ID == serverID {
			s.records[i].Content = strings.TrimSpace(req.Content)
			s.records[i].UpdatedAt = time.Now()
			writeJSON(w, http.StatusOK, s.records[i])
			return
		}
	}

	writeError(w, http.StatusNotFound, "memo not found")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DeleteCalls++
	if !s.healthy || s.failWrites {
		writeError(w, http.StatusServiceUnavailable, "data store unreachable")
		return
	}

	serverID := chi.URLParam(r, "serverID")
	for i := range s.records {
		if s.records[i].ID == serverID {
			s.records = append(s.records[:i], s.records[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	writeError(w, http.StatusNotFound, "memo not found")
}

func (s *Server) sortedLocked() []record {
	sorted := make([]record, len(s.records))
	copy(sorted, s.records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
