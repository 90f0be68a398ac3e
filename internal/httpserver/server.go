// Package httpserver is the transport the board UI talks to. It calls the
// session and task managers only through their public operations and never
// touches the durable store directly.
package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"teamboard/teamboard-api/internal/auth"
	"teamboard/teamboard-api/internal/config"
	"teamboard/teamboard-api/internal/task"
)

type SessionService interface {
	Login(username, password string) (bool, error)
	Logout() error
	CurrentUser() (auth.User, bool)
	IsAuthenticated() bool
}

type DirectoryService interface {
	Register(username, password, name string) (auth.User, error)
	Users() []auth.User
}

type TaskService interface {
	Create(f task.Fields) (task.Task, error)
	Update(id string, p task.Patch) error
	Delete(id string) error
	Get(id string) (task.Task, bool)
	View(status, assignee string) iter.Seq[task.Task]
}

type AuditLogger interface {
	Log(actor, action, target, outcome, detail string) error
}

type Deps struct {
	Session         SessionService
	Directory       DirectoryService
	Tasks           TaskService
	Audit           AuditLogger
	FrontendDistDir string
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	handler := NewHandler(deps)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      loggingMiddleware(handler),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func NewHandler(deps Deps) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/v1/info", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "teamboard-api",
			"version": "0.1.0",
		})
	})

	registerAuthHandlers(mux, deps)
	registerUserHandlers(mux, deps)
	registerTaskHandlers(mux, deps)
	registerFrontendHandlers(mux, deps.FrontendDistDir)

	return mux
}

func registerAuthHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Session == nil {
			writeError(w, http.StatusServiceUnavailable, "session service unavailable")
			return
		}

		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		ok, err := deps.Session.Login(req.Username, req.Password)
		if err != nil {
			auditReq(deps.Audit, r, req.Username, "auth.login", "", "failed", err.Error())
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
		if !ok {
			auditReq(deps.Audit, r, req.Username, "auth.login", "", "failed", "invalid credentials")
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		auditReq(deps.Audit, r, req.Username, "auth.login", "", "success", "")

		user, _ := deps.Session.CurrentUser()
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	})

	mux.HandleFunc("/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		user, ok := requireUser(w, deps)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, user)
	})

	mux.HandleFunc("/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Session == nil {
			writeError(w, http.StatusServiceUnavailable, "session service unavailable")
			return
		}

		user, _ := deps.Session.CurrentUser()
		if err := deps.Session.Logout(); err != nil {
			auditReq(deps.Audit, r, user.Username, "auth.logout", "", "failed", err.Error())
			writeError(w, http.StatusInternalServerError, "logout failed")
			return
		}
		auditReq(deps.Audit, r, user.Username, "auth.logout", "", "success", "")
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Directory == nil {
			writeError(w, http.StatusServiceUnavailable, "directory service unavailable")
			return
		}

		var req struct {
			Username        string `json:"username"`
			Password        string `json:"password"`
			ConfirmPassword string `json:"confirm_password"`
			Name            string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" || req.Password == "" || req.Name == "" {
			writeError(w, http.StatusBadRequest, "username, password, and name are required")
			return
		}
		if req.Password != req.ConfirmPassword {
			writeError(w, http.StatusBadRequest, "passwords do not match")
			return
		}

		user, err := deps.Directory.Register(req.Username, req.Password, req.Name)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidUsername):
				writeError(w, http.StatusBadRequest, "username must be a valid email address")
			case errors.Is(err, auth.ErrWeakPassword):
				writeError(w, http.StatusBadRequest, "password must be at least 6 characters long")
			case errors.Is(err, auth.ErrUsernameTaken):
				auditReq(deps.Audit, r, req.Username, "auth.register", "", "failed", "username taken")
				writeError(w, http.StatusConflict, "an account with this username already exists")
			default:
				auditReq(deps.Audit, r, req.Username, "auth.register", "", "failed", err.Error())
				writeError(w, http.StatusInternalServerError, "registration failed")
			}
			return
		}
		auditReq(deps.Audit, r, user.Username, "auth.register", user.ID, "success", "")

		user.Password = ""
		writeJSON(w, http.StatusCreated, user)
	})
}

func registerUserHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if _, ok := requireUser(w, deps); !ok {
			return
		}
		if deps.Directory == nil {
			writeError(w, http.StatusServiceUnavailable, "directory service unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": deps.Directory.Users()})
	})
}

func registerTaskHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireUser(w, deps)
		if !ok {
			return
		}
		if deps.Tasks == nil {
			writeError(w, http.StatusServiceUnavailable, "task service unavailable")
			return
		}

		switch r.Method {
		case http.MethodGet:
			status := r.URL.Query().Get("status")
			assignee := r.URL.Query().Get("assignee")
			items := make([]task.Task, 0)
			for t := range deps.Tasks.View(status, assignee) {
				items = append(items, t)
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
		case http.MethodPost:
			var req task.Fields
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			created, err := deps.Tasks.Create(req)
			if err != nil {
				if errors.Is(err, task.ErrInvalidInput) {
					writeError(w, http.StatusBadRequest, err.Error())
					return
				}
				auditReq(deps.Audit, r, user.Username, "task.create", "", "failed", err.Error())
				writeError(w, http.StatusInternalServerError, "create task failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, "task.create", created.ID, "success", "")
			writeJSON(w, http.StatusCreated, created)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/v1/tasks/", func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireUser(w, deps)
		if !ok {
			return
		}
		if deps.Tasks == nil {
			writeError(w, http.StatusServiceUnavailable, "task service unavailable")
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/v1/tasks/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}

		switch r.Method {
		case http.MethodGet:
			t, ok := deps.Tasks.Get(id)
			if !ok {
				writeError(w, http.StatusNotFound, "task not found")
				return
			}
			writeJSON(w, http.StatusOK, t)
		case http.MethodPut:
			var req task.Patch
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			// A missing target is silently ignored, matching the
			// manager's contract, so the outcome is 204 either way.
			if err := deps.Tasks.Update(id, req); err != nil {
				if errors.Is(err, task.ErrInvalidInput) {
					writeError(w, http.StatusBadRequest, err.Error())
					return
				}
				auditReq(deps.Audit, r, user.Username, "task.update", id, "failed", err.Error())
				writeError(w, http.StatusInternalServerError, "update task failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, "task.update", id, "success", "")
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			if err := deps.Tasks.Delete(id); err != nil {
				auditReq(deps.Audit, r, user.Username, "task.delete", id, "failed", err.Error())
				writeError(w, http.StatusInternalServerError, "delete task failed")
				return
			}
			auditReq(deps.Audit, r, user.Username, "task.delete", id, "success", "")
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}

func registerFrontendHandlers(mux *http.ServeMux, distDir string) {
	distDir = strings.TrimSpace(distDir)
	if distDir == "" {
		return
	}
	indexPath := filepath.Join(distDir, "index.html")
	if _, err := os.Stat(indexPath); err != nil {
		return
	}

	fileServer := http.FileServer(http.Dir(distDir))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			http.NotFound(w, r)
			return
		}

		cleanPath := path.Clean(r.URL.Path)
		if cleanPath == "." || cleanPath == "/" {
			http.ServeFile(w, r, indexPath)
			return
		}

		fullPath := filepath.Join(distDir, strings.TrimPrefix(cleanPath, "/"))
		info, err := os.Stat(fullPath)
		if err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		// SPA fallback.
		http.ServeFile(w, r, indexPath)
	})
}

func requireUser(w http.ResponseWriter, deps Deps) (auth.User, bool) {
	if deps.Session == nil {
		writeError(w, http.StatusServiceUnavailable, "session service unavailable")
		return auth.User{}, false
	}
	user, ok := deps.Session.CurrentUser()
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return auth.User{}, false
	}
	return user, true
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if reqID == "" {
			reqID = newRequestID()
		}
		w.Header().Set("X-Request-Id", reqID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
	})
}

type requestIDKey struct{}

func newRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(requestIDKey{})
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func auditReq(a AuditLogger, r *http.Request, actor, action, target, outcome, detail string) {
	if a == nil {
		return
	}
	parts := []string{
		"rid=" + requestIDFromContext(r.Context()),
		"ip=" + clientIP(r),
	}
	if detail != "" {
		parts = append(parts, detail)
	}
	_ = a.Log(actor, action, target, outcome, strings.Join(parts, " "))
}
