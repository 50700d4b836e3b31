package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"familytree/internal/apperr"
	"familytree/internal/models"
	"familytree/internal/security"
	"familytree/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	AdminContextKey     ContextKey = "admin"
	RequestIDContextKey ContextKey = "request_id"
)

var (
	errMissingToken = apperr.New(apperr.CodeUnauthorized, "Authentication required", "يجب تسجيل الدخول")
	errRoleTooLow   = apperr.New(apperr.CodeForbidden, "You do not have permission to do this", "ليس لديك صلاحية للقيام بهذا الإجراء")
	errRateLimited  = apperr.New(apperr.CodeRateLimited, "Too many requests, please try again later", "طلبات كثيرة، يرجى المحاولة لاحقاً")
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService *service.AuthService
	limiter     *security.RateLimiter
	corsOrigins []string
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(authService *service.AuthService, limiter *security.RateLimiter, corsOrigins []string) *Middleware {
	return &Middleware{
		authService: authService,
		limiter:     limiter,
		corsOrigins: corsOrigins,
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireAuth is middleware that requires a valid bearer token
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondWithError(w, r, errMissingToken)
			return
		}

		admin, err := m.authService.Authenticate(token)
		if err != nil {
			respondWithError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), AdminContextKey, admin)
		next(w, r.WithContext(ctx))
	}
}

// RequireRole is RequireAuth plus a minimum role
func (m *Middleware) RequireRole(role models.Role, next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		admin := GetAdminFromContext(r.Context())
		if admin == nil || !admin.Role.AtLeast(role) {
			respondWithError(w, r, errRoleTooLow)
			return
		}
		next(w, r)
	})
}

// OptionalAuth attaches the admin when a valid token is present and
// otherwise serves the request anonymously
func (m *Middleware) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if admin, err := m.authService.Authenticate(token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), AdminContextKey, admin))
			}
		}
		next(w, r)
	}
}

// RateLimit rejects clients that exceed the configured request rate
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := m.limiter.ClientIP(r)
		if !m.limiter.Allow(ip) {
			wait := m.limiter.RetryAfter(ip)
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Round(time.Second).Seconds())))
			slog.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			respondWithError(w, r, errRateLimited)
			return
		}
		next(w, r)
	}
}

// CORS adds cross-origin headers for the configured origins
func (m *Middleware) CORS(next http.Handler) http.Handler {
	allowAll := slices.Contains(m.corsOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || slices.Contains(m.corsOrigins, origin)) {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+RequestIDHeader)
			w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader+", Retry-After")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Recovery turns handler panics into a 500 response
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.Error("Panic while serving request",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:   "Internal server error",
				ErrorAr: "حدث خطأ في الخادم",
				Code:    apperr.CodeInternal,
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestID tags every request with an id, reusing the caller's when given
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), RequestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging middleware logs HTTP requests
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		} else if rec.Status() >= http.StatusBadRequest {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.Status(),
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// Status returns the written status, 200 if the handler wrote nothing
func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// GetAdminFromContext retrieves the admin from the request context
func GetAdminFromContext(ctx context.Context) *models.AdminUser {
	admin, ok := ctx.Value(AdminContextKey).(*models.AdminUser)
	if !ok {
		return nil
	}
	return admin
}

// RequestIDFromContext returns the id assigned by RequestID
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// actor names the caller in history and review records
func actor(r *http.Request) string {
	if admin := GetAdminFromContext(r.Context()); admin != nil {
		return admin.Email
	}
	return "public"
}
