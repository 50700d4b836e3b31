package handlers

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Startup step names, in the order cmd/server completes them
const (
	StepDatabase   = "Database connection"
	StepMigrations = "Running migrations"
	StepServices   = "Initializing services"
	StepBootstrap  = "Bootstrap admin"
	StepReady      = "Server ready"
)

// StartupStatus tracks the initialization progress
type StartupStatus struct {
	mu       sync.RWMutex
	Ready    bool          `json:"ready"`
	Current  string        `json:"current"`
	Progress int           `json:"progress"`
	Steps    []StartupStep `json:"steps"`
}

type StartupStep struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// NewStartupStatus creates a tracker with every step pending
func NewStartupStatus() *StartupStatus {
	s := &StartupStatus{Current: "Initializing..."}
	for _, name := range []string{StepDatabase, StepMigrations, StepServices, StepBootstrap, StepReady} {
		s.Steps = append(s.Steps, StartupStep{Name: name})
	}
	return s
}

var startupStatus = NewStartupStatus()

// SetCurrentStep updates the current initialization step
func SetCurrentStep(step string) { startupStatus.SetCurrentStep(step) }

// CompleteStep marks a step of the server's tracker as completed
func CompleteStep(stepName string) { startupStatus.CompleteStep(stepName) }

// MarkReady marks the server as fully initialized
func MarkReady() { startupStatus.MarkReady() }

// IsReady returns whether the server is fully initialized
func IsReady() bool { return startupStatus.IsReady() }

func (s *StartupStatus) SetCurrentStep(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Current = step
}

func (s *StartupStatus) CompleteStep(stepName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.Steps {
		if s.Steps[i].Name == stepName {
			s.Steps[i].Completed = true
			break
		}
	}

	completed := 0
	for _, step := range s.Steps {
		if step.Completed {
			completed++
		}
	}
	s.Progress = (completed * 100) / len(s.Steps)
}

func (s *StartupStatus) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Steps {
		s.Steps[i].Completed = true
	}
	s.Ready = true
	s.Current = StepReady
	s.Progress = 100
}

func (s *StartupStatus) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Ready
}

type startupView struct {
	Status   string        `json:"status"`
	Current  string        `json:"current"`
	Progress int           `json:"progress"`
	Steps    []StartupStep `json:"steps"`
}

func (s *StartupStatus) view(status string) startupView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return startupView{
		Status:   status,
		Current:  s.Current,
		Progress: s.Progress,
		Steps:    append([]StartupStep(nil), s.Steps...),
	}
}

// StartupGate answers 503 with the startup progress until the router is
// installed and the server is marked ready
type StartupGate struct {
	status  *StartupStatus
	handler atomic.Pointer[http.Handler]
}

// NewStartupGate gates on the server's tracker
func NewStartupGate() *StartupGate {
	return &StartupGate{status: startupStatus}
}

// SetHandler installs the router served once ready
func (g *StartupGate) SetHandler(h http.Handler) {
	g.handler.Store(&h)
}

func (g *StartupGate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h := g.handler.Load(); h != nil && g.status.IsReady() {
		(*h).ServeHTTP(w, r)
		return
	}
	w.Header().Set("Retry-After", "2")
	writeJSON(w, http.StatusServiceUnavailable, g.status.view("starting"))
}

// Pinger checks that a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports readiness and database reachability
type HealthHandler struct {
	status *StartupStatus
	db     Pinger
}

// NewHealthHandler reports on the server's tracker
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{status: startupStatus, db: db}
}

// Health answers 200 when the server is ready and the database responds
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.status.IsReady() {
		writeJSON(w, http.StatusServiceUnavailable, h.status.view("starting"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}
