// Package adapter exposes a running fleet over HTTP and WebSocket: status and
// control endpoints backed by the manager and config store, plus a streaming
// endpoint that fans out bus events to connected clients.
package adapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fleetkeeper/core/internal/config"
	"github.com/fleetkeeper/core/internal/events"
	"github.com/fleetkeeper/core/internal/manager"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// defaultStopTimeout is used when a stop request doesn't specify one.
const defaultStopTimeout = 10 * time.Second

// Server wires a manager, config store, and event bus into a chi router. It
// holds no state of its own beyond its collaborators and a logger, the same
// shape as the teacher's per-feature handler structs.
type Server struct {
	manager *manager.Manager
	store   *config.Store
	bus     *events.Bus
	log     zerolog.Logger

	router chi.Router
}

// New builds a Server and registers every route. Call Router to obtain the
// http.Handler to serve.
func New(m *manager.Manager, store *config.Store, bus *events.Bus, log zerolog.Logger) *Server {
	s := &Server{
		manager: m,
		store:   store,
		bus:     bus,
		log:     log.With().Str("component", "adapter").Logger(),
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE"},
		AllowedHeaders:   []string{"Content-Type"},
		MaxAge:           300,
		AllowCredentials: false,
	}))

	s.setupFleetRoutes(r)
	s.setupConfigRoutes(r)
	s.setupEventRoutes(r)

	s.router = r
	return s
}

// Router returns the adapter's http.Handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupFleetRoutes registers read endpoints and the per-agent control
// surface over agent state.
//
//	GET  /api/fleet/agents                 - status of every agent
//	GET  /api/fleet/agents/{name}           - status of one agent
//	POST /api/fleet/agents/{name}/start     - start one agent
//	POST /api/fleet/agents/{name}/stop      - stop one agent
//	POST /api/fleet/agents/{name}/restart   - restart one agent
//	POST /api/fleet/emergency-stop          - force-kill every agent
func (s *Server) setupFleetRoutes(r chi.Router) {
	r.Route("/api/fleet", func(r chi.Router) {
		r.Get("/agents", s.handleListAgents)
		r.Get("/agents/{name}", s.handleGetAgent)
		r.Post("/agents/{name}/start", s.handleStartAgent)
		r.Post("/agents/{name}/stop", s.handleStopAgent)
		r.Post("/agents/{name}/restart", s.handleRestartAgent)
		r.Post("/emergency-stop", s.handleEmergencyStop)
	})
}

// setupConfigRoutes registers the fleet configuration control surface.
//
//	GET  /api/config             - current applied version
//	POST /api/config             - apply a new FleetConfig document
//	POST /api/config/rollback/{version} - revert to a prior version
//	GET  /api/config/diff/{from}/{to}   - diff two versions
func (s *Server) setupConfigRoutes(r chi.Router) {
	r.Route("/api/config", func(r chi.Router) {
		r.Get("/", s.handleGetConfig)
		r.Post("/", s.handleApplyConfig)
		r.Post("/rollback/{version}", s.handleRollback)
		r.Get("/diff/{from}/{to}", s.handleDiff)
	})
}

// setupEventRoutes registers the live event stream.
//
//	GET /api/events/stream - WebSocket feed of every bus event
func (s *Server) setupEventRoutes(r chi.Router) {
	r.Route("/api/events", func(r chi.Router) {
		r.Get("/stream", s.handleEventStream)
	})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": s.manager.StatusAll(),
	})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	status, err := s.manager.Status(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStartAgent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	waitForHealth := r.URL.Query().Get("wait_for_health") != "false"

	if err := s.manager.StartAgent(r.Context(), name, waitForHealth); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) handleStopAgent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	timeout := defaultStopTimeout
	if v := r.URL.Query().Get("timeout_ms"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		}
	}

	if err := s.manager.StopAgent(r.Context(), name, timeout); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) handleRestartAgent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.manager.RestartAgent(r.Context(), name); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	_ = s.manager.EmergencyStop(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Current())
}

func (s *Server) handleApplyConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.FleetConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	v, err := s.store.Apply(cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	target, err := parseVersionParam(r, "version")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	v, err := s.store.Rollback(target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	from, err := parseVersionParam(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseVersionParam(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	diff, err := s.store.Diff(from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, diff)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode json response")
	}
}
