// Package api exposes the read-only monitoring surface: world state
// snapshots, the action journal, and a live websocket feed of cycle events.
// The control panel consuming it lives outside this repository; nothing here
// mutates state.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atimics/matrixbot-sub000/internal/config"
	"github.com/atimics/matrixbot-sub000/internal/journal"
	"github.com/atimics/matrixbot-sub000/internal/world"
)

type Server struct {
	World     *world.State
	Journal   *journal.Journal
	Config    config.Config
	StartedAt time.Time
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/channels", s.handleChannels)
	mux.HandleFunc("/api/channels/", s.handleChannelItem)
	mux.HandleFunc("/api/actions", s.handleActions)
	mux.HandleFunc("/api/invites", s.handleInvites)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/stream/ws", s.handleStreamWS)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"time":       time.Now().UTC(),
		"started_at": s.StartedAt,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.World.Snapshot())
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.World.Snapshot().Channels)
}

func (s *Server) handleChannelItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/channels/"), "/")
	ch, ok := s.World.Channel(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("channel"))
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// handleActions serves the durable journal when available (it reaches
// further back than the bounded in-memory history), falling back to the
// world state otherwise.
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	if s.Journal != nil {
		actions, err := s.Journal.ListActions(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, actions)
		return
	}
	writeJSON(w, http.StatusOK, s.World.Actions())
}

func (s *Server) handleInvites(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.World.PendingInvites())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if s.Journal == nil {
		writeError(w, http.StatusNotFound, errNotFound("journal"))
		return
	}
	kind := r.URL.Query().Get("kind")
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	events, err := s.Journal.ListEvents(r.Context(), kind, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleConfig reports the effective limits; the AI key is redacted.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	cfg := s.Config
	if cfg.AI.APIKey != "" {
		cfg.AI.APIKey = "[redacted]"
	}
	writeJSON(w, http.StatusOK, cfg)
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
