package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feedlab/feedlab/internal/core/domain"
	"github.com/feedlab/feedlab/internal/core/ports"
	"github.com/feedlab/feedlab/internal/export"
	"github.com/feedlab/feedlab/internal/session"
	"github.com/feedlab/feedlab/internal/summary"
	"github.com/feedlab/feedlab/internal/tracking"
)

// Handler serves the participant and operator surfaces of the instrument.
type Handler struct {
	sessions  *session.Manager
	roster    ports.RosterStore
	collector ports.Collector
	posts     []domain.Post
	adminPass string
	logger    *slog.Logger
}

// NewHandler wires the pipeline's components into the HTTP surface.
func NewHandler(sessions *session.Manager, roster ports.RosterStore, collector ports.Collector, posts []domain.Post, adminPass string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:  sessions,
		roster:    roster,
		collector: collector,
		posts:     posts,
		adminPass: adminPass,
		logger:    logger,
	}
}

// Routes mounts all endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/feed", h.handleFeed)
		r.Post("/sessions", h.handleOpenSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Post("/events", h.handleEvents)
			r.Post("/observations", h.handleObservations)
			r.Post("/scroll", h.handleScroll)
			r.Put("/participant", h.handleParticipant)
			r.Post("/submit", h.handleSubmit)
			r.Post("/end", h.handleEnd)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminAuthMiddleware(h.adminPass))
		r.Get("/roster", h.handleRosterJSON)
		r.Get("/roster.csv", h.handleRosterCSV)
		r.Delete("/roster", h.handleRosterClear)
		r.Get("/roster/watch", h.handleRosterWatch)
		r.Get("/sessions/{sessionID}/events", h.handleSessionEvents)
		r.Post("/sessions/{sessionID}/reset", h.handleSessionReset)
	})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	s, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return nil, false
	}
	return s, true
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"posts": h.posts})
}

func (h *Handler) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Open(h.posts)
	AddLogField(r.Context(), "session_id", s.Recorder.SessionID())
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": s.Recorder.SessionID()})
}

type eventRequest struct {
	Action string      `json:"action"`
	Meta   domain.Meta `json:"meta"`
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var batch []eventRequest
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "malformed event batch")
		return
	}

	recorded := 0
	for _, e := range batch {
		if _, err := s.Recorder.Record(e.Action, e.Meta); err != nil {
			AddError(r.Context(), err)
			continue
		}
		recorded++
	}
	writeJSON(w, http.StatusOK, map[string]int{"recorded": recorded})
}

func (h *Handler) handleObservations(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var entries []tracking.Observation
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeError(w, http.StatusBadRequest, "malformed observation batch")
		return
	}

	s.Visibility.Observe(entries)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleScroll(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		Y int `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed scroll report")
		return
	}

	s.Scroll.Observe(body.Y)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleParticipant(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, "participant_id required")
		return
	}

	s.Recorder.SetParticipantID(body.ParticipantID)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleSubmit is the completion path: record feed_submit, derive the row,
// persist it durably, then attempt collector delivery. The durable upsert
// happens before the network call so a dead collector can only ever cost the
// remote copy. The submit gate keeps a retry from racing an in-flight send.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if !s.TrySubmit() {
		writeError(w, http.StatusConflict, "submission already in progress")
		return
	}
	defer s.EndSubmit()

	s.Recorder.Record(domain.ActionFeedSubmit, domain.Meta{})

	events := s.Recorder.Events()
	row := summary.Build(s.Recorder.SessionID(), s.Recorder.ParticipantID(), events, h.posts)

	if _, err := h.roster.Upsert(r.Context(), row); err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "failed to save response")
		return
	}

	synced := h.collector.Send(r.Context(), row, events)
	message := "Response recorded."
	if !synced {
		message = "Response recorded locally; remote sync unavailable."
	}

	AddLogField(r.Context(), "session_id", s.Recorder.SessionID())
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"synced":  synced,
		"message": message,
	})
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := h.sessions.End(id); err != nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleRosterJSON(w http.ResponseWriter, r *http.Request) {
	rows := h.roster.Load(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err := export.WriteJSON(w, rows); err != nil {
		AddError(r.Context(), err)
	}
}

func (h *Handler) handleRosterCSV(w http.ResponseWriter, r *http.Request) {
	rows := h.roster.Load(r.Context())
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="roster.csv"`)
	if err := export.WriteCSV(w, rows); err != nil {
		AddError(r.Context(), err)
	}
}

func (h *Handler) handleRosterClear(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.Clear(r.Context()); err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "failed to clear roster")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": s.Recorder.Events()})
}

func (h *Handler) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Reset()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
