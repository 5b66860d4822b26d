package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/soulsync-app/soulsync/internal/bridge"
	"github.com/soulsync-app/soulsync/internal/session"
	"github.com/soulsync-app/soulsync/internal/store"
	"github.com/soulsync-app/soulsync/internal/types"
)

// registerAPI mounts the JSON endpoints the web client calls. Every
// mutation goes through the reconciler or the task bridge so the browser
// never holds a Google credential.
func (s *Server) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/sync", s.handleSync)

	mux.HandleFunc("GET /api/events", s.handleListEvents)
	mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	mux.HandleFunc("PATCH /api/events/{id}", s.handlePatchEvent)
	mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)

	mux.HandleFunc("GET /api/calendars", s.handleListCalendars)
	mux.HandleFunc("POST /api/calendars/select", s.handleSelectCalendar)

	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/reorder", s.handleReorderTask)
	mux.HandleFunc("POST /api/tasks/{id}/reminder", s.handleTaskReminder)

	mux.HandleFunc("GET /api/reflections", s.handleListReflections)
	mux.HandleFunc("POST /api/reflections", s.handleSaveReflection)

	mux.HandleFunc("GET /api/dinner/plans", s.handleListDinnerPlans)
	mux.HandleFunc("PUT /api/dinner/plans/{day}", s.handleSaveDinnerPlan)
	mux.HandleFunc("GET /api/dinner/preferences/{user}", s.handleGetPreferences)
	mux.HandleFunc("PUT /api/dinner/preferences/{user}", s.handleSavePreferences)

	mux.HandleFunc("POST /api/feedback", s.handleFeedback)

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/chat/history", s.handleChatHistory)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrDisconnected):
		status = http.StatusConflict
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reconciler.Status())
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.reconciler.Sync(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.reconciler.Status())
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reconciler.Events())
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var draft types.EventDraft
	if err := decode(r, &draft); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.reconciler.AddEvent(r.Context(), draft); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.reconciler.Events())
}

func (s *Server) handlePatchEvent(w http.ResponseWriter, r *http.Request) {
	var patch types.EventPatch
	if err := decode(r, &patch); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.reconciler.UpdateEvent(r.Context(), r.PathValue("id"), patch); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.reconciler.Events())
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.reconciler.DeleteEvent(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.reconciler.Events())
}

func (s *Server) handleListCalendars(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"calendars": s.reconciler.Calendars(),
		"selected":  s.settings.Selected(),
	})
}

func (s *Server) handleSelectCalendar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CalendarID string `json:"calendar_id"`
	}
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.settings.Select(req.CalendarID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"selected": req.CalendarID})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.Tasks(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var task types.Task
	if err := decode(r, &task); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	created, err := s.tasks.AddTask(r.Context(), task)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var upd store.TaskUpdate
	if err := decode(r, &upd); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	updated, err := s.tasks.UpdateTask(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorderTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.tasks.ReorderTask(r.Context(), r.PathValue("id"), bridge.Direction(req.Direction)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTaskReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		When string `json:"when"`
	}
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	updated, err := s.tasks.SetReminder(r.Context(), r.PathValue("id"), req.When)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListReflections(w http.ResponseWriter, r *http.Request) {
	reflections, err := s.store.ListReflections(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reflections)
}

func (s *Server) handleSaveReflection(w http.ResponseWriter, r *http.Request) {
	var reflection types.Reflection
	if err := decode(r, &reflection); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.store.SaveReflection(r.Context(), &reflection); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, reflection)
}

func (s *Server) handleListDinnerPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.store.ListDinnerPlans(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleSaveDinnerPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		types.DinnerPlan
		AddToCalendar bool `json:"add_to_calendar"`
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	req.DinnerPlan.ID = r.PathValue("day")

	// Preserve an existing mirror link across plain saves.
	if existing, err := s.store.GetDinnerPlan(r.Context(), req.DinnerPlan.ID); err == nil {
		req.DinnerPlan.ExternalEventID = existing.ExternalEventID
	}

	if s.session.Connected() && (req.AddToCalendar || req.DinnerPlan.ExternalEventID != "") {
		if err := s.reconciler.MirrorDinnerPlan(r.Context(), &req.DinnerPlan, req.AddToCalendar); err != nil {
			s.writeError(w, err)
			return
		}
	} else if err := s.store.SaveDinnerPlan(r.Context(), &req.DinnerPlan); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req.DinnerPlan)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.GetDinnerPreferences(r.Context(), r.PathValue("user"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs types.DinnerPreferences
	if err := decode(r, &prefs); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.store.SaveDinnerPreferences(r.Context(), r.PathValue("user"), &prefs); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var fb types.FeatureFeedback
	if err := decode(r, &fb); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.Status == "" {
		fb.Status = "new"
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}
	if err := s.store.AddFeedback(r.Context(), &fb); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, fb)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	tasks, err := s.tasks.Tasks(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	reply, err := s.assistant.Ask(r.Context(), req.Question, s.reconciler.Events(), tasks)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.assistant.History(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}
