package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"busymirror/services/scheduler"
	syncsvc "busymirror/services/sync"
)

// SyncService is the slice of the sync engine the handler exposes.
type SyncService interface {
	Synchronize() (syncsvc.Summary, error)
	RemoveBlockingEvents() (int, error)
	Status() syncsvc.Status
}

// SchedulerStatus reports the background loop's state.
type SchedulerStatus interface {
	Status() scheduler.Status
}

// SyncHandler serves the admin sync endpoints.
type SyncHandler struct {
	Sync      SyncService
	Scheduler SchedulerStatus
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(sync SyncService, sched SchedulerStatus) *SyncHandler {
	return &SyncHandler{Sync: sync, Scheduler: sched}
}

// RegisterRoutes attaches the sync endpoints to the router. Any middleware
// given applies only to the mutating endpoints, not to status reads.
func (h *SyncHandler) RegisterRoutes(r *mux.Router, mutating ...mux.MiddlewareFunc) {
	r.HandleFunc("/api/sync/status", h.GetStatus).Methods(http.MethodGet)

	sub := r.PathPrefix("/api/sync").Subrouter()
	for _, mw := range mutating {
		sub.Use(mw)
	}
	sub.HandleFunc("/run", h.RunSync).Methods(http.MethodPost)
	sub.HandleFunc("/teardown", h.Teardown).Methods(http.MethodPost)
}

// GetStatus returns the engine's last-pass state and the scheduler state.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Engine    syncsvc.Status   `json:"engine"`
		Scheduler scheduler.Status `json:"scheduler"`
	}{
		Engine: h.Sync.Status(),
	}
	if h.Scheduler != nil {
		resp.Scheduler = h.Scheduler.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunSync runs one reconciliation pass inline and returns its summary.
func (h *SyncHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Sync.Synchronize()
	if err != nil {
		log.Printf("[api] sync run failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Teardown removes every placeholder this pairing created in either calendar.
func (h *SyncHandler) Teardown(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Sync.RemoveBlockingEvents()
	if err != nil {
		log.Printf("[api] teardown failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
