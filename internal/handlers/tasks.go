package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"datecreated-fixer/internal/logging"
	"datecreated-fixer/internal/tasks"
)

// ListTasks returns every registered task
func (h *Handlers) ListTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.tasks.List())
}

// GetTask returns the status of one task
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	status, err := h.tasks.Status(key)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, status)
}

// RunTask starts a task in the background
func (h *Handlers) RunTask(w http.ResponseWriter, r *http.Request) {
	h.startTask(w, mux.Vars(r)["key"])
}

// CancelTask requests cancellation of a running task
func (h *Handlers) CancelTask(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if err := h.tasks.Cancel(key); err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, "canceling")
}

// TriggerReindex starts a library scan
func (h *Handlers) TriggerReindex(w http.ResponseWriter, _ *http.Request) {
	h.startTask(w, h.indexer.Key())
}

func (h *Handlers) startTask(w http.ResponseWriter, key string) {
	if err := h.tasks.Start(key); err != nil {
		writeTaskError(w, err)
		return
	}
	logging.Info("Task %s started via API", key)
	writeJSONStatus(w, http.StatusAccepted, "started")
}

// writeTaskError maps task manager errors to HTTP status codes.
func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tasks.ErrUnknownTask):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, tasks.ErrAlreadyRunning), errors.Is(err, tasks.ErrNotRunning):
		writeJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, tasks.ErrShutdown):
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		logging.Error("Task request failed: %v", err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
	}
}
