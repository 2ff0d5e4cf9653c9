package handlers

import (
	"net/http"
	"runtime"
	"time"

	"datecreated-fixer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Ready       bool   `json:"ready"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Indexing    bool   `json:"indexing"`
	LastIndexed string `json:"lastIndexed,omitempty"`
	ScanError   string `json:"scanError,omitempty"`

	// Reactive fixer
	ReactiveEnabled  bool `json:"reactiveEnabled"`
	ReactiveInFlight int  `json:"reactiveInFlight"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service. The service is
// ready once the first library scan has completed.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	lastIndexed := h.indexer.LastIndexTime()
	ready := !lastIndexed.IsZero()

	response := HealthResponse{
		Status:       statusStarting,
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Indexing:     h.indexer.IsIndexing(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if ready {
		response.Status = statusHealthy
		response.LastIndexed = lastIndexed.Format(time.RFC3339)
	}

	if status, err := h.tasks.Status(h.indexer.Key()); err == nil && status.LastResult == "failed" {
		response.ScanError = status.LastError
		response.Status = statusDegraded
	}

	if h.fixer != nil {
		response.ReactiveEnabled = true
		response.ReactiveInFlight = h.fixer.InFlight()
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}
