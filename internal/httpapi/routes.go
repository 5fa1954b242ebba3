package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sidecar-io/sidecar/internal/events"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusDown     = "down"

	degradedQueueUtilization = 0.80
	downQueueUtilization     = 0.95
	readyQueueUtilization    = 0.90

	degradedErrorsLastMinute = 10
	downErrorsLastMinute     = 50
)

type (
	// HealthResponse is GET /health's JSON body.
	HealthResponse struct {
		Status    string          `json:"status"`
		Timestamp time.Time       `json:"timestamp"`
		Queue     QueueStatus     `json:"queue"`
		Resources ResourcesStatus `json:"resources"`
		Metrics   MetricsStatus   `json:"metrics"`
	}

	// QueueStatus reports the bounded queue's fill level.
	QueueStatus struct {
		Size          int     `json:"size"`
		MaxSize       int     `json:"max_size"`
		Utilization   float64 `json:"utilization"`
		DroppedEvents float64 `json:"dropped_events"`
	}

	// ResourcesStatus reports the latest resource-governor sample.
	ResourcesStatus struct {
		CPUPercent       float64 `json:"cpu_percent"`
		MemoryMB         float64 `json:"memory_mb"`
		CPUOverBudget    bool    `json:"cpu_over_budget"`
		MemoryOverBudget bool    `json:"memory_over_budget"`
	}

	// MetricsStatus is the cumulative counter readout embedded in /health.
	MetricsStatus struct {
		EventsQueued    float64 `json:"events_queued"`
		EventsProcessed float64 `json:"events_processed"`
		EventsDropped   float64 `json:"events_dropped"`
		ErrorsTotal     float64 `json:"errors_total"`
	}

	// ReadyResponse is GET /ready's JSON body.
	ReadyResponse struct {
		Ready            bool      `json:"ready"`
		Timestamp        time.Time `json:"timestamp"`
		QueueUtilization float64   `json:"queue_utilization"`
		Enabled          bool      `json:"enabled"`
	}

	// EventAcceptedResponse is POST /events' 202 body.
	EventAcceptedResponse struct {
		Queued bool `json:"queued"`
	}

	// EventRejectedResponse is POST /events' 400/429 body.
	EventRejectedResponse struct {
		Reason string `json:"reason"`
		Detail string `json:"detail,omitempty"`
	}

	// ReloadResponse is POST /sidecar/config/reload's 200 body.
	ReloadResponse struct {
		Status          string    `json:"status"`
		Message         string    `json:"message"`
		Timestamp       time.Time `json:"timestamp"`
		UpdatedFields   []string  `json:"updated_fields"`
		RestartRequired []string  `json:"restart_required"`
	}
)

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("POST /events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cfg := s.snapshot.Load()
	snap := s.metrics.Snapshot()

	utilization := s.queue.Utilization()

	errorsLastMinute := 0
	unreachable := false
	if s.health != nil {
		errorsLastMinute = s.health.ErrorsLastMinute()
		grace := time.Duration(cfg.Health.PersistenceGraceMs) * time.Millisecond
		unreachable = s.health.UnreachableFor() > grace
	}

	cpuOverBudget := snap.CPUUsage > cfg.Resources.MaxCPUPercent
	memoryOverBudget := snap.MemoryUsage > float64(cfg.Resources.MaxMemoryMB)
	resourceBreach := cpuOverBudget || memoryOverBudget

	status := statusOK
	switch {
	case utilization >= downQueueUtilization || errorsLastMinute > downErrorsLastMinute || unreachable:
		status = statusDown
	case utilization >= degradedQueueUtilization || errorsLastMinute >= degradedErrorsLastMinute || resourceBreach:
		status = statusDegraded
	}

	resp := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Queue: QueueStatus{
			Size:          s.queue.Size(),
			MaxSize:       s.queue.Capacity(),
			Utilization:   utilization,
			DroppedEvents: snap.EventsDropped,
		},
		Resources: ResourcesStatus{
			CPUPercent:       snap.CPUUsage,
			MemoryMB:         snap.MemoryUsage,
			CPUOverBudget:    cpuOverBudget,
			MemoryOverBudget: memoryOverBudget,
		},
		Metrics: MetricsStatus{
			EventsQueued:    snap.EventsQueued,
			EventsProcessed: snap.EventsProcessed,
			EventsDropped:   snap.EventsDropped,
			ErrorsTotal:     snap.ErrorsTotal,
		},
	}

	statusCode := http.StatusOK
	if status == statusDown {
		statusCode = http.StatusServiceUnavailable
	}

	s.writeJSON(w, r, statusCode, resp)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	cfg := s.snapshot.Load()
	utilization := s.queue.Utilization()
	ready := cfg.Enabled && utilization < readyQueueUtilization

	resp := ReadyResponse{
		Ready:            ready,
		Timestamp:        time.Now().UTC(),
		QueueUtilization: utilization,
		Enabled:          cfg.Enabled,
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	s.writeJSON(w, r, statusCode, resp)
}

// handleEvents decodes and enqueues a single event envelope.
// http.request_timeout_ms is enforced by the server's own ReadTimeout
// (set in NewServer), not re-checked here.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, 1<<20)

	var e events.Event
	if err := json.NewDecoder(body).Decode(&e); err != nil {
		s.writeEventRejected(w, r, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	outcome := s.producer.Put(e)

	switch {
	case outcome.Accepted:
		s.writeJSON(w, r, http.StatusAccepted, EventAcceptedResponse{Queued: true})
	case outcome.DroppedInvalid:
		detail := ""
		if outcome.Err != nil {
			detail = outcome.Err.Error()
		}
		s.writeEventRejected(w, r, http.StatusBadRequest, "invalid", detail)
	case outcome.DroppedQueueFull:
		s.writeEventRejected(w, r, http.StatusTooManyRequests, "queue_full", "")
	case outcome.DroppedSampled:
		// Sampled-out submissions are accepted from the caller's point of
		// view: the event was legitimate, it just wasn't kept.
		s.writeJSON(w, r, http.StatusAccepted, EventAcceptedResponse{Queued: false})
	}
}

func (s *Server) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("failed to read request body"))
		return
	}

	updatedFields, restartRequired, err := s.reloader.Reload(body)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))
		return
	}

	message := "config reloaded"
	if len(restartRequired) > 0 {
		message = "config reloaded; some fields require a process restart to take effect"
	}

	if updatedFields == nil {
		updatedFields = []string{}
	}
	if restartRequired == nil {
		restartRequired = []string{}
	}

	resp := ReloadResponse{
		Status:          "ok",
		Message:         message,
		Timestamp:       time.Now().UTC(),
		UpdatedFields:   updatedFields,
		RestartRequired: restartRequired,
	}

	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) writeEventRejected(w http.ResponseWriter, r *http.Request, status int, reason, detail string) {
	s.writeJSON(w, r, status, EventRejectedResponse{Reason: reason, Detail: detail})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil && s.logger != nil {
		s.logger.Error("failed to encode response body",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}
