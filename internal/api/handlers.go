package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/charliek/horn/internal/constants"
	"github.com/charliek/horn/internal/domain"
	"github.com/charliek/horn/internal/logs"
	"github.com/charliek/horn/internal/supervisor"
)

// Controller is the part of the supervisor the API drives
type Controller interface {
	Status() supervisor.Status
	Workers() []domain.WorkerInfo
	Worker(name string) (domain.WorkerInfo, error)
	Shutdown(graceful bool) error
	Reload() error
	Subscribe() <-chan supervisor.Event
	Unsubscribe(ch <-chan supervisor.Event)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	ctl        Controller
	logManager *logs.Manager
	configFile string
	logger     *slog.Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(ctl Controller, logMgr *logs.Manager, configFile string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		ctl:        ctl,
		logManager: logMgr,
		configFile: configFile,
		logger:     logger,
	}
}

// GetStatus handles GET /api/v1/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.ctl.Status()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:        status.State,
		PID:           status.PID,
		UptimeSeconds: status.UptimeSeconds(),
		ConfigFile:    h.configFile,
		APIVersion:    "v1",
		Workers:       status.Workers,
		Running:       status.Running,
	})
}

// GetWorkers handles GET /api/v1/workers
func (h *Handlers) GetWorkers(w http.ResponseWriter, r *http.Request) {
	workers := h.ctl.Workers()

	resp := WorkerListResponse{
		Workers: make([]WorkerResponse, len(workers)),
	}
	for i, info := range workers {
		resp.Workers[i] = ToWorkerResponse(info)
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetWorker handles GET /api/v1/workers/{name}
func (h *Handlers) GetWorker(w http.ResponseWriter, r *http.Request) {
	info, err := h.ctl.Worker(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ToWorkerResponse(info))
}

// GetLogs handles GET /api/v1/logs
func (h *Handlers) GetLogs(w http.ResponseWriter, r *http.Request) {
	filter, limit := parseLogParams(r)

	entries, total, err := h.logManager.QueryLast(filter, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := LogsResponse{
		Logs:          make([]LogEntryResponse, len(entries)),
		FilteredCount: len(entries),
		TotalCount:    total,
	}
	for i, e := range entries {
		resp.Logs[i] = ToLogEntryResponse(e)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Reload handles POST /api/v1/reload
func (h *Handlers) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.Reload(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SuccessResponse{Success: true})
}

// Shutdown handles POST /api/v1/shutdown. ?force=true skips the graceful drain.
func (h *Handlers) Shutdown(w http.ResponseWriter, r *http.Request) {
	graceful := r.URL.Query().Get("force") != "true"
	if err := h.ctl.Shutdown(graceful); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SuccessResponse{Success: true})
}

// parseLogParams extracts log filter parameters from request
func parseLogParams(r *http.Request) (domain.LogFilter, int) {
	q := r.URL.Query()
	filter := domain.LogFilter{
		Pattern:   q.Get("pattern"),
		IsRegex:   q.Get("regex") == "true",
		ErrorOnly: q.Get("errors") == "true",
	}
	if processes := q.Get("process"); processes != "" {
		filter.Processes = strings.Split(processes, ",")
	}

	// Lines limit (default 100, max 10000 to prevent DoS)
	limit := constants.DefaultLogLimit
	if l, err := strconv.Atoi(q.Get("lines")); err == nil && l > 0 {
		limit = min(l, constants.MaxLogLines)
	}

	return filter, limit
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "an internal error occurred"

	switch {
	case errors.Is(err, domain.ErrWorkerNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, domain.ErrWorkerNotRunning):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, domain.ErrInvalidPattern):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrShutdownInProgress):
		status = http.StatusServiceUnavailable
		message = err.Error()
	default:
		// Sanitized so internal paths do not leak
		h.logger.Error("api internal error", "error", err)
	}

	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  domain.ErrorCode(err),
	})
}
