// Package httpapi is the HTTP demo front-end: a thin net/http wrapper
// around a *brrr.Brrr exposing schedule/read over two routes. Grounded on
// original_source's brrr_demo.py aiohttp routes (get_task_result,
// schedule_task) — out of scope for core correctness, carried only as
// the ambient outer surface the reference ships via its server command.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cohelm/brrr"
	"github.com/cohelm/brrr/runtime"
)

// Logger is the narrow logging surface Handler needs. A nil Logger
// disables logging.
type Logger interface {
	Warnw(msg string, keysAndValues ...any)
}

// scheduleRequest is the JSON body a POST /{task} request carries,
// mirroring brrr_demo.py's query-string kwargs made explicit as a body:
// {"args": [...], "kwargs": {...}}.
type scheduleRequest struct {
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

// Handler serves the two demo routes over a *brrr.Brrr instance. It
// implements http.Handler directly, so it can be mounted under a prefix
// or wrapped by middleware the way any other http.Handler can.
type Handler struct {
	brrr   *brrr.Brrr
	logger Logger
}

// New returns a Handler serving GET/POST /{task} against b. A task name
// not registered against b is rejected with 404 before Read/Schedule is
// attempted, mirroring brrr_demo.py's "task_name not in brrr.tasks" guard.
func New(b *brrr.Brrr) *Handler {
	return &Handler{brrr: b}
}

// WithLogger sets h's logger and returns h for chaining.
func (h *Handler) WithLogger(logger Logger) *Handler {
	h.logger = logger
	return h
}

// ServeHTTP dispatches GET and POST against /{task}. An empty or
// unregistered task name returns 404; any other method returns 405 with
// an Allow header.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	taskName := taskNameFromPath(r.URL.Path)
	if taskName == "" {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no such task"})
		return
	}
	if !h.brrr.HasTask(taskName) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no such task"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleRead(w, r, taskName)
	case http.MethodPost:
		h.handleSchedule(w, r, taskName)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

// handleRead serves GET /{task}?k=v..., building a kwargs map from the
// query string the way brrr_demo.py's dict(request.query) does.
func (h *Handler) handleRead(w http.ResponseWriter, r *http.Request, taskName string) {
	kwargs := kwargsFromQuery(r.URL.Query())

	var result any
	err := h.brrr.Read(r.Context(), taskName, kwargs, &result)
	if err != nil {
		if errors.Is(err, runtime.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "no result"})
			return
		}
		h.warn("read failed", "task_name", taskName, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "result": result})
}

// handleSchedule serves POST /{task} with a JSON body of
// {"args": [...], "kwargs": {...}}.
func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request, taskName string) {
	defer r.Body.Close()

	var body scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	args := any(body.Kwargs)
	if len(body.Args) > 0 {
		args = body.Args
	}

	if _, err := h.brrr.Schedule(r.Context(), taskName, args); err != nil {
		h.warn("schedule failed", "task_name", taskName, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func (h *Handler) warn(msg string, keysAndValues ...any) {
	if h.logger != nil {
		h.logger.Warnw(msg, keysAndValues...)
	}
}

// taskNameFromPath extracts the path segment after the leading slash,
// e.g. "/fib" -> "fib". A path with additional segments ("/fib/extra")
// or no segment at all yields "".
func taskNameFromPath(path string) string {
	if len(path) == 0 || path[0] != '/' {
		return ""
	}
	rest := path[1:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return ""
		}
	}
	return rest
}

// kwargsFromQuery flattens url.Values into a plain map[string]string the
// way brrr_demo.py's dict(request.query) discards aiohttp's multidict
// structure down to "last value wins" for repeated keys.
func kwargsFromQuery(values map[string][]string) map[string]string {
	kwargs := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			kwargs[k] = v[len(v)-1]
		}
	}
	return kwargs
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
