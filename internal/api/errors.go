package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/affanhamid/editor/taskhub/internal/depgraph"
)

type errorBody struct {
	Detail string `json:"detail"`
}

// details are the reasons returned to REST clients.
var details = []struct {
	err    error
	detail string
}{
	{depgraph.ErrSelfDependency, "A task cannot depend on itself"},
	{depgraph.ErrDuplicateDependency, "Dependency already exists"},
	{depgraph.ErrCircularDependency, "This would create a circular dependency"},
	{depgraph.ErrDependencyNotFound, "Dependency not found"},
	{depgraph.ErrTaskNotFound, "Task not found"},
	{depgraph.ErrAccessDenied, "Not a member of this project"},
}

func detailFor(err error) string {
	for _, d := range details {
		if errors.Is(err, d.err) {
			return d.detail
		}
	}
	return depgraph.Reason(err)
}

// statusFor maps dependency errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, depgraph.ErrTaskNotFound), errors.Is(err, depgraph.ErrDependencyNotFound):
		return http.StatusNotFound
	case errors.Is(err, depgraph.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, depgraph.ErrSelfDependency),
		errors.Is(err, depgraph.ErrDuplicateDependency),
		errors.Is(err, depgraph.ErrCircularDependency):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := detailFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "url", r.URL.Path, "err", err)
		detail = "internal server error"
	} else {
		s.log.Debug("request rejected", "method", r.Method, "url", r.URL.Path, "status", status, "reason", detail)
	}
	writeJSON(w, status, errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}
