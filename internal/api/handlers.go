package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/affanhamid/editor/taskhub/internal/broadcast"
	"github.com/affanhamid/editor/taskhub/internal/depgraph"
	"github.com/affanhamid/editor/taskhub/internal/wsconn"
)

type messageBody struct {
	Message string `json:"message"`
}

type dependenciesBody struct {
	Dependencies []depgraph.TaskID `json:"dependencies"`
	Blocking     []depgraph.TaskID `json:"blocking"`
}

type addDependencyRequest struct {
	DependsOnID *int64 `json:"depends_on_id"`
}

var roomPattern = regexp.MustCompile(`^(project|workspace|user)_([0-9]+)$`)

func (s *Server) addDependency(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	taskID, ok := pathID(r, "task_id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid task_id")
		return
	}
	dependsOn, err := dependsOnParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.graph.AddDependency(r.Context(), user, taskID, dependsOn); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageBody{Message: "Dependency added successfully"})
}

// dependsOnParam reads depends_on_id from the query string, falling back to a
// JSON body.
func dependsOnParam(r *http.Request) (depgraph.TaskID, error) {
	if raw := r.URL.Query().Get("depends_on_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, errors.New("invalid depends_on_id")
		}
		return depgraph.TaskID(id), nil
	}
	var req addDependencyRequest
	if r.Body == nil {
		return 0, errors.New("depends_on_id is required")
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DependsOnID == nil {
		return 0, errors.New("depends_on_id is required")
	}
	return depgraph.TaskID(*req.DependsOnID), nil
}

func (s *Server) removeDependency(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	taskID, ok1 := pathID(r, "task_id")
	dependsOn, ok2 := pathID(r, "depends_on_id")
	if !ok1 || !ok2 {
		writeDetail(w, http.StatusBadRequest, "invalid task id")
		return
	}
	if err := s.graph.RemoveDependency(r.Context(), user, taskID, dependsOn); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Dependency removed successfully"})
}

func (s *Server) getDependencies(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	taskID, ok := pathID(r, "task_id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid task_id")
		return
	}
	if _, err := s.tasks.Resolve(r.Context(), user, taskID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dependenciesBody{
		Dependencies: nonNil(s.graph.GetDependencies(taskID)),
		Blocking:     nonNil(s.graph.GetBlocking(taskID)),
	})
}

func nonNil(ids []depgraph.TaskID) []depgraph.TaskID {
	if ids == nil {
		return []depgraph.TaskID{}
	}
	return ids
}

// deleteTask removes the task row, then drops its edges from the graph so
// later cycle checks never see them.
func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	taskID, ok := pathID(r, "task_id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid task_id")
		return
	}
	task, err := s.tasks.DeleteTask(r.Context(), user, taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.graph.RemoveAllEdgesForTask(r.Context(), user, task.ID)
	if err := s.tasks.RecordActivity(r.Context(), user, "deleted_task", "task", int64(task.ID)); err != nil {
		s.log.Warn("record activity failed", "task", task.ID, "err", err)
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Task deleted successfully"})
}

func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	m := roomPattern.FindStringSubmatch(mux.Vars(r)["room"])
	if m == nil {
		writeDetail(w, http.StatusBadRequest, "invalid room")
		return
	}
	if m[1] == "user" && m[2] != strconv.FormatInt(int64(user), 10) {
		writeDetail(w, http.StatusForbidden, "Cannot subscribe to another user's room")
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.log.Debug("websocket upgrade failed", "err", err)
		return
	}
	conn := wsconn.New(ws)
	if err := wsconn.Serve(r.Context(), s.hub, conn, broadcast.RoomKey(m[0]), s.ws); err != nil {
		s.log.Warn("websocket closed with error", "conn", conn.ID(), "err", err)
	}
}

type healthBody struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	now := time.Now().UTC().Format(time.RFC3339)
	if err := s.tasks.Ping(ctx); err != nil {
		s.log.Warn("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, healthBody{
			Status:    "unhealthy",
			Database:  "disconnected: " + strings.TrimSpace(err.Error()),
			Timestamp: now,
		})
		return
	}
	writeJSON(w, http.StatusOK, healthBody{Status: "healthy", Database: "connected", Timestamp: now})
}
