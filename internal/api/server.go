// Package api is the thin HTTP layer over the dependency graph and the
// broadcast hub.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/affanhamid/editor/taskhub/internal/broadcast"
	"github.com/affanhamid/editor/taskhub/internal/depgraph"
	"github.com/affanhamid/editor/taskhub/internal/wsconn"
)

// UserHeader carries the authenticated user id, set by the upstream auth layer.
const UserHeader = "X-User-ID"

// TaskStore is the datastore the handlers need besides the graph.
type TaskStore interface {
	depgraph.Directory
	DeleteTask(ctx context.Context, actor depgraph.UserID, id depgraph.TaskID) (depgraph.Task, error)
	RecordActivity(ctx context.Context, actor depgraph.UserID, action, entityType string, entityID int64) error
	Ping(ctx context.Context) error
}

// Server wires the request handlers.
type Server struct {
	graph    *depgraph.Service
	tasks    TaskStore
	hub      *broadcast.Hub
	ws       wsconn.Config
	mcp      http.Handler
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// Config collects the Server's collaborators. MCP may be nil.
type Config struct {
	Graph  *depgraph.Service
	Tasks  TaskStore
	Hub    *broadcast.Hub
	WS     wsconn.Config
	MCP    http.Handler
	Logger *slog.Logger
}

// NewServer creates a Server.
func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		graph: cfg.Graph,
		tasks: cfg.Tasks,
		hub:   cfg.Hub,
		ws:    cfg.WS,
		mcp:   cfg.MCP,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy belongs to the fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the routed handler with access logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.accessLog)

	for _, p := range []string{"/api/v1/tasks/{task_id:[0-9]+}/dependencies/", "/api/v1/tasks/{task_id:[0-9]+}/dependencies"} {
		r.Methods(http.MethodPost).Path(p).HandlerFunc(s.addDependency)
		r.Methods(http.MethodGet).Path(p).HandlerFunc(s.getDependencies)
	}
	r.Methods(http.MethodDelete).Path("/api/v1/tasks/{task_id:[0-9]+}/dependencies/{depends_on_id:[0-9]+}").HandlerFunc(s.removeDependency)
	r.Methods(http.MethodDelete).Path("/api/v1/tasks/{task_id:[0-9]+}").HandlerFunc(s.deleteTask)
	r.Methods(http.MethodGet).Path("/api/v1/ws/{room}").HandlerFunc(s.websocket)
	r.Methods(http.MethodGet).Path("/health").HandlerFunc(s.health)
	if s.mcp != nil {
		r.PathPrefix("/mcp").Handler(s.mcp)
	}
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.log.Info("handled", "method", r.Method, "url", r.URL.Path, "duration", m.Duration, "status", m.Code)
	})
}

// actor returns the calling user, or false if the request carries none.
func actor(r *http.Request) (depgraph.UserID, bool) {
	raw := r.Header.Get(UserHeader)
	if raw == "" {
		raw = r.URL.Query().Get("user_id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return depgraph.UserID(id), true
}

func pathID(r *http.Request, name string) (depgraph.TaskID, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, false
	}
	return depgraph.TaskID(id), true
}
