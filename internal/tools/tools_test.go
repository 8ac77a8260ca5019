package tools_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/affanhamid/editor/taskhub/internal/depgraph"
	"github.com/affanhamid/editor/taskhub/internal/mcpserver"
	"github.com/affanhamid/editor/taskhub/internal/tools"
)

type directory struct {
	known map[depgraph.TaskID]bool
}

func (d *directory) Resolve(_ context.Context, _ depgraph.UserID, id depgraph.TaskID) (depgraph.Task, error) {
	if !d.known[id] {
		return depgraph.Task{}, depgraph.ErrTaskNotFound
	}
	return depgraph.Task{ID: id, ProjectID: 1}, nil
}

func setup(t *testing.T) (*server.MCPServer, *depgraph.Service) {
	t.Helper()
	dir := &directory{known: map[depgraph.TaskID]bool{1: true, 2: true, 3: true}}
	graph := depgraph.NewService(dir)
	s := mcpserver.New(&tools.Config{UserID: 7, Graph: graph, Tasks: dir})
	return s, graph
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	if tool == nil {
		t.Fatalf("tool %q not registered", name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	return result
}

func getTextContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func TestAllToolsRegistered(t *testing.T) {
	s, _ := setup(t)
	registered := s.ListTools()
	for _, name := range []string{"add_dependency", "remove_dependency", "get_dependencies", "get_task_order"} {
		require.Contains(t, registered, name)
	}
}

func TestAddAndQueryDependencies(t *testing.T) {
	s, graph := setup(t)

	res := callTool(t, s, "add_dependency", map[string]any{"task_id": float64(2), "depends_on_id": float64(1)})
	require.False(t, res.IsError, getTextContent(t, res))
	res = callTool(t, s, "add_dependency", map[string]any{"task_id": float64(3), "depends_on_id": float64(2)})
	require.False(t, res.IsError)
	require.Equal(t, 2, graph.Len())

	res = callTool(t, s, "get_dependencies", map[string]any{"task_id": float64(2)})
	require.False(t, res.IsError)
	var got struct {
		Dependencies []int64 `json:"dependencies"`
		Blocking     []int64 `json:"blocking"`
	}
	require.NoError(t, json.Unmarshal([]byte(getTextContent(t, res)), &got))
	require.Equal(t, []int64{1}, got.Dependencies)
	require.Equal(t, []int64{3}, got.Blocking)

	res = callTool(t, s, "get_task_order", nil)
	require.False(t, res.IsError)
	require.JSONEq(t, `[1,2,3]`, getTextContent(t, res))
}

func TestToolErrors(t *testing.T) {
	s, _ := setup(t)
	callTool(t, s, "add_dependency", map[string]any{"task_id": float64(2), "depends_on_id": float64(1)})

	res := callTool(t, s, "add_dependency", map[string]any{"task_id": float64(1), "depends_on_id": float64(2)})
	require.True(t, res.IsError)
	require.Equal(t, "this would create a circular dependency", getTextContent(t, res))

	res = callTool(t, s, "add_dependency", map[string]any{"task_id": float64(2)})
	require.True(t, res.IsError)
	require.Equal(t, "depends_on_id is required", getTextContent(t, res))

	res = callTool(t, s, "remove_dependency", map[string]any{"task_id": float64(3), "depends_on_id": float64(1)})
	require.True(t, res.IsError)
	require.Equal(t, "dependency not found", getTextContent(t, res))

	res = callTool(t, s, "get_dependencies", map[string]any{"task_id": float64(99)})
	require.True(t, res.IsError)
	require.Equal(t, "task not found", getTextContent(t, res))

	res = callTool(t, s, "remove_dependency", map[string]any{"task_id": float64(2), "depends_on_id": float64(1)})
	require.False(t, res.IsError)
}
