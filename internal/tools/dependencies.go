package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/affanhamid/editor/taskhub/internal/depgraph"
)

func registerDependencyTools(s *server.MCPServer, cfg *Config) {
	addDependency := mcp.NewTool("add_dependency",
		mcp.WithDescription("Record that a task cannot start until another task is done. Rejected if it would create a cycle."),
		mcp.WithNumber("task_id",
			mcp.Description("The blocked task"),
			mcp.Required(),
		),
		mcp.WithNumber("depends_on_id",
			mcp.Description("The task it waits for"),
			mcp.Required(),
		),
	)

	removeDependency := mcp.NewTool("remove_dependency",
		mcp.WithDescription("Remove a dependency between two tasks."),
		mcp.WithNumber("task_id",
			mcp.Description("The blocked task"),
			mcp.Required(),
		),
		mcp.WithNumber("depends_on_id",
			mcp.Description("The task it waits for"),
			mcp.Required(),
		),
	)

	getDependencies := mcp.NewTool("get_dependencies",
		mcp.WithDescription("List the tasks a task depends on and the tasks it blocks."),
		mcp.WithNumber("task_id",
			mcp.Description("The task ID"),
			mcp.Required(),
		),
	)

	taskOrder := mcp.NewTool("get_task_order",
		mcp.WithDescription("Return every task that takes part in a dependency in an order where each task comes after everything it depends on."),
	)

	s.AddTool(addDependency, makeAddDependencyHandler(cfg))
	s.AddTool(removeDependency, makeRemoveDependencyHandler(cfg))
	s.AddTool(getDependencies, makeGetDependenciesHandler(cfg))
	s.AddTool(taskOrder, makeTaskOrderHandler(cfg))
}

func edgeArgs(request mcp.CallToolRequest) (depgraph.TaskID, depgraph.TaskID, error) {
	taskID := int64(request.GetFloat("task_id", 0))
	if taskID == 0 {
		return 0, 0, fmt.Errorf("task_id is required")
	}
	dependsOn := int64(request.GetFloat("depends_on_id", 0))
	if dependsOn == 0 {
		return 0, 0, fmt.Errorf("depends_on_id is required")
	}
	return depgraph.TaskID(taskID), depgraph.TaskID(dependsOn), nil
}

func makeAddDependencyHandler(cfg *Config) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, dependsOn, err := edgeArgs(request)
		if err != nil {
			return errorResult(err), nil
		}
		if err := cfg.Graph.AddDependency(ctx, cfg.UserID, taskID, dependsOn); err != nil {
			return errorResult(err), nil
		}
		return textResult(fmt.Sprintf("Task %d now depends on task %d", taskID, dependsOn)), nil
	}
}

func makeRemoveDependencyHandler(cfg *Config) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, dependsOn, err := edgeArgs(request)
		if err != nil {
			return errorResult(err), nil
		}
		if err := cfg.Graph.RemoveDependency(ctx, cfg.UserID, taskID, dependsOn); err != nil {
			return errorResult(err), nil
		}
		return textResult(fmt.Sprintf("Task %d no longer depends on task %d", taskID, dependsOn)), nil
	}
}

func makeGetDependenciesHandler(cfg *Config) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := depgraph.TaskID(request.GetFloat("task_id", 0))
		if taskID == 0 {
			return errorResult(fmt.Errorf("task_id is required")), nil
		}
		if _, err := cfg.Tasks.Resolve(ctx, cfg.UserID, taskID); err != nil {
			return errorResult(err), nil
		}
		deps := cfg.Graph.GetDependencies(taskID)
		blocking := cfg.Graph.GetBlocking(taskID)
		if deps == nil {
			deps = []depgraph.TaskID{}
		}
		if blocking == nil {
			blocking = []depgraph.TaskID{}
		}
		return textResult(toJSON(map[string]any{
			"dependencies": deps,
			"blocking":     blocking,
		})), nil
	}
}

func makeTaskOrderHandler(cfg *Config) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		order, err := cfg.Graph.TopologicalOrder()
		if err != nil {
			return errorResult(err), nil
		}
		return textResult(toJSON(order)), nil
	}
}
