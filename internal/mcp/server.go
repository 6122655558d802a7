package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"bluecarbon-mrv/backend/internal/repository"
	"bluecarbon-mrv/backend/internal/services"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server exposes the MRV service layer as MCP tools so agent clients can
// inspect and drive the verification pipeline.
type Server struct {
	mcpServer   *server.MCPServer
	pipeline    *services.Pipeline
	submissions repository.SubmissionStore
	projects    repository.ProjectStore
}

func NewServer(pipeline *services.Pipeline, submissions repository.SubmissionStore, projects repository.ProjectStore) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Blue Carbon MRV",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		pipeline:    pipeline,
		submissions: submissions,
		projects:    projects,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_submission_status",
			mcp.WithDescription("Get the status and pipeline outputs of a field submission"),
			mcp.WithString("submission_id", mcp.Required(), mcp.Description("The ID of the submission")),
		),
		s.handleGetSubmissionStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"run_mrv_pipeline",
			mcp.WithDescription("Run the MRV verification pipeline for an uploaded submission"),
			mcp.WithString("submission_id", mcp.Required(), mcp.Description("The ID of the submission to process")),
		),
		s.handleRunPipeline,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_projects",
			mcp.WithDescription("List registered restoration projects"),
		),
		s.handleListProjects,
	)
}

func (s *Server) handleGetSubmissionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id, ok := args["submission_id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("Missing required parameter: submission_id"), nil
	}

	sub, err := s.submissions.Load(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Submission %s not found", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load submission: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(sub)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleRunPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id, ok := args["submission_id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("Missing required parameter: submission_id"), nil
	}

	result, err := s.pipeline.RunPipeline(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return mcp.NewToolResultError(fmt.Sprintf("Submission %s not found", id)), nil
		case errors.Is(err, services.ErrAlreadyProcessed):
			return mcp.NewToolResultError(fmt.Sprintf("Submission %s is already processed or in flight", id)), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("Pipeline failed: %v", err)), nil
		}
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list projects: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(projects)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
