// Package api contains the HTTP handlers for the MRV backend REST API
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"bluecarbon-mrv/backend/internal/logging"
	"bluecarbon-mrv/backend/internal/repository"
	"bluecarbon-mrv/backend/internal/services"
	"bluecarbon-mrv/backend/internal/worker"
)

// ImageUploader stores an uploaded image under an object key.
type ImageUploader interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// Server holds the dependencies for the API server.
type Server struct {
	Submissions    repository.SubmissionStore
	Projects       repository.ProjectStore
	Pipeline       *services.Pipeline
	Dispatcher     *worker.Dispatcher
	Images         ImageUploader
	Logger         *logging.Logger
	MaxUploadBytes int64
	// Capabilities describes the wired predictor variants for the detailed
	// health report, e.g. "mangrove" -> "fallback:v1.0.3".
	Capabilities map[string]string
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "bluecarbon-mrv",
		Version:   "1.0.0",
	})
}

// HandleHealthDetailed reports which predictor variant backs each capability
func (s *Server) HandleHealthDetailed(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "bluecarbon-mrv",
		Version:   "1.0.0",
		Checks:    s.Capabilities,
	})
}

// RegisterRoutes mounts the API routes on the given group.
func (s *Server) RegisterRoutes(e *echo.Echo, g *echo.Group) {
	e.GET("/health", s.HandleHealth)
	e.GET("/health/detailed", s.HandleHealthDetailed)

	g.POST("/upload", s.HandleUpload)
	g.GET("/mrv/submissions/:id", s.HandleGetSubmission)
	g.POST("/mrv/process/:id", s.HandleProcessSubmission)
	g.POST("/projects", s.HandleCreateProject)
	g.GET("/projects", s.HandleListProjects)
	g.GET("/projects/:id", s.HandleGetProject)
}
