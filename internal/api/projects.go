package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"bluecarbon-mrv/backend/internal/repository"
	"bluecarbon-mrv/backend/pkg/models"
)

// CreateProjectRequest is the payload for registering a restoration site.
type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Region      string  `json:"region"`
	Description *string `json:"description,omitempty"`
}

// HandleCreateProject registers a new restoration project.
// (POST /api/v1/projects)
func (s *Server) HandleCreateProject(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if req.Latitude < -90 || req.Latitude > 90 {
		return echo.NewHTTPError(http.StatusBadRequest, "latitude must be between -90 and 90")
	}
	if req.Longitude < -180 || req.Longitude > 180 {
		return echo.NewHTTPError(http.StatusBadRequest, "longitude must be between -180 and 180")
	}

	project := &models.Project{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Region:      req.Region,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Projects.CreateProject(ctx, project); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create project: "+err.Error())
	}

	s.Logger.Info("project created", "project_id", project.ID, "name", project.Name)
	return c.JSON(http.StatusCreated, project)
}

// HandleListProjects returns all registered projects.
// (GET /api/v1/projects)
func (s *Server) HandleListProjects(c echo.Context) error {
	projects, err := s.Projects.ListProjects(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, projects)
}

// HandleGetProject returns a single project with its submissions.
// (GET /api/v1/projects/:id)
func (s *Server) HandleGetProject(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	project, err := s.Projects.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Project not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	submissions, err := s.Submissions.ListByProject(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"project":     project,
		"submissions": submissions,
	})
}
