package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"bluecarbon-mrv/backend/internal/repository"
	"bluecarbon-mrv/backend/internal/services"
)

// HandleGetSubmission returns the durable submission record with its status
// and pipeline outputs
// (GET /api/v1/mrv/submissions/:id)
func (s *Server) HandleGetSubmission(c echo.Context) error {
	ctx := c.Request().Context()

	sub, err := s.Submissions.Load(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Submission not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sub)
}

// HandleProcessSubmission triggers the MRV pipeline synchronously for a
// submission. Semantically identical to the background run after upload.
// (POST /api/v1/mrv/process/:id)
func (s *Server) HandleProcessSubmission(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	result, err := s.Pipeline.RunPipeline(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Submission not found")
		case errors.Is(err, services.ErrAlreadyProcessed):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, result)
}
