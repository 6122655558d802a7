package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"bluecarbon-mrv/backend/internal/repository"
	"bluecarbon-mrv/backend/pkg/models"
)

// UploadResponse is returned after a successful image upload.
type UploadResponse struct {
	SubmissionID string `json:"submission_id"`
	ImageKey     string `json:"image_key"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

// HandleUpload receives a field image, stores it, creates the submission in
// uploaded state, and schedules a background pipeline run.
// (POST /api/v1/upload)
func (s *Server) HandleUpload(c echo.Context) error {
	ctx := c.Request().Context()

	projectID := c.QueryParam("project_id")
	if projectID == "" {
		projectID = c.FormValue("project_id")
	}
	if projectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id is required")
	}
	if _, err := s.Projects.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Project not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if s.MaxUploadBytes > 0 && file.Size > s.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file too large, maximum size is %d bytes", s.MaxUploadBytes))
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read upload: "+err.Error())
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	submissionID := uuid.New().String()
	imageKey := submissionID + ext

	if err := s.Images.Upload(ctx, imageKey, src, file.Size, contentType); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store image: "+err.Error())
	}

	capturedAt := time.Now().UTC()
	if raw := c.FormValue("captured_at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "captured_at must be RFC 3339")
		}
		capturedAt = parsed.UTC()
	}

	metadata := map[string]interface{}{
		"original_filename": file.Filename,
		"file_size":         file.Size,
		"content_type":      contentType,
	}
	if raw := c.FormValue("area_hectares"); raw != "" {
		area, err := strconv.ParseFloat(raw, 64)
		if err != nil || area <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "area_hectares must be a positive number")
		}
		metadata["area_hectares"] = area
	}

	sub := &models.Submission{
		ID:         submissionID,
		ProjectID:  projectID,
		ImageKey:   imageKey,
		CapturedAt: capturedAt,
		Metadata:   metadata,
		Status:     models.StatusUploaded,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Submissions.Create(ctx, sub); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create submission: "+err.Error())
	}

	if err := s.Dispatcher.Enqueue(submissionID); err != nil {
		// the submission stays in uploaded state and can be triggered
		// manually through /mrv/process
		s.Logger.Warn("failed to schedule pipeline run", "submission_id", submissionID, "error", err)
		return c.JSON(http.StatusAccepted, UploadResponse{
			SubmissionID: submissionID,
			ImageKey:     imageKey,
			Status:       string(models.StatusUploaded),
			Message:      "Image uploaded, processing not scheduled; trigger manually.",
		})
	}

	s.Logger.Info("image uploaded, pipeline scheduled", "submission_id", submissionID)
	return c.JSON(http.StatusAccepted, UploadResponse{
		SubmissionID: submissionID,
		ImageKey:     imageKey,
		Status:       string(models.StatusUploaded),
		Message:      "Image uploaded successfully. Processing started.",
	})
}
