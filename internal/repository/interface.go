package repository

import (
	"context"
	"errors"

	"bluecarbon-mrv/backend/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStatusConflict is returned when a conditional status transition loses:
// the submission was not in the expected prior state.
var ErrStatusConflict = errors.New("submission status conflict")

// SubmissionStore persists submissions and their pipeline outputs.
type SubmissionStore interface {
	// Create inserts a new submission in uploaded state.
	Create(ctx context.Context, sub *models.Submission) error
	// Load retrieves a submission by its ID.
	Load(ctx context.Context, id string) (*models.Submission, error)
	// Save applies a partial update atomically in a single statement.
	Save(ctx context.Context, id string, update models.SubmissionUpdate) error
	// TransitionStatus moves the submission from one status to another only
	// if it currently holds the expected status (compare-and-set).
	TransitionStatus(ctx context.Context, id string, from, to models.SubmissionStatus) error
	// FindLatestVerified returns the most recent verified submission of the
	// project by capture timestamp, excluding the given submission ID.
	// Returns ErrNotFound if the project has no prior verified submission.
	FindLatestVerified(ctx context.Context, projectID, excludeID string) (*models.Submission, error)
	// ListByProject returns the project's submissions, newest first.
	ListByProject(ctx context.Context, projectID string) ([]*models.Submission, error)
}

// TemporalHistoryStore records derived comparison results. Append-only.
type TemporalHistoryStore interface {
	RecordTemporalHistory(ctx context.Context, entry *models.TemporalHistory) error
}

// ModelRegistry reads and seeds deployed model versions. The pipeline never
// mutates entries, it only consults them for provenance.
type ModelRegistry interface {
	Register(ctx context.Context, entry *models.ModelRegistryEntry) error
	LatestVersion(ctx context.Context, modelName string) (*models.ModelRegistryEntry, error)
}

// ProjectStore persists restoration projects.
type ProjectStore interface {
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
}
