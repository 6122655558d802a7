package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bluecarbon-mrv/backend/pkg/models"
)

// PostgresSubmissionStore is a PostgreSQL implementation of SubmissionStore
// and TemporalHistoryStore.
type PostgresSubmissionStore struct {
	db *pgxpool.Pool
}

// NewPostgresSubmissionStore creates a new PostgresSubmissionStore.
func NewPostgresSubmissionStore(db *pgxpool.Pool) *PostgresSubmissionStore {
	return &PostgresSubmissionStore{db: db}
}

const submissionColumns = `id, project_id, image_key, captured_at, metadata, status,
	mangrove_score, temporal_score, biomass_estimate, biomass_lower_bound, biomass_upper_bound,
	carbon_estimate, co2_equivalent, confidence_interval, model_version, error_message,
	created_at, processed_at`

// Create inserts a new submission in uploaded state.
func (s *PostgresSubmissionStore) Create(ctx context.Context, sub *models.Submission) error {
	metadataJSON, err := encodeJSONMap(sub.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO submissions (id, project_id, image_key, captured_at, metadata, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.ProjectID, sub.ImageKey, sub.CapturedAt, metadataJSON, sub.Status, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// Load retrieves a submission by its ID.
func (s *PostgresSubmissionStore) Load(ctx context.Context, id string) (*models.Submission, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load submission: %w", err)
	}
	return sub, nil
}

// Save applies a partial update in a single UPDATE statement, so concurrent
// readers never observe an interleaved half-written state.
func (s *PostgresSubmissionStore) Save(ctx context.Context, id string, update models.SubmissionUpdate) error {
	var (
		sets []string
		args []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.MangroveScore != nil {
		add("mangrove_score", *update.MangroveScore)
	}
	if update.TemporalScore != nil {
		add("temporal_score", *update.TemporalScore)
	}
	if update.BiomassEstimate != nil {
		add("biomass_estimate", *update.BiomassEstimate)
	}
	if update.BiomassLowerBound != nil {
		add("biomass_lower_bound", *update.BiomassLowerBound)
	}
	if update.BiomassUpperBound != nil {
		add("biomass_upper_bound", *update.BiomassUpperBound)
	}
	if update.CarbonEstimate != nil {
		add("carbon_estimate", *update.CarbonEstimate)
	}
	if update.CO2Equivalent != nil {
		add("co2_equivalent", *update.CO2Equivalent)
	}
	if update.ConfidenceInterval != nil {
		add("confidence_interval", *update.ConfidenceInterval)
	}
	if update.ModelVersion != nil {
		add("model_version", *update.ModelVersion)
	}
	if update.ErrorMessage != nil {
		add("error_message", *update.ErrorMessage)
	}
	if update.ProcessedAt != nil {
		add("processed_at", *update.ProcessedAt)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE submissions SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return nil
}

// TransitionStatus performs a compare-and-set status change. A run that lost
// the race gets ErrStatusConflict instead of silently overwriting the winner.
func (s *PostgresSubmissionStore) TransitionStatus(ctx context.Context, id string, from, to models.SubmissionStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE submissions SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("transition status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	current, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: expected %s, have %s", ErrStatusConflict, from, current.Status)
}

// FindLatestVerified returns the most recent verified submission of the
// project by capture timestamp, excluding the given submission ID.
func (s *PostgresSubmissionStore) FindLatestVerified(ctx context.Context, projectID, excludeID string) (*models.Submission, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE project_id = $1 AND status = $2 AND id <> $3
		 ORDER BY captured_at DESC LIMIT 1`,
		projectID, models.StatusVerified, excludeID,
	)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project %s has no prior verified submission: %w", projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("find latest verified: %w", err)
	}
	return sub, nil
}

// ListByProject returns the project's submissions, newest first.
func (s *PostgresSubmissionStore) ListByProject(ctx context.Context, projectID string) ([]*models.Submission, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE project_id = $1 ORDER BY captured_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// RecordTemporalHistory appends an immutable comparison record.
func (s *PostgresSubmissionStore) RecordTemporalHistory(ctx context.Context, entry *models.TemporalHistory) error {
	metricsJSON, err := json.Marshal(entry.ChangeMetrics)
	if err != nil {
		return fmt.Errorf("encode change metrics: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO temporal_history
		 (id, project_id, previous_submission_id, current_submission_id, growth_detected, growth_score, change_metrics, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.ProjectID, entry.PreviousSubmissionID, entry.CurrentSubmissionID,
		entry.GrowthDetected, entry.GrowthScore, metricsJSON, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert temporal history: %w", err)
	}
	return nil
}

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var (
		sub          models.Submission
		metadataJSON []byte
	)
	err := row.Scan(
		&sub.ID, &sub.ProjectID, &sub.ImageKey, &sub.CapturedAt, &metadataJSON, &sub.Status,
		&sub.MangroveScore, &sub.TemporalScore, &sub.BiomassEstimate, &sub.BiomassLowerBound,
		&sub.BiomassUpperBound, &sub.CarbonEstimate, &sub.CO2Equivalent, &sub.ConfidenceInterval,
		&sub.ModelVersion, &sub.ErrorMessage, &sub.CreatedAt, &sub.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &sub.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &sub, nil
}

func encodeJSONMap(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
