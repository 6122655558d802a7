package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bluecarbon-mrv/backend/pkg/models"
)

// PostgresProjectStore is a PostgreSQL implementation of ProjectStore.
type PostgresProjectStore struct {
	db *pgxpool.Pool
}

// NewPostgresProjectStore creates a new PostgresProjectStore.
func NewPostgresProjectStore(db *pgxpool.Pool) *PostgresProjectStore {
	return &PostgresProjectStore{db: db}
}

// CreateProject inserts a new project.
func (s *PostgresProjectStore) CreateProject(ctx context.Context, project *models.Project) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO projects (id, name, latitude, longitude, region, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		project.ID, project.Name, project.Latitude, project.Longitude,
		project.Region, project.Description, project.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by its ID.
func (s *PostgresProjectStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := s.db.QueryRow(ctx,
		`SELECT id, name, latitude, longitude, region, description, created_at, updated_at
		 FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude, &p.Region, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	return &p, nil
}

// ListProjects returns all projects, newest first.
func (s *PostgresProjectStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, latitude, longitude, region, description, created_at, updated_at
		 FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude, &p.Region, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}
