package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bluecarbon-mrv/backend/pkg/models"
)

// PostgresModelRegistry is a PostgreSQL implementation of ModelRegistry.
type PostgresModelRegistry struct {
	db *pgxpool.Pool
}

// NewPostgresModelRegistry creates a new PostgresModelRegistry.
func NewPostgresModelRegistry(db *pgxpool.Pool) *PostgresModelRegistry {
	return &PostgresModelRegistry{db: db}
}

// Register records a deployed model version.
func (s *PostgresModelRegistry) Register(ctx context.Context, entry *models.ModelRegistryEntry) error {
	metadataJSON, err := encodeJSONMap(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO model_registry (id, model_name, version, content_hash, deployed_at, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.ModelName, entry.Version, entry.ContentHash, entry.DeployedAt, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("insert model registry entry: %w", err)
	}
	return nil
}

// LatestVersion returns the most recently deployed entry for a model name.
func (s *PostgresModelRegistry) LatestVersion(ctx context.Context, modelName string) (*models.ModelRegistryEntry, error) {
	var (
		entry        models.ModelRegistryEntry
		metadataJSON []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, model_name, version, content_hash, deployed_at, metadata
		 FROM model_registry WHERE model_name = $1
		 ORDER BY deployed_at DESC LIMIT 1`, modelName,
	).Scan(&entry.ID, &entry.ModelName, &entry.Version, &entry.ContentHash, &entry.DeployedAt, &metadataJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("model %s: %w", modelName, ErrNotFound)
		}
		return nil, fmt.Errorf("load model registry entry: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &entry, nil
}
