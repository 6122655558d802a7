package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"bluecarbon-mrv/backend/internal/config"
	"bluecarbon-mrv/backend/internal/logging"
	"bluecarbon-mrv/backend/internal/repository"
	"bluecarbon-mrv/backend/internal/services"
	"bluecarbon-mrv/backend/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	// Load config
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to DB
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	projectStore := repository.NewPostgresProjectStore(pool)
	modelRegistry := repository.NewPostgresModelRegistry(pool)

	// 1. Ensure demo project exists
	projectName := "Sundarbans Restoration Demo"
	existing, err := projectStore.ListProjects(ctx)
	if err != nil {
		log.Fatalf("Failed to list projects: %v", err)
	}
	haveDemo := false
	for _, p := range existing {
		if p.Name == projectName {
			logger.Info("Found existing demo project", "id", p.ID)
			haveDemo = true
			break
		}
	}
	if !haveDemo {
		logger.Info("Creating demo project", "name", projectName)
		desc := "Community-led mangrove replanting site used for demos and local testing."
		project := &models.Project{
			ID:          uuid.New().String(),
			Name:        projectName,
			Latitude:    21.9497,
			Longitude:   89.1833,
			Region:      "Sundarbans, Bay of Bengal",
			Description: &desc,
			CreatedAt:   time.Now().UTC(),
		}
		if err := projectStore.CreateProject(ctx, project); err != nil {
			log.Fatalf("Failed to create demo project: %v", err)
		}
		logger.Info("Seeded demo project", "id", project.ID)
	}

	// 2. Seed model registry entries for the deployed model versions
	seedModels := []struct {
		Name    string
		Version string
	}{
		{"mangrove_verifier", services.DefaultMangroveModelVersion},
		{"temporal_comparator", services.DefaultTemporalModelVersion},
		{"biomass_estimator", services.DefaultBiomassModelVersion},
	}

	for _, m := range seedModels {
		if entry, err := modelRegistry.LatestVersion(ctx, m.Name); err == nil {
			logger.Info("Skipping registered model", "name", m.Name, "version", entry.Version)
			continue
		}

		hash := sha256.Sum256([]byte(m.Name + "@" + m.Version))
		entry := &models.ModelRegistryEntry{
			ID:          uuid.New().String(),
			ModelName:   m.Name,
			Version:     m.Version,
			ContentHash: hex.EncodeToString(hash[:]),
			DeployedAt:  time.Now().UTC(),
			Metadata: map[string]interface{}{
				"seeded_by": "seed-script",
			},
		}
		if err := modelRegistry.Register(ctx, entry); err != nil {
			log.Printf("Failed to register model %s: %v", m.Name, err)
		} else {
			logger.Info("Seeded model", "name", m.Name, "version", m.Version)
		}
	}
	logger.Info("Seeding complete!")
}
