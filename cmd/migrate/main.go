package main

import (
	"context"
	"time"

	mongoMigration "slotswapper/internal/migrations/mongo"
	postgresMigration "slotswapper/internal/migrations/postgres"
	"slotswapper/pkg/config"
)

const JobName = "migrate"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetStorage()

	cfg.Log.Info("Starting migration job", "storage", cfg.StorageDriver)

	var err error
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		err = postgresMigration.RunMigration(ctx, cfg.Client.Postgres, cfg.Log)
	default:
		err = mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log)
	}
	cfg.Client.GracefulShutdown(cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}

	cfg.Log.Info("Migration completed successfully")
}
