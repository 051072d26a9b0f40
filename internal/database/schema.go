package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"agora/internal/config"
	"agora/internal/middleware"

	"gorm.io/gorm"
)

const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// schemaPlan is what ApplySchema does for one configuration.
type schemaPlan struct {
	Mode string
	// SQL runs the embedded migrations.
	SQL bool
	// Auto runs GORM AutoMigrate over PersistentModels.
	Auto bool
}

// SchemaStatus describes the schema plan and the current database state.
type SchemaStatus struct {
	Mode               string
	Driver             string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
	// Tables reports which content tables exist.
	Tables map[string]bool
}

func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{Mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	switch plan.Mode {
	case SchemaModeSQL, SchemaModeAuto, SchemaModeHybrid:
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}

	// The embedded SQL is PostgreSQL; SQLite always builds from the models.
	if Driver(cfg) == DriverSQLite {
		plan.Auto = true
		return plan, nil
	}

	env := strings.ToLower(strings.TrimSpace(cfg.Env))
	deployed := env == "production" || env == "prod" || env == "staging" || env == "stage"

	switch plan.Mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeAuto:
		if deployed && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.Auto = true
	case SchemaModeHybrid:
		plan.SQL = true
		plan.Auto = !deployed
	}
	return plan, nil
}

// ApplySchema brings the schema up to date following DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if plan.Auto {
		middleware.Logger.Info("running GORM AutoMigrate",
			slog.String("mode", plan.Mode),
			slog.String("driver", Driver(cfg)),
			slog.String("env", cfg.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports the plan, migration state and table presence
// without changing anything.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.Mode,
		Driver:             Driver(cfg),
		Environment:        cfg.Env,
		WillRunSQL:         plan.SQL,
		WillRunAutoMigrate: plan.Auto,
		Tables:             make(map[string]bool),
	}

	migrator := db.WithContext(ctx).Migrator()
	for _, model := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse model: %w", err)
		}
		status.Tables[stmt.Schema.Table] = migrator.HasTable(model)
	}

	if !plan.SQL {
		return status, nil
	}

	applied, err := AppliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = appliedVersions(applied)
	if status.PendingMigrations, err = PendingMigrations(ctx, db); err != nil {
		return nil, err
	}
	return status, nil
}
