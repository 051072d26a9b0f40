package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"agora/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog is one applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	Checksum  string    `gorm:"size:64"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

const ensureMigrationLogsSQL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	checksum VARCHAR(64) NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// AppliedMigrations returns the migration log keyed by version. A missing
// log table means nothing has been applied yet.
func AppliedMigrations(ctx context.Context, db *gorm.DB) (map[int]MigrationLog, error) {
	applied := make(map[int]MigrationLog)
	if !db.Migrator().HasTable(&MigrationLog{}) {
		return applied, nil
	}
	var logs []MigrationLog
	if err := db.WithContext(ctx).Order("version").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("load migration log: %w", err)
	}
	for _, l := range logs {
		applied[l.Version] = l
	}
	return applied, nil
}

// appliedVersions lists the keys of applied in ascending order.
func appliedVersions(applied map[int]MigrationLog) []int {
	versions := make([]int, 0, len(applied))
	for v := range applied {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions
}

// checkApplied fails when the log names versions the binary does not know
// (a downgrade) or when an applied script was edited afterwards.
func checkApplied(applied map[int]MigrationLog, registered []Migration) error {
	known := make(map[int]Migration, len(registered))
	for _, m := range registered {
		known[m.Version] = m
	}

	var unknown, drifted []string
	for _, v := range appliedVersions(applied) {
		m, ok := known[v]
		switch {
		case !ok:
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		case applied[v].Checksum != "" && applied[v].Checksum != m.Checksum:
			drifted = append(drifted, m.String())
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("migration_logs contains versions unknown to this binary: %s", strings.Join(unknown, ", "))
	}
	if len(drifted) > 0 {
		return fmt.Errorf("applied migrations were modified after they ran: %s", strings.Join(drifted, ", "))
	}
	return nil
}

// PendingMigrations returns registered migrations not yet in migration_logs.
func PendingMigrations(ctx context.Context, db *gorm.DB) ([]Migration, error) {
	applied, err := AppliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, m := range migrations {
		if _, ok := applied[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// RunMigrations applies every pending migration in version order, each in
// its own transaction together with its log row.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec(ensureMigrationLogsSQL).Error; err != nil {
		return fmt.Errorf("ensure migration_logs: %w", err)
	}

	applied, err := AppliedMigrations(ctx, db)
	if err != nil {
		return err
	}
	if err := checkApplied(applied, migrations); err != nil {
		return err
	}

	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		start := time.Now()
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.Up).Error; err != nil {
				return fmt.Errorf("apply %s: %w", m.String(), err)
			}
			return tx.Create(&MigrationLog{Version: m.Version, Name: m.Name, Checksum: m.Checksum}).Error
		})
		if err != nil {
			return err
		}
		middleware.Logger.Info("migration applied",
			slog.String("migration", m.String()),
			slog.Duration("took", time.Since(start)))
	}
	return nil
}

// RollbackMigration runs the down script of an applied migration. Version 0
// selects the most recently applied one.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	applied, err := AppliedMigrations(ctx, db)
	if err != nil {
		return err
	}
	if version == 0 {
		versions := appliedVersions(applied)
		if len(versions) == 0 {
			return fmt.Errorf("no applied migrations to roll back")
		}
		version = versions[len(versions)-1]
	}

	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}
	if _, ok := applied[version]; !ok {
		return fmt.Errorf("migration %s has not been applied", m)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.Down).Error; err != nil {
			return fmt.Errorf("roll back %s: %w", m.String(), err)
		}
		return tx.Where("version = ?", version).Delete(&MigrationLog{}).Error
	})
	if err != nil {
		return err
	}
	middleware.Logger.Info("migration rolled back", slog.String("migration", m.String()))
	return nil
}
