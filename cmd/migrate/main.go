// Command migrate manages the Agora database schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"agora/internal/config"
	"agora/internal/database"

	"gorm.io/gorm"
)

func main() {
	action := flag.String("action", "status", "One of: up, auto, status, down")
	version := flag.Int("version", 0, "Migration to roll back with -action=down (0 = latest applied)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	ctx := context.Background()
	switch *action {
	case "up":
		err = database.RunMigrations(ctx, db)
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		err = database.ApplySchema(ctx, db, cfg)
	case "down":
		err = database.RollbackMigration(ctx, db, *version)
	case "status":
		err = printStatus(ctx, db, cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", *action, err)
	}
	if *action != "status" {
		log.Printf("migrate %s: done", *action)
	}
}

func printStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "driver\t%s\n", status.Driver)
	fmt.Fprintf(w, "mode\t%s (env %s)\n", status.Mode, status.Environment)
	fmt.Fprintf(w, "sql migrations\t%t\n", status.WillRunSQL)
	fmt.Fprintf(w, "auto-migrate\t%t\n", status.WillRunAutoMigrate)
	fmt.Fprintf(w, "applied\t%v\n", status.AppliedVersions)

	tables := make([]string, 0, len(status.Tables))
	for name := range status.Tables {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	for _, name := range tables {
		fmt.Fprintf(w, "table %s\t%t\n", name, status.Tables[name])
	}
	for _, m := range status.PendingMigrations {
		fmt.Fprintf(w, "pending\t%s\n", m.String())
	}
	return w.Flush()
}
