package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"hookrelay/config"
	"hookrelay/internal/domain/delivery"
	"hookrelay/internal/domain/subscription"
	"hookrelay/pkg/database"
)

const usage = `
hookrelay - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Run all migrations (SQL + GORM)
  status      Show database connection status
  reset       Drop all tables and re-run migrations (DANGEROUS)

Flags:
  -migrations string   Path to migrations directory (default "migrations")

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go reset
`

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to migrations directory")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	database.Connect(cfg)

	switch command {
	case "up":
		migrateUp(*migrationsDir)
	case "status":
		status()
	case "reset":
		reset(*migrationsDir)
	default:
		flag.Usage()
		os.Exit(1)
	}
}

func migrateUp(migrationsDir string) {
	if err := database.ApplyRawMigrations(migrationsDir); err != nil {
		log.Fatalf("Failed to apply raw migrations: %v", err)
	}
	if err := database.DB.AutoMigrate(
		&subscription.Subscription{},
		&delivery.Record{},
	); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}
	log.Println("Migrations applied")
}

func status() {
	sqlDB, err := database.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get generic database object: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Database unreachable: %v", err)
	}
	log.Println("Database connection OK")
}

func reset(migrationsDir string) {
	if err := database.DB.Migrator().DropTable(
		&delivery.Record{},
		&subscription.Subscription{},
	); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}
	log.Println("Tables dropped")
	migrateUp(migrationsDir)
}
