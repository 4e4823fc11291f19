// Package main implements database migration utility for the clinic-messenger service.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

const defaultMigrationsPath = "./migrations"

func main() {
	var (
		migrationsPath string
		steps          int
	)

	flag.StringVar(&migrationsPath, "path", defaultMigrationsPath, "Path to migrations directory")
	flag.IntVar(&steps, "steps", 0, "Number of migrations to apply (0 means all)")
	flag.Parse()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	args := flag.Args()
	if len(args) == 0 {
		log.Fatal("Please specify a command: up, down, version, or force")
	}
	command := args[0]

	m := newMigrator(databaseURL, migrationsPath)

	switch command {
	case "up":
		var err error
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
		if err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Failed to run migrations up: %v", err)
		}
		reportVersion(m)

	case "down":
		if steps == 0 {
			steps = 1
		}
		if err := m.Steps(-steps); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Failed to run migrations down: %v", err)
		}
		reportVersion(m)

	case "version":
		version, dirty, err := m.Version()
		if err == migrate.ErrNilVersion {
			fmt.Println("No migrations applied yet")
			return
		}
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
		if dirty {
			fmt.Printf("Current version: %d (dirty)\n", version)
		} else {
			fmt.Printf("Current version: %d\n", version)
		}

	case "force":
		// Clears a dirty flag after a failed migration has been fixed by hand.
		if len(args) < 2 {
			log.Fatal("force requires a version argument")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid version %q: %v", args[1], err)
		}
		if err := m.Force(version); err != nil {
			log.Fatalf("Failed to force version: %v", err)
		}
		log.Printf("Forced version to %d", version)

	default:
		log.Fatalf("Unknown command: %s. Use 'up', 'down', 'version', or 'force'", command)
	}
}

func newMigrator(databaseURL, migrationsPath string) *migrate.Migrate {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create postgres driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath), "postgres", driver)
	if err != nil {
		log.Fatalf("Failed to create migrate instance: %v", err)
	}

	return m
}

func reportVersion(m *migrate.Migrate) {
	version, dirty, err := m.Version()
	if err == migrate.ErrNilVersion {
		log.Println("All migrations rolled back")
		return
	}
	if err != nil {
		log.Printf("Error getting migration version: %v", err)
		return
	}
	if dirty {
		log.Printf("WARNING: Database is in dirty state at version %d", version)
	} else {
		log.Printf("Database at version %d", version)
	}
}
