package db

import (
	"os"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEmbeddedMigrations(t *testing.T) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("iofs.New() error = %v", err)
	}
	defer source.Close()

	first, err := source.First()
	if err != nil {
		t.Fatalf("First() error = %v", err)
	}
	if first != 1 {
		t.Errorf("first migration = %d, want 1", first)
	}

	up, _, err := source.ReadUp(first)
	if err != nil {
		t.Fatalf("ReadUp() error = %v", err)
	}
	up.Close()
	down, _, err := source.ReadDown(first)
	if err != nil {
		t.Fatalf("ReadDown() error = %v", err)
	}
	down.Close()

	next, err := source.Next(first)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if next != 2 {
		t.Errorf("second migration = %d, want 2", next)
	}
}

func TestRunMigrations(t *testing.T) {
	url := os.Getenv("AGORA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("AGORA_TEST_DATABASE_URL not set")
	}
	if err := RunMigrations(url); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	// a second run is a no-op
	if err := RunMigrations(url); err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}
}
