package rbac

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRunMigrations_AppliesPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS authz_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied := sqlmock.NewRows([]string{"version"})
	for _, m := range GetMigrations() {
		applied.AddRow(m.Version)
	}
	mock.ExpectQuery("SELECT version FROM authz_migrations").
		WillReturnRows(applied)

	if err := RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRunMigrations_VersionScanFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS authz_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rowErr := errors.New("connection reset")
	mock.ExpectQuery("SELECT version FROM authz_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).
			AddRow(1).
			RowError(0, rowErr))

	err = RunMigrations(context.Background(), db)
	if err == nil {
		t.Fatal("Expected error when the version scan fails mid-iteration")
	}
	if !strings.Contains(err.Error(), "migration versions") {
		t.Errorf("Expected version read error, got: %v", err)
	}
}
