package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove/driver"
)

func TestSnapshotTxOptions(t *testing.T) {
	opts := snapshotTxOptions()
	if opts.IsolationLevel != driver.LevelRepeatableRead {
		t.Fatalf("expected REPEATABLE READ, got %s", opts.IsolationLevel)
	}
	if !opts.ReadOnly {
		t.Fatal("expected a read-only snapshot")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: uniqueViolation}
	if !isUniqueViolation(fmt.Errorf("insert: %w", dup)) {
		t.Fatal("expected wrapped unique violation to be detected")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violation is not a duplicate")
	}
	if isUniqueViolation(errors.New("boom")) || isUniqueViolation(sql.ErrNoRows) {
		t.Fatal("plain errors are not duplicates")
	}
}
