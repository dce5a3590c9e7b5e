package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/grove/driver"
)

func TestSnapshotTxOptions(t *testing.T) {
	opts := snapshotTxOptions()
	if opts.IsolationLevel != driver.LevelSerializable {
		t.Fatalf("expected SERIALIZABLE, got %s", opts.IsolationLevel)
	}
	if !opts.ReadOnly {
		t.Fatal("expected a read-only snapshot")
	}
}

func TestIsNoRows(t *testing.T) {
	if !isNoRows(sql.ErrNoRows) {
		t.Fatal("expected sql.ErrNoRows to be detected")
	}
	if !isNoRows(fmt.Errorf("select: %w", sql.ErrNoRows)) {
		t.Fatal("expected wrapped sql.ErrNoRows to be detected")
	}
	if isNoRows(errors.New("boom")) || isNoRows(nil) {
		t.Fatal("other errors are not missing rows")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: portcullis_roles.name (2067)")) {
		t.Fatal("expected unique violation to be detected")
	}
	if isUniqueViolation(nil) || isUniqueViolation(errors.New("no such table")) {
		t.Fatal("other errors are not duplicates")
	}
}
