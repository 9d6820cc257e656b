package db

import (
	"errors"
	"testing"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := errors.New(`ERROR: duplicate key value violates unique constraint "idx_bookings_transaction_id" (SQLSTATE 23505)`)
	if !IsUniqueViolation(pgErr, "") {
		t.Fatal("expected postgres duplicate key to match")
	}
	if !IsUniqueViolation(pgErr, "idx_bookings_transaction_id") {
		t.Fatal("expected named constraint to match")
	}
	sqliteErr := errors.New("UNIQUE constraint failed: bookings.transaction_id")
	if !IsUniqueViolation(sqliteErr, "") {
		t.Fatal("expected sqlite unique violation to match")
	}

	if IsUniqueViolation(errors.New("connection refused"), "") {
		t.Fatal("unrelated error must not match")
	}
	if IsUniqueViolation(nil, "x") {
		t.Fatal("nil error must not match")
	}
}
