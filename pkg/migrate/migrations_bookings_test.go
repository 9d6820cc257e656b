package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBookingsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_bookings.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no bookings migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS bookings",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_transaction_id",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_reference",
		"FOREIGN KEY (transaction_id) REFERENCES transactions(id) ON DELETE RESTRICT",
		"CHECK (duration_days >= 1)",
		"DROP TABLE IF EXISTS bookings",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestTransactionsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_transactions.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no transactions migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS transactions",
		"CHECK (amount > 0)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_status",
		"DROP TABLE IF EXISTS transactions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
