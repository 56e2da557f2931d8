package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/migrate"
)

func TestLedgerMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_loyalty_ledger.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no ledger migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS account_balances",
		"CHECK (balance >= 0)",
		"CHECK (stars_meal >= 0)",
		"CHECK (stars_drink >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_balance_user_restaurant",
		"CREATE TABLE IF NOT EXISTS ledger_transactions",
		"idempotency_key TEXT UNIQUE",
		"DROP TABLE IF EXISTS ledger_transactions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestBillingMigrationContainsSchemas(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_billing.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no billing migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE payment_provider AS ENUM",
		"CREATE TYPE subscription_status AS ENUM",
		"CREATE TYPE invoice_status AS ENUM",
		"CREATE TABLE IF NOT EXISTS plans",
		"CREATE TABLE IF NOT EXISTS payments",
		"provider_session_id TEXT NOT NULL UNIQUE",
		"CREATE TABLE IF NOT EXISTS subscriptions",
		"payment_id UUID UNIQUE",
		"CREATE TABLE IF NOT EXISTS invoices",
		"provider_invoice_id TEXT NOT NULL UNIQUE",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
