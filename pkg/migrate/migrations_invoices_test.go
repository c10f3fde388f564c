package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInvoicesMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_invoices.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no invoices migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS invoices",
		"FOREIGN KEY (business_id) REFERENCES businesses(id) ON DELETE CASCADE",
		"CHECK (total_usd_cents > 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_invoices_business_number",
		"DROP TABLE IF EXISTS invoices",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
