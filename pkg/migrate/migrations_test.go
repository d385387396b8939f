package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/logistar/turnover-backend/pkg/migrate"
)

func TestMigrationsValidate(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migration validation failed: %v", err)
	}
}

func TestEventMigrationContainsIdentityConstraint(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_inventory_events.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no inventory events migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS inventory_events",
		"UNIQUE (log_id, product_sku, operation_time)",
		"CHECK (direction IN ('inbound', 'outbound', 'other'))",
		"DROP TABLE IF EXISTS inventory_events",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
