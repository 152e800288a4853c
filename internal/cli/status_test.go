package cli

import (
	"testing"

	"github.com/stakeops/orchestrator/internal/core/config"
	"github.com/stakeops/orchestrator/internal/infra/storage/postgres"
)

func TestRequireDatabase(t *testing.T) {
	cfg := &config.AppConfig{}
	if err := requireDatabase(cfg); err == nil {
		t.Error("Expected error when no database url is configured")
	}

	cfg.Database = postgres.Config{URL: "postgres://localhost/orchestrator"}
	if err := requireDatabase(cfg); err != nil {
		t.Errorf("Expected no error with a database url, got %v", err)
	}
}
