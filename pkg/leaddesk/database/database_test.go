package database

import (
	"testing"

	"github.com/mikepea/leaddesk/pkg/leaddesk/config"
)

func TestConnectSQLite(t *testing.T) {
	db, err := Connect(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", MaxIdleConns: 1, MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if db.Dialector.Name() != "sqlite" {
		t.Errorf("Expected sqlite dialector, got %s", db.Dialector.Name())
	}
}

func TestConnectUnknownDriver(t *testing.T) {
	if _, err := Connect(config.DatabaseConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}
