package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: "9090"
database:
  host: db.internal
  port: "5432"
  user: svc
  password: secret
  dbname: market_data
data:
  dir: /var/lib/market-data
kafka:
  brokers:
    - broker1:9092
    - broker2:9092
  codePrefixes:
    - SH
import:
  sourceDir: /srv/import
  workers: 8
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("server port = %s, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.DBName != "market_data" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Data.Dir != "/var/lib/market-data" {
		t.Errorf("data dir = %s", cfg.Data.Dir)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "broker1:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Import.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Import.Workers)
	}

	// Defaults fill everything the file leaves out.
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("read timeout = %v, want default 10s", cfg.Server.ReadTimeout)
	}
	if cfg.Kafka.Topic != "market-quotes" || cfg.Kafka.GroupID != "market-data-service" {
		t.Errorf("kafka defaults = %s/%s", cfg.Kafka.Topic, cfg.Kafka.GroupID)
	}
	if cfg.Kafka.DrainTimeout != 5*time.Second {
		t.Errorf("drain timeout = %v, want default 5s", cfg.Kafka.DrainTimeout)
	}
	if cfg.Import.SessionStart != "09:15" || cfg.Import.SessionEnd != "15:45" {
		t.Errorf("session defaults = %s..%s", cfg.Import.SessionStart, cfg.Import.SessionEnd)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level = %s, want default info", cfg.Logging.Level)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing config file must fail")
	}
}
