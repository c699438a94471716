package config

import (
	"testing"
)

func TestInitConfig(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("config file not available: %v", r)
		}
	}()
	cfg := InitConfig()
	t.Logf("cfg postgres: %+v", cfg.Postgres)
	t.Logf("cfg redis: %+v", cfg.Redis)
	t.Logf("cfg kafka: %+v", cfg.Kafka)
	t.Logf("cfg explorer: %+v", cfg.Explorer)
	t.Logf("cfg markets: %+v", cfg.Markets)
}
