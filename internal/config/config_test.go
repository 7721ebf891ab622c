package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 3, cfg.Server.RetryAttempts)
	assert.Equal(t, "postgres://postgres:@localhost:5432/canteen?sslmode=disable", cfg.ConnectionString())
	assert.Equal(t, cfg.ConnectionString(), cfg.DSN())
}

func TestLoad_SQLite(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "/tmp/kiosk.db")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/kiosk.db", cfg.DSN())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"DB_DRIVER": "mysql"}},
		{name: "session without secret", env: map[string]string{"KIOSK_REQUIRE_SESSION": "true"}},
		{name: "zero pin attempts", env: map[string]string{"KIOSK_PIN_MAX_ATTEMPTS": "0"}},
		{name: "queue without redis", env: map[string]string{"NOTIFY_MODE": "queue"}},
		{name: "unknown notify mode", env: map[string]string{"NOTIFY_MODE": "sms"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
