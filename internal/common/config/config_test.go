package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
database:
  postgres:
    host: db
    database: access
    user: ${TEST_DB_USER}
`

const jwtAuthYAML = `
auth:
  jwt:
    secret: s3cret
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_DefaultsAndExpansion(t *testing.T) {
	t.Setenv("TEST_DB_USER", "access")

	workers := "workers:\n  create-access-request:\n    enabled: false\n"
	cfg, err := LoadFromFile(writeConfig(t, baseYAML+jwtAuthYAML+workers))
	require.NoError(t, err)

	assert.Equal(t, "access", cfg.Database.Postgres.User)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, AuthModeJWT, cfg.Auth.Mode)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, ":8080", cfg.HTTP.Addr())

	assert.Equal(t, 5000, cfg.Notifications.ChannelTimeout)
	assert.Equal(t, 5000, cfg.Notifications.Push.Timeout)
	assert.Equal(t, 5000, cfg.Notifications.Email.Timeout)
	assert.Equal(t, "notification-deliveries", cfg.Notifications.DeliveryIndex)
	assert.Equal(t, "access-workflow", cfg.Observability.ServiceName)

	worker := cfg.Workers["create-access-request"]
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 30000, worker.Timeout)
}

func TestLoadFromFile_EnvOverride(t *testing.T) {
	t.Setenv("TEST_DB_USER", "access")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_POSTGRES_HOST", "db.internal")

	yaml := baseYAML + jwtAuthYAML + "http:\n  port: 8080\n"
	cfg, err := LoadFromFile(writeConfig(t, yaml))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unset placeholder leaves user empty",
			extra:   jwtAuthYAML,
			wantErr: "database.postgres.user is required",
		},
		{
			name:    "cache ttl without redis",
			extra:   jwtAuthYAML + "directory:\n  cache_ttl: 1000\n",
			env:     map[string]string{"TEST_DB_USER": "access"},
			wantErr: "database.redis.address is required",
		},
		{
			name:    "unknown auth mode",
			extra:   "auth:\n  mode: ldap\n  jwt:\n    secret: s\n",
			env:     map[string]string{"TEST_DB_USER": "access"},
			wantErr: "auth.mode must be",
		},
		{
			name:    "ses without sender",
			extra:   jwtAuthYAML + "integrations:\n  aws:\n    region: eu-west-1\n    ses:\n      enabled: true\n",
			env:     map[string]string{"TEST_DB_USER": "access"},
			wantErr: "integrations.aws.ses.from_email is required",
		},
		{
			name:    "enabled worker without broker",
			extra:   jwtAuthYAML + "workers:\n  respond-access-request:\n    enabled: true\n",
			env:     map[string]string{"TEST_DB_USER": "access"},
			wantErr: "camunda.broker_address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DB_USER", "")
			t.Setenv("DB_USER", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFromFile(writeConfig(t, baseYAML+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
	assert.Equal(t, time.Duration(0), GetDuration(0))
}
