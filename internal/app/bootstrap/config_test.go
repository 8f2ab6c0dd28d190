package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DOTENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	for _, name := range []string{"STORAGE_DRIVER", "DB_URL", "POSTGRES_URL", "MAIL_TRANSPORT", "KAFKA_TOPIC_MAP", "PASSWORD_MIN_LENGTH", "RESET_KEY_TTL"} {
		t.Setenv(name, "")
	}
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	isolateEnv(t)
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, 4, cfg.PasswordMinLength)
	assert.Equal(t, 100, cfg.PasswordMaxLength)
	assert.Equal(t, 24*time.Hour, cfg.ResetKeyTTL)
	assert.Equal(t, 3, cfg.RegistrationIPThreshold)
	assert.Equal(t, MailTransportLog, cfg.Mail.Transport)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	isolateEnv(t)
	path := writeConfigFile(t, `
storage:
  driver: postgres
dependencies:
  postgres_url: postgres://file/db
accounts:
  password_min_length: 6
  reset_key_ttl: 12h
events:
  topic_by_event:
    account.registered: from-file
`)
	t.Setenv("DB_URL", "postgres://env/db")
	t.Setenv("RESET_KEY_TTL", "48h")
	t.Setenv("KAFKA_TOPIC_MAP", "account.activated=activations, broken")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)
	assert.Equal(t, 6, cfg.PasswordMinLength)
	assert.Equal(t, 48*time.Hour, cfg.ResetKeyTTL)
	assert.Equal(t, map[string]string{
		"account.registered": "from-file",
		"account.activated":  "activations",
	}, cfg.KafkaTopicByEvent)
}

func TestLoadConfigReadsDotenv(t *testing.T) {
	isolateEnv(t)
	dotenv := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(dotenv, []byte("STORAGE_DRIVER=memory\nPASSWORD_MIN_LENGTH=8\n"), 0o600))
	t.Setenv("DOTENV_PATH", dotenv)
	// godotenv does not override variables that are already set, even when empty.
	require.NoError(t, os.Unsetenv("STORAGE_DRIVER"))
	require.NoError(t, os.Unsetenv("PASSWORD_MIN_LENGTH"))

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, 8, cfg.PasswordMinLength)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres without url", env: map[string]string{"STORAGE_DRIVER": "postgres"}},
		{name: "unknown driver", env: map[string]string{"STORAGE_DRIVER": "sqlite"}},
		{name: "inverted password bounds", env: map[string]string{"STORAGE_DRIVER": "memory", "PASSWORD_MIN_LENGTH": "20", "PASSWORD_MAX_LENGTH": "10"}},
		{name: "smtp without host", env: map[string]string{"STORAGE_DRIVER": "memory", "MAIL_TRANSPORT": "smtp", "SMTP_HOST": ""}},
		{name: "brevo without key", env: map[string]string{"STORAGE_DRIVER": "memory", "MAIL_TRANSPORT": "brevo", "BREVO_API_KEY": ""}},
		{name: "unknown transport", env: map[string]string{"STORAGE_DRIVER": "memory", "MAIL_TRANSPORT": "pigeon"}},
		{name: "static jwt required", env: map[string]string{"STORAGE_DRIVER": "memory", "JWT_ALLOW_EPHEMERAL": "false"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
			require.Error(t, err)
		})
	}
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	isolateEnv(t)
	path := writeConfigFile(t, "accounts:\n  reset_key_ttl: tomorrow\n")
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "accounts.reset_key_ttl")
}

func TestRepositoryDefaultConfigLoads(t *testing.T) {
	isolateEnv(t)
	cfg, err := LoadConfig(filepath.Join("..", "..", "..", "configs", "default.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "account-service", cfg.ServiceID)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "account-registrations", cfg.KafkaTopicByEvent["account.registered"])
	assert.Equal(t, 168*time.Hour, cfg.RememberMeTokenTTL)
}
