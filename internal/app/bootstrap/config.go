package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	MailTransportLog   = "log"
	MailTransportSMTP  = "smtp"
	MailTransportBrevo = "brevo"
)

// Config is the resolved runtime configuration of the account service.
type Config struct {
	ServiceID string
	LogLevel  string

	HTTPPort        int
	GRPCPort        int
	CORSOrigins     []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	StorageDriver string
	DatabaseURL   string
	MaxDBConns    int32
	RedisURL      string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool
	BcryptCost        int

	TokenTTL           time.Duration
	RememberMeTokenTTL time.Duration
	LockoutDuration    time.Duration
	FailedThreshold    int

	PasswordMinLength       int
	PasswordMaxLength       int
	ResetKeyTTL             time.Duration
	RegistrationIPThreshold int
	RegistrationWindow      time.Duration
	DefaultAuthority        string

	Mail MailConfig

	KafkaBrokers      []string
	KafkaTopic        string
	KafkaTopicByEvent map[string]string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

type MailConfig struct {
	Transport       string
	FromAddress     string
	FromName        string
	BaseURL         string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	BrevoAPIKey     string
	QueueSize       int
	Workers         int
	SendTimeout     time.Duration
	RetryMaxElapsed time.Duration
}

// configFile mirrors the YAML schema of configs/default.yaml.
type configFile struct {
	Service struct {
		ID          string   `yaml:"id"`
		LogLevel    string   `yaml:"log_level"`
		HTTPPort    int      `yaml:"http_port"`
		GRPCPort    int      `yaml:"grpc_port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"service"`
	Storage struct {
		Driver     string `yaml:"driver"`
		MaxDBConns int32  `yaml:"max_db_conns"`
	} `yaml:"storage"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Accounts struct {
		PasswordMinLength       int    `yaml:"password_min_length"`
		PasswordMaxLength       int    `yaml:"password_max_length"`
		ResetKeyTTL             string `yaml:"reset_key_ttl"`
		RegistrationIPThreshold int    `yaml:"registration_ip_threshold"`
		RegistrationWindow      string `yaml:"registration_window"`
		DefaultAuthority        string `yaml:"default_authority"`
	} `yaml:"accounts"`
	Auth struct {
		JWTKeyID           string `yaml:"jwt_key_id"`
		BcryptCost         int    `yaml:"bcrypt_cost"`
		TokenTTL           string `yaml:"token_ttl"`
		RememberMeTokenTTL string `yaml:"remember_me_token_ttl"`
		FailedThreshold    int    `yaml:"failed_login_threshold"`
		LockoutDuration    string `yaml:"lockout_duration"`
	} `yaml:"auth"`
	Mail struct {
		Transport   string `yaml:"transport"`
		FromAddress string `yaml:"from_address"`
		FromName    string `yaml:"from_name"`
		BaseURL     string `yaml:"base_url"`
		SMTPHost    string `yaml:"smtp_host"`
		SMTPPort    int    `yaml:"smtp_port"`
		QueueSize   int    `yaml:"queue_size"`
		Workers     int    `yaml:"workers"`
	} `yaml:"mail"`
	Events struct {
		Topic        string            `yaml:"topic"`
		TopicByEvent map[string]string `yaml:"topic_by_event"`
	} `yaml:"events"`
}

func defaultConfig() Config {
	return Config{
		ServiceID:               "account-service",
		LogLevel:                "info",
		HTTPPort:                8080,
		GRPCPort:                9090,
		CORSOrigins:             []string{"*"},
		RequestTimeout:          30 * time.Second,
		ShutdownTimeout:         10 * time.Second,
		StorageDriver:           StorageDriverPostgres,
		MaxDBConns:              20,
		JWTKeyID:                "account-key-1",
		AllowEphemeralJWT:       true,
		BcryptCost:              10,
		TokenTTL:                30 * time.Minute,
		RememberMeTokenTTL:      7 * 24 * time.Hour,
		LockoutDuration:         15 * time.Minute,
		FailedThreshold:         5,
		PasswordMinLength:       4,
		PasswordMaxLength:       100,
		ResetKeyTTL:             24 * time.Hour,
		RegistrationIPThreshold: 3,
		RegistrationWindow:      24 * time.Hour,
		DefaultAuthority:        "ROLE_USER",
		Mail: MailConfig{
			Transport:       MailTransportLog,
			FromAddress:     "noreply@localhost",
			FromName:        "Accounts",
			BaseURL:         "http://localhost:8080",
			SMTPPort:        25,
			QueueSize:       256,
			Workers:         2,
			SendTimeout:     30 * time.Second,
			RetryMaxElapsed: 30 * time.Second,
		},
		KafkaTopic:         "account-events",
		KafkaTopicByEvent:  map[string]string{},
		OutboxPollInterval: 2 * time.Second,
		OutboxBatchSize:    100,
		OutboxClaimTTL:     30 * time.Second,
		OutboxMaxRetries:   5,
	}
}

// LoadConfig resolves configuration in priority order: defaults -> file -> .env -> env.
// A missing file or .env is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := applyFile(&cfg, raw); err != nil {
			return Config{}, err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	// Variables already present in the environment win over .env entries.
	if err := godotenv.Load(envOrDefault("DOTENV_PATH", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}
	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.ServiceID, f.Service.ID)
	setString(&cfg.LogLevel, f.Service.LogLevel)
	setInt(&cfg.HTTPPort, f.Service.HTTPPort)
	setInt(&cfg.GRPCPort, f.Service.GRPCPort)
	if len(f.Service.CORSOrigins) > 0 {
		cfg.CORSOrigins = f.Service.CORSOrigins
	}
	setString(&cfg.StorageDriver, f.Storage.Driver)
	if f.Storage.MaxDBConns > 0 {
		cfg.MaxDBConns = f.Storage.MaxDBConns
	}
	setString(&cfg.DatabaseURL, f.Dependencies.PostgresURL)
	setString(&cfg.RedisURL, f.Dependencies.RedisURL)
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}

	setInt(&cfg.PasswordMinLength, f.Accounts.PasswordMinLength)
	setInt(&cfg.PasswordMaxLength, f.Accounts.PasswordMaxLength)
	setInt(&cfg.RegistrationIPThreshold, f.Accounts.RegistrationIPThreshold)
	setString(&cfg.DefaultAuthority, f.Accounts.DefaultAuthority)

	setString(&cfg.JWTKeyID, f.Auth.JWTKeyID)
	setInt(&cfg.BcryptCost, f.Auth.BcryptCost)
	setInt(&cfg.FailedThreshold, f.Auth.FailedThreshold)

	setString(&cfg.Mail.Transport, f.Mail.Transport)
	setString(&cfg.Mail.FromAddress, f.Mail.FromAddress)
	setString(&cfg.Mail.FromName, f.Mail.FromName)
	setString(&cfg.Mail.BaseURL, f.Mail.BaseURL)
	setString(&cfg.Mail.SMTPHost, f.Mail.SMTPHost)
	setInt(&cfg.Mail.SMTPPort, f.Mail.SMTPPort)
	setInt(&cfg.Mail.QueueSize, f.Mail.QueueSize)
	setInt(&cfg.Mail.Workers, f.Mail.Workers)

	setString(&cfg.KafkaTopic, f.Events.Topic)
	for event, topic := range f.Events.TopicByEvent {
		cfg.KafkaTopicByEvent[event] = topic
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"accounts.reset_key_ttl", f.Accounts.ResetKeyTTL, &cfg.ResetKeyTTL},
		{"accounts.registration_window", f.Accounts.RegistrationWindow, &cfg.RegistrationWindow},
		{"auth.token_ttl", f.Auth.TokenTTL, &cfg.TokenTTL},
		{"auth.remember_me_token_ttl", f.Auth.RememberMeTokenTTL, &cfg.RememberMeTokenTTL},
		{"auth.lockout_duration", f.Auth.LockoutDuration, &cfg.LockoutDuration},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse config file: %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.LogLevel = strings.ToLower(envOrDefault("LOG_LEVEL", cfg.LogLevel))
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.CORSOrigins = envCSV("CORS_ALLOWED_ORIGINS", cfg.CORSOrigins)
	cfg.RequestTimeout = envDuration("HTTP_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(envOrDefault("STORAGE_DRIVER", cfg.StorageDriver)))
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)

	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)

	cfg.TokenTTL = envDuration("TOKEN_TTL", cfg.TokenTTL)
	cfg.RememberMeTokenTTL = envDuration("REMEMBER_ME_TOKEN_TTL", cfg.RememberMeTokenTTL)
	cfg.LockoutDuration = envDuration("ACCOUNT_LOCKOUT_DURATION", cfg.LockoutDuration)
	cfg.FailedThreshold = envInt("FAILED_LOGIN_THRESHOLD", cfg.FailedThreshold)

	cfg.PasswordMinLength = envInt("PASSWORD_MIN_LENGTH", cfg.PasswordMinLength)
	cfg.PasswordMaxLength = envInt("PASSWORD_MAX_LENGTH", cfg.PasswordMaxLength)
	cfg.ResetKeyTTL = envDuration("RESET_KEY_TTL", cfg.ResetKeyTTL)
	cfg.RegistrationIPThreshold = envInt("REGISTRATION_IP_THRESHOLD", cfg.RegistrationIPThreshold)
	cfg.RegistrationWindow = envDuration("REGISTRATION_WINDOW", cfg.RegistrationWindow)
	cfg.DefaultAuthority = envOrDefault("DEFAULT_AUTHORITY", cfg.DefaultAuthority)

	cfg.Mail.Transport = strings.ToLower(strings.TrimSpace(envOrDefault("MAIL_TRANSPORT", cfg.Mail.Transport)))
	cfg.Mail.FromAddress = envOrDefault("MAIL_FROM", cfg.Mail.FromAddress)
	cfg.Mail.FromName = envOrDefault("MAIL_FROM_NAME", cfg.Mail.FromName)
	cfg.Mail.BaseURL = envOrDefault("MAIL_BASE_URL", cfg.Mail.BaseURL)
	cfg.Mail.SMTPHost = envOrDefault("SMTP_HOST", cfg.Mail.SMTPHost)
	cfg.Mail.SMTPPort = envInt("SMTP_PORT", cfg.Mail.SMTPPort)
	cfg.Mail.SMTPUsername = envOrDefault("SMTP_USERNAME", cfg.Mail.SMTPUsername)
	cfg.Mail.SMTPPassword = envOrDefault("SMTP_PASSWORD", cfg.Mail.SMTPPassword)
	cfg.Mail.BrevoAPIKey = envOrDefault("BREVO_API_KEY", cfg.Mail.BrevoAPIKey)
	cfg.Mail.QueueSize = envInt("MAIL_QUEUE_SIZE", cfg.Mail.QueueSize)
	cfg.Mail.Workers = envInt("MAIL_WORKERS", cfg.Mail.Workers)
	cfg.Mail.SendTimeout = envDuration("MAIL_SEND_TIMEOUT", cfg.Mail.SendTimeout)
	cfg.Mail.RetryMaxElapsed = envDuration("MAIL_RETRY_MAX_ELAPSED", cfg.Mail.RetryMaxElapsed)

	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envOrDefault("KAFKA_TOPIC", cfg.KafkaTopic)
	for _, pair := range envCSV("KAFKA_TOPIC_MAP", nil) {
		event, topic, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(event) == "" || strings.TrimSpace(topic) == "" {
			continue
		}
		cfg.KafkaTopicByEvent[strings.TrimSpace(event)] = strings.TrimSpace(topic)
	}

	cfg.OutboxPollInterval = envDuration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = envDuration("OUTBOX_CLAIM_TTL", cfg.OutboxClaimTTL)
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("missing DB_URL/POSTGRES_URL")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.PasswordMinLength <= 0 || c.PasswordMaxLength < c.PasswordMinLength {
		return fmt.Errorf("invalid password bounds %d..%d", c.PasswordMinLength, c.PasswordMaxLength)
	}
	if (c.JWTPrivateKeyPEM == "" || c.JWTPublicKeyPEM == "") && !c.AllowEphemeralJWT {
		return fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}
	switch c.Mail.Transport {
	case MailTransportLog:
	case MailTransportSMTP:
		if c.Mail.SMTPHost == "" {
			return fmt.Errorf("missing SMTP_HOST for smtp mail transport")
		}
	case MailTransportBrevo:
		if c.Mail.BrevoAPIKey == "" {
			return fmt.Errorf("missing BREVO_API_KEY for brevo mail transport")
		}
	default:
		return fmt.Errorf("unsupported mail transport %q", c.Mail.Transport)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envDuration accepts Go duration strings such as "90s" or "24h".
func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
