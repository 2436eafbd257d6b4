package config

import (
	"errors"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	StoreBackend   string // "dynamo" | "memory"

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	OTP OTPConfig

	OperationTimeout time.Duration
	WorkerTimeout    time.Duration
	BcryptCost       int
	HashWorkers      int

	NotifyDriver    string // "smtp" | "sns" | "resend" | "log"
	NotifyRate      float64
	NotifyBurst     int
	NotifyFrom      string
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	SNSRegion       string
	SNSTopicARN     string
	ResendAPIKey    string
	TemplateBucket  string // empty disables S3 template overrides
	TemplatePrefix  string
	AllowedOrigins  []string // CORS allowed origins
	ShutdownTimeout time.Duration
}

// OTPConfig tunes challenge issuance and verification.
type OTPConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	Digits         int
	CodePepper     string
	PurgeGrace     time.Duration
	// TestMode returns the raw code to the caller when delivery fails.
	// Never honoured in production.
	TestMode bool
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users      string
	UserEmails string
	Challenges string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:      getEnv("DYNAMO_TABLE_USERS", "users"),
			UserEmails: getEnv("DYNAMO_TABLE_USER_EMAILS", "user_emails"),
			Challenges: getEnv("DYNAMO_TABLE_CHALLENGES", "otp_challenges"),
		},
		StoreBackend:      getEnv("STORE_BACKEND", "dynamo"),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),
		OTP: OTPConfig{
			TTL:            getEnvDuration("OTP_TTL", 10*time.Minute),
			ResendCooldown: getEnvDuration("OTP_RESEND_COOLDOWN", 60*time.Second),
			MaxAttempts:    getEnvInt("OTP_MAX_ATTEMPTS", 5),
			Digits:         getEnvInt("OTP_DIGITS", 6),
			CodePepper:     getEnv("OTP_CODE_PEPPER", ""),
			PurgeGrace:     getEnvDuration("OTP_PURGE_GRACE", 24*time.Hour),
			TestMode:       getEnvBool("OTP_TEST_MODE", false),
		},
		OperationTimeout: getEnvDuration("OPERATION_TIMEOUT", 5*time.Second),
		WorkerTimeout:    getEnvDuration("WORKER_TIMEOUT", 10*time.Second),
		BcryptCost:       getEnvInt("BCRYPT_COST", 12),
		HashWorkers:      getEnvInt("HASH_WORKERS", runtime.NumCPU()),
		NotifyDriver:     getEnv("NOTIFY_DRIVER", "smtp"),
		NotifyRate:       getEnvFloat("NOTIFY_RATE_PER_SEC", 10),
		NotifyBurst:      getEnvInt("NOTIFY_BURST", 20),
		NotifyFrom:       getEnv("NOTIFY_FROM", "noreply@example.com"),
		SMTPHost:         getEnv("SMTP_HOST", "localhost"),
		SMTPPort:         getEnv("SMTP_PORT", "1025"),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SNSRegion:        getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN:      getEnv("SNS_TOPIC_ARN", ""),
		ResendAPIKey:     getEnv("RESEND_API_KEY", ""),
		TemplateBucket:   getEnv("TEMPLATE_BUCKET", ""),
		TemplatePrefix:   getEnv("TEMPLATE_PREFIX", "mail-templates/"),
		AllowedOrigins:   strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		ShutdownTimeout:  getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// IsProduction reports whether the service runs with production safeguards.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Validate rejects configurations that would weaken the verification flow.
func (c *Config) Validate() error {
	var errs []error
	if c.IsProduction() && c.OTP.TestMode {
		errs = append(errs, errors.New("OTP_TEST_MODE must not be enabled in production"))
	}
	if c.IsProduction() && c.OTP.CodePepper == "" {
		errs = append(errs, errors.New("OTP_CODE_PEPPER is required in production"))
	}
	if c.IsProduction() && c.StoreBackend == "memory" {
		errs = append(errs, errors.New("STORE_BACKEND=memory is not durable"))
	}
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		errs = append(errs, errors.New("OTP_DIGITS must be between 6 and 10"))
	}
	if c.OTP.MaxAttempts < 1 {
		errs = append(errs, errors.New("OTP_MAX_ATTEMPTS must be positive"))
	}
	if c.OTP.TTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	if c.OTP.ResendCooldown < 0 {
		errs = append(errs, errors.New("OTP_RESEND_COOLDOWN must not be negative"))
	}
	if c.OperationTimeout <= 0 {
		errs = append(errs, errors.New("OPERATION_TIMEOUT must be positive"))
	}
	if c.HashWorkers < 1 {
		errs = append(errs, errors.New("HASH_WORKERS must be positive"))
	}
	switch c.StoreBackend {
	case "dynamo", "memory":
	default:
		errs = append(errs, errors.New("STORE_BACKEND must be dynamo or memory"))
	}
	switch c.NotifyDriver {
	case "smtp", "log":
	case "sns":
		if c.SNSTopicARN == "" {
			errs = append(errs, errors.New("SNS_TOPIC_ARN is required for NOTIFY_DRIVER=sns"))
		}
	case "resend":
		if c.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required for NOTIFY_DRIVER=resend"))
		}
	default:
		errs = append(errs, errors.New("NOTIFY_DRIVER must be smtp, sns, resend or log"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
