package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, 10*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 5, cfg.OTP.MaxAttempts)
	assert.Equal(t, 6, cfg.OTP.Digits)
	assert.False(t, cfg.OTP.TestMode)
	assert.Equal(t, 5*time.Second, cfg.OperationTimeout)
	assert.Equal(t, "otp_challenges", cfg.DynamoTables.Challenges)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("OTP_TTL", "15m")
	t.Setenv("OTP_MAX_ATTEMPTS", "3")
	t.Setenv("OTP_TEST_MODE", "true")
	t.Setenv("NOTIFY_RATE_PER_SEC", "2.5")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 3, cfg.OTP.MaxAttempts)
	assert.True(t, cfg.OTP.TestMode)
	assert.Equal(t, 2.5, cfg.NotifyRate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("OTP_TTL", "ten minutes")
	t.Setenv("OTP_DIGITS", "six")
	t.Setenv("OTP_TEST_MODE", "maybe")

	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 6, cfg.OTP.Digits)
	assert.False(t, cfg.OTP.TestMode)
}

func TestValidate_TestModeRejectedInProduction(t *testing.T) {
	cfg := Load()
	cfg.AppEnv = "production"
	cfg.OTP.CodePepper = "pepper"
	cfg.OTP.TestMode = true

	err := cfg.Validate()
	assert.ErrorContains(t, err, "OTP_TEST_MODE")
}

func TestValidate_ProductionRequiresPepper(t *testing.T) {
	cfg := Load()
	cfg.AppEnv = "production"

	assert.ErrorContains(t, cfg.Validate(), "OTP_CODE_PEPPER")
}

func TestValidate_DriverRequirements(t *testing.T) {
	cfg := Load()
	cfg.NotifyDriver = "sns"
	assert.ErrorContains(t, cfg.Validate(), "SNS_TOPIC_ARN")

	cfg.NotifyDriver = "resend"
	assert.ErrorContains(t, cfg.Validate(), "RESEND_API_KEY")

	cfg.NotifyDriver = "carrier-pigeon"
	assert.ErrorContains(t, cfg.Validate(), "NOTIFY_DRIVER")
}

func TestValidate_DigitsBounds(t *testing.T) {
	cfg := Load()
	cfg.OTP.Digits = 4
	assert.ErrorContains(t, cfg.Validate(), "OTP_DIGITS")
}
