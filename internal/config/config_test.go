package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.AppPort)
	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, 24*time.Hour, cfg.TokenExpires)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	require.Equal(t, time.Minute, cfg.PayPal.TokenMargin)
	require.Equal(t, "USD", cfg.PayPal.Currency)
	require.Equal(t, paypalSandboxURL, cfg.PayPal.BaseURL)
	require.Equal(t, "console", cfg.LogFormat)
	require.Equal(t, "order.payment.synced", cfg.KafkaSyncTopic)
}

func TestLoad_LiveEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "docker")
	t.Setenv("PAYPAL_ENVIRONMENT", "live")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, paypalLiveURL, cfg.PayPal.BaseURL)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_BaseURLOverride(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PAYPAL_BASE_URL", "http://localhost:9999/")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9999", cfg.PayPal.BaseURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{
			name:   "missing jwt secret",
			env:    map[string]string{"JWT_SECRET": ""},
			errMsg: "JWT_SECRET",
		},
		{
			name:   "unknown database driver",
			env:    map[string]string{"JWT_SECRET": "s", "DATABASE_DRIVER": "mysql"},
			errMsg: "DATABASE_DRIVER",
		},
		{
			name:   "unknown paypal environment",
			env:    map[string]string{"JWT_SECRET": "s", "PAYPAL_ENVIRONMENT": "staging"},
			errMsg: "PAYPAL_ENVIRONMENT",
		},
		{
			name:   "bad duration",
			env:    map[string]string{"JWT_SECRET": "s", "HTTP_TIMEOUT": "soon"},
			errMsg: "parse environment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
