package myconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {

	t.Run("Defaults without env-file", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "usd", cfg.Stripe.Currency)
		assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
		assert.Equal(t, "587", cfg.SMTP.Port)
	})

	t.Run("Environment", func(t *testing.T) {
		t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
		t.Setenv("SMTP_HOST", "smtp.example.com")
		t.Setenv("HTTP_WRITE_TIMEOUT", "1m")

		cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)

		assert.Equal(t, "sk_test_123", cfg.Stripe.SecretKey)
		assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
		assert.Equal(t, time.Minute, cfg.WriteTimeout)
	})

	t.Run("Env-file", func(t *testing.T) {
		envFile := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(envFile, []byte("DATABASE_URL=sqlite://courses.db\nSTRIPE_CURRENCY=eur\n"), 0o600))
		t.Setenv("DATABASE_URL", "")
		os.Unsetenv("DATABASE_URL")
		t.Setenv("STRIPE_CURRENCY", "")
		os.Unsetenv("STRIPE_CURRENCY")

		cfg, err := Load(envFile)
		require.NoError(t, err)

		assert.Equal(t, "sqlite://courses.db", cfg.DatabaseURL)
		assert.Equal(t, "eur", cfg.Stripe.Currency)
	})

	t.Run("Invalid duration", func(t *testing.T) {
		t.Setenv("HTTP_READ_TIMEOUT", "soon")

		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.Error(t, err)
	})
}
