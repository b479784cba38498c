package causality_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-causality"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	t.Setenv("CAUSALITY_HMAC_SECRET", "env-secret")

	cfg, err := causality.LoadSettings("")
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.GetSigningKey())
	assert.Equal(t, "auctions", cfg.GetAudience())
	assert.Equal(t, 5*time.Second, cfg.GetDirectoryTimeout())
	assert.Equal(t, ":8080", cfg.GetAddr())
	assert.Equal(t, "/causality_jwt", cfg.GetTokenPath())
	assert.Empty(t, cfg.GetPreviousSigningKeys())
}

func TestLoadSettings_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "causality.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hmac_secret: file-secret
previous_secrets:
  - older
directory_url: http://directory.internal
directory_timeout: 2s
addr: ":9000"
`), 0o600))

	t.Setenv("CAUSALITY_ADDR", ":9100")
	t.Setenv("CAUSALITY_PREVIOUS_SECRETS", "old-1,old-2")

	cfg, err := causality.LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "file-secret", cfg.GetSigningKey())
	assert.Equal(t, []string{"old-1", "old-2"}, cfg.GetPreviousSigningKeys())
	assert.Equal(t, "http://directory.internal", cfg.GetDirectoryURL())
	assert.Equal(t, 2*time.Second, cfg.GetDirectoryTimeout())
	assert.Equal(t, ":9100", cfg.GetAddr())
}

func TestLoadSettings_RequiresSecret(t *testing.T) {
	t.Setenv("CAUSALITY_HMAC_SECRET", "")

	_, err := causality.LoadSettings("")
	assert.Error(t, err)
}

func TestLoadSettings_MissingFile(t *testing.T) {
	_, err := causality.LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewTokenServiceFromConfig(t *testing.T) {
	old := causality.NewTokenService([]byte("older"), "", nopLogger{})
	token, err := old.Sign(causality.ClaimDecision{Role: causality.RoleObserver, SaleID: "foo"})
	require.NoError(t, err)

	cfg := causality.DefaultSettings()
	cfg.HMACSecret = "current"
	cfg.PreviousSecrets = []string{"older"}

	service := causality.NewTokenServiceFromConfig(cfg, nopLogger{})
	claims, err := service.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "foo", claims.SaleID)
}
