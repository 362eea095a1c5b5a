package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/sharegate/internal/server"
	"github.com/openmined/sharegate/internal/server/auth"
)

const testPerms = `
users:
  alice:
    folders:
      - path: reports
        read: true
      - path: reports/private
        read: false
  bob:
    folder_only: true
`

func withConfigFile(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, rootCmd.PersistentFlags().Set("config", path))
	t.Cleanup(func() { rootCmd.PersistentFlags().Set("config", "") })
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, server.DefaultAddr, cfg.HTTP.Addr)
	assert.Equal(t, server.DefaultRateLimit, cfg.HTTP.RateLimit)
	assert.Equal(t, server.DefaultProbeDepth, cfg.Storage.ProbeDepth)
	assert.Equal(t, server.DefaultCacheTTL, cfg.Permissions.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessTokenExpiry)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("SHAREGATE_HTTP_ADDR", ":9090")
	t.Setenv("SHAREGATE_HTTP_CERT_FILE", "test-cert.pem")
	t.Setenv("SHAREGATE_HTTP_KEY_FILE", "test-key.pem")
	t.Setenv("SHAREGATE_HTTP_HSTS", "true")
	t.Setenv("SHAREGATE_STORAGE_ROOT", "/srv/share")
	t.Setenv("SHAREGATE_STORAGE_PROBE_DEPTH", "3")
	t.Setenv("SHAREGATE_STORAGE_IGNORE_REGEX", "/\\.bak$/i")
	t.Setenv("SHAREGATE_PERMISSIONS_DB", "/var/lib/sharegate/perms.db")
	t.Setenv("SHAREGATE_PERMISSIONS_CACHE_TTL", "30s")
	t.Setenv("SHAREGATE_AUTH_ENABLED", "true")
	t.Setenv("SHAREGATE_AUTH_TOKEN_ISSUER", "test-issuer")
	t.Setenv("SHAREGATE_AUTH_ACCESS_TOKEN_SECRET", "test-access-secret")
	t.Setenv("SHAREGATE_AUTH_ACCESS_TOKEN_EXPIRY", "1h")
	t.Setenv("SHAREGATE_LOG_LEVEL", "debug")

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "test-cert.pem", cfg.HTTP.CertFile)
	assert.Equal(t, "test-key.pem", cfg.HTTP.KeyFile)
	assert.True(t, cfg.HTTP.HSTS)
	assert.Equal(t, "/srv/share", cfg.Storage.Root)
	assert.Equal(t, 3, cfg.Storage.ProbeDepth)
	assert.Equal(t, "/\\.bak$/i", cfg.Storage.IgnoreRegex)
	assert.Equal(t, "/var/lib/sharegate/perms.db", cfg.Permissions.DB)
	assert.Equal(t, 30*time.Second, cfg.Permissions.CacheTTL)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "test-issuer", cfg.Auth.TokenIssuer)
	assert.Equal(t, "test-access-secret", cfg.Auth.AccessTokenSecret)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenExpiry)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigYAML(t *testing.T) {
	withConfigFile(t, "sharegate.yaml", `
http:
  addr: localhost:8443
  rate_limit: 10-S
storage:
  root: /srv/share
  ignore_regex: |
    /\.bak$/i
    ^tmp_
  owners_file: /etc/sharegate/owners.yaml
permissions:
  file: /etc/sharegate/perms.yaml
  cache_ttl: 1m
log_level: warn
`)

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8443", cfg.HTTP.Addr)
	assert.Equal(t, "10-S", cfg.HTTP.RateLimit)
	assert.Equal(t, "/srv/share", cfg.Storage.Root)
	assert.Equal(t, 2, len(strings.Split(strings.TrimSpace(cfg.Storage.IgnoreRegex), "\n")))
	assert.Equal(t, "/etc/sharegate/owners.yaml", cfg.Storage.OwnersFile)
	assert.Equal(t, "/etc/sharegate/perms.yaml", cfg.Permissions.File)
	assert.Equal(t, time.Minute, cfg.Permissions.CacheTTL)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigJSONWithEnvOverride(t *testing.T) {
	withConfigFile(t, "sharegate.json", `{
	"http": {"addr": "localhost:38080"},
	"storage": {"root": "/srv/from-file"},
	"permissions": {"file": "perms.json"}
}`)
	t.Setenv("SHAREGATE_STORAGE_ROOT", "/srv/from-env")

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, "localhost:38080", cfg.HTTP.Addr)
	assert.Equal(t, "/srv/from-env", cfg.Storage.Root)
	assert.Equal(t, "perms.json", cfg.Permissions.File)
}

func TestLoadConfigBadFile(t *testing.T) {
	withConfigFile(t, "sharegate.yaml", "http: [unterminated")

	_, err := loadConfig(rootCmd)
	assert.Error(t, err)
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPermsImportExportCheck(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "perms.yaml")
	require.NoError(t, os.WriteFile(source, []byte(testPerms), 0o644))
	dbPath := filepath.Join(dir, "perms.db")
	exported := filepath.Join(dir, "exported.json")

	out, err := execute(t, newPermsCmd(), "import", source, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 users")

	out, err = execute(t, newPermsCmd(), "export", exported, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 2 users")
	assert.FileExists(t, exported)

	out, err = execute(t, newPermsCmd(), "check", "alice", "reports/q1.pdf", "--perms", exported)
	require.NoError(t, err)
	assert.Regexp(t, `read\s+allow`, out)
	assert.Regexp(t, `write\s+deny`, out)
	assert.Regexp(t, `rule\s+reports\n`, out)

	out, err = execute(t, newPermsCmd(), "check", "alice", "reports/private/x", "--perms-db", dbPath)
	require.NoError(t, err)
	assert.Regexp(t, `read\s+deny`, out)
	assert.Regexp(t, `rule\s+reports/private`, out)

	out, err = execute(t, newPermsCmd(), "check", "mallory", "reports", "--perms", exported)
	require.NoError(t, err)
	assert.Contains(t, out, "unknown user")
}

func TestPermsRequiresDB(t *testing.T) {
	_, err := execute(t, newPermsCmd(), "import", "perms.yaml")
	assert.ErrorIs(t, err, errNoDB)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("SHAREGATE_AUTH_TOKEN_ISSUER", "test-issuer")
	t.Setenv("SHAREGATE_AUTH_ACCESS_TOKEN_SECRET", "test-secret")

	out, err := execute(t, newTokenCmd(), "alice")
	require.NoError(t, err)

	svc := auth.NewAuthService(&auth.Config{
		Enabled:           true,
		TokenIssuer:       "test-issuer",
		AccessTokenSecret: "test-secret",
	})
	claims, err := svc.ValidateAccessToken(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
}
