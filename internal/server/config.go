package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ulule/limiter/v3"

	"github.com/openmined/sharegate/internal/server/auth"
	"github.com/openmined/sharegate/internal/utils"
)

const (
	DefaultAddr       = "127.0.0.1:8080"
	DefaultRateLimit  = "300-M"
	DefaultProbeDepth = 2
	DefaultCacheTTL   = 5 * time.Second
)

type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Auth        auth.Config       `mapstructure:"auth"`
	LogLevel    string            `mapstructure:"log_level"`

	// AccessLogDir enables per-user access logs of file operations when set.
	AccessLogDir string `mapstructure:"access_log_dir"`
}

type HTTPConfig struct {
	Addr      string `mapstructure:"addr"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`
	RateLimit string `mapstructure:"rate_limit"`
	HSTS      bool   `mapstructure:"hsts"`
}

// TLS reports whether the server terminates TLS itself.
func (c *HTTPConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

type StorageConfig struct {
	Root        string `mapstructure:"root"`
	ProbeDepth  int    `mapstructure:"probe_depth"`
	IgnoreRegex string `mapstructure:"ignore_regex"`
	IgnoreFile  string `mapstructure:"ignore_file"`
	OwnersFile  string `mapstructure:"owners_file"`
}

type PermissionsConfig struct {
	File     string        `mapstructure:"file"`
	DB       string        `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

var (
	ErrNoRoot             = errors.New("`storage.root` is required")
	ErrPermissionSource   = errors.New("exactly one of `permissions.file` and `permissions.db` must be set")
	ErrTLSPair            = errors.New("`http.cert_file` and `http.key_file` must be set together")
	ErrInvalidProbeDepth  = errors.New("`storage.probe_depth` must not be negative")
	ErrInvalidLogLevel    = errors.New("`log_level` must be one of debug, info, warn, error")
	ErrInvalidPermsFormat = errors.New("`permissions.file` must be a .yaml, .yml or .json file")
)

func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return ErrNoRoot
	}

	root, err := utils.ResolvePath(c.Storage.Root)
	if err != nil {
		return fmt.Errorf("storage root: %w", err)
	}
	if !utils.DirExists(root) {
		return fmt.Errorf("storage root %q is not a directory", c.Storage.Root)
	}
	c.Storage.Root = root

	if c.Storage.ProbeDepth < 0 {
		return ErrInvalidProbeDepth
	}

	if (c.Permissions.File == "") == (c.Permissions.DB == "") {
		return ErrPermissionSource
	}
	if c.Permissions.File != "" && !hasPermsExt(c.Permissions.File) {
		return ErrInvalidPermsFormat
	}

	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return ErrTLSPair
	}

	if c.HTTP.RateLimit != "" {
		if _, err := limiter.NewRateFromFormatted(c.HTTP.RateLimit); err != nil {
			return fmt.Errorf("`http.rate_limit`: %w", err)
		}
	}

	if c.LogLevel != "" {
		switch strings.ToLower(c.LogLevel) {
		case "debug", "info", "warn", "error":
		default:
			return ErrInvalidLogLevel
		}
	}

	if err := c.Auth.Validate(); err != nil {
		return err
	}

	return nil
}

func hasPermsExt(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".json")
}
