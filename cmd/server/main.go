package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openmined/sharegate/internal/server"
	"github.com/openmined/sharegate/internal/version"
)

const envPrefix = "SHAREGATE"

// every key here can be set from the environment, e.g. SHAREGATE_STORAGE_ROOT
var configKeys = []string{
	"http.addr",
	"http.cert_file",
	"http.key_file",
	"http.rate_limit",
	"http.hsts",
	"storage.root",
	"storage.probe_depth",
	"storage.ignore_regex",
	"storage.ignore_file",
	"storage.owners_file",
	"permissions.file",
	"permissions.db",
	"permissions.cache_ttl",
	"auth.enabled",
	"auth.token_issuer",
	"auth.access_token_secret",
	"auth.access_token_expiry",
	"log_level",
	"access_log_dir",
}

var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:     "sharegate",
	Short:   "ShareGate file sharing server",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		srv, err := server.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true
		defer slog.Info("Bye!")
		return srv.Start(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file")
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().String("cert", "", "Path to the TLS certificate file")
	rootCmd.Flags().String("key", "", "Path to the TLS key file")
	rootCmd.Flags().StringP("root", "r", "", "Upload root directory")
	rootCmd.Flags().StringP("perms", "p", "", "Permissions file (.yaml, .yml or .json)")
	rootCmd.Flags().String("perms-db", "", "Permissions SQLite database")

	rootCmd.AddCommand(newPermsCmd(), newTokenCmd())
}

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges defaults, the config file, the environment (a .env file included)
// and flags, in increasing order of precedence.
func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.rate_limit", server.DefaultRateLimit)
	v.SetDefault("storage.probe_depth", server.DefaultProbeDepth)
	v.SetDefault("permissions.cache_ttl", server.DefaultCacheTTL)
	v.SetDefault("auth.access_token_expiry", 24*time.Hour)
	v.SetDefault("log_level", "info")

	if flag := cmd.Flag("config"); flag != nil && flag.Value.String() != "" {
		v.SetConfigFile(flag.Value.String())
	} else {
		v.SetConfigName("sharegate")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sharegate")
	}

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	for key, name := range map[string]string{
		"http.addr":        "bind",
		"http.cert_file":   "cert",
		"http.key_file":    "key",
		"storage.root":     "root",
		"permissions.file": "perms",
		"permissions.db":   "perms-db",
	} {
		if flag := cmd.Flag(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, err
			}
		}
	}

	cfg := &server.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}

	setLogLevel(cfg.LogLevel)
	if path := v.ConfigFileUsed(); path != "" {
		slog.Debug("config loaded", "path", path)
	}

	return cfg, nil
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "warn":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
}
