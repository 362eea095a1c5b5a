package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/openmined/sharegate/internal/db"
	"github.com/openmined/sharegate/internal/pathsafe"
	"github.com/openmined/sharegate/internal/permstore"
	"github.com/openmined/sharegate/internal/server/accesslog"
	"github.com/openmined/sharegate/internal/server/auth"
	"github.com/openmined/sharegate/internal/sharefs"
)

type Services struct {
	Auth      *auth.AuthService
	Perms     permstore.Store
	Files     *sharefs.Service
	AccessLog *accesslog.AccessLogger // nil when disabled

	db *sqlx.DB
}

func NewServices(ctx context.Context, config *Config) (*Services, error) {
	perms, database, err := OpenPermissions(ctx, &config.Permissions)
	if err != nil {
		return nil, err
	}

	var owners sharefs.Owners
	if config.Storage.OwnersFile != "" {
		ownersFile, err := permstore.NewOwnersFile(config.Storage.OwnersFile, config.Permissions.CacheTTL)
		if err != nil {
			closeDB(database)
			return nil, fmt.Errorf("owners file: %w", err)
		}
		owners = ownersFile
	}

	filesSvc, err := sharefs.NewService(sharefs.Config{
		Root:       config.Storage.Root,
		ProbeDepth: config.Storage.ProbeDepth,
		Filter: pathsafe.LazyFilter(func() pathsafe.FilterConfig {
			return pathsafe.FilterConfig{
				IgnoreRegex: config.Storage.IgnoreRegex,
				IgnoreFile:  config.Storage.IgnoreFile,
			}
		}),
		Owners: owners,
	})
	if err != nil {
		closeDB(database)
		return nil, err
	}

	var accessLogger *accesslog.AccessLogger
	if config.AccessLogDir != "" {
		accessLogger, err = accesslog.New(config.AccessLogDir, slog.Default())
		if err != nil {
			closeDB(database)
			return nil, fmt.Errorf("create access logger: %w", err)
		}
	}

	return &Services{
		Auth:      auth.NewAuthService(&config.Auth),
		Perms:     perms,
		Files:     filesSvc,
		AccessLog: accessLogger,
		db:        database,
	}, nil
}

// OpenPermissions opens the configured permission source. The returned database is nil
// for a file source; otherwise the caller owns it.
func OpenPermissions(ctx context.Context, config *PermissionsConfig) (permstore.Store, *sqlx.DB, error) {
	if config.File != "" {
		store, err := permstore.NewFileStore(config.File, config.CacheTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("permissions file: %w", err)
		}
		slog.Info("permissions source", "type", "file", "path", store.Path())
		return store, nil, nil
	}

	database, err := db.NewSqliteDB(db.WithPath(config.DB))
	if err != nil {
		return nil, nil, fmt.Errorf("permissions db: %w", err)
	}

	store, err := permstore.NewSQLStore(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("permissions db: %w", err)
	}

	slog.Info("permissions source", "type", "sqlite", "driver", db.Driver(), "path", config.DB)
	return permstore.NewCachedStore(store, config.CacheTTL), database, nil
}

func (s *Services) Close() error {
	var errs []error
	if s.AccessLog != nil {
		if err := s.AccessLog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close access logger: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close permissions db: %w", err))
		}
	}
	return errors.Join(errs...)
}

func closeDB(database *sqlx.DB) {
	if database != nil {
		database.Close()
	}
}
