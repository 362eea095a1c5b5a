package permstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/openmined/sharegate/internal/access"
	"github.com/openmined/sharegate/internal/db"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	is_admin INTEGER NOT NULL DEFAULT 0,
	folder_only INTEGER NOT NULL DEFAULT 0,
	read_only INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS folder_rules (
	username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	path TEXT NOT NULL,
	can_read INTEGER,
	can_write INTEGER,
	can_read_own INTEGER,
	PRIMARY KEY (username, position)
);
`

type userRow struct {
	Username   string `db:"username"`
	IsAdmin    bool   `db:"is_admin"`
	FolderOnly bool   `db:"folder_only"`
	ReadOnly   bool   `db:"read_only"`
}

type ruleRow struct {
	Username   string       `db:"username"`
	Position   int          `db:"position"`
	Path       string       `db:"path"`
	CanRead    sql.NullBool `db:"can_read"`
	CanWrite   sql.NullBool `db:"can_write"`
	CanReadOwn sql.NullBool `db:"can_read_own"`
}

// SQLStore keeps permissions in SQLite. Rule order is preserved through the position
// column, so duplicate rules resolve the same way they do in a file.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open database and creates the schema if needed.
func NewSQLStore(ctx context.Context, database *sqlx.DB) (*SQLStore, error) {
	s := &SQLStore{db: database}
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates the permission tables.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize permissions schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context) (*access.Table, error) {
	var users []userRow
	if err := s.db.SelectContext(ctx, &users,
		"SELECT username, is_admin, folder_only, read_only FROM users"); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	var rules []ruleRow
	if err := s.db.SelectContext(ctx, &rules,
		`SELECT username, position, path, can_read, can_write, can_read_own
		FROM folder_rules ORDER BY username, position`); err != nil {
		return nil, fmt.Errorf("failed to load folder rules: %w", err)
	}

	records := make(map[string]*access.Permission, len(users))
	for _, u := range users {
		records[u.Username] = &access.Permission{
			Admin:      u.IsAdmin,
			FolderOnly: u.FolderOnly,
			ReadOnly:   u.ReadOnly,
		}
	}

	for _, r := range rules {
		perm, ok := records[r.Username]
		if !ok {
			slog.Warn("orphan folder rule", "user", r.Username, "position", r.Position)
			continue
		}
		perm.Folders = append(perm.Folders, access.FolderRule{
			Path:    r.Path,
			Read:    fromNull(r.CanRead),
			Write:   fromNull(r.CanWrite),
			ReadOwn: fromNull(r.CanReadOwn),
		})
	}

	return access.NewTable(records), nil
}

// Replace swaps the stored permissions for records in a single transaction.
func (s *SQLStore) Replace(ctx context.Context, records map[string]*access.Permission) error {
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM folder_rules"); err != nil {
			return fmt.Errorf("failed to clear folder rules: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM users"); err != nil {
			return fmt.Errorf("failed to clear users: %w", err)
		}

		userStmt, err := tx.PreparexContext(ctx,
			"INSERT INTO users (username, is_admin, folder_only, read_only) VALUES (?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer userStmt.Close()

		ruleStmt, err := tx.PreparexContext(ctx,
			`INSERT INTO folder_rules (username, position, path, can_read, can_write, can_read_own)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer ruleStmt.Close()

		for user, perm := range records {
			if user == "" || perm == nil {
				continue
			}

			if _, err := userStmt.ExecContext(ctx, user, perm.Admin, perm.FolderOnly, perm.ReadOnly); err != nil {
				return fmt.Errorf("failed to insert user %s: %w", user, err)
			}

			for i, rule := range perm.Folders {
				_, err := ruleStmt.ExecContext(ctx, user, i, rule.Path,
					toNull(rule.Read), toNull(rule.Write), toNull(rule.ReadOwn))
				if err != nil {
					return fmt.Errorf("failed to insert rule %d for %s: %w", i, user, err)
				}
			}
		}

		return nil
	})
}

func fromNull(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	return access.Bool(v.Bool)
}

func toNull(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
