package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openmined/sharegate/internal/access"
	"github.com/openmined/sharegate/internal/db"
	"github.com/openmined/sharegate/internal/permstore"
	"github.com/openmined/sharegate/internal/server"
)

var errNoDB = errors.New("--db is required")

func newPermsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perms",
		Short: "Manage permission records",
	}
	cmd.AddCommand(newPermsImportCmd(), newPermsExportCmd(), newPermsCheckCmd())
	return cmd
}

func newPermsImportCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the records in a permissions database with the ones in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return errNoDB
			}

			file, err := permstore.NewFileStore(args[0], 0)
			if err != nil {
				return err
			}
			table, err := file.Load(cmd.Context())
			if err != nil {
				return err
			}

			store, closeDB, err := openSQLStore(cmd, dbPath)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := store.Replace(cmd.Context(), table.Records()); err != nil {
				return err
			}

			cmd.Printf("imported %d users into %s\n", table.Len(), dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Permissions SQLite database")
	return cmd
}

func newPermsExportCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write the records of a permissions database to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return errNoDB
			}

			file, err := permstore.NewFileStore(args[0], 0)
			if err != nil {
				return err
			}

			store, closeDB, err := openSQLStore(cmd, dbPath)
			if err != nil {
				return err
			}
			defer closeDB()

			table, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			if err := file.Save(cmd.Context(), table); err != nil {
				return err
			}

			cmd.Printf("exported %d users to %s\n", table.Len(), args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Permissions SQLite database")
	return cmd
}

func newPermsCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <user> <path>",
		Short: "Show what a user may do with a path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if (cfg.Permissions.File == "") == (cfg.Permissions.DB == "") {
				return server.ErrPermissionSource
			}

			store, database, err := server.OpenPermissions(cmd.Context(), &cfg.Permissions)
			if err != nil {
				return err
			}
			if database != nil {
				defer database.Close()
			}

			table, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			printVerdicts(cmd, table, args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringP("perms", "p", "", "Permissions file (.yaml, .yml or .json)")
	cmd.Flags().String("perms-db", "", "Permissions SQLite database")
	return cmd
}

func printVerdicts(cmd *cobra.Command, table *access.Table, user, path string) {
	perm, ok := table.Permission(user)
	if !ok {
		cmd.Printf("%s: unknown user, everything is denied\n", user)
		return
	}

	rule, matched := access.MatchingRule(user, table, path)
	if !matched {
		rule = "-"
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "user\t%s\n", user)
	fmt.Fprintf(w, "path\t%s\n", path)
	fmt.Fprintf(w, "admin\t%t\n", perm.Admin)
	fmt.Fprintf(w, "folder_only\t%t\n", perm.FolderOnly)
	fmt.Fprintf(w, "read_only\t%t\n", perm.ReadOnly)
	fmt.Fprintf(w, "rule\t%s\n", rule)
	fmt.Fprintf(w, "read\t%s\n", verdict(access.CanRead(user, table, path)))
	fmt.Fprintf(w, "read_own\t%s\n", verdict(access.CanReadOwn(user, table, path)))
	fmt.Fprintf(w, "write\t%s\n", verdict(access.CanWrite(user, table, path)))
	w.Flush()
}

func verdict(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

func openSQLStore(cmd *cobra.Command, path string) (*permstore.SQLStore, func(), error) {
	database, err := db.NewSqliteDB(db.WithPath(path))
	if err != nil {
		return nil, nil, err
	}

	store, err := permstore.NewSQLStore(cmd.Context(), database)
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	return store, func() { database.Close() }, nil
}
