package permstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gopkg.in/yaml.v3"

	"github.com/openmined/sharegate/internal/access"
	"github.com/openmined/sharegate/internal/utils"
)

const (
	formatYAML = "yaml"
	formatJSON = "json"

	fileCacheSize = 8
	lockRetry     = 50 * time.Millisecond
)

// FileStore reads permissions from a YAML or JSON file, chosen by extension.
// Compiled tables are cached by file path, modification time and size; a change to
// the file is picked up on the next Load.
type FileStore struct {
	path   string
	format string
	cache  *fileCache[*access.Table]
}

// NewFileStore creates a store for path. A cacheTTL of zero disables caching.
func NewFileStore(path string, cacheTTL time.Duration) (*FileStore, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	return &FileStore{
		path:   path,
		format: format,
		cache:  newFileCache[*access.Table](cacheTTL),
	}, nil
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (*access.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return s.cache.load(s.path, func() (*access.Table, error) {
		doc := &Document{}
		if err := decodeFile(s.path, s.format, doc); err != nil {
			return nil, err
		}

		table := doc.Table()
		slog.Debug("permissions loaded", "path", s.path, "users", table.Len())
		return table, nil
	})
}

// Save writes the table's records to the file. Concurrent writers are serialized with a
// lock file next to it and readers only ever see a complete document.
func (s *FileStore) Save(ctx context.Context, table *access.Table) error {
	data, err := s.encode(NewDocument(table))
	if err != nil {
		return err
	}

	if err := utils.EnsureParent(s.path); err != nil {
		return fmt.Errorf("ensure parent directory: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("lock permissions file: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock permissions file: %s is busy", s.path)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write permissions: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace permissions file: %w", err)
	}

	slog.Info("permissions saved", "path", s.path, "users", table.Len())
	return nil
}

func decodeFile(path, format string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	switch format {
	case formatJSON:
		err = json.Unmarshal(data, out)
	default:
		err = yaml.Unmarshal(data, out)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

func (s *FileStore) encode(doc *Document) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch s.format {
	case formatJSON:
		data, err = json.MarshalIndent(doc, "", "  ")
	default:
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("encode permissions: %w", err)
	}
	return data, nil
}

func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".json":
		return formatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// fileCache memoizes values parsed from a file. Entries are keyed by path, modification
// time and size, so an edited file is parsed again on the next load.
type fileCache[T any] struct {
	lru *expirable.LRU[string, T]
}

// newFileCache returns a cache holding entries for ttl. A ttl of zero or less disables it.
func newFileCache[T any](ttl time.Duration) *fileCache[T] {
	if ttl <= 0 {
		return &fileCache[T]{}
	}
	return &fileCache[T]{
		lru: expirable.NewLRU[string, T](fileCacheSize, nil, ttl),
	}
}

func (c *fileCache[T]) load(path string, parse func() (T, error)) (T, error) {
	var zero T

	info, err := os.Stat(path)
	if err != nil {
		return zero, fmt.Errorf("stat %s: %w", path, err)
	}

	key := fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
	if c.lru != nil {
		if value, ok := c.lru.Get(key); ok {
			return value, nil
		}
	}

	value, err := parse()
	if err != nil {
		return zero, err
	}

	if c.lru != nil {
		c.lru.Add(key, value)
	}
	return value, nil
}
