// Package permstore loads permission tables from where the operator keeps them:
// a YAML or JSON document on disk, or a SQLite database.
package permstore

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/openmined/sharegate/internal/access"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported permissions format")
	ErrNoStore           = errors.New("no permissions store configured")
)

// Store produces the current permission table.
// Implementations must be safe for concurrent use; callers load once per request.
type Store interface {
	Load(ctx context.Context) (*access.Table, error)
}

// Document is the on-disk shape of a permissions file.
//
//	users:
//	  alice:
//	    folders:
//	      - path: reports
//	        read: true
//	  bob:
//	    folder_only: true
type Document struct {
	Users map[string]*access.Permission `yaml:"users" json:"users"`
}

// NewDocument captures the records of a table.
func NewDocument(table *access.Table) *Document {
	return &Document{Users: table.Records()}
}

// Table compiles the document.
func (d *Document) Table() *access.Table {
	if d == nil {
		return access.NewTable(nil)
	}
	return access.NewTable(d.Users)
}

// StaticStore always returns the same table. Useful for tests and embedding.
type StaticStore struct {
	table *access.Table
}

func NewStaticStore(table *access.Table) *StaticStore {
	return &StaticStore{table: table}
}

func (s *StaticStore) Load(context.Context) (*access.Table, error) {
	if s.table == nil {
		return nil, ErrNoStore
	}
	return s.table, nil
}

// CachedStore keeps the last table from another store for a short time. Tables are
// immutable, so sharing one between requests is safe.
type CachedStore struct {
	next  Store
	cache *expirable.LRU[string, *access.Table]
}

const cachedTableKey = "table"

// NewCachedStore wraps next. A ttl of zero or less returns next unchanged.
func NewCachedStore(next Store, ttl time.Duration) Store {
	if ttl <= 0 {
		return next
	}
	return &CachedStore{
		next:  next,
		cache: expirable.NewLRU[string, *access.Table](1, nil, ttl),
	}
}

func (s *CachedStore) Load(ctx context.Context) (*access.Table, error) {
	if table, ok := s.cache.Get(cachedTableKey); ok {
		return table, nil
	}

	table, err := s.next.Load(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.Add(cachedTableKey, table)
	return table, nil
}
