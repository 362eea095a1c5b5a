package permstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/openmined/sharegate/internal/pathsafe"
)

// OwnersDocument maps relative file paths to the username that owns them.
//
//	owners:
//	  dropbox/alice-report.pdf: alice
type OwnersDocument struct {
	Owners map[string]string `yaml:"owners" json:"owners"`
}

// OwnersFile answers ownership questions from a file maintained by another tool.
// It is read-only; nothing in this module writes ownership records.
type OwnersFile struct {
	path   string
	format string
	cache  *fileCache[map[string]string]
}

func NewOwnersFile(path string, cacheTTL time.Duration) (*OwnersFile, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	return &OwnersFile{
		path:   path,
		format: format,
		cache:  newFileCache[map[string]string](cacheTTL),
	}, nil
}

// Owner returns the owner recorded for rel. Read errors are logged and treated as
// "no owner", which hides read-own entries rather than exposing them.
func (o *OwnersFile) Owner(ctx context.Context, rel string) (string, bool) {
	if err := ctx.Err(); err != nil {
		return "", false
	}

	owners, err := o.cache.load(o.path, o.parse)
	if err != nil {
		slog.Warn("owners file not loaded", "path", o.path, "error", err)
		return "", false
	}

	owner, ok := owners[rel]
	return owner, ok && owner != ""
}

// IsOwner reports whether user owns rel.
func (o *OwnersFile) IsOwner(ctx context.Context, user, rel string) bool {
	owner, ok := o.Owner(ctx, rel)
	return ok && owner == user
}

func (o *OwnersFile) parse() (map[string]string, error) {
	doc := &OwnersDocument{}
	if err := decodeFile(o.path, o.format, doc); err != nil {
		return nil, err
	}

	owners := make(map[string]string, len(doc.Owners))
	for path, owner := range doc.Owners {
		rel, ok := pathsafe.NormalizeRelPath(path)
		if !ok || rel == "" {
			slog.Warn("owner record ignored", "path", path)
			continue
		}
		owners[rel] = owner
	}
	return owners, nil
}
