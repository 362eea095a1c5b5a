// Package accesslog keeps a per-user JSON-lines record of file operations.
package accesslog

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

const (
	MaxLogSize        = 10 * 1024 * 1024 // 10MB
	MaxLogFiles       = 5
	LogFilePermission = 0o600
	LogDirPermission  = 0o700
)

type AccessLogger struct {
	baseDir     string
	maxSize     int64
	maxFiles    int
	writers     map[string]*userLogWriter
	writerMutex sync.Mutex
	logger      *slog.Logger
}

type Option func(*AccessLogger)

// WithRotation overrides the size at which a user's log rotates and how many files are kept.
func WithRotation(maxSize int64, maxFiles int) Option {
	return func(al *AccessLogger) {
		if maxSize > 0 {
			al.maxSize = maxSize
		}
		if maxFiles > 0 {
			al.maxFiles = maxFiles
		}
	}
}

func New(baseDir string, logger *slog.Logger, opts ...Option) (*AccessLogger, error) {
	if err := os.MkdirAll(baseDir, LogDirPermission); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	al := &AccessLogger{
		baseDir:  baseDir,
		maxSize:  MaxLogSize,
		maxFiles: MaxLogFiles,
		writers:  make(map[string]*userLogWriter),
		logger:   logger.With("component", "access_logger"),
	}
	for _, opt := range opts {
		opt(al)
	}
	return al, nil
}

// Middleware records every request that got past authentication once the handler is done.
func (al *AccessLogger) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()

		user := ctx.GetString("user")
		if user == "" {
			return
		}

		status := ctx.Writer.Status()
		entry := &AccessLogEntry{
			Timestamp:  time.Now().UTC(),
			User:       user,
			AccessType: accessType(ctx.Request.Method, status),
			Method:     ctx.Request.Method,
			Route:      ctx.FullPath(),
			Path:       requestPath(ctx),
			Target:     ctx.Query("to"),
			StatusCode: status,
			Bytes:      max(ctx.Writer.Size(), 0),
			IP:         ctx.ClientIP(),
			UserAgent:  ctx.Request.UserAgent(),
			Allowed:    status < 400,
		}

		if err := al.Log(entry); err != nil {
			al.logger.Error("failed to write access log", "user", user, "error", err)
		}
	}
}

// Log appends entry to its user's log.
func (al *AccessLogger) Log(entry *AccessLogEntry) error {
	writer, err := al.writer(entry.User)
	if err != nil {
		return err
	}
	return writer.writeEntry(entry)
}

func (al *AccessLogger) writer(user string) (*userLogWriter, error) {
	al.writerMutex.Lock()
	defer al.writerMutex.Unlock()

	if writer, ok := al.writers[user]; ok {
		return writer, nil
	}

	writer, err := newUserLogWriter(al.userDir(user), al.maxSize, al.maxFiles)
	if err != nil {
		return nil, err
	}
	al.writers[user] = writer
	return writer, nil
}

func (al *AccessLogger) userDir(user string) string {
	return filepath.Join(al.baseDir, sanitizeUsername(user))
}

func (al *AccessLogger) Close() error {
	al.writerMutex.Lock()
	defer al.writerMutex.Unlock()

	var errs []error
	for user, writer := range al.writers {
		if err := writer.close(); err != nil {
			errs = append(errs, err)
		}
		delete(al.writers, user)
	}
	return errors.Join(errs...)
}

// UserLogs returns up to limit of the user's most recent entries, oldest first.
func (al *AccessLogger) UserLogs(user string, limit int) ([]*AccessLogEntry, error) {
	dir := al.userDir(user)

	rotated, err := rotatedLogs(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	files := append(rotated, currentLogName)

	var entries []*AccessLogEntry
	for i := len(files) - 1; i >= 0 && len(entries) < limit; i-- {
		fileEntries, err := readLogFile(filepath.Join(dir, files[i]))
		if err != nil {
			if !os.IsNotExist(err) {
				al.logger.Warn("failed to read log file", "file", files[i], "error", err)
			}
			continue
		}
		entries = append(fileEntries, entries...)
	}

	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func readLogFile(path string) ([]*AccessLogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []*AccessLogEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry AccessLogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, scanner.Err()
}
