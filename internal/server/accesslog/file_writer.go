package accesslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const currentLogName = "access.log"

type userLogWriter struct {
	mutex       sync.Mutex
	logDir      string
	file        *os.File
	currentSize int64
	maxSize     int64
	maxFiles    int
}

func newUserLogWriter(logDir string, maxSize int64, maxFiles int) (*userLogWriter, error) {
	if err := os.MkdirAll(logDir, LogDirPermission); err != nil {
		return nil, fmt.Errorf("failed to create user log directory: %w", err)
	}

	w := &userLogWriter{
		logDir:   logDir,
		maxSize:  maxSize,
		maxFiles: maxFiles,
	}
	if err := w.openLogFile(); err != nil {
		return nil, err
	}
	return w, nil
}

// writeEntry appends the entry as one JSON line, rotating first when the file would
// grow past maxSize.
func (w *userLogWriter) writeEntry(entry *AccessLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}
	data = append(data, '\n')

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.file == nil {
		return os.ErrClosed
	}

	if w.currentSize > 0 && w.currentSize+int64(len(data)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return fmt.Errorf("failed to rotate log: %w", err)
		}
	}

	n, err := w.file.Write(data)
	w.currentSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	return nil
}

func (w *userLogWriter) openLogFile() error {
	file, err := os.OpenFile(filepath.Join(w.logDir, currentLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, LogFilePermission)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	w.file = file
	w.currentSize = stat.Size()
	return nil
}

// rotate renames the current file with a timestamp, drops the oldest rotated files and
// starts a fresh current file.
func (w *userLogWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	rotated := fmt.Sprintf("access_%s.log", time.Now().UTC().Format("20060102_150405.000000000"))
	if err := os.Rename(filepath.Join(w.logDir, currentLogName), filepath.Join(w.logDir, rotated)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rename log file: %w", err)
	}

	if err := w.cleanOldLogs(); err != nil {
		return fmt.Errorf("failed to clean old logs: %w", err)
	}

	return w.openLogFile()
}

func (w *userLogWriter) cleanOldLogs() error {
	rotated, err := rotatedLogs(w.logDir)
	if err != nil {
		return err
	}

	// the current file counts towards maxFiles
	keep := w.maxFiles - 1
	if len(rotated) <= keep {
		return nil
	}

	for _, name := range rotated[:len(rotated)-keep] {
		if err := os.Remove(filepath.Join(w.logDir, name)); err != nil {
			return fmt.Errorf("failed to remove old log file: %w", err)
		}
	}
	return nil
}

func (w *userLogWriter) close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotatedLogs returns the rotated log names in dir, oldest first.
func rotatedLogs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == currentLogName {
			continue
		}
		if strings.HasPrefix(name, "access_") && filepath.Ext(name) == ".log" {
			names = append(names, name)
		}
	}
	return names, nil
}
