package utils

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const octetStream = "application/octet-stream"

// DetectContentType guesses a MIME type from the file name. Text formats the mime package
// does not know are served as plain text.
func DetectContentType(name string) string {
	if isTextLike(name) {
		return "text/plain; charset=utf-8"
	} else if mimeType := mime.TypeByExtension(filepath.Ext(name)); mimeType != "" {
		return mimeType
	}
	return octetStream
}

// SniffContentType is DetectContentType with a fallback to the first bytes of the content.
func SniffContentType(name string, head []byte) string {
	if ct := DetectContentType(name); ct != octetStream || len(head) == 0 {
		return ct
	}
	return http.DetectContentType(head)
}

// ContentTypeOf names the content type of an open file. Only files whose name says
// nothing are sniffed; r is rewound before returning.
func ContentTypeOf(name string, r io.ReadSeeker) string {
	if ct := DetectContentType(name); ct != octetStream {
		return ct
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return octetStream
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return octetStream
	}
	return SniffContentType(name, head[:n])
}

func isTextLike(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".yaml", ".yml", ".toml", ".md", ".log", ".env":
		return true
	}
	return false
}
