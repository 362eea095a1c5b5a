package middlewares

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

var (
	// matched as prefixes; downloads and DAV bodies are passed through untouched
	excludedPaths = []string{
		"/healthz",
		"/api/v1/files/download",
		"/dav",
		"/browse",
	}
	excludedExtensions = []string{
		".png", ".gif", ".jpeg", ".jpg", ".webp", ".ico",
		".zip", ".tar", ".gz", ".bz2", ".rar", ".7z",
		".mp3", ".mp4", ".mov", ".mkv",
		".docx", ".xlsx", ".pptx",
	}
)

func GZIP() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.BestSpeed,
		gzip.WithExcludedPaths(excludedPaths),
		gzip.WithExcludedExtensions(excludedExtensions),
	)
}
