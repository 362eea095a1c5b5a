package dav

import (
	"log/slog"
	"net/http"

	"golang.org/x/net/webdav"

	"github.com/openmined/sharegate/internal/sharefs"
)

// Prefix is where the WebDAV tree is mounted.
const Prefix = "/dav"

// Methods lists every method the WebDAV handler answers, for routers that register
// methods one by one.
var Methods = []string{
	http.MethodOptions, http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete,
	"PROPFIND", "PROPPATCH", "MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK",
}

// NewHandler returns the WebDAV handler. Identity and permissions must already be on the
// request context.
func NewHandler(svc *sharefs.Service) http.Handler {
	return &webdav.Handler{
		Prefix:     Prefix,
		FileSystem: NewFileSystem(svc),
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				slog.Debug("webdav request failed", "method", r.Method, "path", r.URL.Path, "error", err)
			}
		},
	}
}
