package explorer

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path"
	"strings"

	_ "embed"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/openmined/sharegate/internal/sharefs"
	"github.com/openmined/sharegate/internal/server/handlers/api"
	"github.com/openmined/sharegate/internal/server/middlewares"
	"github.com/openmined/sharegate/internal/utils"
)

// BasePath is where the explorer is mounted.
const BasePath = "/browse"

//go:embed index.html.tmpl
var indexOfTmpl string

//go:embed not_found.html.tmpl
var notFoundOfTmpl string

// ExplorerHandler renders the upload root as plain "Index of" pages for browsers.
type ExplorerHandler struct {
	svc      *sharefs.Service
	tplIndex *template.Template
	tpl404   *template.Template
}

// New creates a new Explorer instance
func New(svc *sharefs.Service) *ExplorerHandler {
	funcMap := template.FuncMap{
		"humanizeSize": func(size int64) string {
			return humanize.IBytes(uint64(size))
		},
		"base": path.Base,
	}

	tplIndex := template.Must(template.New("index").Funcs(funcMap).Parse(indexOfTmpl))
	tpl404 := template.Must(template.New("notfound").Funcs(funcMap).Parse(notFoundOfTmpl))

	return &ExplorerHandler{
		svc:      svc,
		tplIndex: tplIndex,
		tpl404:   tpl404,
	}
}

func (e *ExplorerHandler) Handler(c *gin.Context) {
	rel := strings.Trim(c.Param("filepath"), "/")

	view, err := e.svc.View(middlewares.GetUser(c), middlewares.GetTable(c))
	if err != nil {
		e.serveError(c, rel, err)
		return
	}

	entry, err := view.Stat(c.Request.Context(), rel)
	if err != nil {
		e.serveError(c, rel, err)
		return
	}

	if entry.Info.IsDir() {
		e.serveDir(c, view, rel)
	} else {
		e.serveFile(c, view, rel)
	}
}

// Serve the "Index Of" page
func (e *ExplorerHandler) serveDir(c *gin.Context, view *sharefs.View, rel string) {
	dir, children, err := view.List(c.Request.Context(), rel)
	if err != nil {
		e.serveError(c, rel, err)
		return
	}

	data := indexData{
		User:     view.User(),
		Path:     "/",
		BasePath: BasePath,
		Writable: view.CanWrite(dir.Path),
	}
	if dir.Path != "" {
		data.Path = "/" + dir.Path + "/"
		data.Parent = BasePath + "/" + path.Dir(dir.Path)
		if path.Dir(dir.Path) == "." {
			data.Parent = BasePath + "/"
		}
	}

	for _, child := range children {
		if child.Info.IsDir() {
			data.Folders = append(data.Folders, child)
		} else {
			data.Files = append(data.Files, child)
		}
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := e.tplIndex.Execute(c.Writer, data); err != nil {
		api.AbortWithError(c, http.StatusInternalServerError, api.CodeInternalError, fmt.Errorf("failed to execute template: %w", err))
	}
}

func (e *ExplorerHandler) serveFile(c *gin.Context, view *sharefs.View, rel string) {
	f, entry, err := view.Open(c.Request.Context(), rel)
	if err != nil {
		e.serveError(c, rel, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", utils.ContentTypeOf(entry.Info.Name(), f))
	http.ServeContent(c.Writer, c.Request, entry.Info.Name(), entry.Info.ModTime(), f)
}

// serveError shows the same page for missing and forbidden paths.
func (e *ExplorerHandler) serveError(c *gin.Context, rel string, err error) {
	status := http.StatusNotFound
	if errors.Is(err, sharefs.ErrAccessDenied) {
		status = http.StatusForbidden
	} else if !errors.Is(err, sharefs.ErrNotFound) && !errors.Is(err, sharefs.ErrInvalidPath) {
		slog.Error("explorer failed", "path", rel, "error", err)
		status = http.StatusInternalServerError
	}

	c.Error(err)
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := e.tpl404.Execute(c.Writer, map[string]any{"Status": status, "Text": http.StatusText(status), "BasePath": BasePath}); err != nil {
		slog.Error("Failed to execute error template", "error", err)
	}
}
