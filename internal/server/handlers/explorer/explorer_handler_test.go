package explorer

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/sharegate/internal/access"
	"github.com/openmined/sharegate/internal/permstore"
	"github.com/openmined/sharegate/internal/server/middlewares"
	"github.com/openmined/sharegate/internal/sharefs"
)

func setupExplorer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	for rel, content := range map[string]string{
		"reports/q1.txt":         "first quarter",
		"reports/drafts/wip.txt": "wip",
		"secret/keys.txt":        "keys",
	} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	table := access.NewTable(map[string]*access.Permission{
		"alice": {Folders: []access.FolderRule{
			access.NewFolderRule("reports", access.AccessRead),
			access.NewFolderRule("reports/drafts", 0).Revoke(access.AccessRead),
		}},
	})

	svc, err := sharefs.NewService(sharefs.Config{Root: root, ProbeDepth: access.DefaultProbeDepth})
	require.NoError(t, err)

	r := gin.New()
	r.Use(middlewares.JWTAuth(nil), middlewares.Permissions(permstore.NewStaticStore(table)))
	r.GET(BasePath+"/*filepath", New(svc).Handler)
	return r
}

func browse(r *gin.Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(middlewares.DevUserHeader, "alice")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestExplorerHandler(t *testing.T) {
	r := setupExplorer(t)

	t.Run("top level", func(t *testing.T) {
		w := browse(r, BasePath+"/")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), "Index of /")
		assert.Contains(t, w.Body.String(), `href="/browse/reports/"`)
		assert.NotContains(t, w.Body.String(), "secret")
	})

	t.Run("folder with locked child", func(t *testing.T) {
		w := browse(r, BasePath+"/reports")
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "Index of /reports/")
		assert.Contains(t, body, `href="/browse/reports/q1.txt"`)
		assert.Contains(t, body, `class="locked"`)
		assert.NotContains(t, body, `href="/browse/reports/drafts/"`)
		assert.Contains(t, body, "13 B")
	})

	t.Run("file", func(t *testing.T) {
		w := browse(r, BasePath+"/reports/q1.txt")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "first quarter", w.Body.String())
	})

	t.Run("denied and missing look alike", func(t *testing.T) {
		for _, target := range []string{"/secret/keys.txt", "/reports/drafts/wip.txt", "/nope"} {
			w := browse(r, BasePath+target)
			assert.Equal(t, http.StatusForbidden, w.Code, target)
			assert.NotContains(t, w.Body.String(), "keys", target)
		}

		w := browse(r, BasePath+"/reports/missing.txt")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
