package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/sharegate/internal/access"
	"github.com/openmined/sharegate/internal/permstore"
	"github.com/openmined/sharegate/internal/server/handlers/api"
)

const tableContextKey = "permissions"

// Permissions loads the permission table once per request. A store failure denies the
// request instead of falling back to a stale or empty table.
func Permissions(store permstore.Store) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		table, err := store.Load(ctx.Request.Context())
		if err != nil {
			api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError,
				fmt.Errorf("load permissions: %w", err))
			return
		}

		ctx.Set(tableContextKey, table)
		ctx.Request = ctx.Request.WithContext(access.WithTable(ctx.Request.Context(), table))
		ctx.Next()
	}
}

// GetTable returns the permission table loaded for the request, or nil.
func GetTable(ctx *gin.Context) *access.Table {
	value, ok := ctx.Get(tableContextKey)
	if !ok {
		return nil
	}
	table, _ := value.(*access.Table)
	return table
}
