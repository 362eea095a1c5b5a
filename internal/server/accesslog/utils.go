package accesslog

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// sanitizeUsername converts a username to a filesystem-safe string
func sanitizeUsername(user string) string {
	result := make([]byte, 0, len(user))
	for i := 0; i < len(user); i++ {
		c := user[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '@' || c == '-' || c == '_' {
			result = append(result, c)
		} else if c == '.' && i > 0 {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	return string(result)
}

func accessType(method string, status int) AccessType {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return AccessTypeDeny
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, "PROPFIND":
		return AccessTypeRead
	}
	return AccessTypeWrite
}

// requestPath is the logical path a request named, from the query or the route wildcard.
func requestPath(ctx *gin.Context) string {
	if p := ctx.Query("path"); p != "" {
		return p
	}
	if p := ctx.Query("from"); p != "" {
		return p
	}
	return strings.TrimPrefix(ctx.Param("filepath"), "/")
}
