package middlewares

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openmined/sharegate/internal/server/auth"
	"github.com/openmined/sharegate/internal/server/handlers/api"
)

const (
	bearerPrefix   = "Bearer "
	authHeader     = "Authorization"
	userContextKey = "user"

	// DevUserHeader names the user when token auth is disabled.
	DevUserHeader = "X-Sharegate-User"
)

var (
	errMissingAuthHeader = errors.New("authorization header is missing")
	errBadAuthHeader     = errors.New("authorization header format must be Bearer {token}")
	errMissingDevUser    = errors.New(DevUserHeader + " header is missing")
)

// JWTAuth authenticates the request and stores the username in both the gin context and
// the request context. With auth disabled the username is taken from DevUserHeader.
func JWTAuth(authService *auth.AuthService) gin.HandlerFunc {
	if !authService.IsEnabled() {
		slog.Warn("auth disabled, trusting " + DevUserHeader + " header")
		return func(ctx *gin.Context) {
			user := strings.TrimSpace(ctx.GetHeader(DevUserHeader))
			if user == "" {
				api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeAuthInvalidCredentials, errMissingDevUser)
				return
			}
			setUser(ctx, user)
			ctx.Next()
		}
	}

	slog.Info("auth middleware enabled")
	return func(ctx *gin.Context) {
		headerValue := ctx.GetHeader(authHeader)
		if headerValue == "" {
			ctx.Header("WWW-Authenticate", `Bearer realm="sharegate"`)
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeAuthInvalidCredentials, errMissingAuthHeader)
			return
		}

		if !strings.HasPrefix(headerValue, bearerPrefix) {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeAuthInvalidCredentials, errBadAuthHeader)
			return
		}

		claims, err := authService.ValidateAccessToken(ctx, strings.TrimPrefix(headerValue, bearerPrefix))
		if err != nil {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeAuthInvalidCredentials, err)
			return
		}

		setUser(ctx, claims.Subject)
		ctx.Next()
	}
}

// GetUser returns the authenticated username, or "".
func GetUser(ctx *gin.Context) string {
	return ctx.GetString(userContextKey)
}

func setUser(ctx *gin.Context, user string) {
	ctx.Set(userContextKey, user)
	ctx.Request = ctx.Request.WithContext(auth.WithUser(ctx.Request.Context(), user))
}
