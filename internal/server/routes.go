package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/sharegate/internal/server/dav"
	"github.com/openmined/sharegate/internal/server/handlers/api"
	"github.com/openmined/sharegate/internal/server/handlers/explorer"
	"github.com/openmined/sharegate/internal/server/handlers/files"
	"github.com/openmined/sharegate/internal/server/middlewares"
	"github.com/openmined/sharegate/internal/version"
)

func SetupRoutes(config *Config, svc *Services) (http.Handler, error) {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20 // 8 MiB

	rateLimit := config.HTTP.RateLimit
	if rateLimit == "" {
		rateLimit = DefaultRateLimit
	}
	rateLimiter, err := middlewares.RateLimiter(rateLimit)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	filesH := files.New(svc.Files)
	explorerH := explorer.New(svc.Files)
	davH := gin.WrapH(dav.NewHandler(svc.Files))

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())
	if config.HTTP.HSTS {
		r.Use(middlewares.HSTS(config.HTTP.TLS()))
	}

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	// identity first, then the limiter keys on it, then permissions are loaded for the request
	authed := []gin.HandlerFunc{middlewares.JWTAuth(svc.Auth)}
	if svc.AccessLog != nil {
		authed = append(authed, svc.AccessLog.Middleware())
	}
	authed = append(authed, rateLimiter, middlewares.Permissions(svc.Perms))

	v1 := r.Group("/api/v1")
	v1.Use(authed...)
	{
		v1.GET("/me", filesH.Me)

		v1.GET("/files/list", filesH.List)
		v1.GET("/files/download", filesH.Download)
		v1.PUT("/files/upload", filesH.Upload)
		v1.POST("/files/mkdir", filesH.Mkdir)
		v1.POST("/files/move", filesH.Move)
		v1.DELETE("/files", filesH.Delete)
	}

	browse := r.Group(explorer.BasePath)
	browse.Use(authed...)
	browse.GET("/*filepath", explorerH.Handler)

	davGroup := r.Group(dav.Prefix)
	davGroup.Use(authed...)
	for _, method := range dav.Methods {
		davGroup.Handle(method, "", davH)
		davGroup.Handle(method, "/*filepath", davH)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, api.NewAPIError(api.CodeNotFound))
	})

	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	// return a plaintext
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
