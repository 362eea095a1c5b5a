package middlewares

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods: []string{
			"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS",
			"PROPFIND", "PROPPATCH", "MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK",
		},
		AllowHeaders:  []string{"Authorization", "Content-Type", "Depth", "Destination", "Overwrite", "If", "Lock-Token", "Timeout", DevUserHeader},
		ExposeHeaders: []string{"Content-Length", "ETag", "DAV"},
		MaxAge:        12 * time.Hour,
	})
}
