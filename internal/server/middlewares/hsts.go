package middlewares

import (
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// HSTS adds transport security headers. With tls false only the content headers are set
// and no redirect to https happens.
func HSTS(tls bool) gin.HandlerFunc {
	return secure.New(secure.Config{
		SSLRedirect:          tls,
		IsDevelopment:        !tls,
		STSSeconds:           315360000,
		STSIncludeSubdomains: true,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		IENoOpen:             true,
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
	})
}
