package api

import "github.com/gin-gonic/gin"

// AbortWithError records err on the request for logging and replies with the generic
// message for code.
func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	if err != nil {
		ctx.Error(err)
	}
	ctx.PureJSON(status, NewAPIError(code))
}
