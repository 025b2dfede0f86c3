package handlers

import (
	"github.com/gin-gonic/gin"
)

// Fail hands err to the error stage and stops the chain. Handlers never
// write error bodies themselves.
func Fail(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.Abort()
}
