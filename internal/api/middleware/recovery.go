package middleware

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/ibradecode/internal/api/response"
	"github.com/yoockh/ibradecode/internal/utils"
)

// Recovery turns a panic into a 500 rendered by the translator. The stack
// is attached to the error so it shows up in logs and non-production bodies.
func Recovery(tr *response.Translator) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		tr.Error(c, utils.E(utils.CodeInternal, "Recovery", "panic", fmt.Errorf("%v\n%s", rec, debug.Stack())))
	})
}
