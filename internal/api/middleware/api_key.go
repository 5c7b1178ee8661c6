package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/ibradecode/internal/api/response"
	"github.com/yoockh/ibradecode/internal/utils"
)

const (
	HeaderAPIKey = "x-api-key"
	HeaderUserID = "user-id"
)

// Missing and wrong keys get the same body; only the log line differs.
const unauthorizedMessage = "Invalid or missing API key"

// APIKeyAuth admits requests whose x-api-key equals expected.
func APIKeyAuth(expected string, tr *response.Translator, l logrus.FieldLogger) gin.HandlerFunc {
	want := []byte(expected)

	return func(c *gin.Context) {
		got := c.GetHeader(HeaderAPIKey)
		log := l.WithField("ip", c.ClientIP())

		if got == "" {
			log.Warn("authentication failed: no API key provided")
			tr.Error(c, utils.E(utils.CodeUnauthorized, "APIKeyAuth", unauthorizedMessage, nil))
			return
		}
		if len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			log.Warn("authentication failed: invalid API key")
			tr.Error(c, utils.E(utils.CodeUnauthorized, "APIKeyAuth", unauthorizedMessage, nil))
			return
		}

		log.Debug("authentication successful")
		c.Next()
	}
}
