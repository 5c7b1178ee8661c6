package middleware

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/ibradecode/internal/api/response"
	"github.com/yoockh/ibradecode/internal/ratelimit"
	"github.com/yoockh/ibradecode/internal/utils"
)

const HealthPath = "/health"

// RateLimit counts every request per client address except health checks.
func RateLimit(l *ratelimit.FixedWindow, tr *response.Translator, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if p == HealthPath || strings.HasPrefix(p, HealthPath+"/") {
			c.Next()
			return
		}

		ip := c.ClientIP()
		d := l.Allow(ip)

		c.Header("RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(int(math.Ceil(d.ResetIn.Seconds()))))

		if !d.Allowed {
			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			log.WithFields(logrus.Fields{
				"ip":     ip,
				"method": c.Request.Method,
				"path":   p,
			}).Warn("rate limit exceeded")
			tr.ErrorWith(c,
				utils.E(utils.CodeRateLimited, "RateLimit", "Too many requests from this IP. Please try again later.", nil),
				gin.H{"retryAfter": retry},
			)
			return
		}
		c.Next()
	}
}
