// Package response renders every error the API returns. Handlers and
// middleware hand errors to a Translator instead of writing bodies.
package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/ibradecode/internal/utils"
)

// TimeFormat matches the millisecond ISO-8601 timestamps clients expect.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

func Timestamp(t time.Time) string { return t.UTC().Format(TimeFormat) }

// Translator maps errors to the {success:false, message, timestamp}
// envelope. Outside production the body also carries the error code,
// operation and full error text.
type Translator struct {
	production bool
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewTranslator(production bool, log logrus.FieldLogger) *Translator {
	return &Translator{production: production, log: log, now: time.Now}
}

func (t *Translator) Error(c *gin.Context, err error) {
	t.ErrorWith(c, err, nil)
}

// ErrorWith renders err and merges extra into the top level of the body.
func (t *Translator) ErrorWith(c *gin.Context, err error, extra gin.H) {
	status := utils.HTTPStatus(err)

	body := gin.H{
		"success":   false,
		"message":   Message(err),
		"timestamp": Timestamp(t.now()),
	}
	for k, v := range extra {
		body[k] = v
	}
	if !t.production {
		detail := gin.H{"name": utils.CodeOf(err), "detail": err.Error()}
		var ae *utils.AppError
		if errors.As(err, &ae) && ae.Op != "" {
			detail["op"] = ae.Op
		}
		body["error"] = detail
	}

	entry := t.log.WithFields(logrus.Fields{
		"status": status,
		"code":   utils.CodeOf(err),
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"ip":     c.ClientIP(),
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// Message is the client-visible text for err.
func Message(err error) string {
	var ae *utils.AppError
	if !errors.As(err, &ae) {
		return "Internal server error"
	}
	switch {
	case utils.IsUpstream(err):
		return "AI service temporarily unavailable: " + ae.Message
	case ae.Code == utils.CodeInternal:
		return "Internal server error"
	case ae.Message == "":
		return http.StatusText(utils.HTTPStatus(err))
	default:
		return ae.Message
	}
}
