package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/ibradecode/internal/api/middleware"
	"github.com/yoockh/ibradecode/internal/models"
	"github.com/yoockh/ibradecode/internal/utils"
)

const promptRequired = "Prompt is required and must be a non-empty string"

// userID is the caller supplied grouping key. It is not authenticated.
func userID(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader(middleware.HeaderUserID)); v != "" {
		return v
	}
	return models.AnonymousUser
}

type processRequest struct {
	Prompt any `json:"prompt"`
}

// bindPrompt decodes {"prompt": string} and rejects anything else before
// any work is done.
func bindPrompt(c *gin.Context, op string) (string, error) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return "", utils.E(utils.CodePayloadTooLarge, op, "Request body exceeds the 10MB limit", err)
		case errors.Is(err, io.EOF):
			return "", utils.E(utils.CodeInvalidArgument, op, promptRequired, err)
		default:
			return "", utils.E(utils.CodeInvalidArgument, op, "Request body must be valid JSON", err)
		}
	}

	prompt, ok := req.Prompt.(string)
	if !ok || strings.TrimSpace(prompt) == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, promptRequired, nil)
	}
	return prompt, nil
}

func queryInt(c *gin.Context, op, key string, def int) (int, error) {
	s := strings.TrimSpace(c.Query(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, utils.E(utils.CodeInvalidArgument, op, key+" must be an integer", err)
	}
	return n, nil
}
