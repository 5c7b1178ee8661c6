package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/ibradecode/internal/api/response"
	"github.com/yoockh/ibradecode/internal/services"
)

type ModelHandler struct {
	svc services.ModelService
	tr  *response.Translator
}

func NewModelHandler(svc services.ModelService, tr *response.Translator) *ModelHandler {
	return &ModelHandler{svc: svc, tr: tr}
}

func (h *ModelHandler) List(c *gin.Context) {
	list, cached, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    list,
		"cached":  cached,
	})
}
