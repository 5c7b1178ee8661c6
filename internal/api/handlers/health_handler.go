package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/ibradecode/internal/api/response"
	"github.com/yoockh/ibradecode/internal/providers/llm"
	"github.com/yoockh/ibradecode/internal/utils"
)

const ServiceName = "XMsbra IbraDecode Projects API"

type HealthHandler struct {
	catalog llm.Catalog
	tr      *response.Translator
}

func NewHealthHandler(catalog llm.Catalog, tr *response.Translator) *HealthHandler {
	return &HealthHandler{catalog: catalog, tr: tr}
}

// Health never touches the model server or the database.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": response.Timestamp(time.Now()),
		"service":   ServiceName,
	})
}

// Upstream probes the model server's catalog endpoint.
func (h *HealthHandler) Upstream(c *gin.Context) {
	list, err := h.catalog.ListModels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"error":     response.Message(err),
			"timestamp": response.Timestamp(time.Now()),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"models":    len(list),
		"timestamp": response.Timestamp(time.Now()),
	})
}

func (h *HealthHandler) NotFound(c *gin.Context) {
	h.tr.Error(c, utils.E(utils.CodeNotFound, "", "Endpoint not found", nil))
}
