package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/ibradecode/internal/api/middleware"
	"github.com/yoockh/ibradecode/internal/api/response"
	"github.com/yoockh/ibradecode/internal/logger"
	"github.com/yoockh/ibradecode/internal/services"
)

type PipelineHandler struct {
	pipeline services.PipelineService
	convos   services.ConversationService
	tr       *response.Translator
	log      logrus.FieldLogger
}

func NewPipelineHandler(pipeline services.PipelineService, convos services.ConversationService, tr *response.Translator, log logrus.FieldLogger) *PipelineHandler {
	return &PipelineHandler{pipeline: pipeline, convos: convos, tr: tr, log: log.WithField("component", "pipeline_handler")}
}

type PipelineOutput struct {
	Step1Summary   string `json:"step1_summary"`
	Step2Optimized string `json:"step2_optimized"`
	Step3Code      string `json:"step3_code"`
}

type ProcessMetadata struct {
	UserID         string `json:"userId"`
	ProcessingTime string `json:"processingTime"`
	Timestamp      string `json:"timestamp"`
}

type ProcessData struct {
	ConversationID uint64          `json:"conversationId"`
	Pipeline       PipelineOutput  `json:"pipeline"`
	Metadata       ProcessMetadata `json:"metadata"`
}

type ProcessResponse struct {
	Success bool        `json:"success"`
	Data    ProcessData `json:"data"`
}

// Process validates the prompt, runs the three stage pipeline, stores the
// result and returns it. Nothing is stored unless every stage succeeded.
func (h *PipelineHandler) Process(c *gin.Context) {
	const op = "PipelineHandler.Process"
	start := time.Now()

	prompt, err := bindPrompt(c, op)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	uid := userID(c)

	log := h.log.WithFields(logrus.Fields{
		"user_id":    uid,
		"request_id": middleware.RequestID(c),
	})
	log.WithField("prompt", logger.Preview(prompt, 100)).Info("processing request")

	// A client hanging up does not abort the upstream calls or the insert.
	ctx := context.WithoutCancel(c.Request.Context())

	res, err := h.pipeline.Run(ctx, prompt)
	if err != nil {
		h.tr.Error(c, err)
		return
	}

	row, err := h.convos.Record(ctx, uid, prompt, res)
	if err != nil {
		h.tr.Error(c, err)
		return
	}

	elapsed := time.Since(start).Milliseconds()
	log.WithFields(logrus.Fields{
		"conversation_id":    row.ID,
		"processing_time_ms": elapsed,
	}).Info("request processed")

	c.JSON(http.StatusOK, ProcessResponse{
		Success: true,
		Data: ProcessData{
			ConversationID: row.ID,
			Pipeline: PipelineOutput{
				Step1Summary:   res.Summary,
				Step2Optimized: res.OptimizedPrompt,
				Step3Code:      res.GeneratedCode,
			},
			Metadata: ProcessMetadata{
				UserID:         uid,
				ProcessingTime: fmt.Sprintf("%dms", elapsed),
				Timestamp:      response.Timestamp(row.Timestamp),
			},
		},
	})
}

type Pagination struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

// History pages the caller's earlier conversations, newest first.
func (h *PipelineHandler) History(c *gin.Context) {
	const op = "PipelineHandler.History"

	limit, err := queryInt(c, op, "limit", services.DefaultHistoryLimit)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	offset, err := queryInt(c, op, "offset", 0)
	if err != nil {
		h.tr.Error(c, err)
		return
	}

	rows, total, err := h.convos.History(c.Request.Context(), userID(c), limit, offset)
	if err != nil {
		h.tr.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       rows,
		"pagination": Pagination{Limit: limit, Offset: offset, Total: total},
	})
}
