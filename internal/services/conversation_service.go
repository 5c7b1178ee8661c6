package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/yoockh/ibradecode/internal/models"
	"github.com/yoockh/ibradecode/internal/repositories/sqldb"
	"github.com/yoockh/ibradecode/internal/utils"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

type ConversationService interface {
	Record(ctx context.Context, userID, prompt string, res *PipelineResult) (*models.Conversation, error)
	History(ctx context.Context, userID string, limit, offset int) ([]models.ConversationSummary, int64, error)
}

type conversationService struct {
	convos sqldb.ConversationRepo
}

func NewConversationService(convos sqldb.ConversationRepo) ConversationService {
	return &conversationService{convos: convos}
}

// Record persists a finished pipeline run. Incomplete runs are rejected so
// no partially populated row can ever exist.
func (s *conversationService) Record(ctx context.Context, userID, prompt string, res *PipelineResult) (*models.Conversation, error) {
	const op = "ConversationService.Record"

	if strings.TrimSpace(prompt) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "prompt is required", nil)
	}
	if res == nil || res.Summary == "" || res.OptimizedPrompt == "" || res.GeneratedCode == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "pipeline result is incomplete", nil)
	}
	if strings.TrimSpace(userID) == "" {
		userID = models.AnonymousUser
	}

	meta, err := json.Marshal(map[string]any{"stages": res.Stages})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to encode stage metadata", err)
	}

	row := &models.Conversation{
		UserID:          userID,
		Prompt:          prompt,
		Summary:         &res.Summary,
		OptimizedPrompt: &res.OptimizedPrompt,
		CodeResult:      &res.GeneratedCode,
		Timestamp:       time.Now().UTC(),
		Metadata:        datatypes.JSON(meta),
	}

	if err := s.convos.Create(ctx, row); err != nil {
		return nil, persistenceError(op, err)
	}
	return row, nil
}

func (s *conversationService) History(ctx context.Context, userID string, limit, offset int) ([]models.ConversationSummary, int64, error) {
	const op = "ConversationService.History"

	if limit < 1 || limit > MaxHistoryLimit {
		return nil, 0, utils.E(utils.CodeInvalidArgument, op, "limit must be between 1 and 100", nil)
	}
	if offset < 0 {
		return nil, 0, utils.E(utils.CodeInvalidArgument, op, "offset must be >= 0", nil)
	}
	if strings.TrimSpace(userID) == "" {
		userID = models.AnonymousUser
	}

	rows, err := s.convos.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, persistenceError(op, err)
	}
	total, err := s.convos.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, persistenceError(op, err)
	}
	return rows, total, nil
}

func persistenceError(op string, err error) error {
	if sqldb.IsConstraintError(err) {
		return utils.E(utils.CodePersistenceInvalid, op, "Database validation error", err)
	}
	return utils.E(utils.CodePersistenceUnavailable, op, "Database connection error", err)
}
