package sqldb

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yoockh/ibradecode/internal/models"
)

type ConversationRepo interface {
	Create(ctx context.Context, c *models.Conversation) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.ConversationSummary, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *conversationRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.ConversationSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	rows := make([]models.ConversationSummary, 0, limit)
	err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Select("id", "prompt", "timestamp").
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	return rows, err
}

func (r *conversationRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, err
}

func (r *conversationRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Conversation{}).Count(&n).Error
	return n, err
}

// IsConstraintError reports whether err was caused by the data being
// rejected (constraint, type or validation failure) rather than by the
// storage being unreachable.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated),
		errors.Is(err, gorm.ErrInvalidData),
		errors.Is(err, gorm.ErrInvalidField),
		errors.Is(err, gorm.ErrInvalidValue),
		errors.Is(err, gorm.ErrPrimaryKeyRequired),
		errors.Is(err, gorm.ErrMissingWhereClause):
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint") || strings.Contains(msg, "violates")
}
