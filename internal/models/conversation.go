package models

import (
	"time"

	"gorm.io/datatypes"
)

const AnonymousUser = "anonymous"

// Conversation is one fully completed pipeline run. Rows are inserted once
// and never updated.
type Conversation struct {
	ID              uint64         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID          string         `gorm:"column:user_id;type:varchar(255);not null;default:anonymous;index:idx_conversations_user_id" json:"user_id"`
	Prompt          string         `gorm:"column:prompt;type:text;not null" json:"prompt"`
	Summary         *string        `gorm:"column:summary;type:text" json:"summary"`
	OptimizedPrompt *string        `gorm:"column:optimized_prompt;type:text" json:"optimized_prompt"`
	CodeResult      *string        `gorm:"column:code_result;type:text" json:"code_result"`
	Timestamp       time.Time      `gorm:"column:timestamp;not null;index:idx_conversations_timestamp" json:"timestamp"`
	Metadata        datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (Conversation) TableName() string { return "conversations" }

// ConversationSummary is the history projection of a Conversation.
type ConversationSummary struct {
	ID        uint64    `gorm:"column:id" json:"id"`
	Prompt    string    `gorm:"column:prompt" json:"prompt"`
	Timestamp time.Time `gorm:"column:timestamp" json:"timestamp"`
}

// StageMetadata is what the invoker reported for one pipeline stage.
type StageMetadata struct {
	Stage     string `json:"stage"`
	Model     string `json:"model"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Done      bool   `json:"done"`
}
