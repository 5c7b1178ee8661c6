package sqldb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yoockh/ibradecode/internal/models"
)

// Migration is one forward-only schema step. Steps run in Version order,
// each inside its own transaction, and are recorded in schema_migrations.
type Migration struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB) error
}

type schemaMigration struct {
	Version   int       `gorm:"column:version;primaryKey;autoIncrement:false"`
	Name      string    `gorm:"column:name;type:varchar(255);not null"`
	AppliedAt time.Time `gorm:"column:applied_at;not null"`
}

func (schemaMigration) TableName() string { return "schema_migrations" }

// conversationV1 is the conversations table as first shipped.
type conversationV1 struct {
	ID              uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	UserID          string    `gorm:"column:user_id;type:varchar(255);not null;default:anonymous;index:idx_conversations_user_id"`
	Prompt          string    `gorm:"column:prompt;type:text;not null"`
	Summary         *string   `gorm:"column:summary;type:text"`
	OptimizedPrompt *string   `gorm:"column:optimized_prompt;type:text"`
	CodeResult      *string   `gorm:"column:code_result;type:text"`
	Timestamp       time.Time `gorm:"column:timestamp;not null;index:idx_conversations_timestamp"`
}

func (conversationV1) TableName() string { return "conversations" }

// Migrations lists every schema step in order.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create_conversations",
		Up: func(tx *gorm.DB) error {
			if tx.Migrator().HasTable(&conversationV1{}) {
				return nil
			}
			return tx.Migrator().CreateTable(&conversationV1{})
		},
	},
	{
		Version: 2,
		Name:    "add_conversations_metadata",
		Up: func(tx *gorm.DB) error {
			if tx.Migrator().HasColumn(&models.Conversation{}, "Metadata") {
				return nil
			}
			return tx.Migrator().AddColumn(&models.Conversation{}, "Metadata")
		},
	},
}

// Migrate applies every pending step of Migrations. It is safe to call on
// every start.
func Migrate(ctx context.Context, db *gorm.DB, log logrus.FieldLogger) (int, error) {
	return apply(ctx, db, log, Migrations)
}

func apply(ctx context.Context, db *gorm.DB, log logrus.FieldLogger, steps []Migration) (int, error) {
	db = db.WithContext(ctx)

	if !db.Migrator().HasTable(&schemaMigration{}) {
		if err := db.Migrator().CreateTable(&schemaMigration{}); err != nil {
			return 0, fmt.Errorf("create schema_migrations: %w", err)
		}
	}

	var applied []schemaMigration
	if err := db.Order("version").Find(&applied).Error; err != nil {
		return 0, fmt.Errorf("load applied migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, m := range applied {
		done[m.Version] = true
	}

	pending := make([]Migration, 0, len(steps))
	for _, m := range steps {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, m := range pending {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{
				Version:   m.Version,
				Name:      m.Name,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return 0, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if log != nil {
			log.WithFields(logrus.Fields{"version": m.Version, "name": m.Name}).Info("migration applied")
		}
	}
	return len(pending), nil
}
