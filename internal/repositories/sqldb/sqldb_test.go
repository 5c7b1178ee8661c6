package sqldb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yoockh/ibradecode/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Discard, TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = Migrate(context.Background(), db, nil)
	require.NoError(t, err)
	return db
}

func strp(s string) *string { return &s }

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	n, err := Migrate(context.Background(), db, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.True(t, db.Migrator().HasTable("conversations"))
	assert.True(t, db.Migrator().HasColumn(&models.Conversation{}, "Metadata"))
	assert.True(t, db.Migrator().HasIndex(&models.Conversation{}, "idx_conversations_user_id"))
	assert.True(t, db.Migrator().HasIndex(&models.Conversation{}, "idx_conversations_timestamp"))

	var versions []int
	require.NoError(t, db.Model(&schemaMigration{}).Order("version").Pluck("version", &versions).Error)
	assert.Equal(t, []int{1, 2}, versions)
}

func TestMigrateRollsBackFailedStep(t *testing.T) {
	db := openTestDB(t)

	steps := append([]Migration{}, Migrations...)
	steps = append(steps, Migration{
		Version: 99,
		Name:    "broken",
		Up: func(tx *gorm.DB) error {
			return tx.Exec("CREATE TABLE broken (").Error
		},
	})

	_, err := apply(context.Background(), db, nil, steps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 99 (broken)")

	var count int64
	require.NoError(t, db.Model(&schemaMigration{}).Where("version = ?", 99).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateAssignsIDAndTimestamp(t *testing.T) {
	repo := NewConversationRepo(openTestDB(t))
	ctx := context.Background()

	first := &models.Conversation{UserID: "u1", Prompt: "p1", Summary: strp("s"), OptimizedPrompt: strp("o"), CodeResult: strp("c")}
	require.NoError(t, repo.Create(ctx, first))
	second := &models.Conversation{UserID: "u1", Prompt: "p2"}
	require.NoError(t, repo.Create(ctx, second))

	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)
	assert.False(t, first.Timestamp.IsZero())
}

func TestListByUserPagesNewestFirst(t *testing.T) {
	repo := NewConversationRepo(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	seed := []struct {
		user   string
		prompt string
	}{
		{"u1", "first"}, {"u2", "other-1"}, {"u1", "second"}, {"u2", "other-2"}, {"u1", "third"},
	}
	for i, s := range seed {
		require.NoError(t, repo.Create(ctx, &models.Conversation{
			UserID:    s.user,
			Prompt:    s.prompt,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := repo.ListByUser(ctx, "u1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "third", page[0].Prompt)
	assert.Equal(t, "second", page[1].Prompt)
	assert.True(t, page[0].Timestamp.After(page[1].Timestamp))

	rest, err := repo.ListByUser(ctx, "u1", 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "first", rest[0].Prompt)

	total, err := repo.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	total, err = repo.CountByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	all, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), all)

	none, err := repo.ListByUser(ctx, "nobody", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIsConstraintError(t *testing.T) {
	assert.False(t, IsConstraintError(nil))
	assert.True(t, IsConstraintError(gorm.ErrDuplicatedKey))
	assert.False(t, IsConstraintError(assert.AnError))
	assert.False(t, IsConstraintError(context.DeadlineExceeded))
}

func TestCreateOnClosedDatabaseFails(t *testing.T) {
	db := openTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = NewConversationRepo(db).Create(context.Background(), &models.Conversation{UserID: "u", Prompt: "p"})
	require.Error(t, err)
	assert.False(t, IsConstraintError(err))
}
