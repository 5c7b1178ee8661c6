package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yoockh/ibradecode/internal/cache"
	applog "github.com/yoockh/ibradecode/internal/logger"
	"github.com/yoockh/ibradecode/internal/models"
	"github.com/yoockh/ibradecode/internal/providers/llm"
	"github.com/yoockh/ibradecode/internal/repositories/sqldb"
	"github.com/yoockh/ibradecode/internal/utils"
)

type invocation struct {
	model  string
	prompt string
}

// stubInvoker answers call i with replies[i]; failAt (1-based) makes that
// call fail with failErr.
type stubInvoker struct {
	replies []string
	failAt  int
	failErr error
	calls   []invocation
}

func (s *stubInvoker) Generate(_ context.Context, model, prompt string) (*llm.Generation, error) {
	s.calls = append(s.calls, invocation{model: model, prompt: prompt})
	n := len(s.calls)
	if n == s.failAt {
		return nil, s.failErr
	}
	return &llm.Generation{Text: s.replies[n-1], Model: model, ElapsedMS: int64(n), Done: true}, nil
}

func TestPipelineComposesStagesInOrder(t *testing.T) {
	inv := &stubInvoker{replies: []string{"SUMMARY", "OPTIMIZED", "CODE"}}
	svc := NewPipelineService(inv, DefaultPipelineModels, applog.Discard())

	res, err := svc.Run(context.Background(), "build a todo api")
	require.NoError(t, err)

	assert.Equal(t, "SUMMARY", res.Summary)
	assert.Equal(t, "OPTIMIZED", res.OptimizedPrompt)
	assert.Equal(t, "CODE", res.GeneratedCode)

	require.Len(t, inv.calls, 3)
	assert.Equal(t, invocation{"phi3", SummarizePrompt("build a todo api")}, inv.calls[0])
	assert.Equal(t, invocation{"mistral", OptimizePrompt("SUMMARY")}, inv.calls[1])
	assert.Equal(t, invocation{"deepseek-coder:6.7b", GeneratePrompt("OPTIMIZED")}, inv.calls[2])

	require.Len(t, res.Stages, 3)
	assert.Equal(t, StageSummarize, res.Stages[0].Stage)
	assert.Equal(t, StageGenerate, res.Stages[2].Stage)
	assert.Equal(t, "deepseek-coder:6.7b", res.Stages[2].Model)
}

func TestPipelineInterpolatesVerbatim(t *testing.T) {
	inv := &stubInvoker{replies: []string{"100% %s {{x}}", "b", "c"}}
	svc := NewPipelineService(inv, PipelineModels{Summarizer: "s", Optimizer: "o", Coder: "c"}, applog.Discard())

	_, err := svc.Run(context.Background(), "50% off %d")
	require.NoError(t, err)

	assert.Contains(t, inv.calls[0].prompt, "\n\n50% off %d")
	assert.Contains(t, inv.calls[1].prompt, "Summary: 100% %s {{x}}")
	assert.Equal(t, []string{"s", "o", "c"}, []string{inv.calls[0].model, inv.calls[1].model, inv.calls[2].model})
}

func TestPipelineAbortsOnStageFailure(t *testing.T) {
	upstream := utils.E(utils.CodeModelNotFound, "OllamaClient.Generate", "model mistral not found", nil)
	inv := &stubInvoker{replies: []string{"a", "b", "c"}, failAt: 2, failErr: upstream}
	svc := NewPipelineService(inv, DefaultPipelineModels, applog.Discard())

	res, err := svc.Run(context.Background(), "prompt")
	assert.Nil(t, res)
	assert.Same(t, upstream, err, "stage error is returned unmodified")
	assert.Len(t, inv.calls, 2, "stage 3 must not run")
}

func TestPipelineRejectsBlankPrompt(t *testing.T) {
	inv := &stubInvoker{}
	svc := NewPipelineService(inv, DefaultPipelineModels, applog.Discard())

	_, err := svc.Run(context.Background(), " \n\t ")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	assert.Empty(t, inv.calls)
}

func newRepo(t *testing.T) sqldb.ConversationRepo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "svc.sqlite")), &gorm.Config{Logger: logger.Discard, TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	_, err = sqldb.Migrate(context.Background(), db, nil)
	require.NoError(t, err)
	return sqldb.NewConversationRepo(db)
}

func fullResult() *PipelineResult {
	return &PipelineResult{
		Summary:         "s",
		OptimizedPrompt: "o",
		GeneratedCode:   "c",
		Stages:          []models.StageMetadata{{Stage: StageSummarize, Model: "phi3", ElapsedMS: 12, Done: true}},
	}
}

func TestRecordPersistsCompleteRun(t *testing.T) {
	svc := NewConversationService(newRepo(t))

	row, err := svc.Record(context.Background(), "", "my prompt", fullResult())
	require.NoError(t, err)

	assert.NotZero(t, row.ID)
	assert.Equal(t, models.AnonymousUser, row.UserID)
	assert.Equal(t, "c", *row.CodeResult)
	assert.False(t, row.Timestamp.IsZero())

	var meta struct {
		Stages []models.StageMetadata `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(row.Metadata, &meta))
	require.Len(t, meta.Stages, 1)
	assert.Equal(t, "phi3", meta.Stages[0].Model)
}

func TestRecordRejectsIncompleteRun(t *testing.T) {
	repo := newRepo(t)
	svc := NewConversationService(repo)

	partial := fullResult()
	partial.GeneratedCode = ""
	_, err := svc.Record(context.Background(), "u1", "p", partial)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.Record(context.Background(), "u1", "p", nil)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHistoryPaginatesPerUser(t *testing.T) {
	svc := NewConversationService(newRepo(t))
	ctx := context.Background()

	for _, u := range []string{"u1", "u2", "u1", "u2", "u1"} {
		_, err := svc.Record(ctx, u, "prompt for "+u, fullResult())
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	rows, total, err := svc.History(ctx, "u1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, rows, 2)
	assert.True(t, !rows[0].Timestamp.Before(rows[1].Timestamp))
	assert.Greater(t, rows[0].ID, rows[1].ID)

	_, _, err = svc.History(ctx, "u1", 0, 0)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	_, _, err = svc.History(ctx, "u1", 101, 0)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	_, _, err = svc.History(ctx, "u1", 10, -1)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

type failingRepo struct{ err error }

func (f failingRepo) Create(context.Context, *models.Conversation) error { return f.err }
func (f failingRepo) ListByUser(context.Context, string, int, int) ([]models.ConversationSummary, error) {
	return nil, f.err
}
func (f failingRepo) CountByUser(context.Context, string) (int64, error) { return 0, f.err }
func (f failingRepo) Count(context.Context) (int64, error) { return 0, f.err }

func TestPersistenceErrorsAreClassified(t *testing.T) {
	ctx := context.Background()

	_, err := NewConversationService(failingRepo{gorm.ErrDuplicatedKey}).Record(ctx, "u", "p", fullResult())
	assert.True(t, utils.IsCode(err, utils.CodePersistenceInvalid))
	assert.True(t, utils.IsPersistence(err))

	_, _, err = NewConversationService(failingRepo{errors.New("dial tcp: connection reset")}).History(ctx, "u", 10, 0)
	assert.True(t, utils.IsCode(err, utils.CodePersistenceUnavailable))
}

type stubCatalog struct {
	list  []models.UpstreamModel
	err   error
	calls int
}

func (s *stubCatalog) ListModels(context.Context) ([]models.UpstreamModel, error) {
	s.calls++
	return s.list, s.err
}

func TestModelServiceCachesCatalog(t *testing.T) {
	cat := &stubCatalog{list: []models.UpstreamModel{{Name: "phi3:latest"}}}
	svc := NewModelService(cat, cache.NewMemoryCache(), time.Minute, applog.Discard())
	ctx := context.Background()

	list, cached, err := svc.List(ctx)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "phi3:latest", list[0].Name)

	list, cached, err = svc.List(ctx)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "phi3:latest", list[0].Name)
	assert.Equal(t, 1, cat.calls)
}

func TestModelServicePropagatesUpstreamError(t *testing.T) {
	down := utils.E(utils.CodeUpstreamUnavailable, "OllamaClient.ListModels", "down", nil)
	svc := NewModelService(&stubCatalog{err: down}, nil, 0, applog.Discard())

	_, _, err := svc.List(context.Background())
	assert.Same(t, down, err)
}
