package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/ibradecode/internal/cache"
	"github.com/yoockh/ibradecode/internal/models"
	"github.com/yoockh/ibradecode/internal/providers/llm"
)

const modelsCacheKey = "upstream:models"

type ModelService interface {
	// List returns the upstream catalog and whether it came from cache.
	List(ctx context.Context) ([]models.UpstreamModel, bool, error)
}

type modelService struct {
	catalog llm.Catalog
	cache   cache.Cache
	ttl     time.Duration
	log     logrus.FieldLogger
}

func NewModelService(catalog llm.Catalog, c cache.Cache, ttl time.Duration, log logrus.FieldLogger) ModelService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &modelService{catalog: catalog, cache: c, ttl: ttl, log: log.WithField("component", "models")}
}

func (s *modelService) List(ctx context.Context) ([]models.UpstreamModel, bool, error) {
	return cache.Fetch(ctx, s.cache, modelsCacheKey, s.ttl, s.catalog.ListModels, func(err error) {
		s.log.WithError(err).Warn("model cache unavailable")
	})
}
