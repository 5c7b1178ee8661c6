package llm

import (
	"context"

	"github.com/yoockh/ibradecode/internal/models"
)

// Generation is the outcome of one non-streaming model call.
type Generation struct {
	Text      string
	Model     string
	ElapsedMS int64
	Done      bool
}

// Invoker issues exactly one request per call. Implementations never retry.
type Invoker interface {
	Generate(ctx context.Context, model, prompt string) (*Generation, error)
}

// Catalog lists the models the upstream server has available locally.
type Catalog interface {
	ListModels(ctx context.Context) ([]models.UpstreamModel, error)
}
