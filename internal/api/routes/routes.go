package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/ibradecode/internal/api/handlers"
	"github.com/yoockh/ibradecode/internal/api/middleware"
	"github.com/yoockh/ibradecode/internal/api/response"
	"github.com/yoockh/ibradecode/internal/ratelimit"
)

const BasePath = "/api/xmsbra/ibradecodeprojects"

type Deps struct {
	Pipeline *handlers.PipelineHandler
	Models   *handlers.ModelHandler
	Health   *handlers.HealthHandler

	Limiter    *ratelimit.FixedWindow
	Translator *response.Translator
	Logger     logrus.FieldLogger
	APIKey     string
}

// RegisterRoutes wires the middleware chain: logging, recovery, CORS and
// the rate limiter apply to every request; the API key gate and body cap
// only to the pipeline API.
func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(
		middleware.RequestLogger(d.Logger),
		middleware.Recovery(d.Translator),
		middleware.CORS(),
		middleware.RateLimit(d.Limiter, d.Translator, d.Logger),
	)

	r.GET(middleware.HealthPath, d.Health.Health)
	r.GET(middleware.HealthPath+"/upstream", d.Health.Upstream)
	r.NoRoute(d.Health.NotFound)

	api := r.Group(BasePath)
	api.Use(
		middleware.APIKeyAuth(d.APIKey, d.Translator, d.Logger),
		middleware.BodyLimit(middleware.MaxBodyBytes),
	)

	api.POST("", d.Pipeline.Process)
	api.POST("/process", d.Pipeline.Process)
	api.GET("/history", d.Pipeline.History)
	api.GET("/models", d.Models.List)
}
