package routers

import (
	"time"

	"github.com/haierkeys/harvester-service/internal/app"
	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/internal/middleware"
	"github.com/haierkeys/harvester-service/internal/routers/api_router"
	"github.com/haierkeys/harvester-service/pkg/limiter"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
)

// newMethodLimiters 为写操作接口创建令牌桶
func newMethodLimiters(rate int64) limiter.Face {
	l := limiter.NewMethodLimiter()
	if rate <= 0 {
		return l
	}
	rules := make([]limiter.BucketRule, 0, len(domain.Protocols)*2+1)
	for _, p := range domain.Protocols {
		for _, op := range []string{"add", "run"} {
			rules = append(rules, limiter.BucketRule{
				Key:          "/api/configs/" + string(p) + "/" + op,
				FillInterval: time.Second,
				Capacity:     rate,
				Quantum:      rate,
			})
		}
	}
	rules = append(rules, limiter.BucketRule{
		Key:          "/api/fields",
		FillInterval: time.Second,
		Capacity:     rate,
		Quantum:      rate,
	})
	return l.AddBuckets(rules...)
}

// NewRouter 创建对外 API 路由
func NewRouter(appContainer *app.App, uni *ut.UniversalTranslator) (*gin.Engine, error) {
	cfg := appContainer.Config()
	logger := appContainer.Logger()

	httpMetrics, err := middleware.NewHTTPMetrics(appContainer.Registry)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.NoRoute(middleware.NoFound())

	api := r.Group("/api")
	api.Use(middleware.Trace(middleware.TraceConfig{Enabled: cfg.Tracer.Enabled, Header: cfg.Tracer.Header}))
	api.Use(middleware.AccessLog(logger))
	api.Use(middleware.Recovery(logger))
	api.Use(httpMetrics.Handler())
	api.Use(middleware.RateLimiter(newMethodLimiters(cfg.Security.RateLimit)))
	api.Use(middleware.ContextTimeout(cfg.GetContextTimeout()))
	api.Use(middleware.Lang(uni))

	// 无需鉴权
	healthHandler := api_router.NewHealthHandler(appContainer)
	versionHandler := api_router.NewVersionHandler(appContainer)
	api.GET("/health", healthHandler.Check)
	api.GET("/version", versionHandler.ServerVersion)

	auth := api.Group("", middleware.OperatorAuth(appContainer.TokenManager))

	configs := auth.Group("/configs")
	for _, p := range domain.Protocols {
		h := api_router.NewConfigHandler(appContainer, p)
		g := configs.Group("/" + string(p))
		g.POST("/add", h.Add)
		g.GET("/get/:id", h.Get)
		g.GET("/list", h.List)
		g.DELETE("/delete/:id", h.Delete)
		g.GET("/test/:id", h.Test)
		g.POST("/abort/:id", h.Abort)
		g.POST("/run/:id", h.Run)
		g.POST("/enable/:id", h.Enable)
		g.GET("/runs/:id", h.Runs)
	}
	statusHandler := api_router.NewStatusHandler(appContainer)
	configs.GET("/status/:id", statusHandler.Status)

	fieldHandler := api_router.NewFieldHandler(appContainer)
	fields := auth.Group("/fields")
	fields.POST("/cron/validate", fieldHandler.ValidateCron)
	fields.POST("/cron/describe", fieldHandler.DescribeCron)

	return r, nil
}
