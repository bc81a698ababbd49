package router

import (
	"time"

	"carmen/internal/config"
	"carmen/internal/handler"
	"carmen/internal/infra"
	"carmen/internal/middleware"
	"carmen/internal/pricing"
	"carmen/internal/repository"
	"carmen/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Services is the wired service layer, shared by the HTTP router and the
// background workers.
type Services struct {
	Auth        service.AuthService
	Catalog     service.CatalogService
	Rates       service.ExchangeRateService
	Rules       service.RuleService
	Assignments service.AssignmentService
	Bulk        service.BulkService
	Analytics   service.AnalyticsService
}

// NewServices wires repositories into services.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func NewServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client, jobs service.JobQueue) (*Services, error) {
	policy, err := pricing.ParseMinQuantityPolicy(cfg.MinQuantityPolicy)
	if err != nil {
		return nil, err
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	vendorRepo := repository.NewVendorRepository(db)
	submissionRepo := repository.NewPriceSubmissionRepository(db)
	rateRepo := repository.NewExchangeRateRepository(db)
	ruleRepo := repository.NewBusinessRuleRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	s := &Services{
		Auth:      service.NewAuthService(userRepo, cfg),
		Catalog:   service.NewCatalogService(vendorRepo, submissionRepo, cfg.CatalogTimeout),
		Rates:     service.NewExchangeRateService(rateRepo, rdb, cfg.BaseCurrency, cfg.FXCacheTTL),
		Rules:     service.NewRuleService(ruleRepo, rdb, cfg.RulesCacheTTL),
		Analytics: service.NewAnalyticsService(assignmentRepo),
	}
	s.Assignments = service.NewAssignmentService(assignmentRepo, vendorRepo, s.Catalog, s.Rates, s.Rules, jobs, service.AssignmentConfig{
		BaseCurrency:       cfg.BaseCurrency,
		MinQuantityPolicy:  policy,
		OverrideMaxRetries: cfg.OverrideMaxRetries,
		ReportStoragePath:  cfg.ReportStoragePath,
	})
	s.Bulk = service.NewBulkService(s.Assignments, jobs, rdb, service.BulkConfig{
		Concurrency: cfg.BulkConcurrency,
		MaxItems:    cfg.BulkMaxItems,
		ResultTTL:   cfg.BulkResultTTL,
	})
	return s, nil
}

// New returns a configured Gin engine over svcs.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, svcs *Services, breakers ...*infra.CircuitBreaker) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(cfg.RateLimitPerMinute, time.Minute))

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(svcs.Auth)
	assignH := handler.NewAssignmentsHandler(svcs.Assignments, svcs.Bulk, svcs.Analytics)
	rulesH := handler.NewRulesHandler(svcs.Rules)
	catalogH := handler.NewCatalogHandler(svcs.Catalog, svcs.Rates)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, append([]*infra.CircuitBreaker{svcs.Catalog.Breaker()}, breakers...)...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	staff := middleware.RequireRole(service.RolePurchaser, service.RolePurchasingManager, service.RoleAdmin)
	managers := middleware.RequireRole(service.RolePurchasingManager, service.RoleAdmin)
	admins := middleware.RequireRole(service.RoleAdmin)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		pa := v1.Group("/price-assignments", staff)
		{
			pa.POST("", assignH.Assign)
			pa.POST("/bulk", assignH.Bulk)
			pa.POST("/bulk/async", assignH.BulkAsync)
			pa.GET("/bulk/jobs/:id", assignH.BulkJob)
			pa.GET("/analytics", assignH.Analytics)
			pa.GET("/queues", assignH.Queues)
			pa.POST("/queues/:name/requeue", admins, assignH.RequeueFailed)
			pa.GET("/:id", assignH.Get)
			pa.GET("/:id/alternatives", assignH.Alternatives)
			pa.GET("/:id/history", assignH.History)
			pa.GET("/:id/history/pdf", assignH.HistoryPDF)
			pa.POST("/:id/override", managers, assignH.Override)
		}

		rules := v1.Group("/business-rules")
		{
			rules.GET("", staff, rulesH.List)
			rules.GET("/:id", staff, rulesH.Get)
			rules.POST("", managers, rulesH.Create)
			rules.PUT("/:id", managers, rulesH.Update)
			rules.DELETE("/:id", admins, rulesH.Delete)
		}

		v1.GET("/vendors", staff, catalogH.ListVendors)
		v1.POST("/vendors", admins, catalogH.CreateVendor)
		v1.GET("/products/:productId/prices", staff, catalogH.Prices)
		v1.POST("/price-submissions", managers, catalogH.Submit)
		v1.GET("/exchange-rates", staff, catalogH.ListRates)
		v1.POST("/exchange-rates", managers, catalogH.RecordRate)
	}

	// Swagger UI, outside production only
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
