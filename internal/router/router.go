package router

import (
	"context"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/handler"
	"cashledger/internal/infra"
	"cashledger/internal/middleware"
	"cashledger/internal/repository"
	"cashledger/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the collaborators built in the composition root. Workers and crons
// share the same instances as the HTTP handlers.
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Registers repository.RegisterRepository
	Contexts  *service.ContextFactory

	Auth       service.AuthService
	Lock       service.LockService
	Aggregator service.AggregatorService
	Closing    service.ClosingService
	Ledger     service.LedgerService
	Sweeper    service.SweeperService

	Sweeps   handler.SweepTrigger
	Events   handler.EventSubscriber
	Reports  infra.ReportStore
	Breakers []*infra.CircuitBreaker
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// ctx bounds the background purge of the rate limiters.
func New(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	apiLimiter := middleware.NewRateLimiter(1000, time.Minute, "Too many requests. Try again shortly.")
	loginLimiter := middleware.NewLoginRateLimiter()
	apiLimiter.StartPurge(ctx, 5*time.Minute)
	loginLimiter.StartPurge(ctx, 5*time.Minute)

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOriginList()))
	r.Use(middleware.ErrorHandler())
	r.Use(apiLimiter.Handler()) // 1000 req/min per IP

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(d.Auth, d.Contexts, d.Sweeps)
	registerH := handler.NewRegisterHandler(d.Contexts, d.Lock, d.Aggregator, d.Registers, d.Events)
	closingH := handler.NewClosingHandler(d.Contexts, d.Closing, d.Sweeper, d.Reports)
	ledgerH := handler.NewLedgerHandler(d.Contexts, d.Ledger)
	jobsH := handler.NewJobsHandler(d.Redis)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.Redis, d.Breakers...))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", loginLimiter.Handler(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	anyRole := middleware.RequireRole(service.RoleCashier, service.RoleSupervisor, service.RoleAdmin)
	{
		v1.POST("/operators", middleware.RequireRole(service.RoleAdmin), authH.CreateOperator)

		v1.GET("/closings/:closingId", anyRole, closingH.Get)
		v1.GET("/closings/:closingId/report", anyRole, closingH.Report)

		// Cashiers reach only their own register; supervisors and admins any
		// register of their tenant.
		reg := v1.Group("/registers/:id", anyRole,
			middleware.RequireRegisterAccess("id", service.RoleSupervisor, service.RoleAdmin))
		{
			reg.GET("", registerH.Get)
			reg.PUT("", middleware.RequireRole(service.RoleAdmin), registerH.Upsert)
			reg.GET("/lock", registerH.Lock)
			reg.GET("/summary", registerH.Summary)
			reg.GET("/movements", registerH.Movements)
			reg.GET("/transactions", registerH.Transactions)
			reg.GET("/events", registerH.Events)

			reg.GET("/closing/state", closingH.State)
			reg.POST("/closing/prepare", closingH.Prepare)
			reg.DELETE("/closing/prepare", closingH.Cancel)
			reg.POST("/closing/review", closingH.Review)
			reg.POST("/closing", closingH.Execute)
			reg.GET("/closings", closingH.List)
			reg.POST("/sweep", closingH.Sweep)

			reg.POST("/sales", ledgerH.RecordSale)
			reg.POST("/purchases", ledgerH.RecordPurchase)
			reg.POST("/movements", ledgerH.RecordMovement)
			reg.POST("/expenses", ledgerH.RecordExpense)
			reg.DELETE("/expenses/:expenseId", ledgerH.DeleteExpense)
			reg.POST("/transactions/:txId/settlements", ledgerH.Settle)
		}

		jobs := v1.Group("/jobs", middleware.RequireRole(service.RoleAdmin))
		{
			jobs.GET("/dlq", jobsH.DLQ)
			jobs.POST("/dlq/:queue/replay", jobsH.Replay)
		}
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
