package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/credit-engine/internal/config"
	"github.com/jmehdipour/credit-engine/internal/eligibility"
	"github.com/jmehdipour/credit-engine/internal/http/middleware"
	"github.com/jmehdipour/credit-engine/internal/logger"
	"github.com/jmehdipour/credit-engine/internal/model"
	"github.com/jmehdipour/credit-engine/internal/repository"
	"github.com/jmehdipour/credit-engine/internal/service/lending"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Lending is the part of lending.Service the handlers use.
type Lending interface {
	RegisterCustomer(ctx context.Context, r lending.Registration) (*model.Customer, error)
	CheckEligibility(ctx context.Context, app model.LoanApplication) (lending.Result, error)
	CreateLoan(ctx context.Context, app model.LoanApplication) (lending.Result, error)
	GetLoan(ctx context.Context, id int64) (lending.LoanDetails, error)
	ListCustomerLoans(ctx context.Context, customerID int64) ([]model.Loan, error)
}

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, engine *eligibility.Engine) *Server {
	// repos (MySQL)
	customersRepo := repository.NewCustomersRepository(mysqlDB)
	loansRepo := repository.NewLoansRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)

	// repos (ClickHouse)
	chDecisionsRepo := repository.NewCHDecisionsRepository(clickhouseDB)

	svc := lending.New(repository.NewTxRunner(mysqlDB), customersRepo, loansRepo, outboxRepo, engine)

	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:ip:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	return &Server{e: newRouter(svc, chDecisionsRepo, rlMW)}
}

func newRouter(svc Lending, reports repository.CHDecisionsRepository, mws ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	api := e.Group("", mws...)
	api.POST("/register", registerHandler(svc))
	api.POST("/check-eligibility", checkEligibilityHandler(svc))
	api.POST("/create-loan", createLoanHandler(svc))
	api.GET("/view-loan/:loan_id", viewLoanHandler(svc))
	api.GET("/view-loans/:customer_id", viewLoansHandler(svc))
	api.GET("/reports/decisions", listDecisionsHandler(reports))

	return e
}

func (s *Server) Start(addr string) error {
	logger.Log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
