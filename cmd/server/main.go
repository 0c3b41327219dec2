package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	app "github.com/reims/backend/internal/application/reconciliation"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/infrastructure/cache"
	"github.com/reims/backend/internal/infrastructure/config"
	"github.com/reims/backend/internal/infrastructure/event"
	"github.com/reims/backend/internal/infrastructure/logger"
	"github.com/reims/backend/internal/infrastructure/persistence"
	"github.com/reims/backend/internal/interfaces/http/handler"
	"github.com/reims/backend/internal/interfaces/http/middleware"
	"github.com/reims/backend/internal/interfaces/http/router"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting reims backend",
		zap.String("version", version),
		zap.String("env", cfg.App.Env))

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("failed to access sql.DB", zap.Error(err))
	}

	// Repositories
	sessions := persistence.NewGormSessionRepository(db.DB)
	records := persistence.NewGormRecordRepository(db.DB)
	rules := persistence.NewGormRuleRepository(db.DB)
	materiality := persistence.NewGormMaterialityRepository(db.DB)
	matches := persistence.NewGormMatchRepository(db.DB)
	discrepancies := persistence.NewGormDiscrepancyRepository(db.DB)
	ruleResults := persistence.NewGormRuleResultRepository(db.DB)
	healthScores := persistence.NewGormHealthScoreRepository(db.DB)
	tx := persistence.NewGormTransactionManager(db.DB)

	// Event bus
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewSessionAuditHandler(log))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := bus.Start(ctx); err != nil {
		log.Fatal("failed to start event bus", zap.Error(err))
	}
	defer func() { _ = bus.Stop(context.Background()) }()

	// Health score cache, Redis when enabled
	scoreCache, err := cache.NewScoreCacheFactory(cfg.Redis, cache.WithLogger(log)).CreateCache()
	if err != nil {
		log.Fatal("failed to create score cache", zap.Error(err))
	}

	// Services
	mapper := defaultAccountMapper()
	sessionService := app.NewSessionService(
		sessions, records, rules, materiality, healthScores, tx,
		reconciliation.NewMatchingEngine(log),
		reconciliation.NewRuleEvaluator(cfg.Engine.RuleTimeout, log),
		mapper,
		scoreCache,
		bus,
		log,
	)
	reviewService := app.NewReviewService(sessions, matches, discrepancies, healthScores, ruleResults)
	ruleService := app.NewRuleService(rules, materiality)
	recordService := app.NewRecordService(records)

	// HTTP engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("invalid trusted proxies", zap.Error(err))
		}
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.CORSWithConfig(corsCfg),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	r := router.New(engine, log)
	r.RegisterRoot(handler.NewSystemHandler(sqlDB, version, log))
	r.Register(
		handler.NewSessionHandler(sessionService, log),
		handler.NewRecordHandler(recordService, log),
		handler.NewReviewHandler(reviewService, log),
		handler.NewRuleHandler(ruleService, log),
	)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}

// defaultAccountMapper builds the built-in canonical chart of accounts with
// the name synonyms commonly seen in extracted property statements.
func defaultAccountMapper() *reconciliation.AccountMapper {
	mapper := reconciliation.NewAccountMapper([]reconciliation.CanonicalAccount{
		{ID: "cash", Name: "Cash", StatementType: reconciliation.DocumentTypeBalanceSheet, RiskClass: reconciliation.RiskClassHigh},
		{ID: "accounts_receivable", Name: "Accounts Receivable", StatementType: reconciliation.DocumentTypeBalanceSheet, RiskClass: reconciliation.RiskClassMedium},
		{ID: "total_assets", Name: "Total Assets", StatementType: reconciliation.DocumentTypeBalanceSheet, RiskClass: reconciliation.RiskClassCritical},
		{ID: "total_liabilities", Name: "Total Liabilities", StatementType: reconciliation.DocumentTypeBalanceSheet, RiskClass: reconciliation.RiskClassCritical},
		{ID: "total_equity", Name: "Total Equity", StatementType: reconciliation.DocumentTypeBalanceSheet, RiskClass: reconciliation.RiskClassCritical},
		{ID: "retained_earnings", Name: "Retained Earnings", StatementType: reconciliation.DocumentTypeBalanceSheet, RiskClass: reconciliation.RiskClassHigh},
		{ID: "accumulated_depreciation", Name: "Accumulated Depreciation", StatementType: reconciliation.DocumentTypeBalanceSheet, RiskClass: reconciliation.RiskClassMedium},
		{ID: "mortgage_payable", Name: "Mortgage Payable", StatementType: reconciliation.DocumentTypeBalanceSheet, RiskClass: reconciliation.RiskClassCritical},
		{ID: "total_revenue", Name: "Total Revenue", StatementType: reconciliation.DocumentTypeIncomeStatement, RiskClass: reconciliation.RiskClassHigh},
		{ID: "rental_income", Name: "Rental Income", StatementType: reconciliation.DocumentTypeIncomeStatement, RiskClass: reconciliation.RiskClassHigh},
		{ID: "total_expenses", Name: "Total Expenses", StatementType: reconciliation.DocumentTypeIncomeStatement, RiskClass: reconciliation.RiskClassMedium},
		{ID: "interest_expense", Name: "Interest Expense", StatementType: reconciliation.DocumentTypeIncomeStatement, RiskClass: reconciliation.RiskClassHigh},
		{ID: "depreciation_expense", Name: "Depreciation Expense", StatementType: reconciliation.DocumentTypeIncomeStatement, RiskClass: reconciliation.RiskClassMedium},
		{ID: "depreciation_addback", Name: "Depreciation Addback", StatementType: reconciliation.DocumentTypeCashFlow, RiskClass: reconciliation.RiskClassMedium},
		{ID: "net_income", Name: "Net Income", StatementType: reconciliation.DocumentTypeIncomeStatement, RiskClass: reconciliation.RiskClassCritical},
		{ID: "noi", Name: "Net Operating Income", StatementType: reconciliation.DocumentTypeIncomeStatement, RiskClass: reconciliation.RiskClassCritical},
		{ID: "beginning_cash", Name: "Beginning Cash", StatementType: reconciliation.DocumentTypeCashFlow, RiskClass: reconciliation.RiskClassHigh},
		{ID: "ending_cash", Name: "Ending Cash", StatementType: reconciliation.DocumentTypeCashFlow, RiskClass: reconciliation.RiskClassHigh},
		{ID: "scheduled_rent", Name: "Scheduled Rent", StatementType: reconciliation.DocumentTypeRentRoll, RiskClass: reconciliation.RiskClassMedium},
		{ID: "principal_balance", Name: "Principal Balance", StatementType: reconciliation.DocumentTypeMortgageStatement, RiskClass: reconciliation.RiskClassCritical},
	})

	mapper.RegisterSynonym("Cash and Equivalents", "cash")
	mapper.RegisterSynonym("Cash & Cash Equivalents", "cash")
	mapper.RegisterSynonym("A/R", "accounts_receivable")
	mapper.RegisterSynonym("Receivables", "accounts_receivable")
	mapper.RegisterSynonym("Owner's Equity", "total_equity")
	mapper.RegisterSynonym("Mortgage Loan Payable", "mortgage_payable")
	mapper.RegisterSynonym("Gross Revenue", "total_revenue")
	mapper.RegisterSynonym("Rent Income", "rental_income")
	mapper.RegisterSynonym("Operating Expenses", "total_expenses")
	mapper.RegisterSynonym("Net Profit", "net_income")
	mapper.RegisterSynonym("Net Income (Loss)", "net_income")
	mapper.RegisterSynonym("NOI", "noi")
	mapper.RegisterSynonym("Cash at Beginning of Period", "beginning_cash")
	mapper.RegisterSynonym("Cash at End of Period", "ending_cash")
	mapper.RegisterSynonym("Gross Scheduled Rent", "scheduled_rent")
	mapper.RegisterSynonym("Rental Income Total", "scheduled_rent")
	mapper.RegisterSynonym("Outstanding Principal", "principal_balance")

	return mapper
}
