package router

import (
	"os"

	authsvc "paper-ledger/internal/application/auth"
	ledgersvc "paper-ledger/internal/application/ledger"
	"paper-ledger/internal/config"
	"paper-ledger/internal/infrastructure/database"
	authhandler "paper-ledger/internal/interfaces/handlers/auth"
	healthhandler "paper-ledger/internal/interfaces/handlers/health"
	ledgerhandler "paper-ledger/internal/interfaces/handlers/ledger"
	"paper-ledger/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CreateApp opens the database, migrates it, connects the session store and
// registers every route.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	db, err := database.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, err
	}

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}
	if cfg.SessionSecret == "" {
		log.Warn().Msg("router: SESSION_SECRET not set, session cookies are unsigned")
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, nil, nil, err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(sessionHandler)
	app.Use(middleware.HealthMarker(rdb))

	// Health
	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		DB:             &database.Pinger{DB: db},
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/health/reset", hh.Reset)

	store := ledgersvc.NewGormStore(db)
	ledger := &ledgersvc.Service{Store: store, MaxRetries: cfg.LedgerMaxRetries}

	// Auth
	as := &authsvc.Service{DB: db, Ledger: store}
	ah := &authhandler.Handlers{
		Registrar:  as,
		UserFinder: as,
		Ledger:     ledger,
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/register", ah.Register)
	authGroup.Post("/login", ah.Login)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	// Ledger
	lh := &ledgerhandler.Handlers{Service: ledger}
	lg := app.Group("/api/v1/ledger", middleware.RequireAuth())
	lg.Post("/trade", lh.Trade)
	lg.Get("/portfolio", lh.Portfolio)
	lg.Get("/holdings", lh.Holdings)
	lg.Get("/holdings/:stock", lh.Holding)
	lg.Get("/balance-history", lh.BalanceHistory)
	lg.Get("/chart", lh.Chart)
	lg.Get("/reconcile", lh.Reconcile)

	if cfg.PublicDir != "" {
		if info, err := os.Stat(cfg.PublicDir); err == nil && info.IsDir() {
			app.Static("/", cfg.PublicDir)
		} else {
			log.Debug().Str("dir", cfg.PublicDir).Msg("router: public dir not found, static files disabled")
		}
	}

	return app, db, rdb, nil
}
