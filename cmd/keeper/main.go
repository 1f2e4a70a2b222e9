package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"roundkeeper/internal/auth"
	"roundkeeper/internal/cache"
	"roundkeeper/internal/config"
	cronrunner "roundkeeper/internal/cron"
	"roundkeeper/internal/db"
	"roundkeeper/internal/events"
	"roundkeeper/internal/handler"
	"roundkeeper/internal/keeperlock"
	"roundkeeper/internal/ledger"
	"roundkeeper/internal/logger"
	"roundkeeper/internal/metrics"
	"roundkeeper/internal/oracle"
	"roundkeeper/internal/repository"
	gormrepository "roundkeeper/internal/repository/gorm"
	"roundkeeper/internal/service"

	_ "roundkeeper/docs"
)

func main() {
	cfgPath := os.Getenv("KEEPER_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("KEEPER_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log, "roundkeeper")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	var repo repository.Repository
	var checkpoints service.CheckpointStore = service.NewMemoryCheckpoints()
	if dbConn != nil {
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		store := gormrepository.New(dbConn.Gorm)
		repo = store
		checkpoints = store
	} else {
		logger.Warn("no database configured; checkpoints are kept in memory and submissions are not journaled")
	}

	var priceCache cache.Store = cache.NewMemoryStore()
	var locker keeperlock.Locker = keeperlock.NewLocal()
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("redis ping failed", zap.String("addr", addr), zap.Error(err))
		}
		priceCache = cache.NewRedisStore(rdb, "roundkeeper:")
		locker = keeperlock.NewRedis(rdb, "roundkeeper:lock:", cfg.Keeper.LockTTL, logger)
		logger.Info("redis enabled", zap.String("addr", addr))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	keeperMetrics := metrics.New(registry)

	ledgerClient := ledger.NewClient(&http.Client{Timeout: cfg.Ledger.Timeout}, cfg.Ledger.NodeURL, ledger.ClientConfig{
		ModuleAddress: cfg.Ledger.ModuleAddress,
		ModuleName:    cfg.Ledger.ModuleName,
		APIKey:        cfg.Ledger.APIKey,
		MaxGasAmount:  cfg.Ledger.MaxGasAmount,
		GasUnitPrice:  cfg.Ledger.GasUnitPrice,
		TxTTL:         cfg.Ledger.TxTTL,
		PollInterval:  cfg.Ledger.PollInterval,
		ChainID:       cfg.Ledger.ChainID,
	})
	submitter := ledger.NewSubmitter(ledgerClient, logger)
	submitter.MaxAttempts = cfg.Ledger.MaxAttempts
	submitter.Backoff = cfg.Ledger.RetryBackoff
	submitter.ConfirmTimeout = cfg.Ledger.ConfirmTimeout
	submitter.Metrics = keeperMetrics
	if repo != nil {
		submitter.Journal = &service.SubmissionJournal{Repo: repo}
	}

	var signer ledger.Signer
	if pk := strings.TrimSpace(cfg.Keeper.PrivateKey); pk != "" {
		ks, err := ledger.NewKeySigner(pk, cfg.Keeper.Address)
		if err != nil {
			logger.Fatal("keeper key invalid", zap.Error(err))
		}
		signer = ks
		logger.Info("keeper identity loaded", zap.String("address", ks.Address()))
	} else {
		logger.Warn("keeper private key not configured; mutating endpoints will fail")
	}

	priceClient := oracle.NewClient(&http.Client{Timeout: cfg.Oracle.Timeout}, cfg.Oracle.Endpoint, cfg.Oracle.FeedID)
	priceClient.Cache = priceCache
	priceClient.CacheTTL = cfg.Oracle.CacheTTL
	priceClient.Logger = logger
	priceClient.Metrics = keeperMetrics

	hub := events.NewHub(logger)
	keeper := &service.Keeper{
		Ledger:    ledgerClient,
		Submitter: submitter,
		Signer:    signer,
		Locker:    locker,
		Events:    hub,
		Logger:    logger,
		Metrics:   keeperMetrics,
	}

	settingsSvc := &service.SystemSettingsService{Repo: repo}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	rounds := service.NewRoundController(keeper, priceClient, checkpoints)
	rounds.RoundDuration = cfg.Keeper.RoundDuration
	rounds.Cooldown = cfg.Keeper.Cooldown
	autoManager := service.NewAutoManager(rounds)
	claims := service.NewClaimEvaluator(keeper, settingsSvc)
	claims.Lookback = cfg.Keeper.ClaimLookback
	contract := &service.ContractService{
		Keeper:         keeper,
		FeeBasisPoints: cfg.Keeper.FeeBasisPoints,
		Treasury:       cfg.Keeper.Treasury,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Keeper.ResumeOnStartup && signer != nil {
		report, err := rounds.Resume(ctx)
		if err != nil {
			logger.Warn("startup advance recovery failed", zap.Error(err))
		} else if len(report.Started)+len(report.Closed)+len(report.Pending) > 0 {
			logger.Info("startup advance recovery",
				zap.Uint64s("started", report.Started),
				zap.Uint64s("closed", report.Closed),
				zap.Uint64s("pending", report.Pending),
			)
		}
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	var verifier *auth.JWT
	if cfg.Auth.Enabled {
		if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
			logger.Fatal("auth enabled without auth.jwt_secret")
		}
		verifier = &auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), Issuer: cfg.Auth.Issuer}
	}
	engine.Use(auth.RequireBearer(verifier))
	engine.Use(auth.WriteAudit(logger))

	healthHandler := &handler.HealthHandler{DB: dbConn, Ledger: ledgerClient}
	healthHandler.Register(engine)
	auth.RegisterDocs(engine)
	keeperHandler := &handler.KeeperHandler{
		Rounds:   rounds,
		Auto:     autoManager,
		Contract: contract,
		Claims:   claims,
		Prices:   priceClient,
		Logger:   logger,
	}
	keeperHandler.Register(engine)
	auditHandler := &handler.KeeperAuditHandler{Checkpoints: checkpoints, Repo: repo, Events: hub}
	auditHandler.Register(engine)
	settingsHandler := &handler.SettingsHandler{Settings: settingsSvc}
	settingsHandler.Register(engine)

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled && cfg.Keeper.AutoManageEnable && strings.TrimSpace(cfg.Cron.AutoManage) != "" {
		_, err = cronRunner.Add(cfg.Cron.AutoManage, func(ctx context.Context) {
			if !settingsSvc.IsEnabled(ctx, service.FeatureAutoManage, true) {
				return
			}
			eval, err := autoManager.Evaluate(ctx)
			if errors.Is(err, service.ErrNoRoundsExist) {
				logger.Debug("auto-manage idle: no rounds exist")
				return
			}
			if err != nil {
				logger.Warn("cron auto-manage failed", zap.Error(err))
				return
			}
			if eval.Action == service.ActionSettledAndStarted {
				logger.Info("cron auto-manage advanced round", zap.Uint64("round_id", eval.RoundID))
			}
		})
		if err != nil {
			logger.Warn("cron register auto-manage failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
