package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sautihub/core-api/internal/access"
	"github.com/sautihub/core-api/internal/auth"
	"github.com/sautihub/core-api/internal/content"
	contentrepo "github.com/sautihub/core-api/internal/content/repo"
	"github.com/sautihub/core-api/internal/dashboard"
	"github.com/sautihub/core-api/internal/earnings"
	earningsrepo "github.com/sautihub/core-api/internal/earnings/repo"
	"github.com/sautihub/core-api/internal/metrics"
	"github.com/sautihub/core-api/internal/payment"
	paymentrepo "github.com/sautihub/core-api/internal/payment/repo"
	"github.com/sautihub/core-api/internal/retention"
	"github.com/sautihub/core-api/internal/router"
	"github.com/sautihub/core-api/internal/user"
	userrepo "github.com/sautihub/core-api/internal/user/repo"
	"github.com/sautihub/core-api/pkg/database"
	"github.com/sautihub/core-api/pkg/logging"
	"github.com/sautihub/core-api/pkg/objstore"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := logging.Init(logging.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting core-api")

	// init db
	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// storage layer
	userRepo := userrepo.NewUserRepo(db)
	contentRepo := contentrepo.NewContentRepo(db)
	grants := access.NewPostgresStore(db)
	ledger := paymentrepo.NewPostgresLedger(db)
	earningsRepo := earningsrepo.NewEarningsRepo(db)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelBoot()
	for name, ensure := range map[string]func(context.Context) error{
		"users":    userRepo.EnsureTable,
		"content":  contentRepo.EnsureTable,
		"payments": ledger.EnsureTable,
		"grants":   grants.EnsureTable,
	} {
		if err := ensure(bootCtx); err != nil {
			sugar.Fatalf("ensure %s table: %v", name, err)
		}
	}

	// object store: S3 when a bucket is configured, process memory otherwise
	var objects objstore.Store
	objCfg := objstore.ConfigFromEnv()
	if objCfg.Bucket != "" {
		s3Store, err := objstore.NewS3Store(objCfg)
		if err != nil {
			sugar.Fatalf("object store init: %v", err)
		}
		objects = s3Store
	} else {
		sugar.Warn("S3_BUCKET not set; using in-memory object store (uploads lost on restart)")
		objects = objstore.NewMemoryStore()
	}

	// services
	m := metrics.New(prometheus.DefaultRegisterer)

	tokens, err := auth.NewTokenService(auth.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("auth init: %v", err)
	}
	userSvc := user.NewUserService(userRepo, nil)

	contentCfg := content.ConfigFromEnv()
	contentSvc := content.NewContentService(contentRepo, objects, grants, contentCfg, sugar)

	payCfg := payment.ConfigFromEnv()
	gateway := payment.NewPaywayGateway(payCfg, sugar)
	paySvc := payment.NewService(gateway, ledger, grants, contentSvc, m, payCfg, sugar)

	earningsSvc := earnings.NewService(earningsRepo, sugar)
	dashSvc := dashboard.NewService(contentRepo, earningsRepo, dashboard.NewPostgresPurchases(db), sugar)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// retention sweeper
	sweeper := retention.NewSweeper(contentRepo, objects, ledger,
		retention.ConfigFromEnv(payCfg.StaleAfter), sugar)
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sweeper.Run(ctx)
	}()

	// mount http server
	handler := router.RegisterRoutes(router.Deps{
		Logger:     sugar,
		Metrics:    m,
		Tokens:     tokens,
		Users:      user.NewHandler(userSvc, tokens, sugar),
		Content:    content.NewHandler(contentSvc, contentCfg, m, sugar),
		Payments:   payment.NewHandler(paySvc, payCfg, m, sugar),
		Earnings:   earnings.NewHandler(earningsSvc, sugar),
		Dashboards: dashboard.NewHandler(dashSvc, sugar),
		RateLimit:  router.RateLimitFromEnv(),
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// run server in background
	go func() {
		sugar.Infow("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// shutdown http server
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	// the sweeper stops with the signal context
	select {
	case <-sweeperDone:
	case <-doneCtx.Done():
		sugar.Warn("retention sweeper did not stop in time")
	}

	sugar.Info("goodbye")
}
