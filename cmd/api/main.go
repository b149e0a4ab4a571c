package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jiastore/storefront/internal/checkout"
	"github.com/jiastore/storefront/internal/config"
	"github.com/jiastore/storefront/internal/httpx"
	kafkax "github.com/jiastore/storefront/internal/kafka"
	"github.com/jiastore/storefront/internal/orders"
	"github.com/jiastore/storefront/internal/postgres"
	"github.com/jiastore/storefront/internal/reconcile"
	"github.com/jiastore/storefront/internal/redisx"
	"github.com/jiastore/storefront/internal/settlement"
	"github.com/jiastore/storefront/internal/stripegw"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producers outlive the signal context: they must keep accepting
	// publishes while in-flight requests drain, then flush on cancel.
	prodCtx, prodCancel := context.WithCancel(context.Background())
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024, log)
	pFailed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderFailed, 1024, log)
	pCreated.Start(prodCtx)
	pPaid.Start(prodCtx)
	pFailed.Start(prodCtx)

	orderRepo := &orders.Repo{DB: db}
	stockRepo := &orders.StockRepo{DB: db}
	settleRepo := &orders.SettlementRepo{DB: db}

	checkoutSvc := &checkout.Service{
		Catalog:     orderRepo,
		Stock:       stockRepo,
		Orders:      orderRepo,
		Gateway:     stripegw.New(cfg.StripeSecretKey),
		Producer:    pCreated,
		ServiceName: cfg.ServiceName,
		SuccessURL:  cfg.FrontendURL + "/success",
		CancelURL:   cfg.FrontendURL + "/cancel",
		Log:         log,
	}
	settlementSvc := &settlement.Service{
		Repo:           settleRepo,
		Stock:          stockRepo,
		Redis:          rdb,
		ProducerPaid:   pPaid,
		ProducerFailed: pFailed,
		ServiceName:    cfg.ServiceName,
		Log:            log,
	}

	router := httpx.NewRouter()
	(&httpx.CheckoutHandler{Svc: checkoutSvc}).Register(router)
	(&httpx.WebhookHandler{
		Verifier:   stripegw.NewVerifier(cfg.StripeWebhookSecret),
		Settlement: settlementSvc,
		Log:        log,
	}).Register(router)
	(&httpx.OrdersHandler{Repo: orderRepo, Redis: rdb}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	sweeper := &reconcile.Sweeper{
		DB:     db,
		Grace:  cfg.ReconcileGrace,
		Repair: cfg.ReconcileRepair,
		Log:    log,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	g.Go(func() error {
		return sweeper.Run(gctx, cfg.ReconcileInterval)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("shutdown with error")
	}

	prodCancel() // flush & close producers
	pCreated.WaitClosed()
	pPaid.WaitClosed()
	pFailed.WaitClosed()
	log.Info().Msg("bye")
}
