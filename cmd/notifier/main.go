package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jiastore/storefront/internal/config"
	kafkax "github.com/jiastore/storefront/internal/kafka"
	"github.com/jiastore/storefront/internal/notify"
	"github.com/jiastore/storefront/internal/orders"
	"github.com/jiastore/storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName+"-notifier").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{Redis: rdb, Log: log}

	group := getenv("NOTIFIER_GROUP", "order-notifier")
	workers := atoi(getenv("NOTIFIER_WORKERS", "4"))

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range []string{orders.TopicOrderPaid, orders.TopicOrderFailed} {
		topic := topic
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, workers, log)
		g.Go(func() error {
			log.Info().Str("group", group).Str("topic", topic).Int("workers", workers).
				Msg("consumer started")
			return cons.Start(gctx, svc.HandleOrderEvent)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("consumer exit")
	}
	log.Info().Msg("bye")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil || i <= 0 {
		return 1
	}
	return i
}
