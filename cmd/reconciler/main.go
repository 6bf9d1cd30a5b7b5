package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-storefront-commerce.git/internal/config"
	kafkax "github.com/ariefcatur/go-storefront-commerce.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/orders"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/payments"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/postgres"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/pricing"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/redisx"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	priceCfg, err := pricing.ParseConfig(cfg.FreeShippingThreshold, cfg.FlatShippingFee, cfg.TaxRate)
	if err != nil {
		log.Fatalf("pricing config: %v", err)
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producers untuk event hasil reconciliation
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024)
	pPaid.Start(context.Background())
	pFailed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentFailed, 1024)
	pFailed.Start(context.Background())
	pRefunded := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderRefunded, 1024)
	pRefunded.Start(context.Background())
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	pCancelled.Start(context.Background())

	orderRepo := &orders.Repo{DB: db, Pricing: priceCfg}
	svc := &payments.Service{
		Orders:      orderRepo,
		Redis:       rdb,
		Paid:        pPaid,
		Failed:      pFailed,
		Refunded:    pRefunded,
		ServiceName: cfg.ServiceName + "-reconciler",
	}

	group := getenv("RECONCILER_GROUP", "payment-reconciler")
	workers := mustAtoi(os.Getenv("RECONCILER_WORKERS"), "8")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicGatewayEvents, workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("reconciler consumer started: group=%s topic=%s workers=%d",
			group, orders.TopicGatewayEvents, workers)
		return cons.Start(gctx, svc.HandleGatewayMessage)
	})

	if cfg.OrderExpiry > 0 {
		exp := &orders.ExpiryWorker{
			Repo:        orderRepo,
			Producer:    pCancelled,
			OlderThan:   cfg.OrderExpiry,
			ServiceName: cfg.ServiceName + "-reconciler",
		}
		g.Go(func() error {
			log.Printf("order expiry enabled: older than %s", cfg.OrderExpiry)
			exp.Run(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Printf("worker exit: %v", err)
	}

	log.Println("shutting down reconciler...")
	for _, p := range []*kafkax.Producer{pPaid, pFailed, pRefunded, pCancelled} {
		p.Close()
	}
	for _, p := range []*kafkax.Producer{pPaid, pFailed, pRefunded, pCancelled} {
		p.WaitClosed()
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
