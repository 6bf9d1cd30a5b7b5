package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront-commerce.git/internal/cart"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/catalog"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/config"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-commerce.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/orders"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/payments"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/postgres"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/pricing"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/redisx"
)

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
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers per topik lifecycle
	pPlaced := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
	pPlaced.Start(context.Background())
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024)
	pPaid.Start(context.Background())
	pFailed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentFailed, 1024)
	pFailed.Start(context.Background())
	pRefunded := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderRefunded, 1024)
	pRefunded.Start(context.Background())

	// Repos & services
	cartRepo := &cart.Repo{DB: db}
	catalogRepo := &catalog.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db, Pricing: priceCfg}
	recon := &payments.Service{
		Orders:      orderRepo,
		Redis:       rdb,
		Paid:        pPaid,
		Failed:      pFailed,
		Refunded:    pRefunded,
		ServiceName: cfg.ServiceName,
	}

	// Router: webhook & katalog publik, sisanya di belakang identity
	router := httpx.NewRouter()
	(&httpx.WebhookHandler{Recon: recon}).Register(router)
	(&httpx.CatalogHandler{Products: catalogRepo}).Register(router)
	router.Group(func(r chi.Router) {
		r.Use(httpx.Authenticate(&httpx.SessionStore{Redis: rdb}))
		(&httpx.CartHandler{Cart: cartRepo, Pricing: priceCfg}).Register(r)
		(&httpx.CheckoutHandler{
			Orders:   orderRepo,
			Producer: pPlaced,
			Currency: cfg.Currency,
			Service:  cfg.ServiceName,
		}).Register(r)
		(&httpx.AdminHandler{Products: catalogRepo, Orders: orderRepo}).Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range []*kafkax.Producer{pPlaced, pPaid, pFailed, pRefunded} {
		p.Close()
	}
	for _, p := range []*kafkax.Producer{pPlaced, pPaid, pFailed, pRefunded} {
		p.WaitClosed()
	}
}
