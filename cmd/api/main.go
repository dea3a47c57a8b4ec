package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/checkout"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/config"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/httpx"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/inventory"
	kafkax "github.com/Reeshan-shrestha/fyp-final-sub000/internal/kafka"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/ledger"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/orders"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/postgres"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("schema: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pPlaced := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
	pPlaced.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	pCancelled.Start(ctx)
	pStock := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockAdjusted, 256)
	pStock.Start(ctx)

	// Ledger adapter: mode picked once from config
	led := ledger.New(cfg)
	log.Printf("ledger adapter mode=%s", cfg.LedgerMode)

	store := &inventory.Store{DB: db}
	repo := &orders.Repo{DB: db}
	machine := orders.NewMachine(cfg.StatusDwell)

	svc := &checkout.Service{
		Products:          store,
		Inventory:         store,
		Orders:            repo,
		Ledger:            led,
		Machine:           machine,
		PlacedProducer:    pPlaced,
		CancelledProducer: pCancelled,
		ServiceName:       cfg.ServiceName,
	}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{Checkout: svc, Repo: repo, Catalog: store, Redis: rdb}
	oh.Register(router)
	ph := &httpx.ProductsHandler{Inventory: store, Ledger: led, Producer: pStock, Service: cfg.ServiceName}
	ph.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pPlaced.Close()
	pCancelled.Close()
	pStock.Close()
	cancel()
	pPlaced.WaitClosed()
	pCancelled.WaitClosed()
	pStock.WaitClosed()
}
