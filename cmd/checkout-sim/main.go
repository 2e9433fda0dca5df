/*
Copyright 2025 The Meridian Authors
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// checkout-sim is a development simulator for the checkout financial core.
// It seeds demo credit accounts and carts, fires N concurrent checkout
// flows against the in-memory backend (or PostgreSQL when a connection
// string is given) and prints each run's record plus the transaction
// metrics snapshot.
//
// Configuration comes from flags, with defaults from the environment
// (a .env file is honored):
//
//	CHECKOUT_SIM_CONNECTION_STRING  PostgreSQL connection string
//	CHECKOUT_SIM_REDIS_HOST         Redis host:port for the run registry
//	CHECKOUT_SIM_KAFKA_BROKERS      Kafka brokers for checkout events
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dapr/kit/logger"

	"github.com/meridianerp/finance-core/checkout"
	checkoutredis "github.com/meridianerp/finance-core/checkout/redis"
	"github.com/meridianerp/finance-core/credit"
	"github.com/meridianerp/finance-core/events"
	eventskafka "github.com/meridianerp/finance-core/events/kafka"
	"github.com/meridianerp/finance-core/inventory"
	"github.com/meridianerp/finance-core/metadata"
	"github.com/meridianerp/finance-core/orders"
	memstore "github.com/meridianerp/finance-core/storage/memory"
	pgstore "github.com/meridianerp/finance-core/storage/postgres"
	"github.com/meridianerp/finance-core/transactor"
	tmemory "github.com/meridianerp/finance-core/transactor/memory"
	tpostgres "github.com/meridianerp/finance-core/transactor/postgres"
)

type config struct {
	flows            int
	creditLimit      int64
	cartTotal        int64
	reserveStock     bool
	failStock        bool
	connectionString string
	redisHost        string
	kafkaBrokers     string
	metricsAddr      string
	logLevel         string
}

func main() {
	// Missing .env is fine; flags and real env still apply.
	_ = godotenv.Load()

	var cfg config
	flag.IntVar(&cfg.flows, "flows", 4, "number of concurrent checkout flows to run")
	flag.Int64Var(&cfg.creditLimit, "credit-limit", 1_000_00, "seeded credit limit in cents")
	flag.Int64Var(&cfg.cartTotal, "cart-total", 249_90, "seeded cart total in cents")
	flag.BoolVar(&cfg.reserveStock, "reserve-stock", true, "include the stock reservation step")
	flag.BoolVar(&cfg.failStock, "fail-stock", false, "make the stock step fail, to demonstrate compensation")
	flag.StringVar(&cfg.connectionString, "connection-string", os.Getenv("CHECKOUT_SIM_CONNECTION_STRING"), "PostgreSQL connection string; empty runs in memory")
	flag.StringVar(&cfg.redisHost, "redis-host", os.Getenv("CHECKOUT_SIM_REDIS_HOST"), "Redis host:port for the run registry; empty keeps runs in memory")
	flag.StringVar(&cfg.kafkaBrokers, "kafka-brokers", os.Getenv("CHECKOUT_SIM_KAFKA_BROKERS"), "comma-separated Kafka brokers for checkout events; empty collects events in memory")
	flag.StringVar(&cfg.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (e.g. :9090); empty disables")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	log := logger.NewLogger("checkout-sim")
	log.SetOutputLevel(parseLevel(cfg.logLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
}

func run(ctx context.Context, cfg config, log logger.Logger) error {
	if cfg.flows <= 0 {
		return fmt.Errorf("flows must be positive, got %d", cfg.flows)
	}

	customer := &credit.CreditAccount{
		CustomerID:  "CUST-001",
		CreditLimit: cfg.creditLimit,
		IsActive:    true,
	}
	carts := demoCarts(customer.CustomerID, cfg.flows, cfg.cartTotal)

	exec, stores, err := buildBackend(ctx, cfg, log, customer, carts)
	if err != nil {
		return err
	}
	defer exec.Close()

	stock := inventory.NewInMemory(log)
	if cfg.failStock {
		stock.ReserveErr = errors.New("simulated stock backend outage")
	}

	registry, err := buildRegistry(ctx, cfg, log)
	if err != nil {
		return err
	}
	publisher, collected, err := buildPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	svc := credit.NewService(exec, stores, credit.ServiceOptions{Stock: stock}, log)
	orc := checkout.NewOrchestrator(svc, checkout.OrchestratorOptions{
		Registry:  registry,
		Publisher: publisher,
		Stock:     stock,
	}, log)

	if cfg.metricsAddr != "" {
		serveMetrics(cfg.metricsAddr, exec.Metrics(), log)
	}

	log.Infof("Running %d concurrent checkout flows for customer %s (cart total %d, credit limit %d)",
		cfg.flows, customer.CustomerID, cfg.cartTotal, cfg.creditLimit)

	results := make([]*checkout.Result, len(carts))
	var wg sync.WaitGroup
	for i, cart := range carts {
		i, cart := i, cart
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = orc.ExecuteCheckoutFlow(ctx, checkout.Request{CartID: cart.ID}, checkout.FlowOptions{
				ReserveCredit: true,
				ReserveStock:  cfg.reserveStock,
			})
		}()
	}
	wg.Wait()

	var succeeded int
	for _, result := range results {
		if result.Success {
			succeeded++
		}
		printJSON(result)
	}

	acct, err := svc.GetAccount(ctx, customer.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to read the account after the runs: %w", err)
	}
	log.Infof("Flows: %d succeeded, %d failed; used credit %d of %d",
		succeeded, len(results)-succeeded, acct.UsedCredit, acct.CreditLimit)

	if collected != nil {
		log.Infof("Collected %d checkout events", len(collected.Events()))
	}

	printJSON(exec.Metrics().Snapshot())
	return nil
}

// buildBackend wires the transactor driver and stores for the selected
// backend and seeds the demo data.
func buildBackend(ctx context.Context, cfg config, log logger.Logger, customer *credit.CreditAccount, carts []*orders.Cart) (*transactor.Executor, credit.Stores, error) {
	if cfg.connectionString == "" {
		ds := memstore.NewDataset().SeedAccount(customer)
		for _, cart := range carts {
			ds.SeedCart(cart)
		}
		exec := transactor.New(tmemory.NewDriver(log, ds), log)
		log.Info("Using the in-memory backend")
		return exec, memstore.NewStores(), nil
	}

	// Migrations run on their own short-lived pool; the driver keeps its
	// pool private.
	pool, err := pgxpool.New(ctx, cfg.connectionString)
	if err != nil {
		return nil, credit.Stores{}, fmt.Errorf("failed to create migration pool: %w", err)
	}
	err = pgstore.Migrations{
		DB:                pool,
		Logger:            log,
		MetadataTableName: pgstore.MetadataTableName,
	}.Perform(ctx)
	pool.Close()
	if err != nil {
		return nil, credit.Stores{}, fmt.Errorf("failed to run migrations: %w", err)
	}

	driver := tpostgres.NewDriver(log)
	err = driver.Init(ctx, metadata.Base{
		Name:       "checkout-sim",
		Properties: map[string]string{"connectionString": cfg.connectionString},
	})
	if err != nil {
		return nil, credit.Stores{}, fmt.Errorf("failed to init the postgres driver: %w", err)
	}

	exec := transactor.New(driver, log)
	_, err = exec.Execute(ctx, transactor.Options{}, func(ctx context.Context, sess *transactor.Session) error {
		err := pgstore.UpsertAccount(ctx, sess.Tx, customer)
		if err != nil {
			return err
		}
		for _, cart := range carts {
			err = pgstore.InsertCart(ctx, sess.Tx, cart)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = exec.Close()
		return nil, credit.Stores{}, fmt.Errorf("failed to seed demo data: %w", err)
	}
	log.Info("Using the PostgreSQL backend")
	return exec, pgstore.NewStores(), nil
}

func buildRegistry(ctx context.Context, cfg config, log logger.Logger) (checkout.Registry, error) {
	if cfg.redisHost == "" {
		return checkout.NewInMemoryRegistry(), nil
	}
	r := checkoutredis.NewRegistry(log)
	err := r.Init(ctx, metadata.Base{
		Name:       "checkout-sim",
		Properties: map[string]string{"redisHost": cfg.redisHost},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init the redis run registry: %w", err)
	}
	log.Infof("Persisting checkout runs to Redis at %s", cfg.redisHost)
	return r, nil
}

// buildPublisher returns the event publisher and, for the in-memory case,
// the collector the summary reads back.
func buildPublisher(ctx context.Context, cfg config, log logger.Logger) (events.Publisher, *events.InMemoryPublisher, error) {
	if cfg.kafkaBrokers == "" {
		p := events.NewInMemoryPublisher()
		return p, p, nil
	}
	p := eventskafka.NewPublisher(log)
	err := p.Init(ctx, metadata.Base{
		Name:       "checkout-sim",
		Properties: map[string]string{"brokers": cfg.kafkaBrokers},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init the kafka publisher: %w", err)
	}
	log.Infof("Publishing checkout events to Kafka at %s", cfg.kafkaBrokers)
	return p, nil, nil
}

func serveMetrics(addr string, metrics *transactor.Metrics, log logger.Logger) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	go func() {
		log.Infof("Serving metrics on %s/metrics", addr)
		err := http.ListenAndServe(addr, mux)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server failed: %v", err)
		}
	}()
}

// demoCarts builds one cart per flow so the flows contend on credit, not
// on cart conversion.
func demoCarts(customerID string, n int, total int64) []*orders.Cart {
	skus := []orders.CartItem{
		{SKU: "SKU-CHAIR", Description: "Office chair"},
		{SKU: "SKU-DESK", Description: "Standing desk"},
		{SKU: "SKU-LAMP", Description: "Desk lamp"},
	}
	carts := make([]*orders.Cart, n)
	for i := range carts {
		item := skus[i%len(skus)]
		item.Quantity = 1
		item.UnitPrice = total
		carts[i] = &orders.Cart{
			ID:         fmt.Sprintf("cart-%d-%s", i+1, uuid.New().String()[:8]),
			CustomerID: customerID,
			Status:     orders.CartOpen,
			Items:      []orders.CartItem{item},
			Total:      total,
		}
	}
	return carts
}

func parseLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

func printJSON(v any) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal output: %v\n", err)
		return
	}
	fmt.Println(string(raw))
}
