package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentfold.io/internal/billing"
	"rentfold.io/internal/httpapi"
	"rentfold.io/internal/identity"
	"rentfold.io/internal/obs"
	"rentfold.io/internal/policy"
	"rentfold.io/internal/rental"
	sig "rentfold.io/internal/signal"
	"rentfold.io/internal/store/pg"
	"rentfold.io/internal/webhook"
)

var version = "0.3.1"

func main() {
	obs.Init()

	authSecret := os.Getenv("RENTFOLD_AUTH_SECRET")
	if authSecret == "" {
		log.Fatal("RENTFOLD_AUTH_SECRET is required")
	}
	webhookSecret := os.Getenv("RENTFOLD_WEBHOOK_SECRET")
	if webhookSecret == "" {
		log.Fatal("RENTFOLD_WEBHOOK_SECRET is required")
	}
	addr := os.Getenv("RENTFOLD_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	signer, err := identity.NewSigner([]byte(authSecret))
	if err != nil {
		log.Fatalf("signer: %v", err)
	}

	var (
		accounts     identity.AccountStore
		refreshStore identity.RefreshTokenStore
		rentalStore  rental.Store
		billingStore billing.Store
		probe        httpapi.ReadyProbe
	)

	if dsn := os.Getenv("RENTFOLD_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()

		// The synchronizer writes through a separate database role; falling
		// back to the actor-scoped DSN is for development only.
		elevatedDSN := os.Getenv("RENTFOLD_ELEVATED_PG_DSN")
		if elevatedDSN == "" {
			log.Println("RENTFOLD_ELEVATED_PG_DSN not set, reusing RENTFOLD_PG_DSN")
			elevatedDSN = dsn
		}
		elevated, err := pg.OpenElevated(elevatedDSN)
		if err != nil {
			log.Fatalf("open elevated db: %v", err)
		}
		defer elevated.Close()

		accounts = store.Accounts()
		refreshStore = store.RefreshTokens()
		rentalStore = store.Rentals()
		billingStore = elevated
		probe = httpapi.ReadyProbe{DB: store.DB(), ElevatedDB: elevated.DB()}
	} else {
		log.Println("RENTFOLD_PG_DSN not set, using in-memory stores")
		mem := rental.NewMemoryStore()
		accounts = identity.NewMemoryAccounts()
		refreshStore = identity.NewMemoryRefreshTokens()
		rentalStore = mem
		billingStore = billing.NewMemoryStore(mem)
	}

	gateway := billing.NewGateway(billingStore)
	hub := sig.NewHub()

	sync, err := billing.NewSynchronizer(gateway, hub)
	if err != nil {
		log.Fatalf("synchronizer: %v", err)
	}

	idsvc, err := identity.NewService(accounts, refreshStore,
		identity.NewEnricher(gateway), signer, identity.WithSignals(hub))
	if err != nil {
		log.Fatalf("identity service: %v", err)
	}

	engine, err := policy.NewEngine(rental.Tables()...)
	if err != nil {
		log.Fatalf("policy engine: %v", err)
	}
	rentals, err := rental.NewService(engine, rentalStore)
	if err != nil {
		log.Fatalf("rental service: %v", err)
	}

	wh := webhook.NewHandler(webhook.NewVerifier([]byte(webhookSecret), 0), sync)
	api := httpapi.New(idsvc, rentals, signer, wh, probe, version)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting rentfold-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
