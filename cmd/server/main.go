package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rehabdao/attestd/internal/attest"
	"github.com/rehabdao/attestd/internal/config"
	"github.com/rehabdao/attestd/internal/domain"
	"github.com/rehabdao/attestd/internal/health"
	"github.com/rehabdao/attestd/internal/http"
	"github.com/rehabdao/attestd/internal/registry"
	"github.com/rehabdao/attestd/internal/schema"
	"github.com/rehabdao/attestd/internal/storage"
	"github.com/rehabdao/attestd/internal/telemetry"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	addr := flag.String("addr", "", "listen address, overrides ATTESTD_LISTEN_ADDR")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	log.SetPrefix("[ATTESTD] ")

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownTracing, err := telemetry.Setup(ctx, "attestd", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("flush traces: %v", err)
		}
	}()

	sc, err := schema.Lookup(cfg.SchemaVersion)
	if err != nil {
		return err
	}
	schemaUID, err := resolveSchemaUID(cfg.SchemaUID, sc)
	if err != nil {
		return err
	}

	reg := openRegistry(ctx, cfg)
	defer reg.Close()

	store := openStore(cfg)
	defer store.Close()

	indexer := attest.NewIndexer(store, cfg.IndexQueueSize)
	defer indexer.Close()

	svc, err := attest.NewService(reg, store, indexer, attest.Config{
		Schema:        sc,
		SchemaUID:     schemaUID,
		SubmitTimeout: cfg.SubmitTimeout,
	})
	if err != nil {
		return err
	}

	handler := httpapi.NewRouter(httpapi.Deps{
		Service: svc,
		Events:  indexer,
		Health: health.NewReporter(
			health.Dependency{Name: "registry", Available: reg.Available},
			health.Dependency{Name: "store", Available: store.Available},
		),
		Authenticate: Authenticator(cfg.JWTSecret),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	// Ends open event streams so Shutdown does not wait on them. The queue
	// stays open for creates still inside the grace window.
	srv.RegisterOnShutdown(indexer.EndStreams)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s (network %s, schema %s)", cfg.ListenAddr, reg.Network(), sc.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	indexer.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// resolveSchemaUID uses the configured UID, or the one derived from the
// schema string with no resolver when none is configured.
func resolveSchemaUID(raw string, sc *schema.Schema) (common.Hash, error) {
	computed := sc.UID(common.Address{}, true)
	if raw == "" {
		log.Printf("ATTESTD_SCHEMA_UID not set, using derived %s", computed.Hex())
		return computed, nil
	}

	uid, err := domain.ParseDigest("ATTESTD_SCHEMA_UID", raw)
	if err != nil {
		return common.Hash{}, err
	}
	if uid != computed {
		log.Printf("Warning: ATTESTD_SCHEMA_UID %s differs from %s derived for schema %s; check the resolver and revocable flag",
			uid.Hex(), computed.Hex(), sc.Version)
	}
	return uid, nil
}

// openStore never fails: a store that cannot be opened becomes an
// unavailable handle and the query routes answer 503.
func openRegistry(ctx context.Context, cfg config.Config) registry.Registry {
	if !cfg.RegistryConfigured() {
		log.Println("Warning: ATTESTD_RPC_ENDPOINT or ATTESTD_WALLET_PRIVATE_KEY not set, create and fetch will answer 503")
	}
	return registry.Open(ctx, registry.Config{
		Endpoint:   cfg.RPCEndpoint,
		PrivateKey: cfg.PrivateKey,
		Network:    cfg.Network,
		Contract:   cfg.EASAddress,
	})
}

func openStore(cfg config.Config) storage.Repository {
	repo, err := storage.Open(cfg.StoreDriver, cfg.StoreDSN, storage.Options{
		Collection:   cfg.StoreCollection,
		DefaultLimit: cfg.QueryDefaultLimit,
		MaxLimit:     cfg.QueryMaxLimit,
	})
	if err != nil {
		log.Printf("store unavailable: %v", err)
		return storage.NewUnavailable(err.Error())
	}
	if !repo.Available() {
		log.Printf("store disabled (driver %q)", cfg.StoreDriver)
	}
	return repo
}
