package main

import (
	"context"
	"crypto/rand"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodia/config"
	"custodia/native/arbitration"
	"custodia/native/escrow"
	"custodia/observability/logging"
	"custodia/observability/metrics"
	"custodia/rpc"
	"custodia/state"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "custodia.toml", "path to the TOML configuration")
	env := flag.String("env", "", "deployment environment label for logs")
	logLevel := flag.String("log-level", "info", "minimum log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup("custodiad", *env, logging.ParseLevel(*logLevel))

	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		logger.Error("seed init failed", "err", err)
		os.Exit(1)
	}

	ledger := state.NewLedger()
	backend := state.NewMemory()
	pauses := state.NewPauseSwitchboard()
	roles := state.NewRoleSet()
	metadata := state.NewMetadataBook()

	escrowMetrics := metrics.Escrow()
	promRegistry := prometheus.NewRegistry()
	escrowMetrics.Register(promRegistry)
	emitter := metrics.NewRecorder(escrowMetrics, nil)

	registry := arbitration.NewRegistry(metadata)
	registry.SetParams(cfg.ArbitrationParams())
	registry.SetRoles(roles)
	registry.SetEmitter(emitter)

	escrows := escrow.NewEngine()
	escrows.SetState(backend)
	escrows.SetLedger(ledger)
	escrows.SetParams(cfg.EscrowParams())
	escrows.SetPauses(pauses)
	escrows.SetSeedSource(escrow.NewSeedSource(seed))
	escrows.SetEmitter(emitter)

	resolution := arbitration.NewEngine(registry, escrows)
	resolution.SetParams(cfg.ArbitrationParams())
	resolution.SetPauses(pauses)
	resolution.SetEmitter(emitter)
	escrows.SetAssigner(resolution)

	server := rpc.NewServer(escrows, resolution, registry, logger)
	router := server.Router()
	router.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: router,
	}

	go func() {
		logger.Info("custodiad listening", "addr", cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}
