// main.go - Vault daemon: proof-gated balance ledger behind a REST API.
//
// Startup:
//   - Load JSON config (created with defaults on first run)
//   - Compile the authentication relation and load or generate Groth16 keys
//   - Restore the ledger snapshot if one exists
//   - Serve the REST API until SIGINT/SIGTERM, then snapshot and drain
//
// Proof generation happens in clients (see cmd/vaultcli); the daemon only
// verifies envelopes and applies ledger transitions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zkvault/internal/settlement"
	"zkvault/internal/vault"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "vaultd.json", "path to config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logs, err := NewLoggers(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logs.Close()
	log := logs.Main

	log.Info().Str("version", version).Msg("starting vaultd")

	start := time.Now()
	backend, err := vault.NewBackendWithKeys(cfg.ProvingKeyPath, cfg.VerifyingKeyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("backend setup failed")
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("authentication relation ready")

	var ledger *vault.Ledger
	if _, err := os.Stat(cfg.LedgerPath); err == nil {
		ledger, err = vault.LoadLedgerFromFile(cfg.LedgerPath, backend)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.LedgerPath).Msg("ledger restore failed")
		}
		log.Info().Str("path", cfg.LedgerPath).Msg("ledger restored")
	} else {
		ledger = vault.NewLedger(backend)
		log.Info().Msg("starting with empty ledger")
	}

	var submitter settlement.Submitter
	if cfg.SettlementEndpoint != "" {
		submitter = settlement.NewClient(cfg.SettlementEndpoint, log)
		log.Info().Str("endpoint", cfg.SettlementEndpoint).Msg("settlement channel configured")
	} else {
		submitter = settlement.Null{}
		log.Info().Msg("no settlement endpoint, settling locally")
	}

	health := NewHealthChecker(version)
	health.RegisterComponent("verifying-key", func() error {
		_, err := os.Stat(cfg.VerifyingKeyPath)
		return err
	})
	health.RegisterComponent("ledger-store", func() error {
		f, err := os.OpenFile(cfg.LedgerPath, os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return err
		}
		return f.Close()
	})

	srv := &server{
		cfg:       cfg,
		ledger:    ledger,
		submitter: submitter,
		logs:      logs,
		metrics:   NewMetricsCollector(),
		limiter: NewIdentityRateLimiter(cfg.RateLimitBurst, cfg.RateLimitRefill,
			time.Duration(cfg.RateLimitPeriodMs)*time.Millisecond),
		health: health,
	}

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.routes(),
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown did not drain cleanly")
	}
	if err := ledger.SaveToFile(cfg.LedgerPath); err != nil {
		log.Error().Err(err).Msg("final ledger snapshot failed")
	}
	log.Info().Msg("stopped")
}
