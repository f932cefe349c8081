// Package main runs the pool service: the HTTP surface (graduation
// webhook, status, metrics), the token-service graduation watcher, and
// the proposal expiry sweeper.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fracpool/internal/auth"
	"fracpool/internal/config"
	"fracpool/internal/governance"
	"fracpool/internal/ledger"
	ledgerstub "fracpool/internal/ledger/stub"
	"fracpool/internal/lifecycle"
	"fracpool/internal/logger"
	"fracpool/internal/observability"
	"fracpool/internal/server"
	"fracpool/internal/storage"
	chstore "fracpool/internal/storage/clickhouse"
	"fracpool/internal/storage/memory"
	"fracpool/internal/storage/migrations"
	pgstore "fracpool/internal/storage/postgres"
	"fracpool/internal/tokenmarket"
	tokenstub "fracpool/internal/tokenmarket/stub"
	"fracpool/internal/vault"
	vaultstub "fracpool/internal/vault/stub"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		useMemory  = flag.Bool("memory", false, "use in-memory stores and stub clients")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		poolStore     storage.PoolStore
		proposalStore storage.ProposalStore
		activityStore storage.ActivityStore
	)
	if *useMemory {
		poolStore = memory.NewPoolStore()
		proposalStore = memory.NewProposalStore()
		activityStore = memory.NewActivityStore()
		log.Info("using in-memory stores")
	} else {
		pg, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := migrations.RunPostgresMigrations(ctx, pg); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		poolStore = pgstore.NewPoolStore(pg)
		proposalStore = pgstore.NewProposalStore(pg)

		chDSN := fmt.Sprintf("clickhouse://%s:%s@%s/%s",
			cfg.ClickHouse.Username, cfg.ClickHouse.Password, cfg.ClickHouse.Addr, cfg.ClickHouse.Database)
		ch, err := chstore.NewConn(ctx, chDSN)
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		defer ch.Close()
		if err := migrations.RunClickhouseMigrations(ctx, ch); err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		activityStore = chstore.NewActivityStore(ch)
	}

	var (
		ledgerIndex ledger.Index
		govVault    vault.Vault
		tokens      tokenmarket.Service
	)
	if *useMemory {
		ledgerIndex = ledgerstub.NewIndex()
		govVault = vaultstub.NewVault()
		tokens = tokenstub.NewService()
		log.Info("using stub external clients")
	} else {
		ledgerIndex = ledger.NewHTTPClient(cfg.Ledger.BaseURL, cfg.Ledger.APIKey,
			ledger.WithTimeout(cfg.Ledger.Timeout))
		govVault = vault.NewHTTPClient(cfg.Vault.BaseURL, cfg.Vault.APIKey,
			vault.WithTimeout(cfg.Vault.Timeout))
		tokens = tokenmarket.NewHTTPClient(cfg.Tokens.BaseURL, cfg.Tokens.APIKey,
			tokenmarket.WithTimeout(cfg.Tokens.Timeout))
	}

	metrics := observability.NewMetrics("fracpool")
	policy := auth.NewStaticPolicy(cfg.AdminWallets, nil)

	lifecycleEngine := lifecycle.NewEngine(poolStore, ledgerIndex, govVault, tokens, policy, log,
		lifecycle.WithMetrics(metrics),
		lifecycle.WithActivityStore(activityStore),
		lifecycle.WithConfig(lifecycle.Config{
			TopHolderLimit:   cfg.Lifecycle.TopHolderLimit,
			MinHolderBalance: cfg.Lifecycle.MinHolderBalance,
			MaxUpdateRetries: cfg.Lifecycle.MaxUpdateRetries,
			TreasuryVaultID:  cfg.Vault.TreasuryVaultID,
		}))

	governanceEngine := governance.NewEngine(proposalStore, poolStore, ledgerIndex, govVault, policy, log,
		governance.WithMetrics(metrics),
		governance.WithActivityStore(activityStore),
		governance.WithConfig(governance.Config{
			MaxUpdateRetries: cfg.Governance.MaxUpdateRetries,
		}))

	sweeper, err := governance.NewSweeper(governanceEngine, log, &governance.SweeperConfig{
		Interval: cfg.Governance.SweepInterval,
		Workers:  cfg.Governance.SweepWorkers,
	})
	if err != nil {
		return fmt.Errorf("create sweeper: %w", err)
	}

	srv := server.New(server.Config{
		Addr:            cfg.HTTP.Addr,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		WebhookToken:    cfg.HTTP.WebhookToken,
	}, lifecycleEngine, governanceEngine, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Run)

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := sweeper.Start(gctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	if cfg.Tokens.FeedURL != "" {
		watcher := tokenmarket.NewWatcher(cfg.Tokens.FeedURL,
			func(ctx context.Context, ev tokenmarket.GraduationEvent) error {
				_, err := lifecycleEngine.Graduate(ctx, ev.PoolID)
				if errors.Is(err, lifecycle.ErrAlreadyGraduated) {
					return nil
				}
				return err
			}, log, nil)
		g.Go(func() error {
			err := watcher.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	log.Info("fracpool service started", zap.String("addr", cfg.HTTP.Addr))
	return g.Wait()
}
