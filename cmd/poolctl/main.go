// Package main is the operator CLI for admin pool operations: vendor
// payment, custody actions, resale listing, distribution, finalization,
// and proposal sweeps.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"fracpool/internal/auth"
	"fracpool/internal/config"
	"fracpool/internal/domain"
	"fracpool/internal/governance"
	"fracpool/internal/ledger"
	"fracpool/internal/lifecycle"
	"fracpool/internal/logger"
	"fracpool/internal/storage/migrations"
	pgstore "fracpool/internal/storage/postgres"
	"fracpool/internal/tokenmarket"
	"fracpool/internal/vault"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "poolctl",
		Usage: "operate fractional-ownership pools",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to YAML config file"},
			&cli.StringFlag{Name: "actor", Usage: "admin wallet performing the operation", Required: true},
		},
		Commands: []*cli.Command{
			{
				Name:      "pay-vendor",
				Usage:     "submit the vendor payout for a filled pool",
				ArgsUsage: "<pool-id>",
				Action:    withEngines(payVendor),
			},
			{
				Name:      "confirm-payment",
				Usage:     "confirm the vendor payout and mark the pool funded",
				ArgsUsage: "<pool-id>",
				Action:    withEngines(confirmPayment),
			},
			{
				Name:      "custody",
				Usage:     "advance the custody workflow",
				ArgsUsage: "<pool-id> <ship|receive|verify|store>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tracking", Usage: "tracking number (ship only)"},
				},
				Action: withEngines(custody),
			},
			{
				Name:      "list",
				Usage:     "list the custodied asset for resale",
				ArgsUsage: "<pool-id>",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "price", Usage: "listing price in USD", Required: true},
				},
				Action: withEngines(listForResale),
			},
			{
				Name:      "mark-sold",
				Usage:     "record the resale of the asset",
				ArgsUsage: "<pool-id>",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "price", Usage: "sold price in USD", Required: true},
					&cli.StringFlag{Name: "buyer", Usage: "buyer wallet"},
				},
				Action: withEngines(markSold),
			},
			{
				Name:      "distribute",
				Usage:     "compute and submit the proceeds distribution",
				ArgsUsage: "<pool-id>",
				Action:    withEngines(distribute),
			},
			{
				Name:      "complete-distribution",
				Usage:     "record settlement of every payout",
				ArgsUsage: "<pool-id>",
				Action:    withEngines(completeDistribution),
			},
			{
				Name:      "finalize",
				Usage:     "set up on-chain governance for a graduated pool",
				ArgsUsage: "<pool-id>",
				Action:    withEngines(finalize),
			},
			{
				Name:      "fail",
				Usage:     "move a pool into a terminal failure state",
				ArgsUsage: "<pool-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Value: "failed", Usage: "failed, dead, or burned"},
					&cli.StringFlag{Name: "reason", Usage: "why the pool failed"},
				},
				Action: withEngines(fail),
			},
			{
				Name:   "sweep-proposals",
				Usage:  "expire every past-deadline active proposal",
				Action: withEngines(sweepProposals),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// engines bundles what every command needs.
type engines struct {
	lifecycle  *lifecycle.Engine
	governance *governance.Engine
	actor      string
}

// withEngines wires storage, clients, and engines before running fn.
func withEngines(fn func(ctx context.Context, c *cli.Context, e *engines) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, cancel := context.WithTimeout(c.Context, 5*time.Minute)
		defer cancel()

		pg, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := migrations.RunPostgresMigrations(ctx, pg); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}

		poolStore := pgstore.NewPoolStore(pg)
		proposalStore := pgstore.NewProposalStore(pg)
		policy := auth.NewStaticPolicy(cfg.AdminWallets, nil)

		ledgerIndex := ledger.NewHTTPClient(cfg.Ledger.BaseURL, cfg.Ledger.APIKey,
			ledger.WithTimeout(cfg.Ledger.Timeout))
		govVault := vault.NewHTTPClient(cfg.Vault.BaseURL, cfg.Vault.APIKey,
			vault.WithTimeout(cfg.Vault.Timeout))
		tokens := tokenmarket.NewHTTPClient(cfg.Tokens.BaseURL, cfg.Tokens.APIKey,
			tokenmarket.WithTimeout(cfg.Tokens.Timeout))

		e := &engines{
			lifecycle: lifecycle.NewEngine(poolStore, ledgerIndex, govVault, tokens, policy, log,
				lifecycle.WithConfig(lifecycle.Config{
					TopHolderLimit:   cfg.Lifecycle.TopHolderLimit,
					MinHolderBalance: cfg.Lifecycle.MinHolderBalance,
					MaxUpdateRetries: cfg.Lifecycle.MaxUpdateRetries,
					TreasuryVaultID:  cfg.Vault.TreasuryVaultID,
				})),
			governance: governance.NewEngine(proposalStore, poolStore, ledgerIndex, govVault, policy, log),
			actor:      c.String("actor"),
		}
		return fn(ctx, c, e)
	}
}

func poolArg(c *cli.Context) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", cli.Exit("pool id is required", 2)
	}
	return id, nil
}

func payVendor(ctx context.Context, c *cli.Context, e *engines) error {
	id, err := poolArg(c)
	if err != nil {
		return err
	}
	pool, err := e.lifecycle.PayVendor(ctx, id, e.actor)
	if err != nil {
		return err
	}
	fmt.Printf("vendor payment submitted: %.2f USD (tx index %d)\n",
		pool.VendorPaymentUSD, *pool.VendorPaymentTxIndex)
	return nil
}

func confirmPayment(ctx context.Context, c *cli.Context, e *engines) error {
	id, err := poolArg(c)
	if err != nil {
		return err
	}
	pool, err := e.lifecycle.ConfirmVendorPayment(ctx, id, e.actor)
	if err != nil {
		return err
	}
	fmt.Printf("pool %s is now %s\n", pool.PoolID, pool.Status)
	return nil
}

func custody(ctx context.Context, c *cli.Context, e *engines) error {
	id, err := poolArg(c)
	if err != nil {
		return err
	}
	action := c.Args().Get(1)

	var pool *domain.Pool
	switch action {
	case "ship":
		pool, err = e.lifecycle.SubmitTracking(ctx, id, e.actor, c.String("tracking"))
	case "receive":
		pool, err = e.lifecycle.MarkReceived(ctx, id, e.actor)
	case "verify":
		pool, err = e.lifecycle.VerifyCustody(ctx, id, e.actor)
	case "store":
		pool, err = e.lifecycle.StoreAsset(ctx, id, e.actor)
	default:
		return cli.Exit("custody action must be ship, receive, verify, or store", 2)
	}
	if err != nil {
		return err
	}
	fmt.Printf("pool %s: custody %s, status %s\n", pool.PoolID, pool.CustodyStatus, pool.Status)
	return nil
}

func listForResale(ctx context.Context, c *cli.Context, e *engines) error {
	id, err := poolArg(c)
	if err != nil {
		return err
	}
	pool, err := e.lifecycle.ListForResale(ctx, id, e.actor, c.Float64("price"))
	if err != nil {
		return err
	}
	fmt.Printf("pool %s listed at %.2f USD\n", pool.PoolID, pool.ResaleListingPriceUSD)
	return nil
}

func markSold(ctx context.Context, c *cli.Context, e *engines) error {
	id, err := poolArg(c)
	if err != nil {
		return err
	}
	pool, err := e.lifecycle.MarkSold(ctx, id, e.actor, c.Float64("price"), c.String("buyer"))
	if err != nil {
		return err
	}
	fmt.Printf("pool %s sold at %.2f USD\n", pool.PoolID, pool.ResaleSoldPriceUSD)
	return nil
}

func distribute(ctx context.Context, c *cli.Context, e *engines) error {
	id, err := poolArg(c)
	if err != nil {
		return err
	}
	pool, err := e.lifecycle.Distribute(ctx, id, e.actor)
	if err != nil {
		return err
	}
	fmt.Printf("distribution proposed: %.2f USD net, %.2f USD royalty, %d recipients\n",
		pool.DistributionAmount, pool.DistributionRoyalty, len(pool.Distributions))
	for _, d := range pool.Distributions {
		fmt.Printf("  %s  %d shares  %.2f USD\n", d.Wallet, d.Shares, d.AmountUSD)
	}
	return nil
}

func completeDistribution(ctx context.Context, c *cli.Context, e *engines) error {
	id, err := poolArg(c)
	if err != nil {
		return err
	}
	pool, err := e.lifecycle.CompleteDistribution(ctx, id, e.actor)
	if err != nil {
		return err
	}
	fmt.Printf("pool %s is now %s\n", pool.PoolID, pool.Status)
	return nil
}

func finalize(ctx context.Context, c *cli.Context, e *engines) error {
	id, err := poolArg(c)
	if err != nil {
		return err
	}
	pool, err := e.lifecycle.Finalize(ctx, id, e.actor)
	if err != nil {
		return err
	}
	fmt.Printf("pool %s finalized: vault %s, %d members\n",
		pool.PoolID, *pool.SquadMultisigPDA, len(pool.SquadMembers))
	return nil
}

func fail(ctx context.Context, c *cli.Context, e *engines) error {
	id, err := poolArg(c)
	if err != nil {
		return err
	}
	pool, err := e.lifecycle.FailPool(ctx, id, e.actor, domain.PoolStatus(c.String("status")), c.String("reason"))
	if err != nil {
		return err
	}
	fmt.Printf("pool %s is now %s\n", pool.PoolID, pool.Status)
	return nil
}

func sweepProposals(ctx context.Context, c *cli.Context, e *engines) error {
	n, err := e.governance.ExpireDueProposals(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Printf("expired %d proposals\n", n)
	return nil
}
