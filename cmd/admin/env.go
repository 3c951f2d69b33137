package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"finsync/internal/domain/openfinance"
	"finsync/internal/infrastructure/pluggy"
	"finsync/internal/infrastructure/sqlstore"
	"finsync/internal/interfaces/scheduler"
	"finsync/internal/shared/clock"
	"finsync/internal/shared/config"
	"finsync/internal/shared/logger"
)

// env is everything a command may need. Commands that never reach the
// aggregator still build the client; it does no I/O until first use.
type env struct {
	cfg          *config.Config
	log          zerolog.Logger
	db           *sqlstore.DB
	client       *pluggy.Client
	connections  *sqlstore.ConnectionRepository
	accounts     *sqlstore.AccountRepository
	transactions *sqlstore.TransactionRepository
	cards        *sqlstore.CreditCardRepository
	investments  *sqlstore.InvestmentRepository
	sync         *openfinance.SyncService
}

func loadEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, Format: "console", Output: os.Stderr})

	db, err := sqlstore.New(cfg.Database.Driver, cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	clk := clock.Real{}
	client := pluggy.NewClient(pluggy.Config{
		BaseURL:      cfg.Pluggy.BaseURL,
		ClientID:     cfg.Pluggy.ClientID,
		ClientSecret: cfg.Pluggy.ClientSecret,
		Timeout:      cfg.Pluggy.RequestTimeout,
		RateLimit:    cfg.Pluggy.RateLimit,
		RateBurst:    cfg.Pluggy.RateBurst,
		Clock:        clk,
	})

	e := &env{
		cfg:          cfg,
		log:          log,
		db:           db,
		client:       client,
		connections:  sqlstore.NewConnectionRepository(db),
		accounts:     sqlstore.NewAccountRepository(db),
		transactions: sqlstore.NewTransactionRepository(db),
		cards:        sqlstore.NewCreditCardRepository(db),
		investments:  sqlstore.NewInvestmentRepository(db),
	}
	e.sync = openfinance.NewSyncService(client, openfinance.Repositories{
		Accounts:     e.accounts,
		Transactions: e.transactions,
		CreditCards:  e.cards,
		Investments:  e.investments,
	}, clk, cfg.Pluggy.TransactionsLookbackDays, log)

	return e, nil
}

// scheduler builds a stopped scheduler for one-shot batch and single syncs.
func (e *env) scheduler(workers int) *scheduler.Scheduler {
	cfg := e.cfg.Scheduler
	if workers > 0 {
		cfg.WorkerCount = workers
	}
	return scheduler.New(scheduler.Config{
		Interval:        cfg.Interval,
		MinSyncInterval: cfg.MinSyncInterval,
		RefreshGrace:    cfg.RefreshGrace,
		WorkerCount:     cfg.WorkerCount,
		JobDelay:        cfg.JobDelay,
		JobTimeout:      cfg.JobTimeout,
	}, e.connections, e.client, e.sync, clock.Real{}, e.log)
}

func (e *env) Close() {
	e.db.Close()
}
