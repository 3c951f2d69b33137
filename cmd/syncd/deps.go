package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"finsync/internal/domain/openfinance"
	"finsync/internal/infrastructure/pluggy"
	"finsync/internal/infrastructure/sqlstore"
	"finsync/internal/infrastructure/sqlstore/listener"
	"finsync/internal/interfaces/scheduler"
	"finsync/internal/shared/clock"
	"finsync/internal/shared/config"
)

// Dependencies holds all initialized daemon components.
type Dependencies struct {
	DB          *sqlstore.DB
	Client      *pluggy.Client
	Connections *sqlstore.ConnectionRepository
	SyncService *openfinance.SyncService

	// Nil when disabled by configuration
	Scheduler *scheduler.Scheduler
	Listener  *listener.SyncListener
}

// NewDependencies opens the store and wires the sync engine on top of it.
func NewDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Dependencies, error) {
	db, err := sqlstore.New(cfg.Database.Driver, cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Info().Str("driver", db.Driver()).Msg("connected to database")

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

	connections := sqlstore.NewConnectionRepository(db)
	syncService := openfinance.NewSyncService(client, openfinance.Repositories{
		Accounts:     sqlstore.NewAccountRepository(db),
		Transactions: sqlstore.NewTransactionRepository(db),
		CreditCards:  sqlstore.NewCreditCardRepository(db),
		Investments:  sqlstore.NewInvestmentRepository(db),
	}, clk, cfg.Pluggy.TransactionsLookbackDays, log)

	deps := &Dependencies{
		DB:          db,
		Client:      client,
		Connections: connections,
		SyncService: syncService,
	}

	if cfg.Scheduler.Enabled {
		deps.Scheduler = scheduler.New(scheduler.Config{
			Interval:        cfg.Scheduler.Interval,
			MinSyncInterval: cfg.Scheduler.MinSyncInterval,
			RefreshGrace:    cfg.Scheduler.RefreshGrace,
			WorkerCount:     cfg.Scheduler.WorkerCount,
			JobDelay:        cfg.Scheduler.JobDelay,
			JobTimeout:      cfg.Scheduler.JobTimeout,
			RunOnStartup:    cfg.Scheduler.RunOnStartup,
		}, connections, client, syncService, clk, log)
	}

	if cfg.Listener.Enabled && deps.Scheduler != nil {
		deps.Listener = listener.NewSyncListener(cfg.Database.ConnectionString(), deps.Scheduler, log)
	}

	return deps, nil
}

// Close releases the database handle.
func (d *Dependencies) Close() error {
	return d.DB.Close()
}
