package openfinance

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"finsync/internal/domain/account"
	"finsync/internal/domain/creditcard"
	"finsync/internal/domain/investment"
	"finsync/internal/domain/transaction"
	"finsync/internal/infrastructure/pluggy"
	"finsync/internal/shared/clock"
	"finsync/internal/shared/logger"
)

var tracer = otel.Tracer("finsync/openfinance")

// Reconciler is one step of a connection sync.
type Reconciler interface {
	Reconcile(ctx context.Context, userID int64, itemID string) StepResult
}

// Repositories groups the stores written by a sync.
type Repositories struct {
	Accounts     account.Repository
	Transactions transaction.Repository
	CreditCards  creditcard.Repository
	Investments  investment.Repository
}

// SyncService runs the reconcilers for one connection in a fixed order:
// accounts, transactions, credit cards, investments.
type SyncService struct {
	steps  []Reconciler
	clock  clock.Clock
	logger zerolog.Logger
}

// NewSyncService wires the four reconcilers against client and repos.
func NewSyncService(client pluggy.ClientInterface, repos Repositories, clk clock.Clock, lookbackDays int, log zerolog.Logger) *SyncService {
	if clk == nil {
		clk = clock.Real{}
	}
	return NewSyncServiceWithSteps(clk, log,
		NewAccountReconciler(client, repos.Accounts),
		NewTransactionReconciler(client, repos.Accounts, repos.Transactions, clk, lookbackDays),
		NewCreditCardReconciler(client, repos.CreditCards),
		NewInvestmentReconciler(client, repos.Investments),
	)
}

// NewSyncServiceWithSteps builds a service from explicit steps, run in order.
func NewSyncServiceWithSteps(clk clock.Clock, log zerolog.Logger, steps ...Reconciler) *SyncService {
	if clk == nil {
		clk = clock.Real{}
	}
	return &SyncService{steps: steps, clock: clk, logger: log}
}

// SyncConnection reconciles every entity of one connection. A failed accounts
// or transactions step stops the sequence and is returned as a *SyncError;
// failures of optional steps are logged and kept in the report. Auth errors
// are fatal in any step.
func (s *SyncService) SyncConnection(ctx context.Context, userID int64, itemID string) (*ConnectionReport, error) {
	ctx, span := tracer.Start(ctx, "openfinance.SyncConnection")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.String("item.id", itemID))

	log := s.logger.With().Int64("user_id", userID).Str("item_id", itemID).Logger()
	ctx = logger.WithContext(ctx, log)

	report := &ConnectionReport{UserID: userID, ItemID: itemID, StartedAt: s.clock.Now()}
	defer func() { report.FinishedAt = s.clock.Now() }()

	for _, step := range s.steps {
		res := step.Reconcile(ctx, userID, itemID)
		report.Steps = append(report.Steps, res)

		event := log.Info()
		if res.Err != nil {
			event = log.Error().Err(res.Err)
		}
		event.Str("step", string(res.Step)).
			Int("found", res.Found).
			Int("upserted", res.Upserted).
			Int("skipped", res.Skipped).
			Msg("sync step finished")

		for _, w := range res.Warnings {
			log.Warn().Str("step", string(res.Step)).Msg(w)
		}

		if res.Err == nil {
			continue
		}
		if res.Step.Fatal() || errors.Is(res.Err, pluggy.ErrAuth) {
			report.Fatal = &SyncError{Step: res.Step, UserID: userID, ItemID: itemID, Err: res.Err}
			span.RecordError(report.Fatal)
			span.SetStatus(codes.Error, report.Fatal.Error())
			return report, report.Fatal
		}
	}

	return report, nil
}

// SyncPluggyData is the on-demand "sync now" entry point for one connection.
func (s *SyncService) SyncPluggyData(ctx context.Context, userID int64, itemID string) error {
	start := s.clock.Now()
	_, err := s.SyncConnection(ctx, userID, itemID)
	s.logger.Info().
		Int64("user_id", userID).
		Str("item_id", itemID).
		Dur("duration", s.clock.Now().Sub(start)).
		Bool("ok", err == nil).
		Msg("on-demand sync finished")
	return err
}
