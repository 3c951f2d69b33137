package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"finsync/internal/domain/connection"
	"finsync/internal/infrastructure/sqlstore"
	"finsync/internal/infrastructure/sqlstore/listener"
)

// parseFlags parses args and enforces required flags, printing usage on failure.
func parseFlags(fs *flag.FlagSet, args []string, required ...string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for _, name := range required {
		if !set[name] {
			fs.Usage()
			return fmt.Errorf("--%s is required", name)
		}
	}
	return nil
}

func newFlagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Printf("Usage: admin %s %s\n", name, synopsis)
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}
	return fs
}

func withTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func runMigrate(args []string) error {
	fs := newFlagSet("migrate", "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx, cancel := withTimeout(time.Minute)
	defer cancel()

	// loadEnv applies the schema
	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	e.log.Info().Str("driver", e.db.Driver()).Msg("schema applied")
	return nil
}

func runRegister(args []string) error {
	fs := newFlagSet("register", "--user-id=ID --item-id=ID [options]")
	userID := fs.Int64("user-id", 0, "Local user ID")
	itemID := fs.String("item-id", "", "Aggregator item ID")
	consentID := fs.String("consent-id", "", "Consent ID; connections without one are never synced")
	institution := fs.String("institution", "", "Institution display name")
	status := fs.String("status", string(connection.StatusConnected), "Connection status")
	if err := parseFlags(fs, args, "user-id", "item-id"); err != nil {
		return err
	}

	ctx, cancel := withTimeout(time.Minute)
	defer cancel()

	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	params := connection.RegisterParams{
		UserID:          *userID,
		ItemID:          *itemID,
		InstitutionName: *institution,
		Status:          connection.Status(*status),
	}
	if *consentID != "" {
		params.ConsentID = consentID
	}

	conn, err := e.connections.Register(ctx, params)
	if err != nil {
		return err
	}
	fmt.Printf("Registered connection %s (user %d, item %s, status %s)\n", conn.ID, conn.UserID, conn.ItemID, conn.Status)
	return nil
}

func runConnections(args []string) error {
	fs := newFlagSet("connections", "--user-id=ID")
	userID := fs.Int64("user-id", 0, "Local user ID")
	if err := parseFlags(fs, args, "user-id"); err != nil {
		return err
	}

	ctx, cancel := withTimeout(time.Minute)
	defer cancel()

	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	conns, err := e.connections.ListByUserID(ctx, *userID)
	if err != nil {
		return err
	}
	if len(conns) == 0 {
		fmt.Printf("No connections for user %d\n", *userID)
		return nil
	}
	for _, c := range conns {
		printConnection(c)
	}
	return nil
}

func runSync(args []string) error {
	fs := newFlagSet("sync", "--user-id=ID --item-id=ID [--refresh]")
	userID := fs.Int64("user-id", 0, "Local user ID")
	itemID := fs.String("item-id", "", "Aggregator item ID")
	refresh := fs.Bool("refresh", false, "Ask the aggregator to refresh the item first")
	timeout := fs.Duration("timeout", 10*time.Minute, "Timeout for the operation")
	if err := parseFlags(fs, args, "user-id", "item-id"); err != nil {
		return err
	}

	ctx, cancel := withTimeout(*timeout)
	defer cancel()

	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	started := time.Now()
	syncErr := e.scheduler(1).SyncOne(ctx, *userID, *itemID, *refresh)

	conn, err := e.connections.GetByItemID(ctx, *userID, *itemID)
	if err == nil {
		printConnection(conn)
	}
	if syncErr != nil {
		return syncErr
	}
	fmt.Printf("Sync completed in %v\n", time.Since(started).Round(time.Millisecond))
	return nil
}

func runSyncAll(args []string) error {
	fs := newFlagSet("sync-all", "[options]")
	workers := fs.Int("workers", 0, "Number of concurrent workers (default from SCHEDULER_WORKERS)")
	timeout := fs.Duration("timeout", 30*time.Minute, "Timeout for the operation")
	asJSON := fs.Bool("json", false, "Print the batch report as JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx, cancel := withTimeout(*timeout)
	defer cancel()

	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	report := e.scheduler(*workers).RunOnce(ctx)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Printf("\n=== Run %s ===\n", report.RunID)
		fmt.Printf("  Connections: %d\n", report.Total)
		fmt.Printf("  Succeeded:   %d\n", report.Succeeded)
		fmt.Printf("  Failed:      %d\n", report.Failed)
		fmt.Printf("  Skipped:     %d\n", report.Skipped)
		fmt.Printf("  Duration:    %v\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
		for _, o := range report.Outcomes {
			if o.Error != "" {
				fmt.Printf("    - user %d item %s: %s\n", o.UserID, o.ItemID, o.Error)
			}
		}
	}

	if report.Error != "" {
		return errors.New(report.Error)
	}
	return nil
}

func runRefresh(args []string) error {
	fs := newFlagSet("refresh", "--item-id=ID")
	itemID := fs.String("item-id", "", "Aggregator item ID")
	if err := parseFlags(fs, args, "item-id"); err != nil {
		return err
	}

	ctx, cancel := withTimeout(time.Minute)
	defer cancel()

	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	item, err := e.client.TriggerRefresh(ctx, *itemID)
	if err != nil {
		return err
	}
	fmt.Printf("Refresh requested for item %s (status %s)\n", item.ID, item.Status)
	return nil
}

func runRevoke(args []string) error {
	fs := newFlagSet("revoke", "--user-id=ID --item-id=ID")
	userID := fs.Int64("user-id", 0, "Local user ID")
	itemID := fs.String("item-id", "", "Aggregator item ID")
	if err := parseFlags(fs, args, "user-id", "item-id"); err != nil {
		return err
	}

	ctx, cancel := withTimeout(time.Minute)
	defer cancel()

	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	conn, err := e.connections.GetByItemID(ctx, *userID, *itemID)
	if err != nil {
		return err
	}
	if err := e.client.Revoke(ctx, conn.ItemID); err != nil {
		return fmt.Errorf("failed to revoke consent: %w", err)
	}
	if err := e.connections.UpdateStatus(ctx, conn.ID, connection.StatusRevoked); err != nil {
		return err
	}
	fmt.Printf("Revoked item %s; connection %s will no longer sync\n", conn.ItemID, conn.ID)
	return nil
}

func runShow(args []string) error {
	fs := newFlagSet("show", "--user-id=ID --item-id=ID [--transactions=N]")
	userID := fs.Int64("user-id", 0, "Local user ID")
	itemID := fs.String("item-id", "", "Aggregator item ID")
	txLimit := fs.Int("transactions", 10, "Most recent transactions to print per account")
	if err := parseFlags(fs, args, "user-id", "item-id"); err != nil {
		return err
	}

	ctx, cancel := withTimeout(time.Minute)
	defer cancel()

	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	accounts, err := e.accounts.ListByItem(ctx, *userID, *itemID)
	if err != nil {
		return err
	}
	fmt.Printf("\n=== Accounts (%d) ===\n", len(accounts))
	for _, a := range accounts {
		fmt.Printf("  %s  %-30s %s %s\n", a.ExternalID, a.Name, a.CurrentBalance.StringFixed(2), a.Currency)
		if *txLimit <= 0 {
			continue
		}
		txs, err := e.transactions.ListByAccountID(ctx, a.ID, *txLimit, 0)
		if err != nil {
			return err
		}
		for _, tx := range txs {
			manual := ""
			if tx.CategoryIsManual {
				manual = " (manual)"
			}
			fmt.Printf("    %s  %12s  %-30s %s%s  [%s]\n",
				tx.Date.Format("2006-01-02"), tx.Amount.StringFixed(2), tx.Description, tx.Category, manual, tx.ID)
		}
	}

	cards, err := e.cards.ListByItem(ctx, *userID, *itemID)
	if err != nil {
		return err
	}
	fmt.Printf("\n=== Credit cards (%d) ===\n", len(cards))
	for _, c := range cards {
		fmt.Printf("  %s  %-30s %s owed\n", c.NumberMasked, c.Name, c.CurrentBalance.StringFixed(2))
		invoices, err := e.cards.ListInvoices(ctx, c.ID)
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			fmt.Printf("    due %s  %12s  %s\n", inv.DueDate.Format("2006-01-02"), inv.TotalAmount.StringFixed(2), inv.Status)
		}
	}

	investments, err := e.investments.ListByItem(ctx, *userID, *itemID)
	if err != nil {
		return err
	}
	fmt.Printf("\n=== Investments (%d) ===\n", len(investments))
	for _, inv := range investments {
		fmt.Printf("  %-30s %-12s %s %s\n", inv.Name, inv.Type, inv.CurrentValue.StringFixed(2), inv.Currency)
	}
	return nil
}

func runCategorize(args []string) error {
	fs := newFlagSet("categorize", "--user-id=ID --transaction-id=ID --category=NAME")
	userID := fs.Int64("user-id", 0, "Local user ID")
	txID := fs.String("transaction-id", "", "Local transaction ID")
	category := fs.String("category", "", "Category to set; later syncs keep it")
	if err := parseFlags(fs, args, "user-id", "transaction-id", "category"); err != nil {
		return err
	}

	ctx, cancel := withTimeout(time.Minute)
	defer cancel()

	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.transactions.SetManualCategory(ctx, *userID, *txID, *category); err != nil {
		return err
	}
	fmt.Printf("Transaction %s categorized as %q\n", *txID, *category)
	return nil
}

func runRequestSync(args []string) error {
	fs := newFlagSet("request-sync", "--user-id=ID --item-id=ID")
	userID := fs.Int64("user-id", 0, "Local user ID")
	itemID := fs.String("item-id", "", "Aggregator item ID")
	if err := parseFlags(fs, args, "user-id", "item-id"); err != nil {
		return err
	}

	ctx, cancel := withTimeout(time.Minute)
	defer cancel()

	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.db.Driver() != sqlstore.DriverPostgres {
		return fmt.Errorf("request-sync needs DB_DRIVER=postgres, got %s", e.db.Driver())
	}
	if err := listener.NotifySyncRequested(ctx, e.db, *userID, *itemID); err != nil {
		return err
	}
	fmt.Printf("Sync requested for user %d item %s on channel %s\n", *userID, *itemID, listener.ChannelName)
	return nil
}

func printConnection(c *connection.Connection) {
	fmt.Printf("\n=== Connection %s ===\n", c.ID)
	fmt.Printf("  User:        %d\n", c.UserID)
	fmt.Printf("  Item:        %s\n", c.ItemID)
	fmt.Printf("  Institution: %s\n", c.InstitutionName)
	fmt.Printf("  Status:      %s\n", c.Status)
	if c.LastSyncAt != nil {
		fmt.Printf("  Last sync:   %s\n", c.LastSyncAt.Format(time.RFC3339))
	} else {
		fmt.Println("  Last sync:   never")
	}
	if c.LastSyncStatus != "" {
		fmt.Printf("  Outcome:     %s\n", c.LastSyncStatus)
	}
	if c.LastError != "" {
		fmt.Printf("  Last error:  %s\n", c.LastError)
	}
}
