// Command admin runs one-off maintenance against the sync store and the
// aggregator: migrations, manual syncs, consent revocation and category edits.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

const usage = `finsync admin - management commands for the sync engine

Usage:
  admin <command> [options]

Commands:
  migrate        Apply the database schema
  register       Register or update a connection
  connections    List a user's connections and their last sync outcome
  sync           Sync one connection now
  sync-all       Run one scheduler batch over every eligible connection
  refresh        Ask the aggregator to refresh an item
  revoke         Revoke an item's consent and mark the connection revoked
  show           Print the accounts, cards, invoices and investments of a connection
  categorize     Set a manual category on a transaction
  request-sync   Publish a sync request to a running daemon (postgres only)

Examples:
  admin migrate
  admin register --user-id=1 --item-id=abc --consent-id=c-1 --institution="Banco X"
  admin sync --user-id=1 --item-id=abc --refresh
  admin sync-all --timeout=30m
  admin revoke --user-id=1 --item-id=abc
  admin categorize --user-id=1 --transaction-id=<uuid> --category=Groceries
  admin request-sync --user-id=1 --item-id=abc
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	commands := map[string]func(args []string) error{
		"migrate":      runMigrate,
		"register":     runRegister,
		"connections":  runConnections,
		"sync":         runSync,
		"sync-all":     runSyncAll,
		"refresh":      runRefresh,
		"revoke":       runRevoke,
		"show":         runShow,
		"categorize":   runCategorize,
		"request-sync": runRequestSync,
	}

	command := os.Args[1]
	switch command {
	case "help", "-h", "--help":
		fmt.Println(usage)
		return
	}

	run, ok := commands[command]
	if !ok {
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}

	if err := run(os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
