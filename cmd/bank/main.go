package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sheikh-saqib/ledger-bank/internal/accounts"
	"github.com/sheikh-saqib/ledger-bank/internal/cli"
	"github.com/sheikh-saqib/ledger-bank/internal/config"
	"github.com/sheikh-saqib/ledger-bank/internal/events/kafka"
	"github.com/sheikh-saqib/ledger-bank/internal/ledger"
	"github.com/sheikh-saqib/ledger-bank/internal/logger"
	"github.com/sheikh-saqib/ledger-bank/internal/session"
	"github.com/sheikh-saqib/ledger-bank/internal/storage"
)

const currency = "naira"

func main() {
	reconcile := flag.Bool("reconcile", false, "compare every stored balance with its ledger and exit")
	envFile := flag.String("env", "", "path to an env file (default .env)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, stop, *envFile, *reconcile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run(ctx context.Context, stop context.CancelFunc, envFile string, reconcile bool) (int, error) {
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return 1, err
	}

	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return 1, fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger.Configure(logOut, logger.ParseLevel(cfg.LogLevel))
	if !cfg.EnvFileLoaded {
		logger.Debug("no env file loaded, using environment only", nil)
	}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return 1, err
	}
	defer store.Close()

	opts := []ledger.Option{ledger.WithAuditLog(store)}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers)
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher))
		logger.Info("publishing ledger events", logger.Fields{"brokers": cfg.KafkaBrokers})
	}
	bank := ledger.NewLedger(store, opts...)

	if reconcile {
		return runReconcile(ctx, bank, os.Stdout)
	}

	// A blocked read on stdin does not observe ctx. Closing it ends the session
	// loop where the platform allows; a second interrupt kills the process.
	go func() {
		<-ctx.Done()
		stop()
		_ = os.Stdin.Close()
	}()

	svc := accounts.NewService(store, store, accounts.NewBcryptHasher(cfg.BcryptCost), cfg.StartingBalance)
	fmt.Fprintln(os.Stdout, "Welcome to the Bank System")
	if err := cli.New(os.Stdin, os.Stdout, session.New(svc, bank), currency).Run(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stdout, "\nGoodbye!")
			return 0, nil
		}
		return 1, err
	}
	return 0, nil
}

// runReconcile prints every account whose stored balance disagrees with its
// ledger and returns exit code 1 if there were any.
func runReconcile(ctx context.Context, bank *ledger.Ledger, out io.Writer) (int, error) {
	found, err := bank.Reconcile(ctx)
	if err != nil {
		return 1, err
	}
	if len(found) == 0 {
		fmt.Fprintln(out, "All balances match the ledger.")
		return 0, nil
	}
	for _, d := range found {
		fmt.Fprintf(out, "account %s (%s): stored %s, ledger %s\n",
			d.AccountNumber, d.AccountID, d.Stored.StringFixed(2), d.LedgerSum.StringFixed(2))
	}
	return 1, nil
}
