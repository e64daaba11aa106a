// Command ledger-report summarizes confirmed order ledgers.
//
// Ledgers are the CSV files written by sazon-server, plain or gzip
// compressed (rotated archives). Each -ledger flag may be a glob.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
)

// patterns collects repeated -ledger flags.
type patterns []string

func (p *patterns) String() string { return strings.Join(*p, ",") }

func (p *patterns) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	var (
		ledgers     patterns
		concurrency int
		top         int
	)

	flag.Var(&ledgers, "ledger", "ledger file or glob, plain or .gz (repeatable)")
	flag.IntVar(&concurrency, "concurrency", 4, "files scanned in parallel")
	flag.IntVar(&top, "top", 10, "dishes listed in the report, 0 for all")
	flag.Parse()

	if len(ledgers) == 0 {
		ledgers = patterns{"data/orders.csv*"}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, ledgers, concurrency, top); err != nil {
		slog.Error("ledger report failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, ledgers []string, concurrency, top int) error {
	files, err := expand(ledgers)
	if err != nil {
		return err
	}
	slog.Info("scanning ledgers", slog.Int("files", len(files)))

	s, err := scan(ctx, files, concurrency)
	if err != nil {
		return errors.Wrap(err, "scan ledgers")
	}

	slog.Info("scan complete",
		slog.Int("orders", s.Orders),
		slog.Int("duplicates", s.Duplicates),
	)
	return s.Write(os.Stdout, top)
}
