// Command flashctl runs a scripted flash-accounting plan against an
// in-memory vault and prints the resulting balances.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
)

func main() {
	path := flag.String("plan", "plan.toml", "path to the TOML plan")
	flag.Parse()

	if err := execute(*path); err != nil {
		log.Fatal(err)
	}
}

func execute(path string) error {
	p, err := loadPlan(path)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: p.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return runPlan(ctx, p, openStore(p), logger, os.Stdout)
}
