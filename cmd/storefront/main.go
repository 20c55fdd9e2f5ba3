// Command storefront runs the Style Haven reference storefront that the
// end-to-end suite drives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kuitang/stylehaven/internal/config"
	"github.com/kuitang/stylehaven/internal/obs"
	"github.com/kuitang/stylehaven/internal/storefront"
)

func main() {
	obs.Init()
	obs.SetLevel(obs.ParseLevel(os.Getenv("LOG_LEVEL")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("storefront", flag.ContinueOnError)
	flags, err := config.ParseServerFlags(fs, args)
	if err != nil {
		return err
	}
	cfg, err := config.LoadServer(flags)
	if err != nil {
		return err
	}
	cfg.PrintStartupSummary()

	app, err := storefront.New(ctx, cfg, storefront.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	return app.ListenAndServe(ctx)
}
