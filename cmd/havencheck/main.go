// Command havencheck runs the Style Haven end-to-end flows against a
// storefront across the browser and device matrix.
//
// Usage:
//
//	havencheck run [--driver rod] [--browsers chrome,firefox] [--devices "iPhone 12"] [--flows login,search]
//	havencheck api
//	havencheck targets
//	havencheck prune [--older-than 720h]
//
// With BASE_URL unset the suite starts an in-process reference storefront.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// errFlowsFailed makes the process exit non-zero after the report is
// printed.
var errFlowsFailed = errors.New("one or more flows failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFlowsFailed) {
			fmt.Fprintf(os.Stderr, "havencheck: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &runOptions{}
	root := &cobra.Command{
		Use:           "havencheck",
		Short:         "End-to-end checks for the Style Haven storefront",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.baseURL, "base-url", "", "storefront URL (overrides BASE_URL; empty starts an in-process storefront)")
	pf.StringVar(&opts.targetsFile, "targets-file", "", "YAML browser/device matrix (overrides E2E_TARGETS_FILE)")
	pf.StringSliceVar(&opts.browsers, "browsers", nil, "only these desktop browsers (overrides E2E_BROWSERS)")
	pf.StringSliceVar(&opts.devices, "devices", nil, "only these mobile devices (overrides E2E_DEVICES)")
	pf.BoolVar(&opts.json, "json", false, "print the report as JSON")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the browser flows on every target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrowser(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	rf := runCmd.Flags()
	rf.StringVar(&opts.driver, "driver", "", "automation backend: playwright, rod or selenium (overrides E2E_DRIVER)")
	rf.StringSliceVar(&opts.flows, "flows", nil, "only these flows, e.g. login,search")
	rf.IntVar(&opts.concurrency, "concurrency", 2, "browser sessions to run at once")
	rf.BoolVar(&opts.withAPI, "with-api", false, "also run the API flows")

	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Run the REST API flows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAPI(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	targetsCmd := &cobra.Command{
		Use:   "targets",
		Short: "List the resolved browser and device matrix",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listTargets(cmd.OutOrStdout(), opts)
		},
	}

	var olderThan time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete uploaded failure screenshots older than --older-than",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return pruneArtifacts(cmd.Context(), cmd.OutOrStdout(), opts, olderThan, time.Now())
		},
	}
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of the screenshots to delete")

	root.AddCommand(runCmd, apiCmd, targetsCmd, pruneCmd)
	return root
}
