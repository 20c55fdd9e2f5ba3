package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/kuitang/stylehaven/internal/artifacts"
	"github.com/kuitang/stylehaven/internal/config"
	"github.com/kuitang/stylehaven/internal/driver/launch"
	"github.com/kuitang/stylehaven/internal/flows"
	"github.com/kuitang/stylehaven/internal/matrix"
	"github.com/kuitang/stylehaven/internal/obs"
	"github.com/kuitang/stylehaven/internal/s3client"
	"github.com/kuitang/stylehaven/internal/storefront"
	"github.com/kuitang/stylehaven/internal/suite"
)

type runOptions struct {
	baseURL     string
	targetsFile string
	browsers    []string
	devices     []string
	json        bool

	driver      string
	flows       []string
	concurrency int
	withAPI     bool
}

// loadSuite reads the environment and applies flag overrides.
func loadSuite(opts *runOptions) (*config.Suite, error) {
	cfg, err := config.LoadSuite()
	if err != nil {
		return nil, err
	}
	if opts.baseURL != "" {
		cfg.BaseURL = opts.baseURL
	}
	if opts.targetsFile != "" {
		cfg.TargetsFile = opts.targetsFile
	}
	if len(opts.browsers) > 0 {
		cfg.Browsers = opts.browsers
	}
	if len(opts.devices) > 0 {
		cfg.Devices = opts.devices
	}
	if opts.driver != "" {
		cfg.Driver = opts.driver
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveTargets(cfg *config.Suite) (matrix.Set, error) {
	set := matrix.Default()
	if cfg.TargetsFile != "" {
		var err error
		if set, err = matrix.LoadFile(cfg.TargetsFile); err != nil {
			return nil, err
		}
	}
	set = set.Filter(cfg.Browsers, cfg.Devices)
	if len(set) == 0 {
		return nil, fmt.Errorf("no targets left after filtering by browsers %v and devices %v", cfg.Browsers, cfg.Devices)
	}
	return set, nil
}

// session is the per-invocation environment: logging, the storefront under
// test and screenshot storage.
type session struct {
	cfg      *config.Suite
	recorder *artifacts.Recorder
	closers  []func() error
}

func openSession(ctx context.Context, cfg *config.Suite) (*session, error) {
	s := &session{cfg: cfg}
	logPath, closeLog, err := obs.InitFile(cfg.LogDir, time.Now())
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeLog)
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))
	log := obs.Pkg("havencheck")
	log.Info("logging to file", "path", logPath)

	if cfg.UsesInProcessStorefront() {
		local, err := storefront.StartLocal(ctx, storefront.Options{})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("start storefront: %w", err)
		}
		s.closers = append(s.closers, local.Close)
		cfg.BaseURL = local.URL
		log.Info("started in-process storefront", "url", local.URL)
	}

	s.recorder = &artifacts.Recorder{Dir: cfg.ScreenshotDir}
	if cfg.UploadsArtifacts() {
		client, err := artifactStore(ctx, cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.recorder.Uploader = client
	}
	return s, nil
}

func artifactStore(ctx context.Context, cfg *config.Suite) (*s3client.Client, error) {
	client, err := s3client.New(ctx, s3client.Config{
		Endpoint:        cfg.AWSEndpointS3,
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretKey,
		BucketName:      cfg.ArtifactBucket,
		PublicURL:       cfg.ArtifactPublicURL,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact storage: %w", err)
	}
	return client, nil
}

// pruneArtifacts deletes uploaded screenshots older than olderThan.
func pruneArtifacts(ctx context.Context, out io.Writer, opts *runOptions, olderThan time.Duration, now time.Time) error {
	cfg, err := loadSuite(opts)
	if err != nil {
		return err
	}
	if !cfg.UploadsArtifacts() {
		return errors.New("prune needs E2E_ARTIFACT_BUCKET")
	}
	store, err := artifactStore(ctx, cfg)
	if err != nil {
		return err
	}
	deleted, err := artifacts.Prune(ctx, store, now.Add(-olderThan))
	for _, key := range deleted {
		fmt.Fprintln(out, "deleted", key)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d screenshots pruned\n", len(deleted))
	return nil
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			obs.Pkg("havencheck").Warn("cleanup failed", "error", err)
		}
	}
}

func runBrowser(ctx context.Context, out io.Writer, opts *runOptions) error {
	cfg, err := loadSuite(opts)
	if err != nil {
		return err
	}
	targets, err := resolveTargets(cfg)
	if err != nil {
		return err
	}
	acct := flows.Account{Name: cfg.Normal.Name, Email: cfg.Normal.Email, Password: cfg.Normal.Password}
	cases := flows.Select(flows.BrowserCases(flows.DefaultOptions(acct)), opts.flows)
	if len(cases) == 0 {
		return fmt.Errorf("no flows match %v", opts.flows)
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	launcher, err := launch.FromSuite(cfg)
	if err != nil {
		return err
	}
	defer launcher.Close()

	runner := &suite.Runner{
		Launcher:    launcher,
		Targets:     targets,
		Cases:       cases,
		APICases:    flows.APICases(),
		Config:      suite.Config{BaseURL: cfg.BaseURL, Timeout: cfg.WaitTimeout},
		Recorder:    s.recorder,
		Concurrency: opts.concurrency,
	}
	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if opts.withAPI {
		apiReport, err := runner.RunAPI(ctx, cfg.Normal.Email, cfg.Normal.Password)
		if err != nil {
			return err
		}
		report.Merge(apiReport)
	}
	return printReport(out, report, opts.json)
}

func runAPI(ctx context.Context, out io.Writer, opts *runOptions) error {
	cfg, err := loadSuite(opts)
	if err != nil {
		return err
	}
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	runner := &suite.Runner{
		APICases: flows.APICases(),
		Config:   suite.Config{BaseURL: cfg.BaseURL, Timeout: cfg.WaitTimeout},
	}
	report, err := runner.RunAPI(ctx, cfg.Normal.Email, cfg.Normal.Password)
	if err != nil {
		return err
	}
	return printReport(out, report, opts.json)
}

func listTargets(out io.Writer, opts *runOptions) error {
	cfg, err := loadSuite(opts)
	if err != nil {
		return err
	}
	targets, err := resolveTargets(cfg)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tKIND\tSTATUS")
	for _, t := range targets {
		status := "run"
		if reason := t.SkipReason(); reason != "" {
			status = "skip: " + reason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t, t.Kind, status)
	}
	return tw.Flush()
}

func printReport(out io.Writer, report *suite.Report, asJSON bool) error {
	if asJSON {
		data, err := report.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, r := range report.Results {
			line := fmt.Sprintf("%s\t%s\t%s\t%s", r.Status, r.Target, r.Flow, r.Duration.Round(time.Millisecond))
			if r.Err != "" {
				line += "\t" + r.Err
			}
			if r.Screenshot != "" {
				line += "\t" + r.Screenshot
			}
			fmt.Fprintln(tw, line)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(out, report.Summary())
	}
	if len(report.Failed()) > 0 {
		return errFlowsFailed
	}
	return nil
}
