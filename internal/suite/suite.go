// Package suite runs flows across the target matrix and collects a report.
package suite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kuitang/stylehaven/internal/apiclient"
	"github.com/kuitang/stylehaven/internal/artifacts"
	"github.com/kuitang/stylehaven/internal/driver"
	"github.com/kuitang/stylehaven/internal/flows"
	"github.com/kuitang/stylehaven/internal/matrix"
	"github.com/kuitang/stylehaven/internal/obs"
)

// Status of one flow on one target.
type Status string

const (
	Pass Status = "pass"
	Fail Status = "fail"
	Skip Status = "skip"
)

// Result is one (target, flow) outcome.
type Result struct {
	Target     string        `json:"target"`
	Flow       string        `json:"flow"`
	Status     Status        `json:"status"`
	Err        string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	Screenshot string        `json:"screenshot,omitempty"`
}

// Report is the outcome of a run, ordered by target then flow.
type Report struct {
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Results  []Result  `json:"results"`
}

// Failed returns the failed results.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == Fail {
			out = append(out, res)
		}
	}
	return out
}

// Counts tallies results by status.
func (r *Report) Counts() map[Status]int {
	c := map[Status]int{Pass: 0, Fail: 0, Skip: 0}
	for _, res := range r.Results {
		c[res.Status]++
	}
	return c
}

// Summary is a one-line tally.
func (r *Report) Summary() string {
	c := r.Counts()
	return fmt.Sprintf("%d passed, %d failed, %d skipped in %s",
		c[Pass], c[Fail], c[Skip], r.Finished.Sub(r.Started).Round(time.Millisecond))
}

// JSON encodes the report.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Config carries what every flow run needs.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Runner executes browser cases on each target with a fresh session per
// (target, case), and API cases on one logged-in session.
type Runner struct {
	Launcher    driver.Launcher
	Targets     matrix.Set
	Cases       []flows.Case
	APICases    []flows.APICase
	Config      Config
	Recorder    *artifacts.Recorder
	Concurrency int
	Now         func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

type job struct {
	target matrix.Target
	c      flows.Case
}

func (r *Runner) jobs() []job {
	var out []job
	for _, t := range r.Targets {
		for _, c := range r.Cases {
			if t.Kind == matrix.Mobile && !c.Mobile {
				continue
			}
			out = append(out, job{target: t, c: c})
		}
	}
	return out
}

// Run executes every browser case. Individual flow failures are recorded in
// the report; the returned error is only for ctx cancellation.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	rep := &Report{Started: r.now()}
	jobs := r.jobs()
	results := make([]Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	limit := r.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.runOne(gctx, j)
			return nil
		})
	}
	err := g.Wait()

	// Jobs that never started after cancellation are reported as skipped.
	for i, j := range jobs {
		if results[i].Status == "" {
			results[i] = Result{Target: j.target.String(), Flow: j.c.Flow.Name, Status: Skip, Err: context.Cause(gctx).Error()}
		}
	}
	rep.Results = results
	rep.Finished = r.now()
	sortResults(rep.Results)
	return rep, err
}

// runOne is the per-test fixture: launch, maximize, run, quit.
func (r *Runner) runOne(ctx context.Context, j job) Result {
	start := time.Now()
	res := Result{Target: j.target.String(), Flow: j.c.Flow.Name}
	ctx = obs.WithRun(ctx, j.c.Flow.Name, res.Target)
	log := obs.From(ctx)

	if reason := j.target.SkipReason(); reason != "" {
		res.Status, res.Err = Skip, reason
		log.Info("target skipped", "reason", reason)
		return res
	}

	log.Info("setting up browser", "browser", j.target.Browser, "os", j.target.OS)
	d, err := r.Launcher.Launch(ctx, j.target)
	if err != nil {
		res.Duration = time.Since(start)
		if errors.Is(err, driver.ErrUnsupported) {
			res.Status, res.Err = Skip, err.Error()
			log.Info("target skipped", "reason", err)
			return res
		}
		res.Status, res.Err = Fail, err.Error()
		log.Error("browser launch failed", "error", err)
		return res
	}
	defer func() {
		if qerr := d.Quit(); qerr != nil {
			log.Warn("browser quit failed", "error", qerr)
		}
	}()
	if j.target.Kind == matrix.Desktop {
		if err := d.Maximize(); err != nil {
			log.Warn("maximize failed", "error", err)
		}
	}

	env := &flows.Env{
		Driver:   d,
		BaseURL:  r.Config.BaseURL,
		Timeout:  r.Config.Timeout,
		Recorder: r.Recorder,
		Now:      r.Now,
	}
	err = j.c.Run(ctx, env)
	res.Duration = time.Since(start)
	if err != nil {
		res.Status, res.Err = Fail, err.Error()
		var fail *flows.Failure
		if errors.As(err, &fail) {
			res.Screenshot = fail.Screenshot.Path
			if fail.Screenshot.URL != "" {
				res.Screenshot = fail.Screenshot.URL
			}
		}
		return res
	}
	res.Status = Pass
	return res
}

// RunAPI logs in once and runs every API case with that session.
func (r *Runner) RunAPI(ctx context.Context, email, password string, opts ...apiclient.Option) (*Report, error) {
	rep := &Report{Started: r.now()}
	s, err := flows.LoginSession(ctx, r.Config.BaseURL, email, password, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	for _, c := range r.APICases {
		start := time.Now()
		res := Result{Target: "api", Flow: c.Flow.Name, Status: Pass}
		if err := c.Run(ctx, s); err != nil {
			res.Status, res.Err = Fail, err.Error()
			obs.From(ctx).Error(c.Flow.Title+" test failed", "error", err)
		}
		res.Duration = time.Since(start)
		rep.Results = append(rep.Results, res)
	}
	rep.Finished = r.now()
	return rep, nil
}

func sortResults(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Target != rs[j].Target {
			return rs[i].Target < rs[j].Target
		}
		return strings.Compare(rs[i].Flow, rs[j].Flow) < 0
	})
}

// Merge appends other's results to r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Results = append(r.Results, other.Results...)
	if other.Finished.After(r.Finished) {
		r.Finished = other.Finished
	}
}
