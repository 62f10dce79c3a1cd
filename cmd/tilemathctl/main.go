// Package main is the command-line client for the tile-math job
// service: submit jobs, inspect their lifecycle, and read the server's
// aggregate views.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cboiteux2765/GPUTileMathService/client"
	"github.com/cboiteux2765/GPUTileMathService/job"
)

const defaultAddr = "http://localhost:8000"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "submit":
		err = cmdSubmit(os.Args[2:])
	case "status":
		err = cmdStatus(os.Args[2:])
	case "result":
		err = cmdResult(os.Args[2:])
	case "list":
		err = cmdList(os.Args[2:])
	case "stats":
		err = cmdStats(os.Args[2:])
	case "backend":
		err = cmdBackend(os.Args[2:])
	case "metrics":
		err = cmdMetrics(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "tilemathctl: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "tilemathctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `tilemathctl is the command-line client for the tile-math job service.

Usage:

  tilemathctl <command> [flags] [args]

Commands:

  submit    submit a GEMM job and print its id
  status    print a job's lifecycle view:  tilemathctl status <job-id>
  result    print a job's result summary:  tilemathctl result <job-id>
  list      list jobs, optionally filtered by state
  stats     print record counts by state
  backend   print the server's execution configuration
  metrics   print a parsed view of the server's /metrics

The service address comes from -addr or TILEMATH_ADDR (default %s).
Run "tilemathctl <command> -h" for the command's flags.
`, defaultAddr)
}

// serverAddr resolves the base URL: TILEMATH_ADDR wins over the default,
// and -addr wins over both.
func serverAddr() string {
	if addr := os.Getenv("TILEMATH_ADDR"); addr != "" {
		return addr
	}
	return defaultAddr
}

// ──────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────

func cmdSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	addr := fs.String("addr", serverAddr(), "service base URL")
	m := fs.Int("m", 0, "rows of A")
	n := fs.Int("n", 0, "columns of B")
	k := fs.Int("k", 0, "inner dimension")
	dtype := fs.String("dtype", "", "element type: fp16 or fp32 (default fp32)")
	repeats := fs.Int("repeats", 0, "kernel repetitions (default 1)")
	seed := fs.Int64("seed", 0, "deterministic fill seed")
	simulate := fs.Bool("simulate", false, "skip the kernel and return a spec checksum")
	tileM := fs.Int("tile-m", 0, "tile hint for m (0 = unset)")
	tileN := fs.Int("tile-n", 0, "tile hint for n (0 = unset)")
	tileK := fs.Int("tile-k", 0, "tile hint for k (0 = unset)")
	wait := fs.Bool("wait", false, "poll until the job reaches a terminal state")
	fs.Parse(args)

	spec := job.Spec{
		M:        *m,
		N:        *n,
		K:        *k,
		Dtype:    job.Dtype(*dtype),
		Repeats:  *repeats,
		Seed:     *seed,
		Simulate: *simulate,
	}
	if *tileM > 0 {
		spec.TileM = tileM
	}
	if *tileN > 0 {
		spec.TileN = tileN
	}
	if *tileK > 0 {
		spec.TileK = tileK
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(*addr)
	jobID, err := c.SubmitJob(ctx, spec)
	if err != nil {
		return err
	}
	fmt.Println(jobID)

	if !*wait {
		return nil
	}
	st, err := c.WaitForTerminal(ctx, jobID)
	if err != nil {
		return err
	}
	printStatus(st)
	if st.State == job.StateDone {
		res, err := c.GetResult(ctx, jobID)
		if err != nil {
			return err
		}
		printSummary(res.ResultSummary)
	}
	return nil
}

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addr := fs.String("addr", serverAddr(), "service base URL")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: tilemathctl status [flags] <job-id>")
	}

	st, err := client.New(*addr).GetJob(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}
	printStatus(st)
	return nil
}

func cmdResult(args []string) error {
	fs := flag.NewFlagSet("result", flag.ExitOnError)
	addr := fs.String("addr", serverAddr(), "service base URL")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: tilemathctl result [flags] <job-id>")
	}

	res, err := client.New(*addr).GetResult(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Printf("job_id:  %s\n", res.JobID)
	fmt.Printf("state:   %s\n", res.State)
	if res.Error != nil {
		fmt.Printf("error:   %s\n", *res.Error)
	}
	printSummary(res.ResultSummary)
	return nil
}

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	addr := fs.String("addr", serverAddr(), "service base URL")
	state := fs.String("state", "", "filter by state (QUEUED, RUNNING, DONE, FAILED)")
	limit := fs.Int("limit", 0, "maximum records to return (0 = server default)")
	offset := fs.Int("offset", 0, "records to skip")
	fs.Parse(args)

	recs, err := client.New(*addr).ListJobs(context.Background(), client.ListOpts{
		State:  *state,
		Limit:  *limit,
		Offset: *offset,
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB ID\tSTATE\tCREATED\tWALL MS\tERROR")
	for i := range recs {
		r := &recs[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.JobID, r.State, r.CreatedAt.Format(time.RFC3339),
			fmtMs(r.WallTimeMs), truncate(fmtStr(r.Error), 48))
	}
	return tw.Flush()
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	addr := fs.String("addr", serverAddr(), "service base URL")
	fs.Parse(args)

	stats, err := client.New(*addr).Stats(context.Background())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "queued\t%d\n", stats.Queued)
	fmt.Fprintf(tw, "running\t%d\n", stats.Running)
	fmt.Fprintf(tw, "done\t%d\n", stats.Done)
	fmt.Fprintf(tw, "failed\t%d\n", stats.Failed)
	return tw.Flush()
}

func cmdBackend(args []string) error {
	fs := flag.NewFlagSet("backend", flag.ExitOnError)
	addr := fs.String("addr", serverAddr(), "service base URL")
	fs.Parse(args)

	info, err := client.New(*addr).Backend(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("backend: %s\n", info.Backend)
	if info.Gate != nil {
		fmt.Printf("gate:    max_concurrency=%d rate_limit=%g/s\n",
			info.Gate.MaxConcurrency, info.Gate.RateLimit)
	}
	if info.Redis != nil {
		fmt.Printf("redis:   url=%s stream=%s\n", info.Redis.URL, info.Redis.Stream)
	}
	return nil
}

func cmdMetrics(args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	addr := fs.String("addr", serverAddr(), "service base URL")
	watch := fs.Duration("watch", 0, "refresh interval (0 = print once)")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(*addr)
	if err := printMetrics(ctx, c); err != nil {
		return err
	}
	if *watch <= 0 {
		return nil
	}

	ticker := time.NewTicker(*watch)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fmt.Println()
			if err := printMetrics(ctx, c); err != nil {
				return err
			}
		}
	}
}

// ──────────────────────────────────────────────────
// Rendering
// ──────────────────────────────────────────────────

func printStatus(st *client.JobStatus) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "job_id\t%s\n", st.JobID)
	fmt.Fprintf(tw, "state\t%s\n", st.State)
	fmt.Fprintf(tw, "created_at\t%s\n", st.CreatedAt.Format(time.RFC3339Nano))
	fmt.Fprintf(tw, "updated_at\t%s\n", st.UpdatedAt.Format(time.RFC3339Nano))
	fmt.Fprintf(tw, "started_at\t%s\n", fmtTime(st.StartedAt))
	fmt.Fprintf(tw, "finished_at\t%s\n", fmtTime(st.FinishedAt))
	fmt.Fprintf(tw, "wall_time_ms\t%s\n", fmtMs(st.WallTimeMs))
	fmt.Fprintf(tw, "compute_time_ms\t%s\n", fmtMs(st.ComputeTimeMs))
	fmt.Fprintf(tw, "error\t%s\n", fmtStr(st.Error))
	tw.Flush()
}

func printSummary(s *job.Summary) {
	if s == nil {
		fmt.Println("result:  (none)")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "mode\t%s\n", s.Mode)
	if s.Mean != nil {
		fmt.Fprintf(tw, "mean\t%.6g\n", *s.Mean)
	}
	if s.Var != nil {
		fmt.Fprintf(tw, "var\t%.6g\n", *s.Var)
	}
	if s.L2 != nil {
		fmt.Fprintf(tw, "l2\t%.6g\n", *s.L2)
	}
	fmt.Fprintf(tw, "checksum\t%s\n", s.Checksum)
	if s.Note != "" {
		fmt.Fprintf(tw, "note\t%s\n", s.Note)
	}
	tw.Flush()
}

func printMetrics(ctx context.Context, c *client.Client) error {
	snap, err := c.MetricsSnapshot(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "submitted\t%.0f\n", snap.Submitted)
	fmt.Fprintf(tw, "completed done\t%.0f\n", snap.CompletedDone)
	fmt.Fprintf(tw, "completed failed\t%.0f\n", snap.CompletedFailed)
	fmt.Fprintf(tw, "in memory\t%.0f\n", snap.JobsInMemory)
	fmt.Fprintf(tw, "evicted\t%.0f\n", snap.Evicted)
	fmt.Fprintln(tw, "\t")
	fmt.Fprintln(tw, "HISTOGRAM\tCOUNT\tP50 MS\tP95 MS\tP99 MS")
	fmt.Fprintf(tw, "end to end\t%.0f\t%.3f\t%.3f\t%.3f\n",
		snap.EndToEndMs.Count, snap.EndToEndMs.P50, snap.EndToEndMs.P95, snap.EndToEndMs.P99)
	fmt.Fprintf(tw, "compute\t%.0f\t%.3f\t%.3f\t%.3f\n",
		snap.ComputeMs.Count, snap.ComputeMs.P50, snap.ComputeMs.P95, snap.ComputeMs.P99)
	return tw.Flush()
}

// ──────────────────────────────────────────────────
// Formatting helpers
// ──────────────────────────────────────────────────

func fmtTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339Nano)
}

func fmtMs(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

func fmtStr(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
