package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type benchOptions struct {
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	output      string
}

type benchCounters struct {
	total     uint64
	created   uint64 // 201
	replayed  uint64 // 200, idempotent replays
	conflicts uint64 // 409
	rejected  uint64 // 4xx other than 409
	upstream  uint64 // 502/503
	failOther uint64
}

func benchCmd() *cobra.Command {
	var opts benchOptions

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load test the dashboard send endpoint",
		Long: `Send payments to POST /api/v1/payments from concurrent workers.

The uniform workload gives every request a fresh Idempotency-Key. The replay
workload reuses a recent key for half of the requests, which exercises the
replay path.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.workload != "uniform" && opts.workload != "replay" {
				return fmt.Errorf("unknown workload %q", opts.workload)
			}
			if opts.concurrency < 1 {
				return fmt.Errorf("workers must be at least 1")
			}
			return runBench(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.targetURL, "url", "http://localhost:8080", "dashboard base URL")
	cmd.Flags().IntVar(&opts.concurrency, "workers", 10, "number of concurrent workers")
	cmd.Flags().DurationVar(&opts.duration, "duration", 30*time.Second, "test duration")
	cmd.Flags().StringVar(&opts.workload, "workload", "uniform", "workload type: uniform | replay")
	cmd.Flags().StringVar(&opts.output, "output", "", "also write results to this file")

	return cmd
}

func runBench(ctx context.Context, opts benchOptions) error {
	fmt.Fprintf(os.Stderr, "Starting benchmark: %s | workers: %d | duration: %s\n", opts.workload, opts.concurrency, opts.duration)

	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	var c benchCounters
	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(opts.concurrency)
	for i := 0; i < opts.concurrency; i++ {
		go worker(ctx, &wg, opts, &c)
	}
	wg.Wait()

	return printBenchResults(opts, &c, time.Since(start))
}

func worker(ctx context.Context, wg *sync.WaitGroup, opts benchOptions, c *benchCounters) {
	defer wg.Done()
	client := &http.Client{Timeout: 35 * time.Second}
	var recent []string

	for ctx.Err() == nil {
		key := uuid.NewString()
		if opts.workload == "replay" && len(recent) > 0 && rand.Float32() < 0.5 {
			key = recent[rand.Intn(len(recent))]
		} else {
			recent = append(recent, key)
			if len(recent) > 16 {
				recent = recent[1:]
			}
		}

		// The body is a function of the key so replays carry the same payload.
		payload := map[string]interface{}{
			"recipient": "bench-" + key[:8] + "@example.com",
			"amount":    json.Number(fmt.Sprintf("%d.%02d", 1+int(key[0])%100, int(key[1])%100)),
			"currency":  "USD",
			"reference": "bench " + key,
		}
		body, _ := json.Marshal(payload)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.targetURL+"/api/v1/payments", bytes.NewReader(body))
		if err != nil {
			atomic.AddUint64(&c.failOther, 1)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", key)

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				atomic.AddUint64(&c.failOther, 1)
			}
			continue
		}

		atomic.AddUint64(&c.total, 1)
		switch {
		case resp.StatusCode == http.StatusCreated:
			atomic.AddUint64(&c.created, 1)
		case resp.StatusCode == http.StatusOK:
			atomic.AddUint64(&c.replayed, 1)
		case resp.StatusCode == http.StatusConflict:
			atomic.AddUint64(&c.conflicts, 1)
		case resp.StatusCode == http.StatusBadGateway, resp.StatusCode == http.StatusServiceUnavailable:
			atomic.AddUint64(&c.upstream, 1)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			atomic.AddUint64(&c.rejected, 1)
		default:
			atomic.AddUint64(&c.failOther, 1)
		}
		resp.Body.Close()
	}
}

func printBenchResults(opts benchOptions, c *benchCounters, d time.Duration) error {
	total := atomic.LoadUint64(&c.total)
	conflicts := atomic.LoadUint64(&c.conflicts)

	var conflictRate float64
	if total > 0 {
		conflictRate = float64(conflicts) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":          opts.workload,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_rps":    float64(total) / d.Seconds(),
		"success_created":   atomic.LoadUint64(&c.created),
		"success_replay":    atomic.LoadUint64(&c.replayed),
		"aborts_conflict":   conflicts,
		"conflict_rate_pct": conflictRate,
		"rejected":          atomic.LoadUint64(&c.rejected),
		"upstream_errors":   atomic.LoadUint64(&c.upstream),
		"errors":            atomic.LoadUint64(&c.failOther),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	if opts.output == "" {
		return nil
	}
	file, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer file.Close()
	return json.NewEncoder(file).Encode(results)
}
