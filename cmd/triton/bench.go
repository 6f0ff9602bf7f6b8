package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"fedgrid-hq/triton/pkg/cli"
)

var benchFlags struct {
	target      string
	requests    int
	concurrency int
	contextFile string
	dryRun      bool
	format      string
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load test a running engine",
	Long: `Send synthetic decision requests to a running Triton server and
measure evaluation throughput and latency.

Metrics collected:
  - Request throughput (requests/sec)
  - Latency percentiles (p50, p95, p99, max)
  - Success/error counts

Examples:
  # Default load against a local server
  triton bench --target http://localhost:8080

  # Heavier run with a recorded context snapshot
  triton bench --requests 5000 --concurrency 20 --context snapshot.json

  # Dry-run decisions so no capability is touched
  triton bench --dry-run`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVar(&benchFlags.target, "target", "http://localhost:8080", "server URL")
	benchCmd.Flags().IntVar(&benchFlags.requests, "requests", 1000, "total requests to send")
	benchCmd.Flags().IntVar(&benchFlags.concurrency, "concurrency", 4, "concurrent clients")
	benchCmd.Flags().StringVar(&benchFlags.contextFile, "context", "", "JSON file with the context snapshot")
	benchCmd.Flags().BoolVar(&benchFlags.dryRun, "dry-run", true, "send dry-run decisions")
	benchCmd.Flags().StringVar(&benchFlags.format, "format", "text", "output format: text, json")
}

// benchReport is the aggregated outcome of a load test.
type benchReport struct {
	Requests   int     `json:"requests"`
	Succeeded  int     `json:"succeeded"`
	Failed     int     `json:"failed"`
	DurationMS int64   `json:"duration_ms"`
	Throughput float64 `json:"throughput_rps"`
	P50MS      int64   `json:"p50_ms"`
	P95MS      int64   `json:"p95_ms"`
	P99MS      int64   `json:"p99_ms"`
	MaxMS      int64   `json:"max_ms"`
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchFlags.requests < 1 {
		return fmt.Errorf("--requests must be at least 1")
	}
	if benchFlags.concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1")
	}

	decisionContext := map[string]interface{}{"benchmark": true}
	if benchFlags.contextFile != "" {
		data, err := os.ReadFile(benchFlags.contextFile)
		if err != nil {
			return fmt.Errorf("reading context file: %w", err)
		}
		if err := json.Unmarshal(data, &decisionContext); err != nil {
			return fmt.Errorf("parsing context file: %w", err)
		}
	}

	body, err := json.Marshal(map[string]interface{}{
		"context": decisionContext,
		"dry_run": benchFlags.dryRun,
	})
	if err != nil {
		return err
	}
	url := benchFlags.target + "/policies/evaluate"

	fmt.Println("Triton Bench")
	fmt.Printf("Target: %s\n", benchFlags.target)
	fmt.Printf("Requests: %d, Concurrency: %d, DryRun: %v\n\n",
		benchFlags.requests, benchFlags.concurrency, benchFlags.dryRun)

	report := runLoadTest(url, body)

	if benchFlags.format == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, report)
	}
	fmt.Printf("Requests:   %d (%d ok, %d failed)\n", report.Requests, report.Succeeded, report.Failed)
	fmt.Printf("Duration:   %dms\n", report.DurationMS)
	fmt.Printf("Throughput: %.1f req/s\n", report.Throughput)
	fmt.Printf("Latency:    p50=%dms p95=%dms p99=%dms max=%dms\n",
		report.P50MS, report.P95MS, report.P99MS, report.MaxMS)
	if report.Failed > 0 {
		return cli.NewCommandError("bench", fmt.Errorf("%d request(s) failed", report.Failed))
	}
	return nil
}

func runLoadTest(url string, body []byte) *benchReport {
	var (
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, benchFlags.requests)
		succeeded int
		failed    int
		done      int64
	)

	progress := cli.NewProgressReporter(nil)
	progress.Start(int64(benchFlags.requests))

	client := &http.Client{Timeout: 30 * time.Second}
	jobs := make(chan struct{}, benchFlags.requests)
	for i := 0; i < benchFlags.requests; i++ {
		jobs <- struct{}{}
	}
	close(jobs)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < benchFlags.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				reqStart := time.Now()
				resp, err := client.Post(url, "application/json", bytes.NewReader(body))
				latency := time.Since(reqStart)

				ok := err == nil && resp.StatusCode == http.StatusOK
				if resp != nil {
					resp.Body.Close()
				}

				mu.Lock()
				latencies = append(latencies, latency)
				if ok {
					succeeded++
				} else {
					failed++
				}
				done++
				progress.Update(done)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	progress.Finish()

	elapsed := time.Since(start)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	report := &benchReport{
		Requests:   benchFlags.requests,
		Succeeded:  succeeded,
		Failed:     failed,
		DurationMS: elapsed.Milliseconds(),
		Throughput: float64(benchFlags.requests) / elapsed.Seconds(),
	}
	if len(latencies) > 0 {
		report.P50MS = percentile(latencies, 0.50).Milliseconds()
		report.P95MS = percentile(latencies, 0.95).Milliseconds()
		report.P99MS = percentile(latencies, 0.99).Milliseconds()
		report.MaxMS = latencies[len(latencies)-1].Milliseconds()
	}
	return report
}

// percentile returns the value at the given rank of sorted latencies.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
