// Package main provides a performance benchmarking tool for the cardgen CLI.
// It measures hypothesis-test generation times on a set of plotter files,
// running each test multiple times, treating the first successful run as cold and averaging the rest as warm,
// generating CSV output for performance analysis and documentation.
//
// Prerequisites:
// - cardgen binary installed and available in PATH
// - Plotter files with the default categories and the minmlb distribution
//
// Usage: go run benchmark/main.go [plotter ...]
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Plotter     string
	Scenario    string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkScenario is one set of hypotest arguments to time.
type BenchmarkScenario struct {
	Name string
	Args []string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	Plotters    []string
	Timeout     time.Duration
	Workers     int
	NoCacheRuns int
	CacheRuns   int
	Scenarios   []BenchmarkScenario
}

func main() {
	if len(os.Args) < 2 {
		fmt.Printf("Usage: %s [plotter ...]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		Plotters:    os.Args[1:],
		Timeout:     5 * time.Minute,
		Workers:     8,
		NoCacheRuns: 3,
		CacheRuns:   4,
		Scenarios: []BenchmarkScenario{
			{Name: "data", Args: []string{"--pseudo-data", "-1"}},
			{Name: "pseudodata", Args: []string{"--pseudo-data", "100"}},
			{Name: "binbybin", Args: []string{"--pseudo-data", "100", "--add-bin-by-bin", "0.05"}},
		},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Clearing cache...\n")
	clearCmd := exec.Command("cardgen", "cache", "clear")
	if output, err := clearCmd.CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\nOutput: %s\n", err, string(output))
	} else {
		fmt.Printf("Cache cleared successfully\n")
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(config, results)
}

// checkPrerequisites verifies that the cardgen binary and the plotters exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("cardgen"); err != nil {
		return fmt.Errorf("cardgen binary not found in PATH")
	}
	for _, p := range config.Plotters {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("plotter %s not found", p)
		}
	}
	return nil
}

// runBenchmarks executes every scenario on every plotter
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d plotters, %v timeout, %d workers, no-cache: %d runs, cache: %d runs\n",
		len(config.Plotters), config.Timeout, config.Workers, config.NoCacheRuns, config.CacheRuns)

	for _, plotter := range config.Plotters {
		fmt.Printf("Benchmarking %s\n", plotter)
		for _, sc := range config.Scenarios {
			results = append(results, runBenchmarkSuite(config, plotter, sc))
		}
	}
	return results
}

// runBenchmarkSuite runs both no-cache and cache benchmarks for a scenario
func runBenchmarkSuite(config BenchmarkConfig, plotter string, sc BenchmarkScenario) BenchmarkResult {
	fmt.Printf("Running %s on %s\n", sc.Name, filepath.Base(plotter))

	runPhase := func(cacheBackend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, plotter, sc.Args, cacheBackend, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avgTime = fmt.Sprintf("%.3fs", sum/float64(len(times)))
		}
		return cold, avgTime
	}

	_, noCacheAvg := runPhase("none", config.NoCacheRuns, "No-cache")
	coldTime, warmAvg := runPhase("sqlite", config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Plotter:     filepath.Base(plotter),
		Scenario:    sc.Name,
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark executes cardgen hypotest multiple times with the given cache backend and returns cold time and warm times
func runBenchmark(config BenchmarkConfig, plotter string, extraArgs []string, cacheBackend string, numRuns int) (coldTime float64, warmTimes []float64) {
	outDir, err := os.MkdirTemp("", "cardgen-benchmark-")
	if err != nil {
		fmt.Printf("Warning: cannot create output directory: %v\n", err)
		return 0, nil
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	args := []string{
		"hypotest", "-i", plotter, "-o", outDir,
		"--cache-backend", cacheBackend,
		"--workers", fmt.Sprint(config.Workers),
	}
	args = append(args, extraArgs...)

	var times []float64
	for run := 1; run <= numRuns; run++ {
		start := time.Now()

		cmd := exec.Command("cardgen", args...)

		done := make(chan bool)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
			<-done
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// isSuccess checks if command output indicates successful completion
func isSuccess(output []byte) bool {
	outputStr := string(output)
	return strings.Contains(outputStr, "completed in") && strings.Contains(outputStr, "hypotest")
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("cardgen_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"plotter", "scenario", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{result.Plotter, result.Scenario, result.NoCacheTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(config BenchmarkConfig, results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, sc := range config.Scenarios {
		fmt.Printf("%s:\n", sc.Name)
		for _, result := range results {
			if result.Scenario == sc.Name {
				fmt.Printf("  %-24s: No-cache: %s, Cold: %s, Warm: %s\n", result.Plotter, result.NoCacheTime, result.ColdTime, result.WarmTime)
			}
		}
	}
	fmt.Printf("Benchmark script completed successfully\n")
}
