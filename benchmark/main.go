// Package main provides a performance benchmarking tool for the chartkit CLI.
// It measures build times for a set of project directories, each holding a
// .chartkit.yaml, running every build multiple times per snapshot backend,
// treating the first successful run as cold and averaging the rest as warm,
// and writes CSV output for performance analysis and documentation.
//
// Prerequisites:
// - chartkit binary installed and available in PATH
// - One subdirectory per project under the base directory, each with a .chartkit.yaml
//
// Usage: go run benchmark/main.go [project-base-dir]
//
//	project-base-dir: Directory containing benchmark projects
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

// BenchmarkResult holds the result of a benchmark run (no-snapshot average, cold run and average of warm runs).
type BenchmarkResult struct {
	Project        string
	Command        string
	NoSnapshotTime string
	ColdTime       string
	WarmTime       string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	ProjectBase    string
	Timeout        time.Duration
	NoSnapshotRuns int
	SnapshotRuns   int
	Projects       []string
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [project-base-dir]\n", os.Args[0])
		os.Exit(1)
	}
	projectBase := os.Args[1]

	projects, err := discoverProjects(projectBase)
	if err != nil {
		fmt.Printf("Failed to discover projects: %v\n", err)
		os.Exit(1)
	}

	config := BenchmarkConfig{
		ProjectBase:    projectBase,
		Timeout:        2 * time.Minute,
		NoSnapshotRuns: 3,
		SnapshotRuns:   4,
		Projects:       projects,
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// discoverProjects lists the subdirectories of base that hold a .chartkit.yaml.
func discoverProjects(base string) ([]string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}
	var projects []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(base, entry.Name(), ".chartkit.yaml")); err == nil {
			projects = append(projects, entry.Name())
		}
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("no projects with a .chartkit.yaml under %s", base)
	}
	return projects, nil
}

// checkPrerequisites verifies that the chartkit binary exists
func checkPrerequisites(_ BenchmarkConfig) error {
	if _, err := exec.LookPath("chartkit"); err != nil {
		return fmt.Errorf("chartkit binary not found in PATH")
	}
	return nil
}

// runBenchmarks executes all benchmark tests across configured projects
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d projects, %v timeout, no-snapshot: %d runs, snapshot: %d runs\n",
		len(config.Projects), config.Timeout, config.NoSnapshotRuns, config.SnapshotRuns)

	for _, project := range config.Projects {
		fmt.Printf("Benchmarking %s\n", project)
		projectPath := filepath.Join(config.ProjectBase, project)

		results = append(results, runBenchmarkSuite(config, project, projectPath, "build", "text build", nil))
		results = append(results, runBenchmarkSuite(config, project, projectPath, "build-json", "JSON build", []string{"--output", "json"}))
	}

	return results
}

// runBenchmarkSuite runs both no-snapshot and snapshot benchmarks for a command
func runBenchmarkSuite(config BenchmarkConfig, project, projectPath, label, description string, extraArgs []string) BenchmarkResult {
	fmt.Printf("Running %s on %s\n", description, project)

	runPhase := func(backend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, projectPath, extraArgs, backend, numRuns)
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

	_, noSnapshotAvg := runPhase("none", config.NoSnapshotRuns, "No-snapshot")
	coldTime, warmAvg := runPhase("sqlite", config.SnapshotRuns, "Snapshot")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-snapshot average: %s, Cold time: %s, Warm average: %s\n", noSnapshotAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Project:        project,
		Command:        label,
		NoSnapshotTime: noSnapshotAvg,
		ColdTime:       coldTimeStr,
		WarmTime:       warmAvg,
	}
}

// runBenchmark executes chartkit build multiple times with the given snapshot backend and returns cold time and warm times
func runBenchmark(config BenchmarkConfig, projectPath string, extraArgs []string, backend string, numRuns int) (coldTime float64, warmTimes []float64) {
	args := append([]string{"build", "--snapshot-backend", backend}, extraArgs...)

	var times []float64
	for range numRuns {
		start := time.Now()

		cmd := exec.Command("chartkit", args...)
		cmd.Dir = projectPath

		done := make(chan bool, 1)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output, extraArgs) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// isSuccess checks if command output indicates a completed build
func isSuccess(output []byte, extraArgs []string) bool {
	outputStr := string(output)
	if strings.Contains(strings.Join(extraArgs, " "), "json") {
		return strings.Contains(outputStr, `"chart_name"`)
	}
	return strings.Contains(outputStr, "Built ") && strings.Contains(outputStr, "Snapshot backend:")
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/chartkit_benchmark_%s.csv", timestamp)

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

	if err := writer.Write([]string{"project", "cmd", "no_snapshot_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{result.Project, result.Command, result.NoSnapshotTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")

	printCommandSummary(results, "build", "Text Build:")
	printCommandSummary(results, "build-json", "JSON Build:")
}

// printCommandSummary displays results for a specific command type
func printCommandSummary(results []BenchmarkResult, command, title string) {
	fmt.Printf("%s\n", title)
	for _, result := range results {
		if result.Command == command {
			fmt.Printf("  %-12s: No-snapshot: %s, Cold: %s, Warm: %s\n", result.Project, result.NoSnapshotTime, result.ColdTime, result.WarmTime)
		}
	}
}
