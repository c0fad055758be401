// Command benchheap measures insert and scan throughput of the storage
// core: percentile latency stats over a fixed number of iterations,
// written as a JSON report.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"heapcore/pkg/primitives"
	"heapcore/pkg/storage/buffer"
	"heapcore/pkg/storage/disk"
	"heapcore/pkg/storage/heap"
	"heapcore/pkg/storage/page"
)

// BenchmarkResult captures timing statistics for one benchmark phase.
type BenchmarkResult struct {
	Name           string        `json:"name"`
	Iterations     int           `json:"iterations"`
	TotalDuration  time.Duration `json:"total_duration_ns"`
	AvgDuration    time.Duration `json:"avg_duration_ns"`
	MinDuration    time.Duration `json:"min_duration_ns"`
	MaxDuration    time.Duration `json:"max_duration_ns"`
	MedianDuration time.Duration `json:"median_duration_ns"`
	P95Duration    time.Duration `json:"p95_duration_ns"`
	P99Duration    time.Duration `json:"p99_duration_ns"`
	OpsPerSecond   float64       `json:"ops_per_second"`
}

// BenchmarkReport aggregates every phase run in one invocation.
type BenchmarkReport struct {
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	TotalDuration time.Duration     `json:"total_duration"`
	PoolSize      int               `json:"pool_size"`
	LRUKDepth     int               `json:"lru_k_depth"`
	Results       []BenchmarkResult `json:"results"`
}

func main() {
	dbPath := flag.String("db", "", "path to the backing database file (default: a temp file)")
	poolSize := flag.Int("pool-size", 64, "number of buffer pool frames")
	k := flag.Int("k", 2, "LRU-K history depth")
	iterations := flag.Int("iterations", 10000, "number of tuples to insert/scan")
	tupleSize := flag.Int("tuple-size", 64, "size in bytes of each benchmark tuple")
	output := flag.String("output", "", "path to write the JSON report (default: stdout)")
	flag.Parse()

	path := *dbPath
	if path == "" {
		f, err := os.CreateTemp("", "benchheap-*.db")
		if err != nil {
			log.Fatalf("create temp db: %v", err)
		}
		path = f.Name()
		f.Close()
		defer os.Remove(path)
	}

	dm, err := disk.Open(primitives.Filepath(path))
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}
	defer dm.Close()

	pool := buffer.New(*poolSize, dm, *k)
	h, err := heap.New("benchheap", pool)
	if err != nil {
		log.Fatalf("create heap: %v", err)
	}

	report := BenchmarkReport{
		StartTime: time.Now(),
		PoolSize:  *poolSize,
		LRUKDepth: *k,
	}

	tuple := make([]byte, *tupleSize)
	report.Results = append(report.Results, benchmarkInsert(h, tuple, *iterations))
	report.Results = append(report.Results, benchmarkScan(h, *iterations))

	report.EndTime = time.Now()
	report.TotalDuration = report.EndTime.Sub(report.StartTime)

	for _, r := range report.Results {
		printResult(r)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("marshal report: %v", err)
	}

	if *output == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(filepath.Clean(*output), data, 0o644); err != nil {
		log.Fatalf("write report: %v", err)
	}
	log.Printf("report written to %s", *output)
}

func benchmarkInsert(h *heap.TableHeap, tuple []byte, iterations int) BenchmarkResult {
	durations := make([]time.Duration, 0, iterations)
	start := time.Now()
	for i := 0; i < iterations; i++ {
		opStart := time.Now()
		if _, err := h.Insert(tuple, page.TupleMetadata{}); err != nil {
			log.Fatalf("insert %d: %v", i, err)
		}
		durations = append(durations, time.Since(opStart))
	}
	return summarize("insert", durations, time.Since(start))
}

func benchmarkScan(h *heap.TableHeap, expected int) BenchmarkResult {
	durations := make([]time.Duration, 0, expected)
	start := time.Now()

	it := h.Iterator()
	if err := it.Open(); err != nil {
		log.Fatalf("open iterator: %v", err)
	}
	defer it.Close()

	for {
		opStart := time.Now()
		has, err := it.HasNext()
		if err != nil {
			log.Fatalf("scan: %v", err)
		}
		if !has {
			break
		}
		if _, _, _, err := it.Next(); err != nil {
			log.Fatalf("scan next: %v", err)
		}
		durations = append(durations, time.Since(opStart))
	}
	return summarize("scan", durations, time.Since(start))
}

func summarize(name string, durations []time.Duration, total time.Duration) BenchmarkResult {
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	n := len(durations)
	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return BenchmarkResult{
		Name:           name,
		Iterations:     n,
		TotalDuration:  total,
		AvgDuration:    sum / time.Duration(n),
		MinDuration:    durations[0],
		MaxDuration:    durations[n-1],
		MedianDuration: durations[n/2],
		P95Duration:    durations[int(float64(n)*0.95)],
		P99Duration:    durations[min(n-1, int(float64(n)*0.99))],
		OpsPerSecond:   float64(n) / total.Seconds(),
	}
}

func printResult(r BenchmarkResult) {
	log.Printf("%s: %d ops in %s (avg %s, p95 %s, p99 %s, %.0f ops/sec)",
		r.Name, r.Iterations, r.TotalDuration, r.AvgDuration, r.P95Duration, r.P99Duration, r.OpsPerSecond)
}
