package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type LoadTestConfig struct {
	BaseURL           string
	Token             string
	RequestsPerSecond int
	DurationSeconds   int
	ConcurrentWorkers int
	// ReadRatio is the share of requests that fetch the customer summary
	// instead of recording a transaction.
	ReadRatio float64
}

type Stats struct {
	writes        atomic.Int64
	reads         atomic.Int64
	errorCount    atomic.Int64
	responseTimes []float64
	mu            sync.Mutex
}

func (s *Stats) addResponseTime(d float64) {
	s.mu.Lock()
	s.responseTimes = append(s.responseTimes, d)
	s.mu.Unlock()
}

func (s *Stats) sortedResponseTimes() []float64 {
	s.mu.Lock()
	times := make([]float64, len(s.responseTimes))
	copy(times, s.responseTimes)
	s.mu.Unlock()
	sort.Float64s(times)
	return times
}

type loader struct {
	client     *http.Client
	config     LoadTestConfig
	customerID string
	stats      *Stats
}

func (l *loader) do(method, path string, body any) (int, []byte, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, l.config.BaseURL+path, r)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if l.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+l.config.Token)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	return resp.StatusCode, out, err
}

func (l *loader) createCustomer() error {
	status, body, err := l.do("POST", "/customers", map[string]any{
		"name":  "Load Test Farm",
		"phone": "load-" + strconv.FormatInt(time.Now().UnixNano(), 36),
	})
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("create customer: status %d: %s", status, body)
	}
	var out struct {
		Customer struct {
			ID string `json:"id"`
		} `json:"customer"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return err
	}
	l.customerID = out.Customer.ID
	return nil
}

func (l *loader) sendRequest(rng *rand.Rand) {
	start := time.Now()

	var status int
	var err error
	read := rng.Float64() < l.config.ReadRatio
	if read {
		status, _, err = l.do("GET", "/customers/"+l.customerID, nil)
	} else {
		unit := "kg"
		if rng.Intn(4) == 0 {
			unit = "quintal"
		}
		status, _, err = l.do("POST", "/transactions", map[string]any{
			"customer":   l.customerID,
			"type":       "give",
			"weight":     1 + rng.Intn(500),
			"weightUnit": unit,
			"rate":       100 + rng.Intn(200),
		})
	}
	l.stats.addResponseTime(time.Since(start).Seconds())

	switch {
	case err != nil || status >= 300:
		l.stats.errorCount.Add(1)
	case read:
		l.stats.reads.Add(1)
	default:
		l.stats.writes.Add(1)
	}
}

func (l *loader) worker(seed int64, jobs <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	rng := rand.New(rand.NewSource(seed))
	for range jobs {
		l.sendRequest(rng)
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)) * p)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func main() {
	config := LoadTestConfig{
		BaseURL:           strings.TrimRight(getEnvOrDefault("TARGET_URL", "http://localhost:5000/api/v1"), "/"),
		Token:             os.Getenv("API_TOKEN"),
		RequestsPerSecond: getEnvIntOrDefault("REQUESTS_PER_SECOND", 500),
		DurationSeconds:   getEnvIntOrDefault("DURATION_SECONDS", 30),
		ConcurrentWorkers: getEnvIntOrDefault("CONCURRENT_WORKERS", 100),
		ReadRatio:         float64(getEnvIntOrDefault("READ_PERCENT", 30)) / 100,
	}

	l := &loader{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        config.ConcurrentWorkers,
				MaxIdleConnsPerHost: config.ConcurrentWorkers,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: 60 * time.Second,
		},
		config: config,
		stats:  &Stats{},
	}
	if err := l.createCustomer(); err != nil {
		fmt.Fprintln(os.Stderr, "setup failed:", err)
		os.Exit(1)
	}

	fmt.Println("Starting load test...")
	fmt.Printf("Target: %s (customer %s)\n", config.BaseURL, l.customerID)
	fmt.Printf("Target RPS: %d | Workers: %d | Duration: %ds | Reads: %.0f%%\n",
		config.RequestsPerSecond, config.ConcurrentWorkers, config.DurationSeconds, config.ReadRatio*100)
	fmt.Println(strings.Repeat("-", 50))

	jobs := make(chan struct{}, config.RequestsPerSecond)
	var wg sync.WaitGroup
	for i := 0; i < config.ConcurrentWorkers; i++ {
		wg.Add(1)
		go l.worker(time.Now().UnixNano()+int64(i), jobs, &wg)
	}

	startTime := time.Now()
	for i := 0; i < config.DurationSeconds; i++ {
		batchStart := time.Now()
		for j := 0; j < config.RequestsPerSecond; j++ {
			jobs <- struct{}{}
		}

		ok := l.stats.writes.Load() + l.stats.reads.Load()
		errs := l.stats.errorCount.Load()
		fmt.Printf("[%ds] Completed: %d | Success: %d | Errors: %d\n", i+1, ok+errs, ok, errs)

		if elapsed := time.Since(batchStart); elapsed < time.Second {
			time.Sleep(time.Second - elapsed)
		}
	}
	close(jobs)
	wg.Wait()

	duration := time.Since(startTime).Seconds()
	writes, reads, errs := l.stats.writes.Load(), l.stats.reads.Load(), l.stats.errorCount.Load()
	total := writes + reads + errs
	times := l.stats.sortedResponseTimes()

	var avg float64
	for _, t := range times {
		avg += t
	}
	if len(times) > 0 {
		avg /= float64(len(times))
	}

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("LOAD TEST RESULTS")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Duration: %.2f seconds\n", duration)
	fmt.Printf("Total requests: %d (transactions %d, summaries %d, failed %d)\n", total, writes, reads, errs)
	if total > 0 {
		fmt.Printf("Success rate: %.2f%%\n", float64(writes+reads)/float64(total)*100)
	}
	fmt.Printf("Actual RPS: %.2f\n", float64(total)/duration)
	fmt.Printf("\nResponse times:\n")
	fmt.Printf("  Average: %.2f ms\n", avg*1000)
	fmt.Printf("  P50: %.2f ms\n", percentile(times, 0.50)*1000)
	fmt.Printf("  P95: %.2f ms\n", percentile(times, 0.95)*1000)
	fmt.Printf("  P99: %.2f ms\n", percentile(times, 0.99)*1000)
	if len(times) > 0 {
		fmt.Printf("  Min: %.2f ms\n", times[0]*1000)
		fmt.Printf("  Max: %.2f ms\n", times[len(times)-1]*1000)
	}
}
