// Benchmark tool for testing Kestrel against labeled claims data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/claims.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled claim data (with known-problematic flags)
//   2. Sends each claim to Kestrel for analysis
//   3. Compares Kestrel's decision (hold/review vs approve) with the labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns (header required, case-insensitive):
//   claimid, billingnpi, memberid, dateofservice, claimtype, diagnosis,
//   codes (pipe-separated), units (pipe-separated), charges (pipe-separated),
//   isproblem (1 = claim should be flagged)
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledClaim represents a row from the benchmark dataset
type LabeledClaim struct {
	ClaimID       string
	BillingNPI    string
	MemberID      string
	DateOfService string
	ClaimType     string
	Diagnosis     string
	Codes         []string
	Units         []float64
	Charges       []float64
	IsProblem     bool
}

// AnalyzeRequest is the Kestrel API request format
type AnalyzeRequest struct {
	ClaimID        string        `json:"claimId"`
	MemberID       string        `json:"memberId"`
	BillingNPI     string        `json:"billingNpi"`
	ClaimType      string        `json:"claimType"`
	DateOfService  string        `json:"dateOfService"`
	DiagnosisCodes []string      `json:"diagnosisCodes"`
	Items          []ItemRequest `json:"items"`
}

type ItemRequest struct {
	ProcedureCode string  `json:"procedureCode"`
	Quantity      float64 `json:"quantity"`
	LineAmount    float64 `json:"lineAmount"`
}

// AnalyzeResponse is the Kestrel API response format
type AnalyzeResponse struct {
	JobID        string  `json:"jobId"`
	ClaimID      string  `json:"claimId"`
	FraudScore   float64 `json:"fraudScore"`
	DecisionMode string  `json:"decisionMode"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Problem claim flagged (hold or review)
	FalsePositives int64 // Clean claim flagged
	TrueNegatives  int64 // Clean claim approved
	FalseNegatives int64 // Problem claim approved (missed!)

	TotalProcessed int64
	TotalProblem   int64
	TotalClean     int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled claims CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum claims to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	problemOnly := flag.Bool("problem-only", false, "Only test known-problem claims")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate for clean claims (0.0-1.0)")
	verbose := flag.Bool("verbose", false, "Print each claim result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/claims.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        KESTREL BENCHMARK - Claims Compliance Screening        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Kestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Problem Only: %v\n", *problemOnly)
	fmt.Printf("Sample Rate: %.2f\n", *sampleRate)
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	// Read claim data
	fmt.Printf("\nReading claims from %s...\n", *csvPath)
	claims, err := readClaimsCSV(*csvPath, *limit, *problemOnly, *sampleRate)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d claims\n", len(claims))

	// Count problem vs clean
	problemCount := 0
	for _, c := range claims {
		if c.IsProblem {
			problemCount++
		}
	}
	fmt.Printf("  - Problem: %d (%.2f%%)\n", problemCount, 100*float64(problemCount)/float64(len(claims)))
	fmt.Printf("  - Clean:   %d (%.2f%%)\n", len(claims)-problemCount, 100*float64(len(claims)-problemCount)/float64(len(claims)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(claims, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readClaimsCSV(path string, limit int, problemOnly bool, sampleRate float64) ([]LabeledClaim, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(col)] = i
	}

	var claims []LabeledClaim
	sampleCounter := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isProblem := record[colIndex["isproblem"]] == "1"

		// Apply filters
		if problemOnly && !isProblem {
			continue
		}

		// Sample clean claims
		if !isProblem && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		codes := strings.Split(record[colIndex["codes"]], "|")
		unitStrs := strings.Split(record[colIndex["units"]], "|")
		chargeStrs := strings.Split(record[colIndex["charges"]], "|")
		if len(unitStrs) != len(codes) || len(chargeStrs) != len(codes) {
			continue
		}

		units := make([]float64, len(codes))
		charges := make([]float64, len(codes))
		for i := range codes {
			units[i], _ = strconv.ParseFloat(unitStrs[i], 64)
			charges[i], _ = strconv.ParseFloat(chargeStrs[i], 64)
		}

		c := LabeledClaim{
			ClaimID:       record[colIndex["claimid"]],
			BillingNPI:    record[colIndex["billingnpi"]],
			MemberID:      record[colIndex["memberid"]],
			DateOfService: record[colIndex["dateofservice"]],
			ClaimType:     record[colIndex["claimtype"]],
			Diagnosis:     record[colIndex["diagnosis"]],
			Codes:         codes,
			Units:         units,
			Charges:       charges,
			IsProblem:     isProblem,
		}

		claims = append(claims, c)

		if limit > 0 && len(claims) >= limit {
			break
		}
	}

	return claims, nil
}

func runBenchmark(claims []LabeledClaim, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledClaim, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for c := range work {
				start := time.Now()
				result, err := analyzeClaim(client, baseURL, tenantID, c)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", c.ClaimID, err)
					}
					continue
				}

				// Track actual labels
				if c.IsProblem {
					atomic.AddInt64(&metrics.TotalProblem, 1)
				} else {
					atomic.AddInt64(&metrics.TotalClean, 1)
				}

				// Calculate confusion matrix. Anything held or routed to
				// review counts as flagged.
				predicted := result.DecisionMode == "soft_hold" || result.DecisionMode == "recommendation"
				actual := c.IsProblem

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					fmt.Printf("%s %-14s | NPI: %-10s | Lines: %2d | Problem: %-5v | Kestrel: %-17s (%.2f)\n",
						status,
						c.ClaimID,
						c.BillingNPI,
						len(c.Codes),
						c.IsProblem,
						result.DecisionMode,
						result.FraudScore,
					)
				}
			}
		}()
	}

	// Send work
	for _, c := range claims {
		work <- c
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func analyzeClaim(client *http.Client, baseURL, tenantID string, c LabeledClaim) (*AnalyzeResponse, error) {
	// Build request matching Kestrel's expected format
	claimType := c.ClaimType
	if claimType == "" {
		claimType = "professional"
	}
	req := AnalyzeRequest{
		ClaimID:        c.ClaimID,
		MemberID:       c.MemberID,
		BillingNPI:     c.BillingNPI,
		ClaimType:      claimType,
		DateOfService:  c.DateOfService,
		DiagnosisCodes: []string{c.Diagnosis},
	}
	for i := range c.Codes {
		req.Items = append(req.Items, ItemRequest{
			ProcedureCode: c.Codes[i],
			Quantity:      c.Units[i],
			LineAmount:    c.Charges[i],
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Problem:    %d\n", m.TotalProblem)
	fmt.Printf("   Total Clean:      %d\n", m.TotalClean)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  Flagged     Approved")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  P  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           C  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged claims, how many were actual problems)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of problem claims, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalProblem > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalProblem) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalProblem) * 100
		fmt.Printf("   Problems Caught:   %d / %d (%.2f%%)\n", m.TruePositives, m.TotalProblem, detectionRate)
		fmt.Printf("   Problems Missed:   %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalProblem, missRate)
	}
	if m.TotalClean > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalClean) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalClean, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		cps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f claims/sec\n", cps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most problem claims")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some problem claims")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant problems being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most problem claims are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - flags are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
