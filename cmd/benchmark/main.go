// Benchmark tool for testing Harrier against labeled chargeback data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/disputes.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled dispute data (with abusive-chargeback labels)
//   2. Sends each dispute to Harrier for ingestion and scoring
//   3. Compares Harrier's recommendation (reject vs others) with actual labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//   5. Optionally exercises the feedback reanalysis loop per case
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

// LabeledDispute represents a row from the labeled dispute dataset.
type LabeledDispute struct {
	CaseNumber       string
	Category         string
	DisputeReason    string
	Amount           float64
	MerchantCategory string
	CreditScore      int
	PreviousDisputes int
	DisputeRate      float64
	SameCardOrders   int
	SameAddrOrders   int
	ItemShipped      string
	ItemDelivered    string
	DigitalGoods     string
	IsAbusive        bool
}

// CaseRequest is the Harrier ingestion request format.
type CaseRequest struct {
	CaseNumber    string      `json:"caseNumber"`
	DisputeReason string      `json:"disputeReason"`
	Category      string      `json:"category,omitempty"`
	Transaction   Transaction `json:"transaction"`
	Customer      Customer    `json:"customer"`
}

type Transaction struct {
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	MerchantName      string  `json:"merchantName"`
	MerchantCategory  string  `json:"merchantCategory"`
	SameCardOrders    int     `json:"sameCardSuccessOrders"`
	SameAddressOrders int     `json:"sameAddressSuccessOrders"`
	ItemShipped       string  `json:"itemShipped"`
	ItemDelivered     string  `json:"itemDelivered"`
	DigitalGoods      string  `json:"digitalGoods"`
}

type Customer struct {
	Name             string  `json:"name"`
	CreditScore      int     `json:"creditScore"`
	PreviousDisputes int     `json:"previousDisputes"`
	DisputeRate      float64 `json:"disputePercentage"`
}

// CaseResponse is the Harrier ingestion response format.
type CaseResponse struct {
	ID             string `json:"id"`
	RiskScore      int    `json:"riskScore"`
	Recommendation string `json:"aiRecommendation"`
	Confidence     int    `json:"aiConfidence"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Abusive dispute recommended for rejection
	FalsePositives int64 // Genuine dispute recommended for rejection
	TrueNegatives  int64 // Genuine dispute not rejected
	FalseNegatives int64 // Abusive dispute not rejected (missed abuse!)

	TotalProcessed int64
	TotalAbusive   int64
	TotalGenuine   int64
	TotalErrors    int64

	ReanalysesSent int64
	ReanalysisErrs int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled dispute CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum disputes to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	abusiveOnly := flag.Bool("abusive-only", false, "Only test abusive disputes")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate for genuine disputes (0.0-1.0)")
	reanalyze := flag.Bool("reanalyze", false, "Exercise the feedback reanalysis loop per case")
	verbose := flag.Bool("verbose", false, "Print each dispute result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/disputes.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        HARRIER BENCHMARK - Chargeback Abuse Detection         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Harrier URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Abusive Only: %v\n", *abusiveOnly)
	fmt.Printf("Sample Rate: %.2f\n", *sampleRate)
	fmt.Printf("Reanalyze:   %v\n", *reanalyze)
	fmt.Println()

	// Check Harrier is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  cd harrier && go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Harrier is healthy")

	// Read labeled dispute data
	fmt.Printf("\nReading dispute data from %s...\n", *csvPath)
	disputes, err := readDisputeCSV(*csvPath, *limit, *abusiveOnly, *sampleRate)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d disputes\n", len(disputes))

	// Count abusive vs genuine
	abusiveCount := 0
	for _, d := range disputes {
		if d.IsAbusive {
			abusiveCount++
		}
	}
	fmt.Printf("  - Abusive: %d (%.2f%%)\n", abusiveCount, 100*float64(abusiveCount)/float64(len(disputes)))
	fmt.Printf("  - Genuine: %d (%.2f%%)\n", len(disputes)-abusiveCount, 100*float64(len(disputes)-abusiveCount)/float64(len(disputes)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(disputes, *baseURL, *tenantID, *workers, *reanalyze, *verbose)
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

func readDisputeCSV(path string, limit int, abusiveOnly bool, sampleRate float64) ([]LabeledDispute, error) {
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

	col := func(record []string, name string) string {
		idx, ok := colIndex[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	var disputes []LabeledDispute
	sampleCounter := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isAbusive := col(record, "is_abusive") == "1"

		// Apply filters
		if abusiveOnly && !isAbusive {
			continue
		}

		// Sample genuine disputes
		if !isAbusive && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		amount, _ := strconv.ParseFloat(col(record, "amount"), 64)
		creditScore, _ := strconv.Atoi(col(record, "credit_score"))
		previousDisputes, _ := strconv.Atoi(col(record, "previous_disputes"))
		disputeRate, _ := strconv.ParseFloat(col(record, "dispute_rate"), 64)
		sameCard, _ := strconv.Atoi(col(record, "same_card_orders"))
		sameAddr, _ := strconv.Atoi(col(record, "same_address_orders"))

		d := LabeledDispute{
			CaseNumber:       col(record, "case_number"),
			Category:         col(record, "category"),
			DisputeReason:    col(record, "dispute_reason"),
			Amount:           amount,
			MerchantCategory: col(record, "merchant_category"),
			CreditScore:      creditScore,
			PreviousDisputes: previousDisputes,
			DisputeRate:      disputeRate,
			SameCardOrders:   sameCard,
			SameAddrOrders:   sameAddr,
			ItemShipped:      col(record, "item_shipped"),
			ItemDelivered:    col(record, "item_delivered"),
			DigitalGoods:     col(record, "digital_goods"),
			IsAbusive:        isAbusive,
		}

		disputes = append(disputes, d)

		if limit > 0 && len(disputes) >= limit {
			break
		}
	}

	return disputes, nil
}

func runBenchmark(disputes []LabeledDispute, baseURL, tenantID string, numWorkers int, reanalyze, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledDispute, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for d := range work {
				start := time.Now()
				result, err := ingestDispute(client, baseURL, tenantID, d)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", d.CaseNumber, err)
					}
					continue
				}

				// Track actual labels
				if d.IsAbusive {
					atomic.AddInt64(&metrics.TotalAbusive, 1)
				} else {
					atomic.AddInt64(&metrics.TotalGenuine, 1)
				}

				// Calculate confusion matrix
				predicted := result.Recommendation == "reject"
				actual := d.IsAbusive

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if reanalyze {
					atomic.AddInt64(&metrics.ReanalysesSent, 1)
					if err := reanalyzeCase(client, baseURL, tenantID, result.ID, d.IsAbusive); err != nil {
						atomic.AddInt64(&metrics.ReanalysisErrs, 1)
						if verbose {
							fmt.Printf("REANALYZE ERROR: %s -> %v\n", result.ID, err)
						}
					}
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					fmt.Printf("%s %-14s | Category: %-20s | Amount: $%10.2f | Abusive: %-5v | Harrier: %-22s (%d)\n",
						status,
						d.CaseNumber,
						d.Category,
						d.Amount,
						d.IsAbusive,
						result.Recommendation,
						result.RiskScore,
					)
				}
			}
		}()
	}

	// Send work
	for _, d := range disputes {
		work <- d
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func ingestDispute(client *http.Client, baseURL, tenantID string, d LabeledDispute) (*CaseResponse, error) {
	req := CaseRequest{
		CaseNumber:    d.CaseNumber,
		DisputeReason: d.DisputeReason,
		Category:      d.Category,
		Transaction: Transaction{
			Amount:            d.Amount,
			Currency:          "USD",
			MerchantName:      "Benchmark Merchant",
			MerchantCategory:  d.MerchantCategory,
			SameCardOrders:    d.SameCardOrders,
			SameAddressOrders: d.SameAddrOrders,
			ItemShipped:       d.ItemShipped,
			ItemDelivered:     d.ItemDelivered,
			DigitalGoods:      d.DigitalGoods,
		},
		Customer: Customer{
			Name:             "Benchmark Customer",
			CreditScore:      d.CreditScore,
			PreviousDisputes: d.PreviousDisputes,
			DisputeRate:      d.DisputeRate,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/cases", bytes.NewReader(body))
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

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result CaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

// reanalyzeCase drives the feedback loop with a canned analyst note
// matching the known label, mimicking dashboard usage.
func reanalyzeCase(client *http.Client, baseURL, tenantID, caseID string, abusive bool) error {
	feedbackText := "Customer appears loyal with legitimate purchase history"
	if abusive {
		feedbackText = "Pattern looks suspicious, likely chargeback abuse"
	}

	body, err := json.Marshal(map[string]string{"feedback": feedbackText})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/cases/"+caseID+"/reanalyze", bytes.NewReader(body))
	if err != nil {
		return err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Abusive:    %d\n", m.TotalAbusive)
	fmt.Printf("   Total Genuine:    %d\n", m.TotalGenuine)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  REJECT      OTHER")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  A  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           G  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
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
	fmt.Printf("   Precision:  %.4f  (of rejections, how many were actually abusive)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of abusive disputes, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalAbusive > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalAbusive) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalAbusive) * 100
		fmt.Printf("   Abuse Detected:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalAbusive, detectionRate)
		fmt.Printf("   Abuse Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalAbusive, missRate)
	}
	if m.TotalGenuine > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalGenuine) * 100
		fmt.Printf("   False Rejections:  %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalGenuine, falseAlarmRate)
	}

	if m.ReanalysesSent > 0 {
		fmt.Printf("\n🔁 REANALYSIS LOOP\n")
		fmt.Printf("   Sent:    %d\n", m.ReanalysesSent)
		fmt.Printf("   Errors:  %d\n", m.ReanalysisErrs)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f cases/sec\n", tps)
	}
}
