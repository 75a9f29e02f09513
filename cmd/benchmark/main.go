// Benchmark tool for load testing Nexis with labelled behavioral records.
//
// Usage:
//
//	go run ./cmd/benchmark -csv /path/to/records.csv -url http://localhost:8080
//	go run ./cmd/benchmark -synthetic 5000 -url http://localhost:8080
//
// The CSV header names record fields in snake_case (utility_payment_months,
// spending_volatility, ...), plus optional subject_id and defaulted columns.
// When defaulted (0/1) is present, High risk is counted as a predicted
// default and the tool reports a confusion matrix against the labels.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/rules"
)

// Sample is one record to score, with its outcome label when known.
type Sample struct {
	SubjectID string
	Record    domain.BehavioralRecord
	Labelled  bool
	Defaulted bool
}

// Metrics tracks benchmark results. It is guarded by mu.
type Metrics struct {
	mu sync.Mutex

	Latencies []time.Duration
	Errors    int
	Limited   int

	ByRisk map[domain.RiskLevel]int
	Scores []int

	TruePositives  int // defaulted, scored High
	FalsePositives int // repaid, scored High
	TrueNegatives  int // repaid, scored Low or Moderate
	FalseNegatives int // defaulted, scored Low or Moderate
}

func (m *Metrics) record(s Sample, resp *domain.AssessmentResponse, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Latencies = append(m.Latencies, elapsed)
	m.ByRisk[resp.RiskLevel]++
	m.Scores = append(m.Scores, resp.TrustScore)

	if !s.Labelled {
		return
	}
	predicted := resp.RiskLevel == domain.RiskHigh
	switch {
	case predicted && s.Defaulted:
		m.TruePositives++
	case predicted && !s.Defaulted:
		m.FalsePositives++
	case !predicted && !s.Defaulted:
		m.TrueNegatives++
	default:
		m.FalseNegatives++
	}
}

func (m *Metrics) fail(limited bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limited {
		m.Limited++
		return
	}
	m.Errors++
}

var errRateLimited = errors.New("rate limited")

func main() {
	csvPath := flag.String("csv", "", "Path to a CSV of behavioral records")
	synthetic := flag.Int("synthetic", 0, "Generate this many random records instead of reading a CSV")
	seed := flag.Uint64("seed", 42, "Seed for synthetic records")
	baseURL := flag.String("url", "http://localhost:8080", "Nexis base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum records to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent requests")
	verbose := flag.Bool("verbose", false, "Print each result")
	flag.Parse()

	if *csvPath == "" && *synthetic <= 0 {
		fmt.Println("Usage: benchmark -csv /path/to/records.csv | -synthetic N [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println("|           NEXIS BENCHMARK - Behavioral Trust Scoring          |")
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Printf("\nNexis URL:   %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Nexis not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Nexis is running with rate limiting relaxed:")
		fmt.Println("  NEXIS_RATE_LIMIT=false go run ./cmd/nexis")
		os.Exit(1)
	}
	fmt.Println("Nexis is healthy")

	var (
		samples []Sample
		err     error
	)
	if *csvPath != "" {
		fmt.Printf("\nReading records from %s...\n", *csvPath)
		samples, err = readCSV(*csvPath, *limit)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		samples = syntheticSamples(*synthetic, *seed)
	}
	fmt.Printf("Loaded %d records\n", len(samples))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	start := time.Now()
	metrics, err := runBenchmark(context.Background(), samples, *baseURL, *tenantID, *workers, *verbose)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}

	printResults(metrics, time.Since(start))
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

// readCSV loads samples. Unknown columns are ignored and malformed rows skipped.
func readCSV(path string, limit int) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseCSV(file, limit)
}

func parseCSV(r io.Reader, limit int) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var samples []Sample
	for row := 1; ; row++ {
		cols, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}

		s, err := parseRow(header, cols)
		if err != nil {
			continue
		}
		if s.SubjectID == "" {
			s.SubjectID = fmt.Sprintf("bench-%06d", row)
		}
		samples = append(samples, s)

		if limit > 0 && len(samples) >= limit {
			break
		}
	}

	return samples, nil
}

func parseRow(header, cols []string) (Sample, error) {
	var s Sample
	values := make(map[string]float64, len(header))

	for i, name := range header {
		if i >= len(cols) {
			break
		}
		v := strings.TrimSpace(cols[i])
		switch {
		case name == "subject_id":
			s.SubjectID = v
		case name == "defaulted":
			s.Labelled = true
			s.Defaulted = v == "1" || strings.EqualFold(v, "true")
		case rules.KnownField(name):
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return s, fmt.Errorf("column %s: %w", name, err)
			}
			values[name] = f
		}
	}

	s.Record = domain.BehavioralRecord{
		UtilityPaymentMonths:       int(values[rules.FieldUtilityPaymentMonths]),
		UtilityPaymentConsistency:  values[rules.FieldUtilityPaymentConsistency],
		MonthlyTransactionCount:    int(values[rules.FieldMonthlyTransactionCount]),
		TransactionRegularityScore: values[rules.FieldTransactionRegularityScore],
		SpendingVolatility:         values[rules.FieldSpendingVolatility],
		WithdrawalDisciplineScore:  values[rules.FieldWithdrawalDisciplineScore],
		AvgMonthEndBalance:         values[rules.FieldAvgMonthEndBalance],
		SavingsGrowthRate:          values[rules.FieldSavingsGrowthRate],
		IncomeRegularityScore:      values[rules.FieldIncomeRegularityScore],
		IncomeStabilityMonths:      int(values[rules.FieldIncomeStabilityMonths]),
		AccountTenureMonths:        int(values[rules.FieldAccountTenureMonths]),
		AddressStabilityYears:      values[rules.FieldAddressStabilityYears],
		DiscretionaryIncomeRatio:   values[rules.FieldDiscretionaryIncomeRatio],
	}
	return s, s.Record.Validate()
}

// syntheticSamples draws records uniformly inside the accepted ranges.
func syntheticSamples(n int, seed uint64) []Sample {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{
			SubjectID: fmt.Sprintf("synthetic-%06d", i),
			Record: domain.BehavioralRecord{
				UtilityPaymentMonths:       rng.IntN(37),
				UtilityPaymentConsistency:  rng.Float64(),
				MonthlyTransactionCount:    rng.IntN(80),
				TransactionRegularityScore: rng.Float64(),
				SpendingVolatility:         rng.Float64(),
				WithdrawalDisciplineScore:  rng.Float64(),
				AvgMonthEndBalance:         rng.Float64() * 10000,
				SavingsGrowthRate:          rng.Float64()*0.4 - 0.2,
				IncomeRegularityScore:      rng.Float64(),
				IncomeStabilityMonths:      rng.IntN(37),
				AccountTenureMonths:        rng.IntN(73),
				AddressStabilityYears:      rng.Float64() * 6,
				DiscretionaryIncomeRatio:   rng.Float64() * 0.5,
			},
		}
	}
	return samples
}

func runBenchmark(ctx context.Context, samples []Sample, baseURL, tenantID string, workers int, verbose bool) (*Metrics, error) {
	metrics := &Metrics{ByRisk: make(map[domain.RiskLevel]int)}
	client := &http.Client{Timeout: 10 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for _, s := range samples {
		g.Go(func() error {
			start := time.Now()
			resp, err := assess(ctx, client, baseURL, tenantID, s)
			elapsed := time.Since(start)

			if err != nil {
				metrics.fail(errors.Is(err, errRateLimited))
				if verbose {
					fmt.Printf("ERROR: %s -> %v\n", s.SubjectID, err)
				}
				// Only a cancelled run stops the benchmark.
				return ctx.Err()
			}

			metrics.record(s, resp, elapsed)
			if verbose {
				fmt.Printf("%-16s | score %3d | %-8s | %-8s | %4dms\n",
					s.SubjectID, resp.TrustScore, resp.RiskLevel, resp.AssessmentStrength, elapsed.Milliseconds())
			}
			return nil
		})
	}

	return metrics, g.Wait()
}

func assess(ctx context.Context, client *http.Client, baseURL, tenantID string, s Sample) (*domain.AssessmentResponse, error) {
	body, err := json.Marshal(map[string]any{
		"subjectId": s.SubjectID,
		"record":    s.Record,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/assessments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, errRateLimited
	default:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result domain.AssessmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)-1) * p)
	return sorted[i]
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n+---------------------------------------------------------------+")
	fmt.Println("|                       BENCHMARK RESULTS                       |")
	fmt.Println("+---------------------------------------------------------------+")

	scored := len(m.Latencies)
	fmt.Printf("\nDATASET\n")
	fmt.Printf("   Scored:        %d\n", scored)
	fmt.Printf("   Rate limited:  %d\n", m.Limited)
	fmt.Printf("   Errors:        %d\n", m.Errors)

	fmt.Printf("\nRISK DISTRIBUTION\n")
	for _, level := range []domain.RiskLevel{domain.RiskLow, domain.RiskModerate, domain.RiskHigh} {
		n := m.ByRisk[level]
		share := 0.0
		if scored > 0 {
			share = 100 * float64(n) / float64(scored)
		}
		fmt.Printf("   %-9s %6d (%5.1f%%)\n", level, n, share)
	}
	if len(m.Scores) > 0 {
		scores := slices.Clone(m.Scores)
		slices.Sort(scores)
		fmt.Printf("   Scores:    min %d, median %d, max %d\n", scores[0], scores[len(scores)/2], scores[len(scores)-1])
	}

	labelled := m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
	if labelled > 0 {
		fmt.Printf("\nOUTCOME AGREEMENT (High risk = predicted default)\n")
		fmt.Println("                        Predicted")
		fmt.Println("                   High      Low/Moderate")
		fmt.Printf("   Defaulted   %8d      %8d   (TP, FN)\n", m.TruePositives, m.FalseNegatives)
		fmt.Printf("   Repaid      %8d      %8d   (FP, TN)\n", m.FalsePositives, m.TrueNegatives)

		precision, recall := 0.0, 0.0
		if m.TruePositives+m.FalsePositives > 0 {
			precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
		}
		if m.TruePositives+m.FalseNegatives > 0 {
			recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
		}
		accuracy := float64(m.TruePositives+m.TrueNegatives) / float64(labelled)
		fmt.Printf("   Precision:  %.4f\n", precision)
		fmt.Printf("   Recall:     %.4f\n", recall)
		fmt.Printf("   Accuracy:   %.4f\n", accuracy)
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:  %v\n", duration.Round(time.Millisecond))
	if scored > 0 {
		latencies := slices.Clone(m.Latencies)
		slices.Sort(latencies)
		fmt.Printf("   p50 Latency:     %v\n", percentile(latencies, 0.50).Round(time.Microsecond))
		fmt.Printf("   p95 Latency:     %v\n", percentile(latencies, 0.95).Round(time.Microsecond))
		fmt.Printf("   p99 Latency:     %v\n", percentile(latencies, 0.99).Round(time.Microsecond))
		fmt.Printf("   Throughput:      %.2f req/sec\n", float64(scored)/duration.Seconds())
	}

	fmt.Println()
}
