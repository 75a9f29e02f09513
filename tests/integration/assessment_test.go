//go:build integration

// Package integration runs end-to-end checks against a live Nexis server.
//
// The pipeline under test:
//
//	Behavioral record -> Rules -> Trust score -> Factors -> Recommendations
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// The server must run with consent enforcement off and rate limiting relaxed:
//
//	NEXIS_REQUIRE_CONSENT=false NEXIS_RATE_LIMIT=false go run ./cmd/nexis
//
// Scores are deterministic, so the expected numbers below hold for any
// deployment of the 2024.1 rule catalog.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig(t *testing.T) TestConfig {
	t.Helper()

	baseURL := os.Getenv("NEXIS_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		t.Skipf("nexis not reachable at %s: %v", baseURL, err)
	}
	resp.Body.Close()

	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "it-" + uuid.New().String()[:8],
	}
}

// Record mirrors the API record format.
type Record struct {
	UtilityPaymentMonths       int     `json:"utilityPaymentMonths"`
	UtilityPaymentConsistency  float64 `json:"utilityPaymentConsistency"`
	MonthlyTransactionCount    int     `json:"monthlyTransactionCount"`
	TransactionRegularityScore float64 `json:"transactionRegularityScore"`
	SpendingVolatility         float64 `json:"spendingVolatility"`
	WithdrawalDisciplineScore  float64 `json:"withdrawalDisciplineScore"`
	AvgMonthEndBalance         float64 `json:"avgMonthEndBalance"`
	SavingsGrowthRate          float64 `json:"savingsGrowthRate"`
	IncomeRegularityScore      float64 `json:"incomeRegularityScore"`
	IncomeStabilityMonths      int     `json:"incomeStabilityMonths"`
	AccountTenureMonths        int     `json:"accountTenureMonths"`
	AddressStabilityYears      float64 `json:"addressStabilityYears"`
	DiscretionaryIncomeRatio   float64 `json:"discretionaryIncomeRatio"`
}

type AssessmentResponse struct {
	AssessmentID string `json:"assessmentId"`
	SubjectID    string `json:"subjectId"`
	TrustScore   int    `json:"trustScore"`
	RiskLevel    string `json:"riskLevel"`
	TotalPoints  int    `json:"totalPoints"`
	MaxPoints    int    `json:"maxPoints"`
	Metadata     struct {
		TraceID        string `json:"traceId"`
		CatalogVersion string `json:"catalogVersion"`
	} `json:"metadata"`
}

func mixedRecord() Record {
	return Record{
		UtilityPaymentMonths:       24,
		UtilityPaymentConsistency:  0.70,
		MonthlyTransactionCount:    30,
		TransactionRegularityScore: 0.40,
		SpendingVolatility:         0.125,
		WithdrawalDisciplineScore:  0.66,
		AvgMonthEndBalance:         12500,
		SavingsGrowthRate:          -0.02,
		IncomeRegularityScore:      0.90,
		IncomeStabilityMonths:      8,
		AccountTenureMonths:        40,
		AddressStabilityYears:      1.5,
		DiscretionaryIncomeRatio:   0.22,
	}
}

func poorRecord() Record {
	return Record{
		UtilityPaymentMonths:       3,
		UtilityPaymentConsistency:  0.45,
		MonthlyTransactionCount:    8,
		TransactionRegularityScore: 0.35,
		SpendingVolatility:         0.75,
		WithdrawalDisciplineScore:  0.30,
		AvgMonthEndBalance:         500,
		SavingsGrowthRate:          -0.10,
		IncomeRegularityScore:      0.40,
		IncomeStabilityMonths:      4,
		AccountTenureMonths:        6,
		AddressStabilityYears:      0.5,
		DiscretionaryIncomeRatio:   0.05,
	}
}

func call(t *testing.T, config TestConfig, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
	}

	req, err := http.NewRequest(method, config.BaseURL+path, &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if config.TenantID != "" {
		req.Header.Set("X-Tenant-ID", config.TenantID)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("failed to decode response %s: %v", raw, err)
		}
	}
	return resp.StatusCode
}

func assess(t *testing.T, config TestConfig, subjectID string, record Record) AssessmentResponse {
	t.Helper()

	var resp AssessmentResponse
	status := call(t, config, http.MethodPost, "/assessments", map[string]any{
		"subjectId": subjectID,
		"record":    record,
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", status)
	}
	return resp
}

func TestMixedRecord_LowRisk(t *testing.T) {
	config := getTestConfig(t)

	resp := assess(t, config, "mixed-001", mixedRecord())

	if resp.TrustScore != 714 {
		t.Errorf("expected trust score 714, got %d", resp.TrustScore)
	}
	if resp.RiskLevel != "Low" {
		t.Errorf("expected Low risk, got %s", resp.RiskLevel)
	}
	if resp.TotalPoints != 241 || resp.MaxPoints != 360 {
		t.Errorf("expected 241/360 points, got %d/%d", resp.TotalPoints, resp.MaxPoints)
	}
	if resp.Metadata.CatalogVersion != "2024.1" {
		t.Errorf("expected catalog 2024.1, got %s", resp.Metadata.CatalogVersion)
	}
}

func TestPoorRecord_HighRisk(t *testing.T) {
	config := getTestConfig(t)

	resp := assess(t, config, "poor-001", poorRecord())

	if resp.TrustScore != 497 {
		t.Errorf("expected trust score 497, got %d", resp.TrustScore)
	}
	if resp.RiskLevel != "High" {
		t.Errorf("expected High risk, got %s", resp.RiskLevel)
	}

	var plan struct {
		CurrentScore    int              `json:"currentScore"`
		PotentialScore  int              `json:"potentialScore"`
		Recommendations []map[string]any `json:"recommendations"`
	}
	if status := call(t, config, http.MethodGet, "/subjects/poor-001/improvement", nil, &plan); status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", status)
	}
	if plan.PotentialScore != 607 {
		t.Errorf("expected potential score 607, got %d", plan.PotentialScore)
	}
	if len(plan.Recommendations) != 3 {
		t.Errorf("expected 3 recommendations, got %d", len(plan.Recommendations))
	}
}

func TestDeterministicScoring(t *testing.T) {
	config := getTestConfig(t)

	first := assess(t, config, "repeat-001", mixedRecord())
	second := assess(t, config, "repeat-001", mixedRecord())

	if first.TrustScore != second.TrustScore {
		t.Errorf("same record scored %d then %d", first.TrustScore, second.TrustScore)
	}
	if first.AssessmentID == second.AssessmentID {
		t.Error("expected a new assessment id per request")
	}
}

func TestOutOfRangeRecord_Error(t *testing.T) {
	config := getTestConfig(t)

	record := mixedRecord()
	record.UtilityPaymentConsistency = 1.2

	status := call(t, config, http.MethodPost, "/assessments", map[string]any{
		"subjectId": "bad-001",
		"record":    record,
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", status)
	}
}

func TestMissingTenantHeader_Error(t *testing.T) {
	config := getTestConfig(t)
	config.TenantID = ""

	status := call(t, config, http.MethodPost, "/assessments", map[string]any{
		"subjectId": "anon-001",
		"record":    mixedRecord(),
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", status)
	}
}

func TestLenderDecisionAuditTrail(t *testing.T) {
	config := getTestConfig(t)
	if os.Getenv("NEXIS_TEST_TOKEN") != "" {
		t.Skip("lender endpoints require a token on this server")
	}

	scored := assess(t, config, "lender-001", mixedRecord())

	var decision struct {
		DecisionID   string `json:"decisionId"`
		AssessmentID string `json:"assessmentId"`
	}
	status := call(t, config, http.MethodPost, "/lender/decisions", map[string]any{
		"subjectId":     "lender-001",
		"lenderId":      "it-lender",
		"decision":      "approve",
		"justification": "Consistent income and long account tenure observed.",
	}, &decision)
	if status == http.StatusUnauthorized {
		t.Skip("lender auth is enabled on this server")
	}
	if status != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", status)
	}
	if decision.AssessmentID != scored.AssessmentID {
		t.Errorf("decision references %s, expected %s", decision.AssessmentID, scored.AssessmentID)
	}

	var trail struct {
		Count int `json:"count"`
	}
	call(t, config, http.MethodGet, "/lender/subjects/lender-001/decisions", nil, &trail)
	if trail.Count != 1 {
		t.Errorf("expected 1 decision in the audit trail, got %d", trail.Count)
	}
}

func TestResponseMetadata(t *testing.T) {
	config := getTestConfig(t)

	resp := assess(t, config, fmt.Sprintf("meta-%d", time.Now().UnixNano()), mixedRecord())
	if resp.Metadata.TraceID == "" {
		t.Error("expected a trace id in metadata")
	}
}
