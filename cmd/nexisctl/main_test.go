package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/nexis/internal/domain"
)

const nestedJSON = `{
  "subjectId": "subject-001",
  "documentationMonths": 24,
  "record": {
    "utilityPaymentMonths": 24,
    "utilityPaymentConsistency": 0.70,
    "monthlyTransactionCount": 30,
    "transactionRegularityScore": 0.40,
    "spendingVolatility": 0.125,
    "withdrawalDisciplineScore": 0.66,
    "avgMonthEndBalance": 12500,
    "savingsGrowthRate": -0.02,
    "incomeRegularityScore": 0.90,
    "incomeStabilityMonths": 8,
    "accountTenureMonths": 40,
    "addressStabilityYears": 1.5,
    "discretionaryIncomeRatio": 0.22
  }
}`

const flatYAML = `
subjectId: subject-002
utilityPaymentMonths: 24
utilityPaymentConsistency: 0.70
monthlyTransactionCount: 30
transactionRegularityScore: 0.40
spendingVolatility: 0.125
withdrawalDisciplineScore: 0.66
avgMonthEndBalance: 12500
savingsGrowthRate: -0.02
incomeRegularityScore: 0.90
incomeStabilityMonths: 8
accountTenureMonths: 40
addressStabilityYears: 1.5
discretionaryIncomeRatio: 0.22
`

func TestParseRequest(t *testing.T) {
	t.Run("nested json", func(t *testing.T) {
		req, err := parseRequest([]byte(nestedJSON))
		require.NoError(t, err)
		assert.Equal(t, "subject-001", req.SubjectID)
		require.NotNil(t, req.DocumentationMonths)
		assert.Equal(t, 24, *req.DocumentationMonths)
		assert.Equal(t, 40, req.Record.AccountTenureMonths)
		assert.Equal(t, 0.125, req.Record.SpendingVolatility)
	})

	t.Run("flat yaml", func(t *testing.T) {
		req, err := parseRequest([]byte(flatYAML))
		require.NoError(t, err)
		assert.Equal(t, "subject-002", req.SubjectID)
		assert.Nil(t, req.DocumentationMonths)
		assert.Equal(t, 12500.0, req.Record.AvgMonthEndBalance)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := parseRequest([]byte("creditScore: 800\n"))
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := parseRequest([]byte("  \n"))
		assert.Error(t, err)
	})

	t.Run("not a number", func(t *testing.T) {
		req, err := parseRequest([]byte("spendingVolatility: .nan\n"))
		require.NoError(t, err)
		assert.ErrorIs(t, req.Record.Validate(), domain.ErrInvalidRecord)
	})
}

func TestScoreRejectsNonFiniteValues(t *testing.T) {
	for _, value := range []string{".nan", ".inf", "-.inf"} {
		_, err := execute(t, "avgMonthEndBalance: "+value+"\n", "score", "-", "-o", "json")
		assert.ErrorIs(t, err, domain.ErrInvalidRecord, value)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	outputFormat = "text"
	subjectFlag = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestScoreCommand(t *testing.T) {
	out, err := execute(t, nestedJSON, "score", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "714 (Low risk)")
	assert.Contains(t, out, "241 / 360")

	out, err = execute(t, nestedJSON, "score", "-", "-o", "json")
	require.NoError(t, err)
	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, float64(714), resp["trustScore"])
	assert.Equal(t, "subject-001", resp["subjectId"])
}

func TestPlanCommandYAML(t *testing.T) {
	out, err := execute(t, flatYAML, "plan", "-", "--output", "yaml")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 714, doc["currentScore"])
	assert.Equal(t, 787, doc["potentialScore"])
	assert.NotEmpty(t, doc["recommendations"])
}

func TestExplainCommand(t *testing.T) {
	out, err := execute(t, nestedJSON, "explain", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Trust score 714")
	assert.Contains(t, out, "RULE")
}

func TestRulesCommand(t *testing.T) {
	out, err := execute(t, "", "rules")
	require.NoError(t, err)
	assert.Contains(t, out, "12 rules, 360 points, scores 420-860")
	assert.Contains(t, out, "Spending Stability")
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := execute(t, "", "rules", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestTokenCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NEXIS_AUTH_SECRET", "cli-test-secret-value")

	out, err := execute(t, "", "token", "--tenant", "tenant-001", "--lender", "lender-001")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(out), "."), "expected a compact JWT")
}
