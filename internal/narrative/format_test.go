package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue(t *testing.T) {
	tests := []struct {
		format Format
		value  float64
		want   string
	}{
		{Integer, 24, "24"},
		{Integer, 1250, "1,250"},
		{Percent, 0.98, "98%"},
		{Percent, 0.75, "75%"},
		{PercentTenths, 0.125, "12.5%"},
		{PercentTenths, -0.10, "-10.0%"},
		{Currency, 8000, "₹8,000"},
		{Currency, 2500.4, "₹2,500"},
		{Currency, 1234567, "₹1,234,567"},
		{Years, 2, "2.0"},
		{Years, 0.5, "0.5"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Value(tt.format, tt.value))
	}
}

func TestRender(t *testing.T) {
	got := Render("Your Value: {value}, needed {threshold}+ ({value})", map[string]string{
		"value":     "12",
		"threshold": "18",
	})
	assert.Equal(t, "Your Value: 12, needed 18+ (12)", got)

	assert.Equal(t, "no placeholders", Render("no placeholders", nil))
}

func TestCheckDeterministic(t *testing.T) {
	assert.NoError(t, CheckDeterministic("Maintaining 12+ months will satisfy this rule."))
	assert.NoError(t, CheckDeterministic("predictable spending patterns"))

	for _, text := range []string{
		"This could raise your score",
		"You might qualify",
		"The model predicts",
		"Confidence is high",
		"an estimated increase",
	} {
		assert.Error(t, CheckDeterministic(text), text)
	}
}
