package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBehavioralRecordValidate(t *testing.T) {
	assert.NoError(t, (&BehavioralRecord{}).Validate())
	assert.NoError(t, (&BehavioralRecord{SavingsGrowthRate: -1, UtilityPaymentConsistency: 1}).Validate())

	tests := []struct {
		name   string
		record BehavioralRecord
	}{
		{"ratio above one", BehavioralRecord{UtilityPaymentConsistency: 1.01}},
		{"negative months", BehavioralRecord{UtilityPaymentMonths: -1}},
		{"growth below minus one", BehavioralRecord{SavingsGrowthRate: -1.5}},
		{"tenure above fifty years", BehavioralRecord{AccountTenureMonths: 601}},
		{"NaN volatility", BehavioralRecord{SpendingVolatility: math.NaN()}},
		{"NaN balance", BehavioralRecord{AvgMonthEndBalance: math.NaN()}},
		{"infinite balance", BehavioralRecord{AvgMonthEndBalance: math.Inf(1)}},
		{"negative infinite growth", BehavioralRecord{SavingsGrowthRate: math.Inf(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.record.Validate(), ErrInvalidRecord)
		})
	}
}
