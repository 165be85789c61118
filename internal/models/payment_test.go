package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitAmount(t *testing.T) {
	tests := []struct {
		name           string
		amount         int64
		feePercent     int64
		wantFee        int64
		wantFreelancer int64
	}{
		{name: "ровное деление", amount: 10000, feePercent: 10, wantFee: 1000, wantFreelancer: 9000},
		{name: "комиссия округляется вверх", amount: 999, feePercent: 10, wantFee: 100, wantFreelancer: 899},
		{name: "комиссия округляется вниз", amount: 1004, feePercent: 10, wantFee: 100, wantFreelancer: 904},
		{name: "ровно половина уходит вверх", amount: 105, feePercent: 10, wantFee: 11, wantFreelancer: 94},
		{name: "одна копейка", amount: 1, feePercent: 10, wantFee: 0, wantFreelancer: 1},
		{name: "нулевая комиссия", amount: 5000, feePercent: 0, wantFee: 0, wantFreelancer: 5000},
		{name: "полная комиссия", amount: 5000, feePercent: 100, wantFee: 5000, wantFreelancer: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, freelancer := SplitAmount(tt.amount, tt.feePercent)
			assert.Equal(t, tt.wantFee, fee)
			assert.Equal(t, tt.wantFreelancer, freelancer)
		})
	}
}

// Сумма долей всегда равна исходной сумме, ни одна копейка не теряется.
func TestSplitAmount_NoRemainderLost(t *testing.T) {
	for amount := int64(1); amount <= 1000; amount++ {
		fee, freelancer := SplitAmount(amount, 10)
		assert.Equal(t, amount, fee+freelancer, "amount=%d", amount)
		assert.GreaterOrEqual(t, fee, int64(0))
		assert.GreaterOrEqual(t, freelancer, int64(0))
	}
}
