package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommissionTieredRates(t *testing.T) {
	cases := []struct {
		name       string
		grossCents int64
		rateBps    int64
		want       int64
	}{
		{"level 1 on $100", 10000, 5000, 5000},
		{"level 2 on $100", 10000, 6000, 6000},
		{"level 3 on $100", 10000, 7000, 7000},
		{"level 1 on $49.99", 4999, 5000, 2500},
		{"rounds half up", 1, 5000, 1},
		{"rounds down below half", 3, 1000, 0},
		{"zero gross", 0, 5000, 0},
		{"negative gross", -100, 5000, 0},
		{"zero rate", 10000, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Commission(tc.grossCents, tc.rateBps))
		})
	}
}

func TestCommissionDeterministic(t *testing.T) {
	first := Commission(4999, 6000)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Commission(4999, 6000))
	}
}
