package catalogapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToMinorUnits(t *testing.T) {
	testCases := []struct {
		in  float64
		out int64
	}{
		{in: 0, out: 0},
		{in: 10, out: 1000},
		{in: 19.99, out: 1999},
		{in: 0.1 + 0.2, out: 30},
		{in: 10.505, out: 1051},
		{in: 1.005, out: 100},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.out, ToMinorUnits(tc.in), "%v", tc.in)
	}

	assert.Equal(t, int64(4999), Course{Price: 49.99}.PriceInCents())
}
