package purchase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MarcGrol/coursebackend/lib/mytime"
)

func TestComputeTax(t *testing.T) {
	testCases := []struct {
		amount int64
		tax    int64
	}{
		{amount: 0, tax: 0},
		{amount: 3000, tax: 300},
		{amount: 1999, tax: 200},
		{amount: 1994, tax: 199},
		{amount: 5, tax: 1},
		{amount: 4, tax: 0},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.tax, computeTax(tc.amount), "amount %d", tc.amount)
	}
}

func TestInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-20230227-user-123", invoiceNumber(mytime.ExampleTime, "user-1234567890"))
	assert.Equal(t, "INV-20240101-u1", invoiceNumber(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "u1"))
}

func TestSplitCourseUIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCourseUIDs("a,,b, "))
	assert.Equal(t, []string{}, splitCourseUIDs(""))
}
