package mycontext

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextFromHTTPRequest(t *testing.T) {
	t.Run("With trace header", func(t *testing.T) {
		t.Setenv("GOOGLE_CLOUD_PROJECT", "my-project")
		r := httptest.NewRequest("GET", "/api/cart/u1", nil)
		r.Header.Set("X-Cloud-Trace-Context", "105445aa7843bc8bf206b12000100000/1;o=1")

		c := ContextFromHTTPRequest(r)
		assert.Equal(t, "projects/my-project/traces/105445aa7843bc8bf206b12000100000", TraceFromContext(c))
	})

	t.Run("Without trace header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/cart/u1", nil)

		c := ContextFromHTTPRequest(r)
		assert.Equal(t, "", TraceFromContext(c))
	})

	t.Run("Plain context", func(t *testing.T) {
		assert.Equal(t, "", TraceFromContext(context.Background()))
	})
}
