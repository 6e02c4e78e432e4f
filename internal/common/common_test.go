package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/khanghh/blogapi/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	for _, n := range []int{1, 16, 32, 43} {
		secret, err := GenerateSecret(n)
		require.NoError(t, err)
		assert.Len(t, secret, n)
		assert.NotContains(t, secret, "+")
		assert.NotContains(t, secret, "/")
	}

	a, _ := GenerateSecret(32)
	b, _ := GenerateSecret(32)
	assert.NotEqual(t, a, b)
}

func TestHealthCheckHandler(t *testing.T) {
	handler := newHealthCheckHandler(nil, testutil.NewTestDB(t))

	for _, path := range []string{"/livez", "/readyz"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
