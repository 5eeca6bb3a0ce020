package httpapi

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONReportsJSONFieldNames(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"messages":[{"role":"robot"}]}`))
	var req CallRequest
	err := decodeJSON(r, &req, false)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "messages[0].role")
	assert.Equal(t, "invalid request: messages[0].role must be one of: system user assistant", err.Error())
}

func TestDecodeJSONBoundsMaxRetries(t *testing.T) {
	body := `{"messages":[{"role":"user","content":"x"}],"max_retries":2147483647}`
	var req CallRequest
	err := decodeJSON(httptest.NewRequest("POST", "/", strings.NewReader(body)), &req, false)
	assert.EqualError(t, err, "invalid request: max_retries must be <= 100")

	for _, n := range []int{-1, 0, 3, 100} {
		body := fmt.Sprintf(`{"messages":[{"role":"user","content":"x"}],"max_retries":%d}`, n)
		var req CallRequest
		require.NoError(t, decodeJSON(httptest.NewRequest("POST", "/", strings.NewReader(body)), &req, false), n)
		assert.Equal(t, n, req.MaxRetries)
	}
}

func TestDecodeJSONEmptyBody(t *testing.T) {
	var archive archiveRequest
	require.NoError(t, decodeJSON(httptest.NewRequest("POST", "/", strings.NewReader("")), &archive, true))
	assert.Nil(t, archive.OlderThanDays)

	var req CallRequest
	err := decodeJSON(httptest.NewRequest("POST", "/", strings.NewReader("")), &req, false)
	assert.ErrorContains(t, err, "invalid json")
}

func TestValidationErrorSortsFields(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"title":    "title is required",
		"priority": "priority must be one of: LOW NORMAL HIGH URGENT",
	}}
	assert.Equal(t, "invalid request: priority must be one of: LOW NORMAL HIGH URGENT; title is required", err.Error())
}
