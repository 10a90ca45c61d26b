// Package testutil provides request builders and response assertions for handler
// and middleware tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "adminconsole/pkg/domain-errors"
)

// NewJSONRequest builds a request whose body is body encoded as JSON.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err, "encode request body")
	return NewRequestWithBody(t, method, path, string(raw))
}

// NewRequest builds a request with no body.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewRequestWithBody builds a JSON request from a raw body, for malformed input cases.
func NewRequestWithBody(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest serves req on handler and returns the recorded response.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// ErrorBody is the error envelope written by httputil.WriteError.
type ErrorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// DecodeError reads the response as an error envelope.
func DecodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "decode error envelope: %s", rr.Body.String())
	return body
}

// AssertError checks that the response carries code with the status mapped to it.
func AssertError(t *testing.T, rr *httptest.ResponseRecorder, code dErrors.Code) ErrorBody {
	t.Helper()
	assert.Equal(t, dErrors.HTTPStatus(code), rr.Code, "status for %s", code)
	body := DecodeError(t, rr)
	assert.Equal(t, string(code), body.Error)
	return body
}

// AssertRetryAfter checks that the response tells the client to back off for a
// positive number of seconds, no more than max.
func AssertRetryAfter(t *testing.T, rr *httptest.ResponseRecorder, max int) {
	t.Helper()
	raw := rr.Header().Get("Retry-After")
	require.NotEmpty(t, raw, "Retry-After header")
	secs, err := strconv.Atoi(raw)
	require.NoError(t, err, "Retry-After is not whole seconds: %q", raw)
	assert.Positive(t, secs)
	assert.LessOrEqual(t, secs, max)
}

// RequireStatus stops the test when the status differs, printing the body.
func RequireStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rr.Code, "body: %s", rr.Body.String())
}

// DecodeJSON reads the response body into a T.
func DecodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "decode response: %s", rr.Body.String())
	return out
}

// JSONFields reads a JSON object response as a generic map.
func JSONFields(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	return DecodeJSON[map[string]any](t, rr)
}
