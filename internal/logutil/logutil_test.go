package logutil

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestIsSensitiveLogField(t *testing.T) {
	for _, key := range []string{"Authorization", "token", "access_token", "Set-Cookie", "password", "confirm_password", "X-Api-Key", "session_id"} {
		assert.True(t, IsSensitiveLogField(key), key)
	}
	for _, key := range []string{"Content-Type", "email", "name", "price", "X-Request-Id"} {
		assert.False(t, IsSensitiveLogField(key), key)
	}
}

func TestFormatHeadersForLog_RedactsAndSorts(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer abc123")
	h.Set("Content-Type", "application/json")
	h.Add("Cookie", "cart=1")

	got := FormatHeadersForLog(h)
	assert.Equal(t, `authorization="[REDACTED]"; content-type="application/json"; cookie="[REDACTED]"`, got)
	assert.NotContains(t, got, "abc123")
	assert.Equal(t, "{}", FormatHeadersForLog(nil))
}

func TestRedactBodyForLog_NestedJSON(t *testing.T) {
	body := []byte(`{"token":"tkn","user":{"email":"a@b.c","password":"hunter22"},"items":[{"api_key":"k"}]}`)
	got := RedactBodyForLog("application/json; charset=utf-8", body)

	assert.NotContains(t, got, "tkn")
	assert.NotContains(t, got, "hunter22")
	assert.Contains(t, got, "a@b.c")
	assert.Equal(t, 3, strings.Count(got, Redacted))
}

func TestRedactBodyForLog_NonJSONUnchanged(t *testing.T) {
	assert.Equal(t, "password=x", RedactBodyForLog("application/x-www-form-urlencoded", []byte("password=x")))
	assert.Equal(t, "{broken", RedactBodyForLog("application/json", []byte("{broken")))
}

func TestFormatBodyForLog_Truncates(t *testing.T) {
	body := []byte(strings.Repeat("x", 50))
	got := FormatBodyForLog("text/plain", body, 10)
	assert.True(t, strings.HasSuffix(got, "[truncated]"), got)
	assert.Empty(t, FormatBodyForLog("text/plain", nil, 10))
}

func TestRequestAttrs_RedactsCredentials(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "http://user:pw@localhost/api/auth/login", nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	attrs := RequestAttrs(req, []byte(`{"email":"u@example.com","password":"secret"}`))
	var joined strings.Builder
	for _, a := range attrs {
		joined.WriteString(a.(interface{ String() string }).String())
		joined.WriteByte(' ')
	}
	out := joined.String()
	assert.NotContains(t, out, "secret")
	assert.NotContains(t, out, ":pw@")
	assert.Contains(t, out, "u@example.com")
}

func testRedactedBodyNeverLeaksPassword(t *rapid.T) {
	secret := rapid.StringMatching(`[a-z0-9]{12,24}`).Draw(t, "secret")
	email := rapid.StringMatching(`[a-z]{3,8}@example\.com`).Draw(t, "email")
	body := []byte(`{"email":"` + email + `","password":"` + secret + `"}`)

	got := RedactBodyForLog("application/json", body)
	if strings.Contains(got, secret) {
		t.Fatalf("password leaked into log body: %s", got)
	}
	if !strings.Contains(got, email) {
		t.Fatalf("email missing from log body: %s", got)
	}
}

func TestRedactedBodyNeverLeaksPassword(t *testing.T) {
	rapid.Check(t, testRedactedBodyNeverLeaksPassword)
}

func FuzzRedactedBodyNeverLeaksPassword(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testRedactedBodyNeverLeaksPassword))
}
