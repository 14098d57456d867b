package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panaven/api/internal/platform/requestctx"
)

func TestAdminGateRequire(t *testing.T) {
	var actor string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = requestctx.Actor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		secret   string
		headers  map[string]string
		status   int
		code     string
		operator string
	}{
		{name: "accepts matching secret", secret: "s3cret", headers: map[string]string{"X-Admin-Secret": "s3cret"}, status: http.StatusNoContent, operator: "admin"},
		{name: "records operator", secret: "s3cret", headers: map[string]string{"X-Admin-Secret": "s3cret", OperatorHeader: "maria"}, status: http.StatusNoContent, operator: "maria"},
		{name: "missing secret", secret: "s3cret", status: http.StatusUnauthorized, code: "unauthenticated"},
		{name: "wrong secret", secret: "s3cret", headers: map[string]string{"X-Admin-Secret": "nope"}, status: http.StatusForbidden, code: "permission_denied"},
		{name: "gate without secret", headers: map[string]string{"X-Admin-Secret": "anything"}, status: http.StatusServiceUnavailable, code: "admin_unavailable"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actor = ""
			gate := NewAdminGate(tc.secret)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			gate.Require(next).ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			if tc.code != "" {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tc.code, body["error"])
				assert.Empty(t, actor)
				return
			}
			assert.Equal(t, tc.operator, actor)
		})
	}
}

func TestAdminGateCustomHeader(t *testing.T) {
	gate := NewAdminGate("abc", WithHeader("X-Panaven-Key"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Panaven-Key", "abc")
	rec := httptest.NewRecorder()
	gate.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
