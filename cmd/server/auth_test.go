package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rehabdao/attestd/internal/attest"
)

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestRequireJWT(t *testing.T) {
	secret := []byte("test-secret")
	future := time.Now().Add(time.Hour).Unix()
	past := time.Now().Add(-time.Hour).Unix()

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantSubject string
	}{
		{"no header", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "therapist-7", "exp": future}), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + signed(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "therapist-7", "exp": past}), http.StatusUnauthorized, ""},
		{"wrong algorithm", "Bearer " + signed(t, jwt.SigningMethodHS512, secret, jwt.MapClaims{"sub": "therapist-7", "exp": future}), http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + signed(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"exp": future}), http.StatusUnauthorized, ""},
		{"valid", "Bearer " + signed(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "therapist-7", "exp": future}), http.StatusNoContent, "therapist-7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSubject string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotSubject = attest.Subject(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodPost, "/attestations/create", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			RequireJWT(secret)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotSubject != tt.wantSubject {
				t.Fatalf("subject = %q, want %q", gotSubject, tt.wantSubject)
			}
		})
	}
}

func TestExtractUserMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"auth user", map[string]string{"X-Auth-User": "alice", "Remote-User": "bob"}, "alice"},
		{"forwarded user", map[string]string{"X-Forwarded-User": "carol"}, "carol"},
		{"remote user", map[string]string{"Remote-User": "dave"}, "dave"},
		{"none", nil, "anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = attest.Subject(r.Context())
			})

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			Authenticator("")(next).ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Fatalf("subject = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubjectWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := attest.Subject(req.Context()); got != "" {
		t.Fatalf("subject = %q, want empty", got)
	}
}
