package main

import (
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rehabdao/attestd/internal/attest"
)

// Authenticator guards the mutating routes. With a secret it requires an
// HS256 bearer token; without one it trusts the reverse proxy's user headers.
func Authenticator(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		log.Println("Warning: ATTESTD_API_JWT_SECRET not set, trusting proxy user headers")
		return ExtractUserMiddleware
	}
	return RequireJWT([]byte(secret))
}

func RequireJWT(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				log.Printf("Authentication failed: no bearer token")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(*jwt.Token) (any, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				log.Printf("Authentication failed: %v", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || subject == "" {
				log.Printf("Authentication failed: token has no subject")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(attest.WithSubject(r.Context(), subject)))
		})
	}
}

func ExtractUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Traefik BasicAuth sets this header
		userID := r.Header.Get("X-Auth-User")

		if userID == "" {
			userID = r.Header.Get("X-Forwarded-User")
		}
		if userID == "" {
			userID = r.Header.Get("Remote-User")
		}

		if userID == "" {
			userID = "anonymous"
			log.Println("Warning: No auth header, using anonymous")
		}

		next.ServeHTTP(w, r.WithContext(attest.WithSubject(r.Context(), userID)))
	})
}
