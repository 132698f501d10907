package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"
)

// csrfExemptPaths are called before a client can hold a token.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func isCSRFExempt(path string) bool {
	for _, exempt := range csrfExemptPaths {
		if path == exempt {
			return true
		}
	}
	return false
}

// csrfBinding names the caller a token belongs to: the session cookie for
// browsers, the bearer token for API clients. Empty means no binding.
func csrfBinding(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if token, ok := bearerToken(r); ok {
		return token
	}
	return ""
}

// csrfTokenFor computes an HMAC-SHA256 token over the hour bucket (Unix time
// truncated to the hour) and the binding, hex-encoded.
func (a *API) csrfTokenFor(hourBucket int64, binding string) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d:%s", hourBucket, binding)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken(binding string) string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenFor(bucket, binding)
}

// validateCSRFToken accepts the current and the previous hour bucket for the
// same binding. Unbound requests never validate.
func (a *API) validateCSRFToken(token string, binding string) bool {
	if token == "" || binding == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenFor(currentBucket, binding)
	expected2 := a.csrfTokenFor(prevBucket, binding)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(csrfBinding(r)),
	})
}
