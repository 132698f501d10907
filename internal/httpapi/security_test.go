package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"kasirinaja/backoffice/internal/domain"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
	if got := res.Header().Get(requestIDHeader); got == "" {
		t.Fatalf("expected %s to be set", requestIDHeader)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		api.Handler().ServeHTTP(res, req)

		if i < 5 && res.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, res.Code)
		}
		if i == 5 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", res.Code)
		}
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", res.Code)
	}
}

func TestJSONUnknownFieldRejected(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"admin","password":"admin123","role":"admin"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}
}

func TestJSONPostWithoutCSRFTokenRejected(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	body, _ := json.Marshal(domain.CashierCreateRequest{Username: "kasirbaru", Password: "pass1234"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/cashiers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", res.Code)
	}
}

func TestFormPostWithoutCSRFTokenRejected(t *testing.T) {
	api := newTestAPI(t)
	form := url.Values{"username": {"admin"}, "password": {"admin123"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", res.Code)
	}
}

func TestCSRFTokenIsBoundToSession(t *testing.T) {
	api := newTestAPI(t)
	form := url.Values{"username": {"admin"}, "password": {"admin123"}, "_token": {api.generateCSRFToken("session-a")}}

	post := func(sessionID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: sessionID})
		res := httptest.NewRecorder()
		api.Handler().ServeHTTP(res, req)
		return res
	}

	if res := post("session-b"); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a token minted for another session, got %d", res.Code)
	}
	if res := post("session-a"); res.Code != http.StatusFound {
		t.Fatalf("expected the owning session to pass, got %d", res.Code)
	}
}

func TestCSRFTokenWithoutSessionRejected(t *testing.T) {
	api := newTestAPI(t)
	form := url.Values{"username": {"admin"}, "password": {"admin123"}, "_token": {api.generateCSRFToken("")}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without a session, got %d", res.Code)
	}
}

func TestCSRFTokenEndpointRequiresBearer(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", res.Code)
	}
}

func TestCSRFTokenIsBoundToBearer(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAsAdmin(t, api)
	cashier := loginAs(t, api, "cashier", "cashier123")
	cashierToken := fetchCSRFToken(t, api, cashier)

	body, _ := json.Marshal(domain.CashierCreateRequest{Username: "kasirbaru", Password: "pass1234"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/cashiers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+admin)
	req.Header.Set("X-CSRF-Token", cashierToken)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a token issued to another bearer, got %d", res.Code)
	}
}

func TestManagerPINRateLimitReturns429(t *testing.T) {
	env := newTestEnv(t)
	b := newBrowser(t, env.api)
	b.login("admin", "admin123")

	for i := 0; i < 9; i++ {
		res := b.post("/shifts/shift-nonexistent/clear-suspension", url.Values{"manager_pin": {"000000"}}, "")

		if i < 8 && res.Code != http.StatusFound {
			t.Fatalf("attempt %d expected redirect before pin limit, got %d", i+1, res.Code)
		}
		if i == 8 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 9 expected 429, got %d", res.Code)
		}
	}
}

func TestSafeRedirectRejectsForeignTargets(t *testing.T) {
	cases := map[string]string{
		"/products/prod-serum":   "/products/prod-serum",
		"":                       "/",
		"https://evil.test/path": "/",
		"//evil.test":            "/",
		"/\\evil.test":           "/",
	}
	for target, want := range cases {
		if got := safeRedirect(target, "/"); got != want {
			t.Fatalf("safeRedirect(%q) = %q, want %q", target, got, want)
		}
	}
}

func TestPreviousURLIgnoresForeignReferer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/shifts/clock-out", nil)
	req.Header.Set("Referer", "https://evil.test/products/prod-serum")
	if got := newURLHelper(req).Previous("/"); got != "/" {
		t.Fatalf("expected fallback for foreign referer, got %q", got)
	}

	req.Header.Set("Referer", "http://example.com/shifts/clock-out")
	if got := newURLHelper(req).Previous("/"); got != "/" {
		t.Fatalf("expected fallback when referer is the current page, got %q", got)
	}

	req.Header.Set("Referer", "http://example.com/products/prod-serum?tab=stock")
	if got := newURLHelper(req).Previous("/"); got != "/products/prod-serum?tab=stock" {
		t.Fatalf("expected same-host referer, got %q", got)
	}
}

func TestParsePositiveLimitCaps(t *testing.T) {
	if got := parsePositiveLimit("9999", 50, 200); got != 200 {
		t.Fatalf("expected capped limit 200, got %d", got)
	}
	if got := parsePositiveLimit("", 50, 200); got != 50 {
		t.Fatalf("expected fallback limit 50, got %d", got)
	}
	if got := parsePositiveLimit("invalid", 50, 200); got != 50 {
		t.Fatalf("expected fallback on invalid input, got %d", got)
	}
}

// fetchCSRFToken calls the CSRF token endpoint as the bearer and returns the
// token string.
func fetchCSRFToken(t *testing.T, api *API, bearer string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("csrf-token endpoint returned status %d", res.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode csrf-token response failed: %v", err)
	}
	tok := payload["csrf_token"]
	if strings.TrimSpace(tok) == "" {
		t.Fatalf("expected non-empty csrf_token in response")
	}
	return tok
}

func loginAs(t *testing.T, api *API, username string, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("%s login failed, status %d", username, res.Code)
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

func loginAsAdmin(t *testing.T, api *API) string {
	t.Helper()
	return loginAs(t, api, "admin", "admin123")
}
