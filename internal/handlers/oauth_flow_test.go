package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"familytree/internal/security"
)

// fakeGoogle serves the token and userinfo endpoints used by the callback
func fakeGoogle(t *testing.T, email string, verified bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "auth-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":             "1234",
			"email":          email,
			"name":           "Google User",
			"verified_email": verified,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newOAuthHandler(t *testing.T, s *testServer, provider *httptest.Server) (*AuthHandler, *security.StateSigner) {
	t.Helper()
	signer := security.NewStateSigner("state-secret")
	google := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   provider.URL + "/auth",
			TokenURL:  provider.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"openid", "email"},
	}
	h := NewAuthHandler(s.auth, google, signer, "https://api.family.example", "https://family.example")
	h.userInfoURL = provider.URL + "/userinfo"
	return h, signer
}

func TestStartOAuthSetsNonceAndRedirects(t *testing.T) {
	s := newTestServer(t)
	h, signer := newOAuthHandler(t, s, fakeGoogle(t, "editor@example.com", true))

	rec := httptest.NewRecorder()
	h.StartOAuth(rec, httptest.NewRequest(http.MethodGet, "/api/auth/google/start", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	var nonce string
	for _, c := range rec.Result().Cookies() {
		if c.Name == OAuthNonceCookieName {
			nonce = c.Value
		}
	}
	if nonce == "" {
		t.Fatal("nonce cookie not set")
	}

	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect: %v", err)
	}
	q := location.Query()
	if !signer.Verify(nonce, q.Get("state")) {
		t.Error("state does not match the nonce cookie")
	}
	if got := q.Get("redirect_uri"); got != "https://api.family.example/api/auth/google/callback" {
		t.Errorf("redirect_uri = %q", got)
	}
}

func TestOAuthCallback(t *testing.T) {
	tests := []struct {
		name         string
		email        string
		verified     bool
		badState     bool
		wantPrefix   string
		wantFragment bool
	}{
		{"known admin", "Editor@Example.com", true, false, "https://family.example/admin/login#", true},
		{"tampered state", "editor@example.com", true, true, "https://family.example/admin/login?error=invalid_state", false},
		{"unverified email", "editor@example.com", false, false, "https://family.example/admin/login?error=email_unverified", false},
		{"unknown account", "stranger@example.com", true, false, "https://family.example/admin/login?error=forbidden", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			h, signer := newOAuthHandler(t, s, fakeGoogle(t, tt.email, tt.verified))

			nonce, state, err := signer.NewState()
			if err != nil {
				t.Fatalf("NewState: %v", err)
			}
			if tt.badState {
				state = strings.Repeat("0", len(state))
			}

			req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?"+url.Values{
				"state": {state},
				"code":  {"auth-code"},
			}.Encode(), nil)
			req.AddCookie(&http.Cookie{Name: OAuthNonceCookieName, Value: nonce})
			rec := httptest.NewRecorder()
			h.OAuthCallback(rec, req)

			if rec.Code != http.StatusSeeOther {
				t.Fatalf("status = %d, want 303", rec.Code)
			}
			location := rec.Header().Get("Location")
			if !strings.HasPrefix(location, tt.wantPrefix) {
				t.Fatalf("location = %q, want prefix %q", location, tt.wantPrefix)
			}
			if !tt.wantFragment {
				return
			}

			u, _ := url.Parse(location)
			fragment, _ := url.ParseQuery(u.Fragment)
			admin, err := s.auth.Authenticate(fragment.Get("token"))
			if err != nil {
				t.Fatalf("token from fragment rejected: %v", err)
			}
			if admin.Email != "editor@example.com" {
				t.Errorf("signed in as %q", admin.Email)
			}
		})
	}
}

func TestOAuthDisabledWithoutCredentials(t *testing.T) {
	if NewGoogleConfig("", "secret") != nil {
		t.Fatal("expected nil config without a client id")
	}

	h := NewAuthHandler(nil, nil, security.NewStateSigner("x"), "", "https://family.example")
	rec := httptest.NewRecorder()
	h.StartOAuth(rec, httptest.NewRequest(http.MethodGet, "/api/auth/google/start", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
