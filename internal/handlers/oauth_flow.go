package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"familytree/internal/apperr"
	"familytree/internal/security"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthCookieTTL    = 10 * time.Minute
)

// GoogleEndpoint is Google's OAuth 2.0 endpoint
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

var errOAuthDisabled = apperr.New(apperr.CodeDisabled, "Google sign-in is not configured", "تسجيل الدخول عبر Google غير مفعل")

type oauthUserInfo struct {
	Subject       string
	Email         string
	Name          string
	VerifiedEmail bool
}

// NewGoogleConfig returns nil when no client credentials are configured
func NewGoogleConfig(clientID, clientSecret string) *oauth2.Config {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     GoogleEndpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

// StartOAuth redirects the browser to Google's consent screen
func (h *AuthHandler) StartOAuth(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		respondWithError(w, r, errOAuthDisabled)
		return
	}

	nonce, state, err := h.states.NewState()
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	http.SetCookie(w, security.CreateCookie(r, OAuthNonceCookieName, nonce, time.Now().Add(oauthCookieTTL)))

	config := *h.google
	config.RedirectURL = h.oauthRedirectURL(r)

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account"))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// OAuthCallback completes the Google flow and hands a token to the admin UI
// in the URL fragment
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		respondWithError(w, r, errOAuthDisabled)
		return
	}

	http.SetCookie(w, security.CreateDeleteCookie(r, OAuthNonceCookieName))

	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		h.redirectLoginError(w, r, "oauth_denied")
		return
	}

	nonce := ""
	if cookie, err := r.Cookie(OAuthNonceCookieName); err == nil {
		nonce = cookie.Value
	}
	if !h.states.Verify(nonce, r.URL.Query().Get("state")) {
		slog.Warn("OAuth state mismatch", "ip", security.GetClientIP(r, false))
		h.redirectLoginError(w, r, "invalid_state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectLoginError(w, r, "missing_code")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	config := *h.google
	config.RedirectURL = h.oauthRedirectURL(r)

	token, err := config.Exchange(ctx, code)
	if err != nil {
		slog.Warn("OAuth code exchange failed", "error", err)
		h.redirectLoginError(w, r, "exchange_failed")
		return
	}

	userInfo, err := h.fetchGoogleUser(ctx, &config, token)
	if err != nil {
		slog.Warn("Failed to fetch Google user", "error", err)
		h.redirectLoginError(w, r, "userinfo_failed")
		return
	}
	if !userInfo.VerifiedEmail {
		h.redirectLoginError(w, r, "email_unverified")
		return
	}

	result, err := h.authService.LoginWithEmail(userInfo.Email)
	if err != nil {
		h.redirectLoginError(w, r, string(apperr.From(err).Code))
		return
	}

	fragment := url.Values{
		"token":     {result.Token},
		"expiresAt": {result.ExpiresAt.Format(time.RFC3339)},
	}
	http.Redirect(w, r, h.appBaseURL+"/admin/login#"+fragment.Encode(), http.StatusSeeOther)
}

func (h *AuthHandler) fetchGoogleUser(ctx context.Context, config *oauth2.Config, token *oauth2.Token) (oauthUserInfo, error) {
	client := config.Client(ctx, token)
	resp, err := client.Get(h.userInfoURL)
	if err != nil {
		return oauthUserInfo{}, fmt.Errorf("failed to fetch Google user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return oauthUserInfo{}, fmt.Errorf("google user info returned %d", resp.StatusCode)
	}

	var payload struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		Name          string `json:"name"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return oauthUserInfo{}, fmt.Errorf("failed to parse Google user info: %w", err)
	}
	if payload.Email == "" {
		return oauthUserInfo{}, errors.New("google account has no email")
	}

	return oauthUserInfo{
		Subject:       payload.ID,
		Email:         payload.Email,
		Name:          payload.Name,
		VerifiedEmail: payload.VerifiedEmail,
	}, nil
}

func (h *AuthHandler) oauthRedirectURL(r *http.Request) string {
	baseURL := strings.TrimSpace(h.oauthRedirectBaseURL)
	if baseURL == "" {
		scheme := "http"
		if security.IsSecureRequest(r) {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}
	return strings.TrimRight(baseURL, "/") + "/api/auth/google/callback"
}

func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, h.appBaseURL+"/admin/login?"+url.Values{"error": {reason}}.Encode(), http.StatusSeeOther)
}
