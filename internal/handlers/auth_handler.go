package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"familytree/internal/security"
	"familytree/internal/service"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService          *service.AuthService
	google               *oauth2.Config
	states               *security.StateSigner
	oauthRedirectBaseURL string
	appBaseURL           string
	userInfoURL          string
}

// NewAuthHandler creates a new auth handler. google may be nil when
// Google sign-in is not configured.
func NewAuthHandler(authService *service.AuthService, google *oauth2.Config, states *security.StateSigner, oauthRedirectBaseURL, appBaseURL string) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		google:               google,
		states:               states,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
		appBaseURL:           strings.TrimRight(appBaseURL, "/"),
		userInfoURL:          googleUserInfoURL,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges email and password for a bearer token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	result, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Me returns the signed-in admin
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, GetAdminFromContext(r.Context()))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword lets the signed-in admin replace their password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	admin := GetAdminFromContext(r.Context())
	if err := h.authService.ChangePassword(admin.ID, req.CurrentPassword, req.NewPassword); err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"changed": true})
}
