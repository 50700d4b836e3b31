package security

import (
	"net/http"
	"strings"
	"time"
)

// IsSecureRequest reports whether the client reached us over HTTPS,
// directly or through a TLS terminating proxy
func IsSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return r.URL.Scheme == "https"
}

func baseCookie(r *http.Request, name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/api/auth/",
		HttpOnly: true,
		Secure:   IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}

// CreateCookie builds the short-lived cookie that carries the OAuth nonce
// between the start and callback requests
func CreateCookie(r *http.Request, name, value string, expires time.Time) *http.Cookie {
	c := baseCookie(r, name, value)
	c.Expires = expires
	return c
}

// CreateDeleteCookie clears a cookie set by CreateCookie
func CreateDeleteCookie(r *http.Request, name string) *http.Cookie {
	c := baseCookie(r, name, "")
	c.MaxAge = -1
	return c
}
