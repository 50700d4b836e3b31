package security

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"familytree/internal/models"
)

func TestHashPassword(t *testing.T) {
	password := "testPassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "" || hash == password {
		t.Error("HashPassword() returned an unusable hash")
	}

	// Same password produces different hashes (due to salt)
	hash2, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == hash2 {
		t.Error("HashPassword() should produce different hashes due to salt")
	}
}

func TestCheckPassword(t *testing.T) {
	password := "mySecurePassword"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{name: "correct password", password: password, hash: hash, want: true},
		{name: "incorrect password", password: "wrongPassword", hash: hash, want: false},
		{name: "empty password", password: "", hash: hash, want: false},
		{name: "empty hash", password: password, hash: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.password, tt.hash); got != tt.want {
				t.Errorf("CheckPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	admin := &models.AdminUser{ID: 7, Email: "a@example.com", Name: "A", Role: models.RoleAdmin}

	token, err := m.Generate(admin)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.AdminID != 7 || claims.Email != "a@example.com" || claims.Role != models.RoleAdmin {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenRejections(t *testing.T) {
	admin := &models.AdminUser{ID: 1, Email: "a@example.com", Role: models.RoleEditor}

	expired, _ := NewTokenManager("secret", -time.Minute).Generate(admin)
	otherKey, _ := NewTokenManager("other", time.Hour).Generate(admin)
	badRole, _ := NewTokenManager("secret", time.Hour).Generate(&models.AdminUser{ID: 2, Role: "guest"})

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{AdminID: 1, Role: models.RoleSuperAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: tokenIssuer}})
	noneToken, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	m := NewTokenManager("secret", time.Hour)
	for name, token := range map[string]string{
		"expired":   expired,
		"wrong key": otherKey,
		"bad role":  badRole,
		"alg none":  noneToken,
		"garbage":   "not.a.token",
		"empty":     "",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestStateSigner(t *testing.T) {
	s := NewStateSigner("state-secret")
	nonce, state, err := s.NewState()
	if err != nil {
		t.Fatalf("NewState failed: %v", err)
	}
	if !strings.HasPrefix(state, nonce+".") {
		t.Fatalf("state %q does not embed nonce %q", state, nonce)
	}
	if !s.Verify(nonce, state) {
		t.Error("Verify rejected a fresh state")
	}

	otherNonce, _, _ := s.NewState()
	last := state[len(state)-1]
	flipped := byte('0')
	if last == '0' {
		flipped = '1'
	}
	tests := map[string]struct{ nonce, state string }{
		"different cookie":  {otherNonce, state},
		"tampered mac":      {nonce, state[:len(state)-1] + string(flipped)},
		"missing separator": {nonce, nonce},
		"empty":             {"", ""},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if s.Verify(tt.nonce, tt.state) {
				t.Errorf("Verify(%q, %q) = true, want false", tt.nonce, tt.state)
			}
		})
	}

	if NewStateSigner("other").Verify(nonce, state) {
		t.Error("state from another secret accepted")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)
	defer rl.Stop()

	if !rl.Allow("1.1.1.1") || !rl.Allow("1.1.1.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("1.1.1.1") {
		t.Error("third request should be limited")
	}
	if !rl.Allow("2.2.2.2") {
		t.Error("other clients have their own budget")
	}
	if wait := rl.RetryAfter("1.1.1.1"); wait <= 0 || wait > time.Hour {
		t.Errorf("RetryAfter = %v", wait)
	}
	if wait := rl.RetryAfter("9.9.9.9"); wait != 0 {
		t.Errorf("unknown client RetryAfter = %v, want 0", wait)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)
	defer rl.Stop()

	if !rl.Allow("ip") {
		t.Fatal("first request should pass")
	}
	if rl.Allow("ip") {
		t.Fatal("second request should be limited")
	}
	time.Sleep(30 * time.Millisecond)
	if !rl.Allow("ip") {
		t.Error("request after window reset should pass")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		trusted bool
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, remote: "10.0.0.2:1234", trusted: true, want: "203.0.113.5"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.7"}, remote: "10.0.0.2:1234", trusted: true, want: "198.51.100.7"},
		{name: "remote addr", remote: "192.0.2.1:5555", trusted: true, want: "192.0.2.1"},
		{name: "forwarded chain untrusted", headers: map[string]string{"X-Forwarded-For": "203.0.113.5"}, remote: "10.0.0.2:1234", want: "10.0.0.2"},
		{name: "real ip untrusted", headers: map[string]string{"X-Real-IP": "198.51.100.7"}, remote: "10.0.0.2:1234", want: "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r, tt.trusted); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCookiesFollowScheme(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if c := CreateCookie(r, "n", "v", time.Now().Add(time.Minute)); c.Secure || !c.HttpOnly {
		t.Errorf("plain http cookie: %+v", c)
	}
	r.Header.Set("X-Forwarded-Proto", "https")
	if c := CreateCookie(r, "n", "v", time.Now().Add(time.Minute)); !c.Secure {
		t.Error("cookie behind https proxy should be Secure")
	}
	if c := CreateDeleteCookie(r, "n"); c.MaxAge != -1 {
		t.Errorf("delete cookie MaxAge = %d", c.MaxAge)
	}
}
