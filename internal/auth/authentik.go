// Package auth guards the administrative endpoints with Authentik OIDC, or
// with an auto-login stand-in during local development.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
)

const (
	sessionCookie = "session_id"
	stateCookie   = "oauth_state"
	adminGroup    = "admins"
	appSlug       = "basket-tracker"
)

// AuthentikConfig holds the configuration for Authentik OAuth2/OIDC
type AuthentikConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// User is the signed-in scorer or coach
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Groups   []string `json:"groups"`
}

// Session is one browser login
type Session struct {
	ID        string
	User      *User
	Token     *oauth2.Token
	CreatedAt time.Time
	ExpiresAt time.Time
}

type ctxKey struct{}

// WithUser returns a copy of ctx carrying u
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// GetUser retrieves the authenticated user from the request context
func GetUser(r *http.Request) *User {
	u, _ := r.Context().Value(ctxKey{}).(*User)
	return u
}

// IsAdmin reports whether u may import, clear or seed data
func IsAdmin(u *User) bool {
	if u == nil {
		return false
	}
	for _, g := range u.Groups {
		if g == adminGroup {
			return true
		}
	}
	return false
}

// sessions is the cookie-keyed login table both providers share
type sessions struct {
	mu  sync.RWMutex
	m   map[string]*Session
	now func() time.Time
}

func newSessions() *sessions {
	return &sessions{m: make(map[string]*Session), now: time.Now}
}

func (s *sessions) add(sess *Session) {
	s.mu.Lock()
	s.m[sess.ID] = sess
	s.mu.Unlock()
}

func (s *sessions) remove(id string) {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
}

// lookup returns the user behind the request's session cookie, if still valid
func (s *sessions) lookup(r *http.Request) *User {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	s.mu.RLock()
	sess, ok := s.m[cookie.Value]
	s.mu.RUnlock()
	if !ok || s.now().After(sess.ExpiresAt) {
		return nil
	}
	return sess.User
}

// guard wraps next; unauthenticated API calls get a JSON 401, pages are
// redirected to the login flow
func (s *sessions) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := s.lookup(r)
		if u == nil {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	}
}

// requireAdmin is guard plus the admins group check
func (s *sessions) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.guard(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(GetUser(r)) {
			writeJSONError(w, http.StatusForbidden, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
}

// AuthentikAuth manages authentication with Authentik
type AuthentikAuth struct {
	config       *AuthentikConfig
	oauth2Config *oauth2.Config
	client       *http.Client
	*sessions
}

// NewAuthentikAuth creates a new Authentik authentication handler
func NewAuthentikAuth(config *AuthentikConfig) *AuthentikAuth {
	if len(config.Scopes) == 0 {
		config.Scopes = []string{"openid", "profile", "email"}
	}
	base := strings.TrimRight(config.BaseURL, "/")

	return &AuthentikAuth{
		config: config,
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       config.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/application/o/authorize/",
				TokenURL: base + "/application/o/token/",
			},
		},
		client:   &http.Client{Timeout: 10 * time.Second},
		sessions: newSessions(),
	}
}

// LoginHandler initiates the OAuth2 login flow
func (a *AuthentikAuth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	state := randomToken()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})
	http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// CallbackHandler handles the OAuth2 callback from Authentik
func (a *AuthentikAuth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, a.client)
	token, err := a.oauth2Config.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		logger.Warn("Authentik token exchange failed", "error", err)
		http.Error(w, "Failed to exchange token", http.StatusBadGateway)
		return
	}
	user, err := a.userInfo(ctx, token)
	if err != nil {
		logger.Warn("Authentik userinfo failed", "error", err)
		http.Error(w, "Failed to get user info", http.StatusBadGateway)
		return
	}

	sess := &Session{
		ID:        randomToken(),
		User:      user,
		Token:     token,
		CreatedAt: a.now(),
		ExpiresAt: token.Expiry,
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = sess.CreatedAt.Add(8 * time.Hour)
	}
	a.add(sess)
	logger.Info("User signed in", "user", user.Username, "admin", IsAdmin(user))

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	clearCookie(w, stateCookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutHandler drops the session and ends the Authentik session too
func (a *AuthentikAuth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		a.remove(cookie.Value)
	}
	clearCookie(w, sessionCookie)
	logoutURL := fmt.Sprintf("%s/application/o/%s/end-session/", strings.TrimRight(a.config.BaseURL, "/"), appSlug)
	http.Redirect(w, r, logoutURL, http.StatusSeeOther)
}

// Middleware protects routes requiring authentication
func (a *AuthentikAuth) Middleware(next http.HandlerFunc) http.HandlerFunc { return a.guard(next) }

// RequireAdmin protects routes reserved to the admins group
func (a *AuthentikAuth) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.requireAdmin(next)
}

func (a *AuthentikAuth) userInfo(ctx context.Context, token *oauth2.Token) (*User, error) {
	url := strings.TrimRight(a.config.BaseURL, "/") + "/application/o/userinfo/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("userinfo: %s - %s", resp.Status, string(body))
	}

	var info struct {
		Sub               string   `json:"sub"`
		Email             string   `json:"email"`
		Name              string   `json:"name"`
		PreferredUsername string   `json:"preferred_username"`
		Groups            []string `json:"groups"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &User{
		ID:       info.Sub,
		Email:    info.Email,
		Name:     info.Name,
		Username: info.PreferredUsername,
		Groups:   info.Groups,
	}, nil
}

func randomToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

// MockAuth signs everyone in as an admin scorer for local development
type MockAuth struct {
	*sessions
}

func NewMockAuth() *MockAuth {
	return &MockAuth{sessions: newSessions()}
}

// DevUser is the identity MockAuth hands out
var DevUser = User{
	ID:       "dev-scorer",
	Email:    "scorer@basket.local",
	Name:     "Dev Scorer",
	Username: "scorer",
	Groups:   []string{"users", adminGroup},
}

func (m *MockAuth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	u := DevUser
	sess := &Session{
		ID:        randomToken(),
		User:      &u,
		CreatedAt: m.now(),
		ExpiresAt: m.now().Add(24 * time.Hour),
	}
	m.add(sess)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Expires:  sess.ExpiresAt,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (m *MockAuth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (m *MockAuth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		m.remove(cookie.Value)
	}
	clearCookie(w, sessionCookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (m *MockAuth) Middleware(next http.HandlerFunc) http.HandlerFunc { return m.guard(next) }

func (m *MockAuth) RequireAdmin(next http.HandlerFunc) http.HandlerFunc { return m.requireAdmin(next) }

// AuthProvider is a common interface for authentication providers
type AuthProvider interface {
	LoginHandler(w http.ResponseWriter, r *http.Request)
	CallbackHandler(w http.ResponseWriter, r *http.Request)
	LogoutHandler(w http.ResponseWriter, r *http.Request)
	Middleware(next http.HandlerFunc) http.HandlerFunc
	RequireAdmin(next http.HandlerFunc) http.HandlerFunc
}

var (
	_ AuthProvider = (*AuthentikAuth)(nil)
	_ AuthProvider = (*MockAuth)(nil)
)
