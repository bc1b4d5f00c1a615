package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func ok(w http.ResponseWriter, r *http.Request) {
	u := GetUser(r)
	w.Write([]byte(u.Username))
}

func loginCookie(t *testing.T, login http.HandlerFunc) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	login(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestMockAuthFlow(t *testing.T) {
	m := NewMockAuth()
	protected := m.Middleware(ok)

	// page without a cookie is redirected
	rec := httptest.NewRecorder()
	protected(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/auth/login" {
		t.Fatalf("expected redirect to login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	cookie := loginCookie(t, m.LoginHandler)
	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != DevUser.Username {
		t.Fatalf("expected dev user, got %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(cookie)
	m.LogoutHandler(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/history", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected logged out session to redirect, got %d", rec.Code)
	}
}

func TestAPIGetsJSON401(t *testing.T) {
	m := NewMockAuth()
	rec := httptest.NewRecorder()
	m.RequireAdmin(ok)(rec, httptest.NewRequest(http.MethodPost, "/api/import", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] == "" {
		t.Fatalf("expected JSON error body, got %q", rec.Body.String())
	}
}

func TestRequireAdmin(t *testing.T) {
	s := newSessions()
	s.add(&Session{ID: "coach", User: &User{Username: "coach", Groups: []string{"users"}}, ExpiresAt: s.now().Add(time.Hour)})
	s.add(&Session{ID: "admin", User: &User{Username: "admin", Groups: []string{adminGroup}}, ExpiresAt: s.now().Add(time.Hour)})

	cases := map[string]int{"coach": http.StatusForbidden, "admin": http.StatusOK}
	for id, want := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/clear", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: id})
		rec := httptest.NewRecorder()
		s.requireAdmin(ok)(rec, req)
		if rec.Code != want {
			t.Errorf("%s: expected %d, got %d", id, want, rec.Code)
		}
	}
}

func TestAuthentikCallback(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/application/o/token/":
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		case "/application/o/userinfo/":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"sub":                "u1",
				"preferred_username": "coach",
				"groups":             []string{adminGroup},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer idp.Close()

	a := NewAuthentikAuth(&AuthentikConfig{
		BaseURL:      idp.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/auth/callback",
	})

	rec := httptest.NewRecorder()
	a.LoginHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("expected state in authorize URL")
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: state})
	rec = httptest.NewRecorder()
	a.CallbackHandler(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect after callback, got %d: %s", rec.Code, rec.Body.String())
	}

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			session = c
		}
	}
	if session == nil {
		t.Fatal("no session cookie")
	}
	req = httptest.NewRequest(http.MethodPost, "/api/seed", nil)
	req.AddCookie(session)
	rec = httptest.NewRecorder()
	a.RequireAdmin(ok)(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "coach" {
		t.Fatalf("expected admin access, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestCallbackRejectsBadState(t *testing.T) {
	a := NewAuthentikAuth(&AuthentikConfig{BaseURL: "http://idp.invalid"})
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?state=x", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "y"})
	rec := httptest.NewRecorder()
	a.CallbackHandler(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
