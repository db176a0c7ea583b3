package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func withCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSessionRoundTrip(t *testing.T) {
	SetSecret("test-secret")
	t.Cleanup(func() { SetSecret("") })

	rec := httptest.NewRecorder()
	CreateSession(rec, 42)
	uid, ok := ParseSession(withCookies(rec))
	if !ok || uid != 42 {
		t.Fatalf("ParseSession = %d, %v", uid, ok)
	}

	forged := httptest.NewRequest(http.MethodGet, "/", nil)
	forged.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "43." + sign("42")})
	if _, ok := ParseSession(forged); ok {
		t.Fatal("forged session accepted")
	}

	SetSecret("rotated")
	if _, ok := ParseSession(withCookies(rec)); ok {
		t.Fatal("session signed with old secret accepted")
	}
}

func TestRequireAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := RequireAuth(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list?page=2", nil))
	if rec.Code != http.StatusSeeOther || !strings.HasPrefix(rec.Header().Get("Location"), "/login?next=%2Flist") {
		t.Fatalf("redirect = %d %q", rec.Code, rec.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("json status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), 7))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("authenticated status = %d", rec.Code)
	}

	SetUserVerifier(func(_ context.Context, uid uint) bool { return uid != 7 })
	t.Cleanup(func() { SetUserVerifier(nil) })
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("vanished user status = %d", rec.Code)
	}
}

func TestFlashes(t *testing.T) {
	rec := httptest.NewRecorder()
	SetFlash(rec, FlashSuccess, "Form submitted successfully!")
	SetFlash(rec, FlashWarning, "There was an issue processing trainees, but the form was submitted successfully.")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	cookies := rec.Result().Cookies()
	req.AddCookie(cookies[len(cookies)-1])

	out := httptest.NewRecorder()
	got := PopFlashes(out, req)
	if len(got) != 2 || got[0].Category != FlashSuccess || got[1].Category != FlashWarning {
		t.Fatalf("flashes = %+v", got)
	}
	cleared := out.Result().Cookies()
	if len(cleared) != 1 || cleared[0].Value != "" {
		t.Fatalf("flash cookie not cleared: %+v", cleared)
	}

	tampered := httptest.NewRequest(http.MethodGet, "/", nil)
	tampered.AddCookie(&http.Cookie{Name: flashCookieName, Value: "W10.bad"})
	if PopFlashes(httptest.NewRecorder(), tampered) != nil {
		t.Fatal("tampered flash accepted")
	}
}
