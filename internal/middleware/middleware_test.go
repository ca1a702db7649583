package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"

	"github.com/96tm/simple-messenger/internal/models"
	"github.com/96tm/simple-messenger/internal/store/sqlstore"
)

func setupAuthTest(t *testing.T) (*sqlstore.SQLStore, *sessions.CookieStore, *models.User) {
	t.Helper()
	s, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	user := &models.User{Username: "bob", Email: "bob@bob.bob", Password: "secret", Confirmed: true}
	if err := s.CreateUser(user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return s, sessions.NewCookieStore([]byte("test-secret")), user
}

// loginRequest builds a request carrying a session cookie for the user.
func loginRequest(t *testing.T, cookies *sessions.CookieStore, userID int) *http.Request {
	t.Helper()
	r := httptest.NewRequest("GET", "/api/chats", nil)
	w := httptest.NewRecorder()
	session, _ := cookies.Get(r, SessionName)
	session.Values[SessionUserKey] = userID
	if err := session.Save(r, w); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	authed := httptest.NewRequest("GET", "/api/chats", nil)
	for _, cookie := range w.Result().Cookies() {
		authed.AddCookie(cookie)
	}
	return authed
}

func TestAuthRejectsAnonymous(t *testing.T) {
	s, cookies, _ := setupAuthTest(t)

	handler := Auth(s, cookies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached without a session")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/chats", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}

	// A session pointing at a deleted account is just as dead.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, loginRequest(t, cookies, 9999))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for unknown user, got %d", w.Code)
	}
}

func TestAuthRejectsUnconfirmed(t *testing.T) {
	s, cookies, _ := setupAuthTest(t)
	unconfirmed := &models.User{Username: "arthur", Email: "arthur@arthur.arthur", Password: "secret"}
	if err := s.CreateUser(unconfirmed); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	handler := Auth(s, cookies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached for an unconfirmed account")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, loginRequest(t, cookies, unconfirmed.ID))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", w.Code)
	}
}

func TestAuthPassesUserID(t *testing.T) {
	s, cookies, user := setupAuthTest(t)

	var gotUserID int
	handler := Auth(s, cookies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserID(r)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, loginRequest(t, cookies, user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if gotUserID != user.ID {
		t.Errorf("Expected user id %d in context, got %d", user.ID, gotUserID)
	}

	// The request stamped the user's last-seen time.
	got, err := s.UserByID(user.ID)
	if err != nil {
		t.Fatalf("UserByID failed: %v", err)
	}
	if got.LastSeen.Before(user.LastSeen) {
		t.Errorf("Expected last seen to advance, got %v", got.LastSeen)
	}
}

func TestUserIDWithoutAuth(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if got := UserID(r); got != 0 {
		t.Errorf("Expected 0 for unauthenticated request, got %d", got)
	}
}
