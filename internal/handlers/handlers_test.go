package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"github.com/96tm/simple-messenger/internal/auth"
	"github.com/96tm/simple-messenger/internal/email"
	"github.com/96tm/simple-messenger/internal/middleware"
	"github.com/96tm/simple-messenger/internal/models"
	"github.com/96tm/simple-messenger/internal/store/sqlstore"
	"github.com/96tm/simple-messenger/internal/ws"
)

type testEnv struct {
	store  *sqlstore.SQLStore
	signer *auth.Signer
	router *mux.Router
}

// setupTestEnv wires the handlers onto a router the way main does,
// backed by an in-memory database and a stdout email sender.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cookies := sessions.NewCookieStore([]byte("test-secret"))
	signer := auth.NewSigner("test-secret", time.Hour)
	sender := email.NewSender("", "587", "", "", "admin@test.local")
	hub := ws.NewHub(s, 10, 10)

	authHandler := &AuthHandler{
		Store:    s,
		Sessions: cookies,
		Signer:   signer,
		Email:    sender,
		BaseURL:  "http://localhost:8080",
	}
	chatHandler := &ChatHandler{
		Store:           s,
		Hub:             hub,
		Sessions:        cookies,
		ChatsPerPage:    10,
		MessagesPerPage: 20,
	}
	userHandler := &UserHandler{Store: s, UsersPerPage: 10}

	r := mux.NewRouter()
	r.HandleFunc("/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/logout", authHandler.Logout).Methods("POST")
	r.HandleFunc("/confirm/{token}", authHandler.Confirm).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(s, cookies))
	api.HandleFunc("/chats", chatHandler.GetChats).Methods("GET")
	api.HandleFunc("/chats", chatHandler.CreateChat).Methods("POST")
	api.HandleFunc("/chats/search", chatHandler.SearchChats).Methods("GET")
	api.HandleFunc("/chats/{id}/messages", chatHandler.GetChatMessages).Methods("GET")
	api.HandleFunc("/chats/{id}/messages", chatHandler.PostMessage).Methods("POST")
	api.HandleFunc("/chats/{id}/remove", chatHandler.RemoveChat).Methods("POST")
	api.HandleFunc("/users", userHandler.GetUsers).Methods("GET")
	api.HandleFunc("/users/search", userHandler.SearchUsers).Methods("GET")
	api.HandleFunc("/contacts", userHandler.AddContacts).Methods("POST")

	return &testEnv{store: s, signer: signer, router: r}
}

// createUser stores a confirmed user whose password is "secret".
func (e *testEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	user := &models.User{
		Username:  username,
		Email:     username + "@" + username + "." + username,
		Password:  string(hashed),
		Confirmed: true,
	}
	if err := e.store.CreateUser(user); err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

// login posts the user's credentials and returns the session cookies.
func (e *testEnv) login(t *testing.T, user *models.User) []*http.Cookie {
	t.Helper()
	w := e.do(t, "POST", "/login", map[string]string{
		"email":    user.Email,
		"password": "secret",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Login failed with status %d: %s", w.Code, w.Body.String())
	}
	return w.Result().Cookies()
}

func (e *testEnv) do(t *testing.T, method, target string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, target, reader)
	r.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}
