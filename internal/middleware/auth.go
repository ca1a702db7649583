package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/96tm/simple-messenger/internal/store"
)

// Session cookie name and value keys shared with the handlers.
const (
	SessionName    = "simple_messenger"
	SessionUserKey = "user_id"
	SessionChatKey = "current_chat_id"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Auth rejects requests without a logged-in session, rejects sessions whose
// account is not yet confirmed, and puts the authenticated user id into the
// request context. It also stamps the user's last-seen time.
func Auth(s store.Store, cookies *sessions.CookieStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := cookies.Get(r, SessionName)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			userID, ok := session.Values[SessionUserKey].(int)
			if !ok || userID == 0 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			user, err := s.UserByID(userID)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !user.Confirmed {
				http.Error(w, "Account not confirmed", http.StatusForbidden)
				return
			}
			if err := s.UpdateLastSeen(userID, time.Now().UTC()); err != nil {
				log.Printf("update last seen for user %d: %v", userID, err)
			}
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id set by Auth, or 0.
func UserID(r *http.Request) int {
	userID, _ := r.Context().Value(userIDKey).(int)
	return userID
}
