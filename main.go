package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/96tm/simple-messenger/internal/auth"
	"github.com/96tm/simple-messenger/internal/config"
	"github.com/96tm/simple-messenger/internal/email"
	"github.com/96tm/simple-messenger/internal/handlers"
	"github.com/96tm/simple-messenger/internal/middleware"
	"github.com/96tm/simple-messenger/internal/store/sqlstore"
	"github.com/96tm/simple-messenger/internal/ws"
)

var baseURL = flag.String("base-url", "http://localhost:8080", "external base URL for confirmation links")

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment and defaults")
	}
	cfg := config.Load()

	store, err := sqlstore.New(cfg.DBDriver, cfg.DBSource)
	if err != nil {
		log.Fatal(err)
	}
	store.MaxMessageLength = cfg.MaxMessageLength

	cookies := sessions.NewCookieStore([]byte(cfg.SecretKey))
	cookies.Options.HttpOnly = true
	cookies.Options.Path = "/"

	signer := auth.NewSigner(cfg.SecretKey, cfg.TokenTTL)
	sender := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailSender)

	hub := ws.NewHub(store, cfg.ChatsPerPage, cfg.UsersPerPage)

	authHandler := &handlers.AuthHandler{
		Store:    store,
		Sessions: cookies,
		Signer:   signer,
		Email:    sender,
		BaseURL:  *baseURL,
	}
	chatHandler := &handlers.ChatHandler{
		Store:           store,
		Hub:             hub,
		Sessions:        cookies,
		ChatsPerPage:    cfg.ChatsPerPage,
		MessagesPerPage: cfg.MessagesPerPage,
	}
	userHandler := &handlers.UserHandler{
		Store:        store,
		UsersPerPage: cfg.UsersPerPage,
	}

	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	// Auth endpoints
	r.HandleFunc("/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/logout", authHandler.Logout).Methods("POST")
	r.HandleFunc("/confirm/{token}", authHandler.Confirm).Methods("GET")

	// API endpoints behind the auth middleware
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(store, cookies))
	api.HandleFunc("/chats", chatHandler.GetChats).Methods("GET")
	api.HandleFunc("/chats", chatHandler.CreateChat).Methods("POST")
	api.HandleFunc("/chats/search", chatHandler.SearchChats).Methods("GET")
	api.HandleFunc("/chats/{id}/messages", chatHandler.GetChatMessages).Methods("GET")
	api.HandleFunc("/chats/{id}/messages", chatHandler.PostMessage).Methods("POST")
	api.HandleFunc("/chats/{id}/remove", chatHandler.RemoveChat).Methods("POST")
	api.HandleFunc("/users", userHandler.GetUsers).Methods("GET")
	api.HandleFunc("/users/search", userHandler.SearchUsers).Methods("GET")
	api.HandleFunc("/contacts", userHandler.AddContacts).Methods("POST")

	// WebSocket endpoint
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		session, err := cookies.Get(r, middleware.SessionName)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		userID, ok := session.Values[middleware.SessionUserKey].(int)
		if !ok || userID == 0 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		user, err := store.UserByID(userID)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !user.Confirmed {
			http.Error(w, "Account not confirmed", http.StatusForbidden)
			return
		}
		ws.ServeWs(hub, w, r, user)
	})

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{*baseURL},
		AllowedMethods:   []string{"GET", "POST"},
		AllowCredentials: true,
	}).Handler(r)

	log.Println("Starting server on", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, handler))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
