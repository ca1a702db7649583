package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"

	"github.com/96tm/simple-messenger/internal/middleware"
	"github.com/96tm/simple-messenger/internal/models"
	"github.com/96tm/simple-messenger/internal/store"
	"github.com/96tm/simple-messenger/internal/ws"
)

type ChatHandler struct {
	Store    store.Store
	Hub      *ws.Hub
	Sessions *sessions.CookieStore

	ChatsPerPage    int
	MessagesPerPage int
}

// GetChats lists the caller's active chats, most recently modified first,
// with per-chat unread counts.
func (h *ChatHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	page := queryPage(r)

	chats, err := h.Store.ActiveChats(userID, page, h.ChatsPerPage)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		name, err := h.Store.ChatDisplayName(chat.ID, userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		count, err := h.Store.UnreadCount(chat.ID, userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		summaries = append(summaries, models.ChatSummary{
			ChatID:      chat.ID,
			ChatName:    name,
			UnreadCount: count,
		})
	}

	json.NewEncoder(w).Encode(map[string]any{"chats": summaries, "page": page})
}

// CreateChat creates a direct chat for one target user, or a named group
// chat for several.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req struct {
		Name    string `json:"name"`
		UserIDs []int  `json:"user_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.UserIDs) == 0 {
		http.Error(w, "At least one user is required", http.StatusBadRequest)
		return
	}

	var chat *models.Chat
	var err error
	if len(req.UserIDs) == 1 {
		chat, _, err = h.Store.GetOrCreateDirectChat(userID, req.UserIDs[0])
	} else {
		chat, err = h.Store.CreateGroupChat(req.Name, append(req.UserIDs, userID))
	}
	switch {
	case errors.Is(err, store.ErrSelfChat), errors.Is(err, store.ErrNameRequired):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(chat)
}

// GetChatMessages returns one page of the chat's history in creation
// order. It is a pure read; the read flags are untouched.
func (h *ChatHandler) GetChatMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	chatID, ok := h.memberChatID(w, r, userID)
	if !ok {
		return
	}

	page := queryPage(r)
	messages, err := h.Store.Messages(chatID, page, h.MessagesPerPage)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"messages": messages, "page": page})
}

// PostMessage appends a message to the chat and notifies the other
// connected members. The append commits independently of delivery.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	chatID, ok := h.memberChatID(w, r, userID)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	message, err := h.Store.AppendMessage(chatID, userID, req.Text)
	if errors.Is(err, store.ErrEmptyMessage) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if h.Hub != nil {
		h.Hub.NotifyMembers(chatID, userID)
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(message)
}

// RemoveChat hides the chat from the caller's chat list until new
// activity arrives or the counterpart is re-added as a contact.
func (h *ChatHandler) RemoveChat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	chatID, ok := h.memberChatID(w, r, userID)
	if !ok {
		return
	}

	if err := h.Store.MarkRemoved(userID, []int{chatID}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	session, _ := h.Sessions.Get(r, middleware.SessionName)
	if current, ok := session.Values[middleware.SessionChatKey].(int); ok && current == chatID {
		delete(session.Values, middleware.SessionChatKey)
		session.Save(r, w)
	}

	json.NewEncoder(w).Encode(map[string]any{"removed_chat": map[string]int{"chat_id": chatID}})
}

// SearchChats matches group-chat names and direct-chat counterpart
// usernames by case-insensitive substring.
func (h *ChatHandler) SearchChats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	pattern := r.URL.Query().Get("q")
	if pattern == "" {
		json.NewEncoder(w).Encode(map[string]any{"found_chats": []models.ChatSummary{}})
		return
	}

	page := queryPage(r)
	chats, err := h.Store.SearchChats(pattern, userID, page, h.ChatsPerPage)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		name, err := h.Store.ChatDisplayName(chat.ID, userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		summaries = append(summaries, models.ChatSummary{ChatID: chat.ID, ChatName: name})
	}
	json.NewEncoder(w).Encode(map[string]any{"found_chats": summaries, "page": page})
}

// memberChatID parses the chat id from the route and checks membership,
// writing the error response itself when the check fails.
func (h *ChatHandler) memberChatID(w http.ResponseWriter, r *http.Request, userID int) (int, bool) {
	chatID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid chat id", http.StatusBadRequest)
		return 0, false
	}
	if _, err := h.Store.ChatByID(chatID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Chat not found", http.StatusNotFound)
			return 0, false
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return 0, false
	}
	isMember, err := h.Store.IsMember(chatID, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return 0, false
	}
	if !isMember {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return 0, false
	}
	return chatID, true
}

func queryPage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
