package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/96tm/simple-messenger/internal/middleware"
	"github.com/96tm/simple-messenger/internal/models"
	"github.com/96tm/simple-messenger/internal/store"
)

type UserHandler struct {
	Store        store.Store
	UsersPerPage int
}

// GetUsers lists every user except the caller, ordered by username.
func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	page := queryPage(r)

	users, err := h.Store.OtherUsers(userID, page, h.UsersPerPage)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"users": userList(users), "page": page})
}

// SearchUsers matches usernames by case-insensitive substring,
// excluding the caller.
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	pattern := r.URL.Query().Get("q")
	if pattern == "" {
		json.NewEncoder(w).Encode(map[string]any{"found_users": []map[string]any{}})
		return
	}

	page := queryPage(r)
	users, err := h.Store.SearchUsers(pattern, userID, page, h.UsersPerPage)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"found_users": userList(users), "page": page})
}

// AddContacts adds the given users to the caller's contacts, restores any
// chats with them the caller had removed, and creates missing direct chats.
func (h *UserHandler) AddContacts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req struct {
		UserIDs      []int  `json:"user_ids"`
		ContactGroup string `json:"contact_group"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.UserIDs) == 0 {
		http.Error(w, "At least one user is required", http.StatusBadRequest)
		return
	}

	restored, err := h.Store.RemovedChatsWith(userID, req.UserIDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	restoredIDs := make([]int, len(restored))
	for i, chat := range restored {
		restoredIDs[i] = chat.ID
	}
	if err := h.Store.UnmarkRemoved(userID, restoredIDs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.Store.AddContacts(userID, req.UserIDs, req.ContactGroup); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	addedChats := restored
	for _, targetID := range req.UserIDs {
		chat, created, err := h.Store.GetOrCreateDirectChat(userID, targetID)
		if errors.Is(err, store.ErrSelfChat) {
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if created {
			// The counterpart sees the chat once a message arrives.
			if err := h.Store.MarkRemoved(targetID, []int{chat.ID}); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			addedChats = append(addedChats, *chat)
		}
	}

	summaries := make([]models.ChatSummary, 0, len(addedChats))
	for _, chat := range addedChats {
		name, err := h.Store.ChatDisplayName(chat.ID, userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		summaries = append(summaries, models.ChatSummary{ChatID: chat.ID, ChatName: name})
	}
	json.NewEncoder(w).Encode(map[string]any{"added_chats": summaries})
}

func userList(users []models.User) []map[string]any {
	list := make([]map[string]any, 0, len(users))
	for _, user := range users {
		list = append(list, map[string]any{
			"user_id":  user.ID,
			"username": user.Username,
		})
	}
	return list
}
