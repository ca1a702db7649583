package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/96tm/simple-messenger/internal/models"
	"github.com/96tm/simple-messenger/internal/store"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub maps authenticated user ids to their live connection. A second
// connection for the same user replaces the first (last-connection-wins).
// Pushes to disconnected or slow peers are dropped, never queued.
type Hub struct {
	store store.Store

	ChatsPerPage int
	UsersPerPage int

	mu      sync.RWMutex
	clients map[int]*Client
}

func NewHub(s store.Store, chatsPerPage, usersPerPage int) *Hub {
	return &Hub{
		store:        s,
		ChatsPerPage: chatsPerPage,
		UsersPerPage: usersPerPage,
		clients:      make(map[int]*Client),
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	if old, ok := h.clients[client.userID]; ok {
		close(old.send)
	}
	h.clients[client.userID] = client
	h.mu.Unlock()

	// On connect, push pending unread chats (and the open chat's
	// messages) so the client starts in sync.
	go h.pushChatUpdates(client.userID)
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[client.userID]; ok && current == client {
		delete(h.clients, client.userID)
		close(client.send)
	}
}

func (h *Hub) client(userID int) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[userID]
}

// Connected reports whether the user has a live connection.
func (h *Hub) Connected(userID int) bool {
	return h.client(userID) != nil
}

// Emit pushes an event to the user's connection, if any. Delivery is
// best effort: an offline user or a full send buffer drops the push.
func (h *Hub) Emit(userID int, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("ws: marshal %s payload: %v", event, err)
		return
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		log.Printf("ws: marshal %s envelope: %v", event, err)
		return
	}

	h.mu.RLock()
	client, ok := h.clients[userID]
	if ok {
		select {
		case client.send <- payload:
			ok = true
		default:
			ok = false
		}
	}
	h.mu.RUnlock()

	if client != nil && !ok {
		// The send buffer is full; the connection is beyond saving.
		h.unregister(client)
	}
}

// NotifyMembers pushes chat updates to every connected member of the chat
// except the originator, each on its own goroutine so the caller never
// blocks on delivery. Failures are logged and dropped.
func (h *Hub) NotifyMembers(chatID, exceptUserID int) {
	members, err := h.store.ChatMembers(chatID)
	if err != nil {
		log.Printf("ws: members of chat %d: %v", chatID, err)
		return
	}
	for _, member := range members {
		if member.ID == exceptUserID || !h.Connected(member.ID) {
			continue
		}
		go h.pushChatUpdates(member.ID)
	}
}

// pushChatUpdates computes the user's chats with pending unread messages
// and emits a chat_updated event, including full message bodies for the
// chat currently open on their connection. Errors are logged and the
// push is dropped.
func (h *Hub) pushChatUpdates(userID int) {
	client := h.client(userID)
	if client == nil {
		return
	}

	user, err := h.store.UserByID(userID)
	if err != nil {
		log.Printf("ws: chat update for user %d: %v", userID, err)
		return
	}

	chats, err := h.store.ActiveChats(userID, 0, 0)
	if err != nil {
		log.Printf("ws: chat update for user %d: %v", userID, err)
		return
	}

	currentChatID := int(client.currentChatID.Load())
	summaries := make([]models.ChatSummary, 0, len(chats))
	currentMessages := []models.Message{}
	for _, chat := range chats {
		count, err := h.store.UnreadCount(chat.ID, userID)
		if err != nil {
			log.Printf("ws: unread count for chat %d: %v", chat.ID, err)
			return
		}
		if count == 0 {
			continue
		}
		name, err := h.store.ChatDisplayName(chat.ID, userID)
		if err != nil {
			log.Printf("ws: display name for chat %d: %v", chat.ID, err)
			return
		}
		summaries = append(summaries, models.ChatSummary{
			ChatID:      chat.ID,
			ChatName:    name,
			UnreadCount: count,
		})
		if chat.ID == currentChatID {
			currentMessages, err = h.store.UnreadMessages(chat.ID, userID)
			if err != nil {
				log.Printf("ws: unread messages for chat %d: %v", chat.ID, err)
				return
			}
		}
	}
	if len(summaries) == 0 {
		return
	}

	h.Emit(userID, "chat_updated", map[string]any{
		"chats":                 summaries,
		"current_chat_messages": currentMessages,
		"current_username":      user.Username,
	})
}
