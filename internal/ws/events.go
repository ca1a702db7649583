package ws

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/96tm/simple-messenger/internal/models"
	"github.com/96tm/simple-messenger/internal/store"
)

// handleEvent dispatches one inbound frame. Failures on a push path are
// logged and the push is dropped; the datastore write, if any, has
// already committed or failed on its own.
func (h *Hub) handleEvent(c *Client, envelope Envelope) {
	var err error
	switch envelope.Event {
	case "load_chats":
		err = h.loadChats(c, envelope.Data)
	case "load_messages":
		err = h.loadMessages(c, envelope.Data)
	case "choose_chat":
		err = h.chooseChat(c, envelope.Data)
	case "send_message":
		err = h.sendMessage(c, envelope.Data)
	case "remove_chat":
		err = h.removeChat(c, envelope.Data)
	case "flush_messages":
		err = h.flushMessages(c, envelope.Data)
	case "search_chats":
		err = h.searchChats(c, envelope.Data)
	case "search_users":
		err = h.searchUsers(c, envelope.Data)
	case "load_users":
		err = h.loadUsers(c, envelope.Data)
	case "add_contacts_and_chats":
		err = h.addContactsAndChats(c, envelope.Data)
	default:
		log.Printf("ws: unknown event %q from user %d", envelope.Event, c.userID)
		return
	}
	if err != nil {
		log.Printf("ws: %s from user %d: %v", envelope.Event, c.userID, err)
	}
}

func (h *Hub) loadChats(c *Client, data json.RawMessage) error {
	var req struct {
		PageNumber int `json:"page_number"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	chats, err := h.store.ActiveChats(c.userID, req.PageNumber, h.ChatsPerPage)
	if err != nil {
		return err
	}
	summaries, err := h.chatSummaries(chats, c.userID)
	if err != nil {
		return err
	}
	h.Emit(c.userID, "load_chats", map[string]any{
		"chats":       summaries,
		"page_number": req.PageNumber,
	})
	return nil
}

func (h *Hub) loadMessages(c *Client, data json.RawMessage) error {
	var req struct {
		ChatID int `json:"chat_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	if err := h.requireMember(req.ChatID, c.userID); err != nil {
		return err
	}
	messages, err := h.store.Messages(req.ChatID, 0, 0)
	if err != nil {
		return err
	}
	h.Emit(c.userID, "load_messages", map[string]any{
		"messages":         messages,
		"current_username": c.username,
	})
	return nil
}

// chooseChat opens a chat on this connection: the full history is pushed
// and the viewer's unread messages are flushed. Choosing the already-open
// chat closes it instead.
func (h *Hub) chooseChat(c *Client, data json.RawMessage) error {
	var req struct {
		ChatID int `json:"chat_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	if int(c.currentChatID.Load()) == req.ChatID {
		c.currentChatID.Store(0)
		h.Emit(c.userID, "choose_chat", map[string]any{
			"messages":         []models.Message{},
			"chat_name":        "",
			"chat_id":          req.ChatID,
			"current_username": c.username,
		})
		return nil
	}

	if err := h.requireMember(req.ChatID, c.userID); err != nil {
		return err
	}
	messages, err := h.store.Messages(req.ChatID, 0, 0)
	if err != nil {
		return err
	}
	if err := h.store.FlushMessages(req.ChatID, c.userID); err != nil {
		return err
	}
	name, err := h.store.ChatDisplayName(req.ChatID, c.userID)
	if err != nil {
		return err
	}
	c.currentChatID.Store(int64(req.ChatID))
	h.Emit(c.userID, "choose_chat", map[string]any{
		"messages":         messages,
		"chat_name":        name,
		"chat_id":          req.ChatID,
		"current_username": c.username,
	})
	return nil
}

// sendMessage appends the message and echoes it to the sender, then fans
// out chat updates to every other connected member without blocking.
func (h *Hub) sendMessage(c *Client, data json.RawMessage) error {
	var req struct {
		ChatID      int    `json:"chat_id"`
		MessageText string `json:"message_text"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	if err := h.requireMember(req.ChatID, c.userID); err != nil {
		return err
	}

	message, err := h.store.AppendMessage(req.ChatID, c.userID, req.MessageText)
	if errors.Is(err, store.ErrEmptyMessage) {
		return nil
	}
	if err != nil {
		return err
	}

	name, err := h.store.ChatDisplayName(req.ChatID, c.userID)
	if err != nil {
		return err
	}
	h.Emit(c.userID, "send_message", map[string]any{
		"message":          message,
		"chat_name":        name,
		"current_username": c.username,
	})

	h.NotifyMembers(req.ChatID, c.userID)
	return nil
}

func (h *Hub) removeChat(c *Client, data json.RawMessage) error {
	var req struct {
		ChatID int `json:"chat_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	if err := h.requireMember(req.ChatID, c.userID); err != nil {
		return err
	}
	if err := h.store.MarkRemoved(c.userID, []int{req.ChatID}); err != nil {
		return err
	}
	if int(c.currentChatID.Load()) == req.ChatID {
		c.currentChatID.Store(0)
	}
	h.Emit(c.userID, "remove_chat", map[string]any{"chat_id": req.ChatID})
	return nil
}

func (h *Hub) flushMessages(c *Client, data json.RawMessage) error {
	var req struct {
		ChatID int `json:"chat_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	if err := h.requireMember(req.ChatID, c.userID); err != nil {
		return err
	}
	return h.store.FlushMessages(req.ChatID, c.userID)
}

func (h *Hub) searchChats(c *Client, data json.RawMessage) error {
	var req struct {
		ChatName   string `json:"chat_name"`
		PageNumber int    `json:"page_number"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	chats, err := h.store.SearchChats(req.ChatName, c.userID, req.PageNumber, h.ChatsPerPage)
	if err != nil {
		return err
	}
	summaries, err := h.chatSummaries(chats, c.userID)
	if err != nil {
		return err
	}
	h.Emit(c.userID, "search_chats", map[string]any{
		"found_chats": summaries,
		"page_number": req.PageNumber,
	})
	return nil
}

func (h *Hub) searchUsers(c *Client, data json.RawMessage) error {
	var req struct {
		Username   string `json:"username"`
		PageNumber int    `json:"page_number"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	users, err := h.store.SearchUsers(req.Username, c.userID, req.PageNumber, h.UsersPerPage)
	if err != nil {
		return err
	}
	h.Emit(c.userID, "search_users", map[string]any{
		"found_users": userSummaries(users),
		"page_number": req.PageNumber,
	})
	return nil
}

func (h *Hub) loadUsers(c *Client, data json.RawMessage) error {
	var req struct {
		PageNumber int  `json:"page_number"`
		ClearArea  bool `json:"clear_area"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	users, err := h.store.OtherUsers(c.userID, req.PageNumber, h.UsersPerPage)
	if err != nil {
		return err
	}
	h.Emit(c.userID, "load_users", map[string]any{
		"added_users": userSummaries(users),
		"clear_area":  req.ClearArea,
	})
	return nil
}

// addContactsAndChats adds the given users as contacts, restores any chats
// with them the caller had removed, and creates missing direct chats. A
// chat created here starts hidden for the counterpart until a message
// arrives.
func (h *Hub) addContactsAndChats(c *Client, data json.RawMessage) error {
	var req struct {
		UserIDs []int `json:"user_ids"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	restored, err := h.store.RemovedChatsWith(c.userID, req.UserIDs)
	if err != nil {
		return err
	}
	restoredIDs := make([]int, len(restored))
	for i, chat := range restored {
		restoredIDs[i] = chat.ID
	}
	if err := h.store.UnmarkRemoved(c.userID, restoredIDs); err != nil {
		return err
	}
	addedChats, err := h.chatSummaries(restored, c.userID)
	if err != nil {
		return err
	}

	if err := h.store.AddContacts(c.userID, req.UserIDs, ""); err != nil {
		return err
	}
	for _, userID := range req.UserIDs {
		chat, created, err := h.store.GetOrCreateDirectChat(c.userID, userID)
		if err != nil {
			return err
		}
		if !created {
			continue
		}
		if err := h.store.MarkRemoved(userID, []int{chat.ID}); err != nil {
			return err
		}
		name, err := h.store.ChatDisplayName(chat.ID, c.userID)
		if err != nil {
			return err
		}
		addedChats = append(addedChats, models.ChatSummary{ChatID: chat.ID, ChatName: name})
	}

	h.Emit(c.userID, "add_contacts_and_chats", map[string]any{
		"added_chats": addedChats,
	})
	return nil
}

func (h *Hub) requireMember(chatID, userID int) error {
	if _, err := h.store.ChatByID(chatID); err != nil {
		return err
	}
	isMember, err := h.store.IsMember(chatID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return errors.New("not a chat member")
	}
	return nil
}

func (h *Hub) chatSummaries(chats []models.Chat, viewerID int) ([]models.ChatSummary, error) {
	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		name, err := h.store.ChatDisplayName(chat.ID, viewerID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, models.ChatSummary{ChatID: chat.ID, ChatName: name})
	}
	return summaries, nil
}

func userSummaries(users []models.User) []map[string]any {
	summaries := make([]map[string]any, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, map[string]any{
			"user_id":  user.ID,
			"username": user.Username,
		})
	}
	return summaries
}
