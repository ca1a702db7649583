package handlers

import (
	"fmt"
	"net/http"
	"testing"
)

func TestCreateAndListChats(t *testing.T) {
	env := setupTestEnv(t)
	bob := env.createUser(t, "bob")
	arthur := env.createUser(t, "arthur")
	clair := env.createUser(t, "clair")
	cookies := env.login(t, bob)

	// One target user makes a direct chat.
	w := env.do(t, "POST", "/api/chats", map[string]any{"user_ids": []int{arthur.ID}}, cookies)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	direct := decodeBody(t, w)
	if direct["is_group_chat"] != false {
		t.Errorf("Expected a direct chat, got %v", direct)
	}

	// Several target users make a named group chat.
	w = env.do(t, "POST", "/api/chats", map[string]any{
		"name":     "knights",
		"user_ids": []int{arthur.ID, clair.ID},
	}, cookies)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	group := decodeBody(t, w)
	if group["is_group_chat"] != true || group["name"] != "knights" {
		t.Errorf("Expected group chat 'knights', got %v", group)
	}

	w = env.do(t, "GET", "/api/chats", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	chats := decodeBody(t, w)["chats"].([]any)
	if len(chats) != 2 {
		t.Errorf("Expected 2 chats, got %d", len(chats))
	}

	// Error cases.
	w = env.do(t, "POST", "/api/chats", map[string]any{"user_ids": []int{bob.ID}}, cookies)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for self chat, got %d", w.Code)
	}
	w = env.do(t, "POST", "/api/chats", map[string]any{"user_ids": []int{9999}}, cookies)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown user, got %d", w.Code)
	}
	w = env.do(t, "POST", "/api/chats", map[string]any{"user_ids": []int{}}, cookies)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for no users, got %d", w.Code)
	}
	w = env.do(t, "POST", "/api/chats", map[string]any{
		"name":     "  ",
		"user_ids": []int{arthur.ID, clair.ID},
	}, cookies)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for blank group name, got %d", w.Code)
	}
}

func TestPostAndGetMessages(t *testing.T) {
	env := setupTestEnv(t)
	bob := env.createUser(t, "bob")
	arthur := env.createUser(t, "arthur")
	clair := env.createUser(t, "clair")
	chat, _, err := env.store.GetOrCreateDirectChat(bob.ID, arthur.ID)
	if err != nil {
		t.Fatalf("GetOrCreateDirectChat failed: %v", err)
	}
	cookies := env.login(t, bob)
	messagesURL := fmt.Sprintf("/api/chats/%d/messages", chat.ID)

	w := env.do(t, "POST", messagesURL, map[string]string{"text": "  hi arthur  "}, cookies)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	message := decodeBody(t, w)
	if message["text"] != "hi arthur" {
		t.Errorf("Expected trimmed text, got %v", message["text"])
	}
	if message["sender_username"] != "bob" || message["recipient_username"] != "arthur" {
		t.Errorf("Unexpected message attribution: %v", message)
	}

	w = env.do(t, "GET", messagesURL, nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	messages := decodeBody(t, w)["messages"].([]any)
	if len(messages) != 1 {
		t.Errorf("Expected 1 message, got %d", len(messages))
	}

	// Fetching history is a pure read; arthur's unread count stands.
	count, _ := env.store.UnreadCount(chat.ID, arthur.ID)
	if count != 1 {
		t.Errorf("Expected 1 unread for arthur, got %d", count)
	}

	w = env.do(t, "POST", messagesURL, map[string]string{"text": "   "}, cookies)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for blank message, got %d", w.Code)
	}

	// Non-members are turned away.
	clairCookies := env.login(t, clair)
	w = env.do(t, "GET", messagesURL, nil, clairCookies)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for non-member, got %d", w.Code)
	}

	w = env.do(t, "GET", "/api/chats/9999/messages", nil, cookies)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown chat, got %d", w.Code)
	}
	w = env.do(t, "GET", "/api/chats/abc/messages", nil, cookies)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad chat id, got %d", w.Code)
	}
}

func TestRemoveChat(t *testing.T) {
	env := setupTestEnv(t)
	bob := env.createUser(t, "bob")
	arthur := env.createUser(t, "arthur")
	chat, _, _ := env.store.GetOrCreateDirectChat(bob.ID, arthur.ID)
	cookies := env.login(t, bob)

	w := env.do(t, "POST", fmt.Sprintf("/api/chats/%d/remove", chat.ID), nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	removed := decodeBody(t, w)["removed_chat"].(map[string]any)
	if int(removed["chat_id"].(float64)) != chat.ID {
		t.Errorf("Unexpected response: %v", removed)
	}

	w = env.do(t, "GET", "/api/chats", nil, cookies)
	if chats := decodeBody(t, w)["chats"].([]any); len(chats) != 0 {
		t.Errorf("Expected no chats after removal, got %d", len(chats))
	}
}

func TestSearchChatsEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	bob := env.createUser(t, "bob")
	arthur := env.createUser(t, "arthur")
	clair := env.createUser(t, "clair")
	env.store.GetOrCreateDirectChat(bob.ID, arthur.ID)
	env.store.GetOrCreateDirectChat(bob.ID, clair.ID)
	cookies := env.login(t, bob)

	w := env.do(t, "GET", "/api/chats/search?q=art", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	found := decodeBody(t, w)["found_chats"].([]any)
	if len(found) != 1 {
		t.Fatalf("Expected 1 chat, got %d", len(found))
	}
	if found[0].(map[string]any)["chat_name"] != "arthur" {
		t.Errorf("Unexpected search result: %v", found[0])
	}

	// A blank query returns nothing rather than everything.
	w = env.do(t, "GET", "/api/chats/search", nil, cookies)
	if found := decodeBody(t, w)["found_chats"].([]any); len(found) != 0 {
		t.Errorf("Expected no chats for blank query, got %d", len(found))
	}
}
