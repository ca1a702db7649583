package models

import "time"

type User struct {
	ID          int       `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Password    string    `json:"-"`
	Confirmed   bool      `json:"confirmed"`
	Permissions int       `json:"-"`
	LastSeen    time.Time `json:"last_seen"`
	DateCreated time.Time `json:"date_created"`
}

// Contact is a directed edge from one user to another.
// A having B as a contact does not imply the reverse.
type Contact struct {
	UserID       int       `json:"user_id"`
	ContactID    int       `json:"contact_id"`
	ContactGroup string    `json:"contact_group,omitempty"`
	DateCreated  time.Time `json:"date_created"`
}

type Chat struct {
	ID           int       `json:"id"`
	Name         string    `json:"name,omitempty"`
	IsGroupChat  bool      `json:"is_group_chat"`
	DateCreated  time.Time `json:"date_created"`
	DateModified time.Time `json:"date_modified"`
}

type Message struct {
	ID                int       `json:"id"`
	ChatID            int       `json:"chat_id"`
	SenderID          int       `json:"-"`
	RecipientID       int       `json:"-"`
	SenderUsername    string    `json:"sender_username"`
	RecipientUsername string    `json:"recipient_username,omitempty"`
	Text              string    `json:"text"`
	WasRead           bool      `json:"was_read"`
	DateCreated       time.Time `json:"date_created"`
}

// ChatSummary is the list-view projection of a chat for one viewer:
// the display name is resolved against the viewer, and the unread
// count only covers messages not authored by them.
type ChatSummary struct {
	ChatID      int    `json:"chat_id"`
	ChatName    string `json:"chat_name"`
	UnreadCount int    `json:"unread_messages_count,omitempty"`
}
