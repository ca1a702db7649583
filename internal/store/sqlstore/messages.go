package sqlstore

import (
	"database/sql"
	"strings"
	"time"

	"github.com/96tm/simple-messenger/internal/models"
	"github.com/96tm/simple-messenger/internal/store"
)

const messageColumns = `m.id, m.chat_id, m.sender_id, COALESCE(m.recipient_id, 0),
	s.username, COALESCE(r.username, ''), m.text, m.was_read, m.date_created`

const messageJoins = `
	FROM messages m
	JOIN users s ON s.id = m.sender_id
	LEFT JOIN users r ON r.id = m.recipient_id`

// AppendMessage validates and stores a message. In a single transaction it
// inserts the row, bumps the chat's modification time and deletes the other
// members' removal markers, so a hidden chat resurfaces on new activity.
func (s *SQLStore) AppendMessage(chatID, senderID int, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, store.ErrEmptyMessage
	}
	if runes := []rune(text); len(runes) > s.MaxMessageLength {
		text = string(runes[:s.MaxMessageLength])
	}

	chat, err := s.ChatByID(chatID)
	if err != nil {
		return nil, err
	}
	sender, err := s.UserByID(senderID)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		ChatID:         chatID,
		SenderID:       senderID,
		SenderUsername: sender.Username,
		Text:           text,
		DateCreated:    time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var recipient sql.NullInt64
	if !chat.IsGroupChat {
		query := s.rebind(`SELECT u.id, u.username FROM users u
			JOIN user_chat_link l ON u.id = l.user_id
			WHERE l.chat_id = ? AND u.id != ? LIMIT 1`)
		var id int
		var username string
		err := tx.QueryRow(query, chatID, senderID).Scan(&id, &username)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		if err == nil {
			recipient = sql.NullInt64{Int64: int64(id), Valid: true}
			message.RecipientID = id
			message.RecipientUsername = username
		}
	}

	insert := s.rebind(`INSERT INTO messages (chat_id, sender_id, recipient_id, text, was_read, date_created)
		VALUES (?, ?, ?, ?, FALSE, ?) RETURNING id`)
	if err := tx.QueryRow(insert, chatID, senderID, recipient,
		message.Text, message.DateCreated).Scan(&message.ID); err != nil {
		return nil, err
	}

	touch := s.rebind("UPDATE chats SET date_modified = ? WHERE id = ?")
	if _, err := tx.Exec(touch, message.DateCreated, chatID); err != nil {
		return nil, err
	}

	unhide := s.rebind("DELETE FROM removed_chats WHERE chat_id = ? AND user_id != ?")
	if _, err := tx.Exec(unhide, chatID, senderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return message, nil
}

// Messages returns the chat's messages in creation order. It is a pure
// read; callers opening a chat pair it with FlushMessages.
func (s *SQLStore) Messages(chatID, page, perPage int) ([]models.Message, error) {
	if _, err := s.ChatByID(chatID); err != nil {
		return nil, err
	}
	query := s.rebind(`SELECT ` + messageColumns + messageJoins + `
		WHERE m.chat_id = ?
		ORDER BY m.date_created ASC, m.id ASC
		LIMIT ? OFFSET ?`)
	limit, offset := pageBounds(page, perPage)
	rows, err := s.db.Query(query, chatID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// UnreadMessages returns the chat's messages not authored by the viewer and
// not yet read, without marking them. Used for badge counts and previews.
func (s *SQLStore) UnreadMessages(chatID, viewerID int) ([]models.Message, error) {
	query := s.rebind(`SELECT ` + messageColumns + messageJoins + `
		WHERE m.chat_id = ? AND m.sender_id != ? AND NOT m.was_read
		ORDER BY m.date_created ASC, m.id ASC`)
	rows, err := s.db.Query(query, chatID, viewerID)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func (s *SQLStore) UnreadCount(chatID, viewerID int) (int, error) {
	var count int
	query := s.rebind(`SELECT COUNT(*) FROM messages
		WHERE chat_id = ? AND sender_id != ? AND NOT was_read`)
	err := s.db.QueryRow(query, chatID, viewerID).Scan(&count)
	return count, err
}

// FlushMessages marks the viewer's unread messages in the chat as read.
// The read flag only ever transitions false to true; re-flushing is a no-op.
func (s *SQLStore) FlushMessages(chatID, viewerID int) error {
	query := s.rebind(`UPDATE messages SET was_read = TRUE
		WHERE chat_id = ? AND sender_id != ? AND NOT was_read`)
	_, err := s.db.Exec(query, chatID, viewerID)
	return err
}

func collectMessages(rows *sql.Rows) ([]models.Message, error) {
	defer rows.Close()
	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.RecipientID,
			&m.SenderUsername, &m.RecipientUsername, &m.Text, &m.WasRead,
			&m.DateCreated); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
