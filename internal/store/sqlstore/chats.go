package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/96tm/simple-messenger/internal/models"
	"github.com/96tm/simple-messenger/internal/store"
)

const chatColumns = `id, COALESCE(name, ''), is_group_chat, date_created, date_modified`

// GetOrCreateDirectChat returns the unique two-party chat between the pair,
// creating it and both memberships if absent. Order-independent. The bool
// reports whether this call created the chat.
//
// Uniqueness is enforced by a canonical "loID:hiID" key on the chats row, so
// concurrent calls for the same pair race on the unique index; the loser
// re-reads the winner's chat.
func (s *SQLStore) GetOrCreateDirectChat(userA, userB int) (*models.Chat, bool, error) {
	if userA == userB {
		return nil, false, fmt.Errorf("users %d and %d: %w", userA, userB, store.ErrSelfChat)
	}
	for _, id := range []int{userA, userB} {
		if _, err := s.UserByID(id); err != nil {
			return nil, false, err
		}
	}

	key := directChatKey(userA, userB)
	chat, err := s.directChatByKey(key)
	if err == nil {
		return chat, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	chat, err = s.createDirectChat(key, userA, userB)
	if err == nil {
		return chat, true, nil
	}
	if !isUniqueViolation(err) {
		return nil, false, err
	}
	// Lost the race to a concurrent creator.
	chat, err = s.directChatByKey(key)
	return chat, false, err
}

func directChatKey(userA, userB int) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

func (s *SQLStore) directChatByKey(key string) (*models.Chat, error) {
	query := s.rebind("SELECT " + chatColumns + " FROM chats WHERE direct_key = ?")
	return scanChat(s.db.QueryRow(query, key))
}

func (s *SQLStore) createDirectChat(key string, userA, userB int) (*models.Chat, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	chat := &models.Chat{DateCreated: now, DateModified: now}
	insert := s.rebind(`INSERT INTO chats (name, is_group_chat, direct_key, date_created, date_modified)
		VALUES (NULL, FALSE, ?, ?, ?) RETURNING id`)
	if err := tx.QueryRow(insert, key, now, now).Scan(&chat.ID); err != nil {
		return nil, err
	}
	link := s.rebind(`INSERT INTO user_chat_link (user_id, chat_id)
		VALUES (?, ?) ON CONFLICT (user_id, chat_id) DO NOTHING`)
	for _, id := range []int{userA, userB} {
		if _, err := tx.Exec(link, id, chat.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return chat, nil
}

// CreateGroupChat creates a named chat with the given members.
func (s *SQLStore) CreateGroupChat(name string, memberIDs []int) (*models.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrNameRequired
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	chat := &models.Chat{Name: name, IsGroupChat: true, DateCreated: now, DateModified: now}
	insert := s.rebind(`INSERT INTO chats (name, is_group_chat, date_created, date_modified)
		VALUES (?, TRUE, ?, ?) RETURNING id`)
	if err := tx.QueryRow(insert, name, now, now).Scan(&chat.ID); err != nil {
		return nil, err
	}
	link := s.rebind(`INSERT INTO user_chat_link (user_id, chat_id)
		VALUES (?, ?) ON CONFLICT (user_id, chat_id) DO NOTHING`)
	for _, id := range memberIDs {
		if _, err := tx.Exec(link, id, chat.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *SQLStore) ChatByID(id int) (*models.Chat, error) {
	query := s.rebind("SELECT " + chatColumns + " FROM chats WHERE id = ?")
	chat, err := scanChat(s.db.QueryRow(query, id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("chat %d: %w", id, store.ErrNotFound)
	}
	return chat, err
}

func (s *SQLStore) ChatMembers(chatID int) ([]models.User, error) {
	query := s.rebind("SELECT " + userColumns + ` FROM users u
		JOIN user_chat_link l ON u.id = l.user_id
		WHERE l.chat_id = ? ORDER BY u.username ASC`)
	rows, err := s.db.Query(query, chatID)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (s *SQLStore) IsMember(chatID, userID int) (bool, error) {
	var exists bool
	query := s.rebind("SELECT EXISTS(SELECT 1 FROM user_chat_link WHERE chat_id = ? AND user_id = ?)")
	err := s.db.QueryRow(query, chatID, userID).Scan(&exists)
	return exists, err
}

// ChatDisplayName returns the chat's stored name if set, otherwise the
// username of the member who is not the viewer.
func (s *SQLStore) ChatDisplayName(chatID, viewerID int) (string, error) {
	chat, err := s.ChatByID(chatID)
	if err != nil {
		return "", err
	}
	if chat.Name != "" {
		return chat.Name, nil
	}
	var username string
	query := s.rebind(`SELECT u.username FROM users u
		JOIN user_chat_link l ON u.id = l.user_id
		WHERE l.chat_id = ? AND u.id != ?
		ORDER BY u.username ASC LIMIT 1`)
	err = s.db.QueryRow(query, chatID, viewerID).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("chat %d counterpart: %w", chatID, store.ErrNotFound)
	}
	return username, err
}

// MarkRemoved hides the given chats from the user's active list.
// Re-marking an already removed chat is a no-op.
func (s *SQLStore) MarkRemoved(userID int, chatIDs []int) error {
	query := s.rebind(`INSERT INTO removed_chats (user_id, chat_id)
		VALUES (?, ?) ON CONFLICT (user_id, chat_id) DO NOTHING`)
	for _, chatID := range chatIDs {
		if _, err := s.db.Exec(query, userID, chatID); err != nil {
			return err
		}
	}
	return nil
}

// UnmarkRemoved deletes the user's removal markers for the given chats.
func (s *SQLStore) UnmarkRemoved(userID int, chatIDs []int) error {
	if len(chatIDs) == 0 {
		return nil
	}
	query := s.rebind(`DELETE FROM removed_chats WHERE user_id = ? AND chat_id IN (` +
		placeholders(len(chatIDs)) + `)`)
	args := append([]any{userID}, intArgs(chatIDs)...)
	_, err := s.db.Exec(query, args...)
	return err
}

// ActiveChats returns the user's chats without an active removal marker,
// most recently modified first.
func (s *SQLStore) ActiveChats(userID, page, perPage int) ([]models.Chat, error) {
	query := s.rebind(`
		SELECT c.id, COALESCE(c.name, ''), c.is_group_chat, c.date_created, c.date_modified
		FROM chats c
		JOIN user_chat_link l ON l.chat_id = c.id
		WHERE l.user_id = ?
		AND c.id NOT IN (SELECT chat_id FROM removed_chats WHERE user_id = ?)
		ORDER BY c.date_modified DESC, c.id DESC
		LIMIT ? OFFSET ?
	`)
	limit, offset := pageBounds(page, perPage)
	rows, err := s.db.Query(query, userID, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectChats(rows)
}

// RemovedChatsWith returns the user's removed chats shared with any of the
// given users. Used when re-adding contacts restores their hidden chats.
func (s *SQLStore) RemovedChatsWith(userID int, userIDs []int) ([]models.Chat, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := s.rebind(`
		SELECT DISTINCT c.id, COALESCE(c.name, ''), c.is_group_chat, c.date_created, c.date_modified
		FROM chats c
		JOIN user_chat_link mine ON mine.chat_id = c.id AND mine.user_id = ?
		JOIN removed_chats r ON r.chat_id = c.id AND r.user_id = ?
		JOIN user_chat_link other ON other.chat_id = c.id
		WHERE other.user_id IN (` + placeholders(len(userIDs)) + `)
	`)
	args := append([]any{userID, userID}, intArgs(userIDs)...)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return collectChats(rows)
}

// SearchChats matches the user's chats by case-insensitive substring:
// group chats on the stored name, direct chats on the counterpart's
// username. The searching user's own username never matches.
func (s *SQLStore) SearchChats(pattern string, userID, page, perPage int) ([]models.Chat, error) {
	query := s.rebind(`
		SELECT DISTINCT c.id, COALESCE(c.name, ''), c.is_group_chat, c.date_created, c.date_modified
		FROM chats c
		JOIN user_chat_link l ON l.chat_id = c.id AND l.user_id = ?
		WHERE LOWER(COALESCE(c.name, '')) LIKE LOWER(?)
		OR (NOT c.is_group_chat AND EXISTS (
			SELECT 1 FROM user_chat_link l2
			JOIN users u2 ON u2.id = l2.user_id
			WHERE l2.chat_id = c.id AND l2.user_id != ?
			AND LOWER(u2.username) LIKE LOWER(?)
		))
		ORDER BY c.date_modified DESC, c.id DESC
		LIMIT ? OFFSET ?
	`)
	like := "%" + pattern + "%"
	limit, offset := pageBounds(page, perPage)
	rows, err := s.db.Query(query, userID, like, userID, like, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectChats(rows)
}

func scanChat(row *sql.Row) (*models.Chat, error) {
	var chat models.Chat
	err := row.Scan(&chat.ID, &chat.Name, &chat.IsGroupChat, &chat.DateCreated, &chat.DateModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chat: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func collectChats(rows *sql.Rows) ([]models.Chat, error) {
	defer rows.Close()
	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		if err := rows.Scan(&chat.ID, &chat.Name, &chat.IsGroupChat,
			&chat.DateCreated, &chat.DateModified); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}
