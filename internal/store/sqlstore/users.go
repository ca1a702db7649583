package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/96tm/simple-messenger/internal/models"
	"github.com/96tm/simple-messenger/internal/store"
)

const userColumns = `id, username, email, password, confirmed, permissions,
	last_seen, date_created`

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password,
		&user.Confirmed, &user.Permissions, &user.LastSeen, &user.DateCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLStore) CreateUser(user *models.User) error {
	if user.DateCreated.IsZero() {
		user.DateCreated = time.Now().UTC()
	}
	if user.LastSeen.IsZero() {
		user.LastSeen = user.DateCreated
	}
	query := s.rebind(`INSERT INTO users (username, email, password, confirmed, permissions, last_seen, date_created)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := s.db.QueryRow(query, user.Username, user.Email, user.Password,
		user.Confirmed, user.Permissions, user.LastSeen, user.DateCreated).Scan(&user.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %q: %w", user.Username, store.ErrDuplicate)
	}
	return err
}

func (s *SQLStore) UserByID(id int) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	return scanUser(s.db.QueryRow(query, id))
}

func (s *SQLStore) UserByUsername(username string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE username = ?")
	return scanUser(s.db.QueryRow(query, username))
}

func (s *SQLStore) UserByEmail(email string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE email = ?")
	return scanUser(s.db.QueryRow(query, email))
}

func (s *SQLStore) ConfirmUser(id int) error {
	query := s.rebind("UPDATE users SET confirmed = TRUE WHERE id = ?")
	result, err := s.db.Exec(query, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *SQLStore) UpdateLastSeen(id int, seen time.Time) error {
	query := s.rebind("UPDATE users SET last_seen = ? WHERE id = ?")
	_, err := s.db.Exec(query, seen.UTC(), id)
	return err
}

// OtherUsers returns all users except the given one,
// ordered by username, paginated.
func (s *SQLStore) OtherUsers(userID, page, perPage int) ([]models.User, error) {
	query := s.rebind("SELECT " + userColumns + ` FROM users
		WHERE id != ? ORDER BY username ASC LIMIT ? OFFSET ?`)
	limit, offset := pageBounds(page, perPage)
	rows, err := s.db.Query(query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// SearchUsers matches usernames by case-insensitive substring,
// never including the searching user.
func (s *SQLStore) SearchUsers(pattern string, userID, page, perPage int) ([]models.User, error) {
	query := s.rebind("SELECT " + userColumns + ` FROM users
		WHERE id != ? AND LOWER(username) LIKE LOWER(?)
		ORDER BY username ASC LIMIT ? OFFSET ?`)
	limit, offset := pageBounds(page, perPage)
	rows, err := s.db.Query(query, userID, "%"+pattern+"%", limit, offset)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (s *SQLStore) AddContacts(userID int, contactIDs []int, contactGroup string) error {
	query := s.rebind(`INSERT INTO contacts (user_id, contact_id, contact_group, date_created)
		VALUES (?, ?, ?, ?) ON CONFLICT (user_id, contact_id) DO NOTHING`)
	now := time.Now().UTC()
	var group sql.NullString
	if contactGroup != "" {
		group = sql.NullString{String: contactGroup, Valid: true}
	}
	for _, contactID := range contactIDs {
		if contactID == userID {
			continue
		}
		if _, err := s.db.Exec(query, userID, contactID, group, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) DeleteContacts(userID int, contactIDs []int) error {
	if len(contactIDs) == 0 {
		return nil
	}
	query := s.rebind(`DELETE FROM contacts WHERE user_id = ? AND contact_id IN (` +
		placeholders(len(contactIDs)) + `)`)
	args := append([]any{userID}, intArgs(contactIDs)...)
	_, err := s.db.Exec(query, args...)
	return err
}

func (s *SQLStore) HasContact(userID, contactID int) (bool, error) {
	var exists bool
	query := s.rebind("SELECT EXISTS(SELECT 1 FROM contacts WHERE user_id = ? AND contact_id = ?)")
	err := s.db.QueryRow(query, userID, contactID).Scan(&exists)
	return exists, err
}

func collectUsers(rows *sql.Rows) ([]models.User, error) {
	defer rows.Close()
	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.Password,
			&user.Confirmed, &user.Permissions, &user.LastSeen, &user.DateCreated); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// pageBounds turns a 1-based page into LIMIT/OFFSET values.
// A non-positive perPage means no limit.
func pageBounds(page, perPage int) (limit, offset int) {
	if perPage <= 0 {
		// Both drivers accept an explicit cap; neither shares a spelling
		// for "no limit" in a bound parameter.
		return 1<<31 - 1, 0
	}
	if page < 1 {
		page = 1
	}
	return perPage, (page - 1) * perPage
}
