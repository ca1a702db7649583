package store

import (
	"errors"
	"time"

	"github.com/96tm/simple-messenger/internal/models"
)

// Sentinel errors returned by Store implementations. Callers are expected
// to test with errors.Is; implementations wrap them with context.
var (
	// ErrNotFound means a referenced user, chat or message does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate means a unique constraint rejected the write, such as a
	// taken username or email.
	ErrDuplicate = errors.New("already exists")

	// ErrSelfChat means a direct chat between a user and themselves was requested.
	ErrSelfChat = errors.New("direct chat requires two distinct users")

	// ErrEmptyMessage means the message text was empty after trimming.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrNameRequired means a group chat was created without a name.
	ErrNameRequired = errors.New("group chat requires a name")
)

type Store interface {
	// User operations
	CreateUser(user *models.User) error
	UserByID(id int) (*models.User, error)
	UserByUsername(username string) (*models.User, error)
	UserByEmail(email string) (*models.User, error)
	ConfirmUser(id int) error
	UpdateLastSeen(id int, seen time.Time) error
	OtherUsers(userID, page, perPage int) ([]models.User, error)
	SearchUsers(pattern string, userID, page, perPage int) ([]models.User, error)

	// Contact operations. Contacts are directed and unique per pair;
	// re-adding an existing contact is a no-op.
	AddContacts(userID int, contactIDs []int, contactGroup string) error
	DeleteContacts(userID int, contactIDs []int) error
	HasContact(userID, contactID int) (bool, error)

	// Chat operations. GetOrCreateDirectChat reports whether the chat
	// was created by this call.
	GetOrCreateDirectChat(userA, userB int) (*models.Chat, bool, error)
	CreateGroupChat(name string, memberIDs []int) (*models.Chat, error)
	ChatByID(id int) (*models.Chat, error)
	ChatMembers(chatID int) ([]models.User, error)
	IsMember(chatID, userID int) (bool, error)
	ChatDisplayName(chatID, viewerID int) (string, error)

	// Removal markers hide a chat from one user's active list without
	// touching membership or history. Marking is idempotent.
	MarkRemoved(userID int, chatIDs []int) error
	UnmarkRemoved(userID int, chatIDs []int) error
	ActiveChats(userID, page, perPage int) ([]models.Chat, error)
	RemovedChatsWith(userID int, userIDs []int) ([]models.Chat, error)
	SearchChats(pattern string, userID, page, perPage int) ([]models.Chat, error)

	// Message operations. AppendMessage commits the insert, the chat
	// modification-time bump and the recipients' marker removal atomically.
	AppendMessage(chatID, senderID int, text string) (*models.Message, error)
	Messages(chatID, page, perPage int) ([]models.Message, error)
	UnreadMessages(chatID, viewerID int) ([]models.Message, error)
	UnreadCount(chatID, viewerID int) (int, error)
	FlushMessages(chatID, viewerID int) error
}
