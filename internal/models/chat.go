package models

import (
	"sort"
	"strings"
	"time"
)

// Chat is a group or direct conversation record.
type Chat struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	OwnerID       string    `db:"owner_id" json:"owner_id"`
	IsDirect      bool      `db:"is_direct" json:"is_direct"`
	DirectKey     *string   `db:"direct_key" json:"direct_key,omitempty"`
	JoinCode      *string   `db:"join_code" json:"join_code,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	ClearedAt     time.Time `db:"cleared_at" json:"cleared_at"`
	LastSeq       int64     `db:"last_seq" json:"last_seq"`
	LastMessageAt time.Time `db:"last_message_at" json:"-"`
	Members       []string  `db:"-" json:"members"`
}

// HasMember reports whether userID belongs to the chat.
func (c Chat) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// ChatSummary is the list view of a chat for one user.
type ChatSummary struct {
	ChatID   string    `db:"id" json:"chat_id"`
	Name     string    `db:"name" json:"name"`
	IsDirect bool      `db:"is_direct" json:"is_direct"`
	OwnerID  string    `db:"owner_id" json:"owner_id"`
	LastSeq  int64     `db:"last_seq" json:"last_seq"`
	Created  time.Time `db:"created_at" json:"created_at"`
}

// Member is a chat member with its resolved display name.
type Member struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	IsOwner     bool   `json:"is_owner"`
}

// DirectKeySeparator joins the two participants of a direct key. Ids holding it
// could make two different pairs share a key.
const DirectKeySeparator = "_"

// DirectKey returns the canonical identifier of the direct chat between a and b.
func DirectKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, DirectKeySeparator)
}
