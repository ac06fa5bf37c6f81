// Package memory holds in-process implementations of the repository
// interfaces. A single lock guards all state, so every operation is atomic.
package memory

import (
	"sort"
	"sync"

	"groupchat-service/internal/models"
	"groupchat-service/internal/repositories"
)

type chatRecord struct {
	chat    models.Chat
	members map[string]int64
}

func (r *chatRecord) snapshot() models.Chat {
	chat := r.chat
	type joined struct {
		id  string
		seq int64
	}
	list := make([]joined, 0, len(r.members))
	for id, seq := range r.members {
		list = append(list, joined{id: id, seq: seq})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
	chat.Members = make([]string, len(list))
	for i, m := range list {
		chat.Members[i] = m.id
	}
	return chat
}

// Store is the shared in-memory state behind the repositories.
type Store struct {
	mu sync.Mutex

	chats     map[string]*chatRecord
	joinCodes map[string]string
	messages  map[string][]models.Message
	msgID     int64
	joinSeq   int64

	directory  map[string]models.DirectoryEntry
	categories map[string]models.Category
	notes      map[string]models.NoteRef
	streaks    map[string]models.StreakRecord
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		chats:      make(map[string]*chatRecord),
		joinCodes:  make(map[string]string),
		messages:   make(map[string][]models.Message),
		directory:  make(map[string]models.DirectoryEntry),
		categories: make(map[string]models.Category),
		notes:      make(map[string]models.NoteRef),
		streaks:    make(map[string]models.StreakRecord),
	}
}

func (s *Store) Chats() *ChatRepo { return &ChatRepo{s: s} }

func (s *Store) Messages() *MessageRepo { return &MessageRepo{s: s} }

func (s *Store) Directory() *DirectoryRepo { return &DirectoryRepo{s: s} }

func (s *Store) Categories() *CategoryRepo { return &CategoryRepo{s: s} }

func (s *Store) Streaks() *StreakRepo { return &StreakRepo{s: s} }

var (
	_ repositories.ChatRepository      = (*ChatRepo)(nil)
	_ repositories.MessageRepository   = (*MessageRepo)(nil)
	_ repositories.DirectoryRepository = (*DirectoryRepo)(nil)
	_ repositories.CategoryRepository  = (*CategoryRepo)(nil)
	_ repositories.StreakRepository    = (*StreakRepo)(nil)
)
