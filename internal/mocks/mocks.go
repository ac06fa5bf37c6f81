package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"groupchat-service/internal/blob"
	"groupchat-service/internal/models"
)

type ChatServiceMock struct {
	mock.Mock
}

func chatResult(args mock.Arguments) (models.Chat, error) {
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatServiceMock) ResolveDirectChat(ctx context.Context, userA, userB string) (models.Chat, error) {
	return chatResult(m.Called(ctx, userA, userB))
}

func (m *ChatServiceMock) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatServiceMock) GetChat(ctx context.Context, chatID, callerID string) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, callerID))
}

func (m *ChatServiceMock) ListMembers(ctx context.Context, chatID, callerID string) ([]models.Member, error) {
	args := m.Called(ctx, chatID, callerID)
	var members []models.Member
	if val := args.Get(0); val != nil {
		members = val.([]models.Member)
	}
	return members, args.Error(1)
}

func (m *ChatServiceMock) ClearChat(ctx context.Context, chatID, callerID string) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, callerID))
}

func (m *ChatServiceMock) CreateGroup(ctx context.Context, ownerID, name string) (models.Chat, error) {
	return chatResult(m.Called(ctx, ownerID, name))
}

func (m *ChatServiceMock) JoinGroup(ctx context.Context, code, userID string) (models.Chat, error) {
	return chatResult(m.Called(ctx, code, userID))
}

func (m *ChatServiceMock) RenameGroup(ctx context.Context, chatID, callerID, name string) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, callerID, name))
}

func (m *ChatServiceMock) RemoveMember(ctx context.Context, chatID, callerID, targetID string) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, callerID, targetID))
}

func (m *ChatServiceMock) LeaveGroup(ctx context.Context, chatID, userID string) error {
	return m.Called(ctx, chatID, userID).Error(0)
}

func (m *ChatServiceMock) DeleteGroup(ctx context.Context, chatID, callerID string) error {
	return m.Called(ctx, chatID, callerID).Error(0)
}

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) Send(ctx context.Context, chatID, senderID string, payload models.Payload) (models.Message, error) {
	args := m.Called(ctx, chatID, senderID, payload)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageServiceMock) History(ctx context.Context, chatID, callerID string, beforeSeq int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, chatID, callerID, beforeSeq, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageServiceMock) PresignAttachment(ctx context.Context, chatID, callerID, fileName, mime string) (blob.Upload, error) {
	args := m.Called(ctx, chatID, callerID, fileName, mime)
	var upload blob.Upload
	if val := args.Get(0); val != nil {
		upload = val.(blob.Upload)
	}
	return upload, args.Error(1)
}

type CategoryServiceMock struct {
	mock.Mock
}

func (m *CategoryServiceMock) Create(ctx context.Context, ownerID, name string) (models.Category, error) {
	args := m.Called(ctx, ownerID, name)
	var category models.Category
	if val := args.Get(0); val != nil {
		category = val.(models.Category)
	}
	return category, args.Error(1)
}

func (m *CategoryServiceMock) Rename(ctx context.Context, ownerID, categoryID, name string) (models.Category, error) {
	args := m.Called(ctx, ownerID, categoryID, name)
	var category models.Category
	if val := args.Get(0); val != nil {
		category = val.(models.Category)
	}
	return category, args.Error(1)
}

func (m *CategoryServiceMock) DeleteAndReassign(ctx context.Context, ownerID, categoryID string) (models.Progress, error) {
	args := m.Called(ctx, ownerID, categoryID)
	var progress models.Progress
	if val := args.Get(0); val != nil {
		progress = val.(models.Progress)
	}
	return progress, args.Error(1)
}

func (m *CategoryServiceMock) UpsertNote(ctx context.Context, ownerID, noteID, title, categoryID string) (models.NoteRef, error) {
	args := m.Called(ctx, ownerID, noteID, title, categoryID)
	var note models.NoteRef
	if val := args.Get(0); val != nil {
		note = val.(models.NoteRef)
	}
	return note, args.Error(1)
}

func (m *CategoryServiceMock) GetNote(ctx context.Context, ownerID, noteID string) (models.NoteRef, error) {
	args := m.Called(ctx, ownerID, noteID)
	var note models.NoteRef
	if val := args.Get(0); val != nil {
		note = val.(models.NoteRef)
	}
	return note, args.Error(1)
}

type StreakServiceMock struct {
	mock.Mock
}

func (m *StreakServiceMock) RecordActivity(ctx context.Context, userID string) (models.StreakRecord, error) {
	args := m.Called(ctx, userID)
	var rec models.StreakRecord
	if val := args.Get(0); val != nil {
		rec = val.(models.StreakRecord)
	}
	return rec, args.Error(1)
}

func (m *StreakServiceMock) CurrentStreak(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type DirectoryServiceMock struct {
	mock.Mock
}

func (m *DirectoryServiceMock) Upsert(ctx context.Context, userID, displayName, email string) (models.DirectoryEntry, error) {
	args := m.Called(ctx, userID, displayName, email)
	var entry models.DirectoryEntry
	if val := args.Get(0); val != nil {
		entry = val.(models.DirectoryEntry)
	}
	return entry, args.Error(1)
}

func (m *DirectoryServiceMock) Get(ctx context.Context, userID string) (models.DirectoryEntry, error) {
	args := m.Called(ctx, userID)
	var entry models.DirectoryEntry
	if val := args.Get(0); val != nil {
		entry = val.(models.DirectoryEntry)
	}
	return entry, args.Error(1)
}

func (m *DirectoryServiceMock) FindByEmail(ctx context.Context, email string) (models.DirectoryEntry, error) {
	args := m.Called(ctx, email)
	var entry models.DirectoryEntry
	if val := args.Get(0); val != nil {
		entry = val.(models.DirectoryEntry)
	}
	return entry, args.Error(1)
}

func (m *DirectoryServiceMock) SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]models.DirectoryEntry, error) {
	args := m.Called(ctx, prefix, limit)
	var entries []models.DirectoryEntry
	if val := args.Get(0); val != nil {
		entries = val.([]models.DirectoryEntry)
	}
	return entries, args.Error(1)
}
