package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupchat-service/internal/apperr"
	"groupchat-service/internal/joincode"
	"groupchat-service/internal/models"
	"groupchat-service/internal/repositories"
)

func TestResolveDirectChatIsIdempotent(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	first, err := env.chats.ResolveDirectChat(ctx, "alice", "bob")
	require.NoError(t, err)
	second, err := env.chats.ResolveDirectChat(ctx, "bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, "alice_bob", first.ID)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.IsDirect)
	assert.Equal(t, "alice", second.OwnerID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, second.Members)
}

func TestResolveDirectChatConcurrentCallersShareOneRecord(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	const callers = 32
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "u1", "u2"
			if i%2 == 1 {
				a, b = b, a
			}
			chat, err := env.chats.ResolveDirectChat(ctx, a, b)
			assert.NoError(t, err)
			ids[i] = chat.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, "u1_u2", id)
	}
	chats, err := env.chats.ListChats(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestResolveDirectChatValidation(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	_, err := env.chats.ResolveDirectChat(ctx, "alice", "alice")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = env.chats.ResolveDirectChat(ctx, "", "bob")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestResolveDirectChatRejectsIdsThatShareAKey(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	// Joined naively both pairs would map to "a_b_c".
	_, err := env.chats.ResolveDirectChat(ctx, "a_b", "c")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = env.chats.ResolveDirectChat(ctx, "a", "b_c")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	chats, err := env.chats.ListChats(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, chats)
}

type foreignDirectChats struct {
	repositories.ChatRepository
}

func (foreignDirectChats) CreateDirect(_ context.Context, userA, _ string, now time.Time) (models.Chat, bool, error) {
	return models.Chat{ID: "x", IsDirect: true, OwnerID: userA, Members: []string{userA, "mallory"}, CreatedAt: now}, false, nil
}

func TestResolveDirectChatRejectsRecordOfAnotherPair(t *testing.T) {
	env := newTestEnv(8)
	svc := NewChatService(foreignDirectChats{env.store.Chats()}, env.directory, env.hub, testRetry(), env.clock.Now, zerologNop())

	_, err := svc.ResolveDirectChat(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreateGroupIssuesDistinctJoinCodes(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 3000; i++ {
		chat, err := env.chats.CreateGroup(ctx, "owner", "group")
		require.NoError(t, err)
		require.NotNil(t, chat.JoinCode)
		code := *chat.JoinCode
		assert.True(t, joincode.Valid(code), code)
		_, dup := seen[code]
		require.False(t, dup, "duplicate join code %s", code)
		seen[code] = struct{}{}
	}
}

type collidingChats struct {
	repositories.ChatRepository
	collisions int
}

func (c *collidingChats) CreateGroup(ctx context.Context, chat models.Chat) error {
	if c.collisions > 0 {
		c.collisions--
		return repositories.ErrJoinCodeTaken
	}
	return c.ChatRepository.CreateGroup(ctx, chat)
}

func TestCreateGroupReallocatesOnCommitCollision(t *testing.T) {
	env := newTestEnv(8)
	repo := &collidingChats{ChatRepository: env.store.Chats(), collisions: 2}
	svc := NewChatService(repo, env.directory, env.hub, testRetry(), env.clock.Now, zerologNop())

	chat, err := svc.CreateGroup(context.Background(), "owner", "team")
	require.NoError(t, err)
	assert.Equal(t, 0, repo.collisions)
	assert.Equal(t, []string{"owner"}, chat.Members)
}

type takenCodes struct {
	repositories.ChatRepository
}

func (takenCodes) JoinCodeExists(context.Context, string) (bool, error) { return true, nil }

func TestCreateGroupReportsConflictWhenCodesRunOut(t *testing.T) {
	env := newTestEnv(8)

	svc := NewChatService(takenCodes{env.store.Chats()}, env.directory, env.hub, testRetry(), env.clock.Now, zerologNop())
	_, err := svc.CreateGroup(context.Background(), "owner", "team")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(err))

	repo := &collidingChats{ChatRepository: env.store.Chats(), collisions: 1 << 20}
	svc = NewChatService(repo, env.directory, env.hub, testRetry(), env.clock.Now, zerologNop())
	_, err = svc.CreateGroup(context.Background(), "owner", "team")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreateGroupRejectsBlankName(t *testing.T) {
	env := newTestEnv(8)
	_, err := env.chats.CreateGroup(context.Background(), "owner", "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestJoinGroup(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	group, err := env.chats.CreateGroup(ctx, "owner", "team")
	require.NoError(t, err)

	joined, err := env.chats.JoinGroup(ctx, " "+lower(*group.JoinCode)+" ", "guest")
	require.NoError(t, err)
	assert.Equal(t, group.ID, joined.ID)
	assert.Equal(t, []string{"owner", "guest"}, joined.Members)

	again, err := env.chats.JoinGroup(ctx, *group.JoinCode, "guest")
	require.NoError(t, err)
	assert.Len(t, again.Members, 2)

	_, err = env.chats.JoinGroup(ctx, "ZZZZZZ", "guest")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = env.chats.JoinGroup(ctx, "??", "guest")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcurrentJoinsAllLand(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	group, err := env.chats.CreateGroup(ctx, "owner", "team")
	require.NoError(t, err)

	const joiners = 24
	want := []string{"owner"}
	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		userID := fmt.Sprintf("user-%02d", i)
		want = append(want, userID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.chats.JoinGroup(ctx, *group.JoinCode, userID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	chat, err := env.chats.GetChat(ctx, group.ID, "owner")
	require.NoError(t, err)
	assert.ElementsMatch(t, want, chat.Members)
}

func TestMembershipRules(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	group, err := env.chats.CreateGroup(ctx, "owner", "team")
	require.NoError(t, err)
	_, err = env.chats.JoinGroup(ctx, *group.JoinCode, "m1")
	require.NoError(t, err)
	_, err = env.chats.JoinGroup(ctx, *group.JoinCode, "m2")
	require.NoError(t, err)

	_, err = env.chats.RemoveMember(ctx, group.ID, "owner", "owner")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = env.chats.RemoveMember(ctx, group.ID, "m1", "m2")
	assert.ErrorIs(t, err, apperr.ErrPermission)

	updated, err := env.chats.RemoveMember(ctx, group.ID, "owner", "m1")
	require.NoError(t, err)
	assert.NotContains(t, updated.Members, "m1")
	assert.Contains(t, updated.Members, "owner")

	assert.ErrorIs(t, env.chats.LeaveGroup(ctx, group.ID, "owner"), apperr.ErrInvalidOperation)
	require.NoError(t, env.chats.LeaveGroup(ctx, group.ID, "m2"))
	assert.ErrorIs(t, env.chats.LeaveGroup(ctx, group.ID, "m2"), apperr.ErrPermission)

	_, err = env.chats.GetChat(ctx, group.ID, "m2")
	assert.ErrorIs(t, err, apperr.ErrPermission)
}

func TestOwnerOnlyMutations(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	group, err := env.chats.CreateGroup(ctx, "owner", "team")
	require.NoError(t, err)
	_, err = env.chats.JoinGroup(ctx, *group.JoinCode, "member")
	require.NoError(t, err)

	_, err = env.chats.RenameGroup(ctx, group.ID, "member", "mine now")
	assert.ErrorIs(t, err, apperr.ErrPermission)
	_, err = env.chats.ClearChat(ctx, group.ID, "member")
	assert.ErrorIs(t, err, apperr.ErrPermission)
	assert.ErrorIs(t, env.chats.DeleteGroup(ctx, group.ID, "member"), apperr.ErrPermission)

	renamed, err := env.chats.RenameGroup(ctx, group.ID, "owner", "  renamed ")
	require.NoError(t, err)
	assert.Equal(t, "renamed", renamed.Name)

	_, err = env.chats.RenameGroup(ctx, group.ID, "owner", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDirectChatsRejectGroupOperations(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	direct, err := env.chats.ResolveDirectChat(ctx, "a", "b")
	require.NoError(t, err)

	_, err = env.chats.ClearChat(ctx, direct.ID, "a")
	assert.ErrorIs(t, err, apperr.ErrInvalidOperation)
	_, err = env.chats.RenameGroup(ctx, direct.ID, "a", "x")
	assert.ErrorIs(t, err, apperr.ErrInvalidOperation)
	assert.ErrorIs(t, env.chats.LeaveGroup(ctx, direct.ID, "b"), apperr.ErrInvalidOperation)
}

func TestDeleteGroupIsTerminal(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	group, err := env.chats.CreateGroup(ctx, "owner", "team")
	require.NoError(t, err)
	require.NoError(t, env.chats.DeleteGroup(ctx, group.ID, "owner"))

	_, err = env.chats.GetChat(ctx, group.ID, "owner")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, env.chats.DeleteGroup(ctx, group.ID, "owner"), apperr.ErrNotFound)
	_, err = env.chats.JoinGroup(ctx, *group.JoinCode, "late")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListMembersResolvesDisplayNames(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	_, err := env.directory.Upsert(ctx, "owner", "Olivia", "")
	require.NoError(t, err)
	group, err := env.chats.CreateGroup(ctx, "owner", "team")
	require.NoError(t, err)
	_, err = env.chats.JoinGroup(ctx, *group.JoinCode, "anon")
	require.NoError(t, err)

	members, err := env.chats.ListMembers(ctx, group.ID, "anon")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, models.Member{UserID: "owner", DisplayName: "Olivia", IsOwner: true}, members[0])
	assert.Equal(t, models.Member{UserID: "anon", DisplayName: models.UnknownDisplayName}, members[1])
}
