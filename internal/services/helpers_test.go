package services

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"groupchat-service/internal/broker"
	"groupchat-service/internal/jobs"
	"groupchat-service/internal/repositories/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type queueStub struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func testRetry() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

type testEnv struct {
	store      *memory.Store
	hub        *broker.Hub
	clock      *fakeClock
	directory  *DirectoryService
	chats      *ChatService
	messages   *MessageService
	categories *CategoryService
	streaks    *StreakService
	queue      *queueStub
}

func newTestEnv(buffer int) *testEnv {
	logger := zerolog.Nop()
	store := memory.New()
	clock := newFakeClock()
	hub := broker.NewHub(buffer, logger)
	queue := &queueStub{}

	directory := NewDirectoryService(store.Directory(), clock.Now, logger)
	return &testEnv{
		store:      store,
		hub:        hub,
		clock:      clock,
		directory:  directory,
		chats:      NewChatService(store.Chats(), directory, hub, testRetry(), clock.Now, logger),
		messages:   NewMessageService(store.Chats(), store.Messages(), directory, hub, nil, buffer, testRetry(), clock.Now, logger),
		categories: NewCategoryService(store.Categories(), queue, 3, testRetry(), clock.Now, logger),
		streaks:    NewStreakService(store.Streaks(), time.UTC, testRetry(), clock.Now, logger),
		queue:      queue,
	}
}

func zerologNop() zerolog.Logger { return zerolog.Nop() }

func lower(s string) string { return strings.ToLower(s) }
