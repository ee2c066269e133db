package usecase

import "sync"

// ChatLockRegistry hands out one mutex per chat id.
// Locks are created on first use and never removed; the registry lives for
// the process and is rebuilt empty on restart.
type ChatLockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewChatLockRegistry creates an empty registry
func NewChatLockRegistry() *ChatLockRegistry {
	return &ChatLockRegistry{locks: make(map[string]*sync.Mutex)}
}

// Acquire returns the lock for chatID, creating it if absent.
// The registry guard is held only for the lookup/insert.
func (r *ChatLockRegistry) Acquire(chatID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[chatID] = lock
	}
	return lock
}

// WithLock runs fn while holding the chat lock.
// The lock is released on every exit path, including panics.
func (r *ChatLockRegistry) WithLock(chatID string, fn func() error) error {
	lock := r.Acquire(chatID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// Len returns the number of chats seen by this process
func (r *ChatLockRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
