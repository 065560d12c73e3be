package identity

import "sync"

// Session is the transient current-user state the rest of the system reads.
// Nothing here is persisted; the identity service owns durable users.
type Session struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// SessionCell is a process-wide observable holding the current session or
// none. It is injected into whatever needs the current user; there is no
// ambient global lookup.
type SessionCell struct {
	mu        sync.Mutex
	current   *Session
	observers map[int]chan *Session
	nextID    int
}

func NewSessionCell() *SessionCell {
	return &SessionCell{observers: map[int]chan *Session{}}
}

// Current returns the session or nil.
func (c *SessionCell) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	copied := *c.current
	return &copied
}

// Observe registers an observer that immediately receives the current
// state and then every change. The cancel func is idempotent.
func (c *SessionCell) Observe() (<-chan *Session, func()) {
	ch := make(chan *Session, 4)

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.observers[id] = ch
	ch <- c.current
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
	return ch, cancel
}

// Set installs a session and notifies observers.
func (c *SessionCell) Set(session Session) {
	c.mu.Lock()
	copied := session
	c.current = &copied
	c.notifyLocked()
	c.mu.Unlock()
}

// Clear drops the session and notifies observers.
func (c *SessionCell) Clear() {
	c.mu.Lock()
	c.current = nil
	c.notifyLocked()
	c.mu.Unlock()
}

func (c *SessionCell) notifyLocked() {
	for _, ch := range c.observers {
		select {
		case ch <- c.current:
		default:
		}
	}
}
