// Package dialog tracks each user's in-progress conversation flow. The
// state is in-memory only; nothing here survives a restart, by the time a
// flow matters it has been persisted by the owning service.
package dialog

import (
	"slices"
	"sync"
	"time"

	"github.com/whisperwall/whisperwall/confessions"
)

// State is one variant of the per-user flow. Starting a new flow replaces
// whatever state the user was in.
type State interface {
	dialogState()
}

type Idle struct{}

type SelectingCategories struct {
	Chosen []string
}

type AwaitingText struct {
	Chosen []string
}

type AwaitingComment struct {
	ConfessionID string
	Page         int
}

type AwaitingReply struct {
	CommentID string
}

type AwaitingRejectReason struct {
	ConfessionID string
}

type AwaitingContact struct{}

func (Idle) dialogState()                 {}
func (SelectingCategories) dialogState()  {}
func (AwaitingText) dialogState()         {}
func (AwaitingComment) dialogState()      {}
func (AwaitingReply) dialogState()        {}
func (AwaitingRejectReason) dialogState() {}
func (AwaitingContact) dialogState()      {}

// Toggle adds or removes a category label. Adding a fourth distinct label
// is a soft rejection that leaves the selection untouched.
func (s SelectingCategories) Toggle(label string) (SelectingCategories, error) {
	if i := slices.Index(s.Chosen, label); i >= 0 {
		return SelectingCategories{Chosen: slices.Delete(slices.Clone(s.Chosen), i, i+1)}, nil
	}

	if len(s.Chosen) >= confessions.MaxCategories {
		return s, confessions.CategoryLimitError{Max: confessions.MaxCategories}
	}

	return SelectingCategories{Chosen: append(slices.Clone(s.Chosen), label)}, nil
}

func (s SelectingCategories) Finalize() (AwaitingText, error) {
	if len(s.Chosen) == 0 {
		return AwaitingText{}, confessions.NoCategoryError{}
	}

	return AwaitingText{Chosen: s.Chosen}, nil
}

const DefaultTTL = 30 * time.Minute

type entry struct {
	state   State
	touched time.Time
}

// Manager keys flow state by user identifier. Entries expire lazily on the
// next read after TTL of inactivity, discarding uncommitted selections.
type Manager struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]entry
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Manager{
		ttl:     ttl,
		entries: make(map[int64]entry),
	}
}

func (m *Manager) Get(userID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if !ok {
		return Idle{}
	}

	if time.Since(e.touched) > m.ttl {
		delete(m.entries, userID)

		return Idle{}
	}

	return e.state
}

func (m *Manager) Set(userID int64, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := state.(Idle); ok {
		delete(m.entries, userID)

		return
	}

	m.entries[userID] = entry{state: state, touched: time.Now()}
}

func (m *Manager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, userID)
}
