package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxExchanges bounds how many user/assistant pairs a session keeps.
const DefaultMaxExchanges = 2

type exchange struct {
	user      string
	assistant string
}

// Manager holds conversation history in memory, keyed by session id.
// History is rendered as opaque text; callers never see the pair structure.
type Manager struct {
	mu           sync.Mutex
	maxExchanges int
	sessions     map[string][]exchange
}

func NewManager(maxExchanges int) *Manager {
	if maxExchanges <= 0 {
		maxExchanges = DefaultMaxExchanges
	}
	return &Manager{
		maxExchanges: maxExchanges,
		sessions:     make(map[string][]exchange),
	}
}

// Create registers a new empty session and returns its id.
func (m *Manager) Create() string {
	id := uuid.New().String()
	m.mu.Lock()
	m.sessions[id] = nil
	m.mu.Unlock()
	return id
}

// AddExchange appends a user/assistant pair, dropping the oldest pair when
// the session exceeds its bound. Unknown ids start a new session.
func (m *Manager) AddExchange(id, userMsg, assistantMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exchanges := append(m.sessions[id], exchange{user: userMsg, assistant: assistantMsg})
	if len(exchanges) > m.maxExchanges {
		exchanges = exchanges[len(exchanges)-m.maxExchanges:]
	}
	m.sessions[id] = exchanges
}

// History renders the session as "User: ...\nAssistant: ..." lines.
// Unknown ids render empty.
func (m *Manager) History(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	exchanges := m.sessions[id]
	if len(exchanges) == 0 {
		return ""
	}
	lines := make([]string, 0, len(exchanges)*2)
	for _, e := range exchanges {
		lines = append(lines, "User: "+e.user, "Assistant: "+e.assistant)
	}
	return strings.Join(lines, "\n")
}

// Clear drops the session's history but keeps the id valid.
func (m *Manager) Clear(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = nil
}
