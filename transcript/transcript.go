// Package transcript holds the ordered conversation shown to the candidate.
package transcript

import "sync"

type Speaker int

const (
	User Speaker = iota
	Interviewer
)

func (s Speaker) String() string {
	if s == Interviewer {
		return "Interviewer"
	}
	return "User"
}

type Utterance struct {
	Speaker  Speaker
	Text     string
	AudioURL string // empty when there is no audio
}

// Model is an append-only list of utterances. Entries are never edited or
// removed.
type Model struct {
	mu      sync.RWMutex
	entries []Utterance
}

func (m *Model) Append(u Utterance) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, u)
	return len(m.entries) - 1
}

// Entries returns a copy in insertion order.
func (m *Model) Entries() []Utterance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Utterance(nil), m.entries...)
}

func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Last returns the newest utterance.
func (m *Model) Last() (Utterance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return Utterance{}, false
	}
	return m.entries[len(m.entries)-1], true
}
