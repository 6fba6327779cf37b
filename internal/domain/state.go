package domain

import "time"

// Account is the identity collaborator's record of a player.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// State is the whole persisted document. It is always read and written in full.
type State struct {
	Accounts map[string]Account          `json:"accounts"`
	Queue    []string                    `json:"queue"`
	Invites  []Invite                    `json:"invites"`
	Matches  map[string]Match            `json:"matches"`
	Logs     map[string][]LogEntry       `json:"logs"`
	Archives map[string][]ArchiveSummary `json:"archives"`
}

// NewState returns an empty document with every collection allocated.
func NewState() *State {
	s := &State{}
	s.Normalize()
	return s
}

// Normalize fills collections missing from an older or partial document.
func (s *State) Normalize() {
	if s.Accounts == nil {
		s.Accounts = make(map[string]Account)
	}
	if s.Queue == nil {
		s.Queue = []string{}
	}
	if s.Invites == nil {
		s.Invites = []Invite{}
	}
	if s.Matches == nil {
		s.Matches = make(map[string]Match)
	}
	if s.Logs == nil {
		s.Logs = make(map[string][]LogEntry)
	}
	if s.Archives == nil {
		s.Archives = make(map[string][]ArchiveSummary)
	}
	for id, m := range s.Matches {
		if m.Current.Answers == nil {
			m.Current.Answers = make(map[string]Answer)
			s.Matches[id] = m
		}
	}
}
