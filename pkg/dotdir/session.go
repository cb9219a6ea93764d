package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	sessionsFile = "sessions.json"
)

// Session is the last chat session opened with an agent. Sending the
// session ID back to the backend resumes the conversation.
type Session struct {
	AgentID   string    `json:"agent_id"`
	SessionID string    `json:"session_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadSession returns the saved session for agentID.
// Returns nil, nil if no session has been saved for the agent.
func (m *Manager) LoadSession(agentID, overrideDir string) (*Session, error) {
	sessions, err := m.loadSessions(overrideDir)
	if err != nil {
		return nil, err
	}

	s, ok := sessions[agentID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// SaveSession persists the session for its agent, replacing any previous one.
func (m *Manager) SaveSession(session *Session, overrideDir string) error {
	if session == nil || session.AgentID == "" {
		return errors.New("cannot save session without an agent id")
	}

	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return err
	}

	sessions, err := m.loadSessions(dir)
	if err != nil {
		return err
	}
	sessions[session.AgentID] = *session

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sessions: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, sessionsFile), data, 0o600); err != nil {
		return fmt.Errorf("writing sessions: %w", err)
	}
	return nil
}

// ClearSession removes the saved session for agentID, if any.
func (m *Manager) ClearSession(agentID, overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return err
	}

	sessions, err := m.loadSessions(dir)
	if err != nil {
		return err
	}
	if _, ok := sessions[agentID]; !ok {
		return nil
	}
	delete(sessions, agentID)

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sessions: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, sessionsFile), data, 0o600)
}

func (m *Manager) loadSessions(overrideDir string) (map[string]Session, error) {
	sessions := map[string]Session{}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return sessions, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, sessionsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sessions, nil
		}
		return nil, fmt.Errorf("reading sessions: %w", err)
	}

	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("parsing sessions: %w", err)
	}
	return sessions, nil
}
