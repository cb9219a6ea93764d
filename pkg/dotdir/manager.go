// Package dotdir manages the .switchboard/ and ~/.switchboard directories.
//
// The directory holds config.toml, the default SQLite transcript database,
// and the chat session state used to resume conversations with an agent.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the switchboard directory.
	dirName = ".switchboard"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .switchboard/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.switchboard/ dir
//  3. Home ~/.switchboard/ dir
//  4. If none found, returns an empty string
func (m *Manager) Target(overrideDir string) (string, error) {
	switch {
	case overrideDir != "":
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating switchboard directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		return filepath.Join(cwd, dirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir := filepath.Join(home, dirName)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", nil
	}

	return dir, nil
}

// Ensure behaves like Target but creates ~/.switchboard/ when no directory
// could be resolved.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir != "" {
		return dir, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir = filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating switchboard directory %s: %w", dir, err)
	}

	return dir, nil
}

// localDirExists checks whether a .switchboard/ directory exists in the
// current working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
