// Package credentials stores bearer tokens for orchestration backends in
// credentials.toml, keeping secrets out of config.toml.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/switchboard/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

// Manager manages reading and writing credentials.toml in the .switchboard/
// directory.
type Manager struct {
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it
// is used as the .switchboard/ directory; otherwise the standard dotdir
// resolution applies. When create is true and no directory is found,
// ~/.switchboard/ is created. Otherwise the manager has no target and reads
// return nothing.
func NewManager(override string, create bool) (*Manager, error) {
	ddm := dotdir.NewManager()
	resolve := ddm.Target
	if create {
		resolve = ddm.Ensure
	}

	target, err := resolve(override)
	if err != nil {
		return nil, err
	}

	mgr := &Manager{}
	if target != "" {
		mgr.targetPath = filepath.Join(target, credentialsFile)
	}

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	empty := &Credentials{
		Version:  currentVersion,
		Backends: make(map[string]BackendCredential),
	}
	if m.targetPath == "" {
		return empty, nil
	}

	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return empty, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Backends == nil {
		creds.Backends = make(map[string]BackendCredential)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}
	if m.targetPath == "" {
		return errors.New("no .switchboard directory found")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetToken stores the token for the backend at rawURL.
func (m *Manager) SetToken(rawURL, token string) error {
	host, err := HostKey(rawURL)
	if err != nil {
		return err
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Backends[host] = BackendCredential{Token: token}

	return m.Save(creds)
}

// Token returns the stored token for the backend at rawURL.
// Returns an empty string if no token is stored.
func (m *Manager) Token(rawURL string) (string, error) {
	host, err := HostKey(rawURL)
	if err != nil {
		return "", err
	}

	creds, err := m.Load()
	if err != nil {
		return "", err
	}

	return creds.Backends[host].Token, nil
}

// RemoveToken deletes the stored token for the backend at rawURL.
func (m *Manager) RemoveToken(rawURL string) error {
	host, err := HostKey(rawURL)
	if err != nil {
		return err
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}
	if _, ok := creds.Backends[host]; !ok {
		return nil
	}

	delete(creds.Backends, host)

	return m.Save(creds)
}

// ListBackends returns the hosts that have stored tokens.
func (m *Manager) ListBackends() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	hosts := make([]string, 0, len(creds.Backends))
	for host := range creds.Backends {
		hosts = append(hosts, host)
	}

	sort.Strings(hosts)

	return hosts, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// HostKey reduces a backend URL to the host[:port] its token is stored
// under. A bare host is accepted as well.
func HostKey(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", errors.New("backend URL cannot be empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid backend URL %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid backend URL %q: no host", rawURL)
	}

	return strings.ToLower(u.Host), nil
}
