// Package ssh connects to a remote build host: commands run over SSH
// sessions and project files travel over SFTP.
package ssh

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"webforge/internal/config"
	"webforge/internal/logging"
)

// fallbackKeys are tried in order when the configured key cannot be used.
var fallbackKeys = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// Target identifies a build host and how to authenticate to it.
type Target struct {
	Host       string
	Port       int
	User       string
	KeyPath    string
	KnownHosts string
	Timeout    time.Duration
}

// TargetFromRemote builds a Target from runtime.remote, filling the port,
// user and key locations from the local account.
func TargetFromRemote(r config.RemoteConfig) *Target {
	t := &Target{
		Host:       r.Host,
		Port:       22,
		User:       "root",
		KeyPath:    "~/.ssh/id_ed25519",
		KnownHosts: "~/.ssh/known_hosts",
		Timeout:    30 * time.Second,
	}
	if u, err := user.Current(); err == nil {
		t.User = u.Username
	}
	if r.Port > 0 {
		t.Port = r.Port
	}
	if r.User != "" {
		t.User = r.User
	}
	if r.KeyPath != "" {
		t.KeyPath = r.KeyPath
	}
	return t
}

// Key is the pool key, user@host:port.
func (t *Target) Key() string {
	return fmt.Sprintf("%s@%s:%d", t.User, t.Host, t.Port)
}

// clientConfig loads the signer and the known_hosts callback. Unknown host
// keys are rejected.
func (t *Target) clientConfig() (*ssh.ClientConfig, error) {
	signer, err := t.signer()
	if err != nil {
		return nil, err
	}
	hostKeys, err := knownhosts.New(expandHome(t.KnownHosts))
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}
	return &ssh.ClientConfig{
		User:            t.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         t.Timeout,
	}, nil
}

func (t *Target) signer() (ssh.Signer, error) {
	candidates := []string{}
	if t.KeyPath != "" {
		candidates = append(candidates, expandHome(t.KeyPath))
	}
	for _, name := range fallbackKeys {
		candidates = append(candidates, expandHome(filepath.Join("~/.ssh", name)))
	}
	for _, path := range candidates {
		pem, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			logging.Warn("skipping unusable SSH key", "path", path, "error", err)
			continue
		}
		return signer, nil
	}
	return nil, fmt.Errorf("no usable SSH key for %s", t.Key())
}

// ShellQuote quotes s for a POSIX shell.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}
