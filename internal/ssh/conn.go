package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"webforge/internal/logging"
)

// File is one file sent by Upload.
type File struct {
	Path string // slash-separated, relative to the remote directory
	Data []byte
}

// Conn is a lazily dialed connection to one build host. A dead connection
// is redialed on the next use.
type Conn struct {
	target *Target

	mu      sync.Mutex
	client  *ssh.Client
	lastUse time.Time
	active  int // sessions in flight
}

// NewConn creates an undialed connection to t.
func NewConn(t *Target) *Conn {
	return &Conn{target: t, lastUse: time.Now()}
}

// Dial makes sure the connection is up.
func (c *Conn) Dial(ctx context.Context) error {
	_, err := c.live(ctx)
	return err
}

func (c *Conn) live(ctx context.Context) (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUse = time.Now()

	if c.client != nil {
		if _, _, err := c.client.SendRequest("keepalive@openssh.com", true, nil); err == nil {
			return c.client, nil
		}
		c.client.Close()
		c.client = nil
	}

	cfg, err := c.target.clientConfig()
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(c.target.Host, fmt.Sprint(c.target.Port))
	logging.Info("connecting to build host", "addr", addr, "user", c.target.User)

	d := net.Dialer{Timeout: c.target.Timeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	sc, chans, reqs, err := ssh.NewClientConn(raw, addr, cfg)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("SSH handshake with %s failed: %w", addr, err)
	}
	c.client = ssh.NewClient(sc, chans, reqs)
	return c.client, nil
}

// Run executes command with its output sent to stdout and stderr. When ctx
// ends the command gets SIGTERM, then SIGKILL after grace. A non-zero exit
// status is returned as the exit code with a nil error.
func (c *Conn) Run(ctx context.Context, command string, stdout, stderr io.Writer, grace time.Duration) (int, error) {
	client, err := c.live(ctx)
	if err != nil {
		return -1, err
	}
	c.begin()
	defer c.end()
	session, err := client.NewSession()
	if err != nil {
		return -1, fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()
	session.Stdout = stdout
	session.Stderr = stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case err := <-done:
		var exit *ssh.ExitError
		switch {
		case err == nil:
			return 0, nil
		case errors.As(err, &exit):
			return exit.ExitStatus(), nil
		default:
			return -1, fmt.Errorf("command failed: %w", err)
		}
	case <-ctx.Done():
		session.Signal(ssh.SIGTERM)
		select {
		case <-done:
		case <-time.After(grace):
			session.Signal(ssh.SIGKILL)
		}
		return -1, ctx.Err()
	}
}

// Output runs command and returns its trimmed stdout. A non-zero exit is an
// error carrying stderr.
func (c *Conn) Output(ctx context.Context, command string) (string, error) {
	var stdout, stderr strings.Builder
	code, err := c.Run(ctx, command, &stdout, &stderr, time.Second)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", fmt.Errorf("%q exited with %d: %s", command, code, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Upload writes files below dir over SFTP. Paths escaping dir are refused.
func (c *Conn) Upload(ctx context.Context, dir string, files []File) error {
	client, err := c.live(ctx)
	if err != nil {
		return err
	}
	c.begin()
	defer c.end()
	fs, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("failed to start SFTP: %w", err)
	}
	defer fs.Close()

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := path.Clean(f.Path)
		if path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
			return fmt.Errorf("refusing to upload %q outside %s", f.Path, dir)
		}
		target := path.Join(dir, rel)
		if err := fs.MkdirAll(path.Dir(target)); err != nil {
			return fmt.Errorf("failed to create %s: %w", path.Dir(target), err)
		}
		if err := writeRemote(fs, target, f.Data); err != nil {
			return err
		}
	}
	logging.Debug("files uploaded", "dir", dir, "count", len(files))
	return nil
}

func writeRemote(fs *sftp.Client, target string, data []byte) error {
	w, err := fs.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return w.Close()
}

func (c *Conn) begin() {
	c.mu.Lock()
	c.active++
	c.mu.Unlock()
}

func (c *Conn) end() {
	c.mu.Lock()
	c.active--
	c.lastUse = time.Now()
	c.mu.Unlock()
}

// idleFor reports how long the connection has been unused. A connection
// with a session in flight is never idle.
func (c *Conn) idleFor(now time.Time) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active > 0 {
		return 0, false
	}
	return now.Sub(c.lastUse), true
}

// Close drops the connection. The Conn can be dialed again.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
