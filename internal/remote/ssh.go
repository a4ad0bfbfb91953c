package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/joelmoss/vcsinfo/internal/config"
	"github.com/joelmoss/vcsinfo/internal/errs"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHDialer opens SSH connections for credentials from the users file.
type SSHDialer struct {
	Port           int
	KnownHosts     string // empty accepts any host key
	ConnectTimeout time.Duration
}

// Client is an open SSH connection. Every Run opens a fresh session on it.
type Client struct {
	addr   string
	client *ssh.Client
}

// Dial connects and authenticates as cred.User. Connection and handshake are
// bounded by ctx and ConnectTimeout.
func (d *SSHDialer) Dial(ctx context.Context, cred config.Credential) (*Client, error) {
	addr := cred.Address(d.port())

	cfg, err := d.clientConfig(cred)
	if err != nil {
		return nil, fmt.Errorf("%w to %s: %w", errs.ErrConnect, addr, err)
	}

	if d.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.ConnectTimeout)
		defer cancel()
	}

	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w to %s: %w", errs.ErrConnect, addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w to %s: %w", errs.ErrConnect, addr, err)
	}
	conn.SetDeadline(time.Time{})

	return &Client{addr: addr, client: ssh.NewClient(c, chans, reqs)}, nil
}

func (d *SSHDialer) port() int {
	if d.Port == 0 {
		return config.DefaultPort
	}
	return d.Port
}

func (d *SSHDialer) clientConfig(cred config.Credential) (*ssh.ClientConfig, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if d.KnownHosts != "" {
		cb, err := knownhosts.New(d.KnownHosts)
		if err != nil {
			return nil, err
		}
		hostKeyCallback = cb
	}

	var auth []ssh.AuthMethod
	if cred.KeyPath != "" {
		signer, err := loadSigner(cred.KeyPath, cred.Password)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cred.Password != "" {
		auth = append(auth, ssh.Password(cred.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("%w: %s@%s", errs.ErrNoAuth, cred.User, cred.Hostname)
	}

	return &ssh.ClientConfig{
		User:            cred.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         d.ConnectTimeout,
	}, nil
}

// loadSigner reads a private key file. An encrypted key is unlocked with the
// password, when there is one.
func loadSigner(path, password string) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(pem)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && password != "" {
		return ssh.ParsePrivateKeyWithPassphrase(pem, []byte(password))
	}
	return signer, err
}

// Run executes command in a new session. A non-zero exit status is not an
// error here; callers judge a command by its stderr. If ctx ends first the
// session is closed and ctx.Err() is returned.
func (c *Client) Run(ctx context.Context, command string) (string, string, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("failed to open session on %s: %w", c.addr, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		session.Close()
		return "", "", ctx.Err()
	case err := <-done:
		var exitErr *ssh.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return "", "", err
		}
	}
	return stdout.String(), stderr.String(), nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) String() string {
	return c.addr
}
