package remote

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/joelmoss/vcsinfo/internal/config"
	"github.com/joelmoss/vcsinfo/internal/errs"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type reply struct {
	stdout string
	stderr string
	status uint32
	delay  time.Duration
}

// testServer is a minimal SSH server answering exec requests with canned output.
type testServer struct {
	addr     string
	hostKey  ssh.PublicKey
	password string
	userKey  ssh.PublicKey
	replies  map[string]reply
}

func newTestServer(t *testing.T, replies map[string]reply) *testServer {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	s := &testServer{
		addr:     ln.Addr().String(),
		hostKey:  hostSigner.PublicKey(),
		password: "secret",
		replies:  replies,
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, pw []byte) (*ssh.Permissions, error) {
			if string(pw) == s.password {
				return nil, nil
			}
			return nil, errors.New("wrong password")
		},
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if s.userKey != nil && bytes.Equal(key.Marshal(), s.userKey.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unknown key")
		},
	}
	cfg.AddHostKey(hostSigner)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn, cfg)
		}
	}()
	return s
}

func (s *testServer) serve(conn net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, chReqs)
	}
}

func (s *testServer) handleSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()
	for req := range reqs {
		if req.Type != "exec" {
			req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			req.Reply(false, nil)
			return
		}
		req.Reply(true, nil)

		r, ok := s.replies[payload.Command]
		if !ok {
			r = reply{stderr: "sh: command not found\n", status: 127}
		}
		time.Sleep(r.delay)
		ch.Write([]byte(r.stdout))
		ch.Stderr().Write([]byte(r.stderr))
		ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{r.status}))
		return
	}
}

func (s *testServer) credential(t *testing.T) config.Credential {
	t.Helper()
	host, port, err := net.SplitHostPort(s.addr)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := strconv.Atoi(port)
	return config.Credential{Hostname: host, User: "alice", Password: s.password, Port: p}
}

func writeUserKey(t *testing.T, s *testServer) string {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	s.userKey = sshPub

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDialPasswordAndRun(t *testing.T) {
	s := newTestServer(t, map[string]reply{
		"cd /srv/app; git rev-parse HEAD": {stdout: "abc123\n"},
	})
	d := &SSHDialer{ConnectTimeout: 5 * time.Second}

	client, err := d.Dial(context.Background(), s.credential(t))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	stdout, stderr, err := client.Run(context.Background(), "cd /srv/app; git rev-parse HEAD")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "abc123\n" || stderr != "" {
		t.Fatalf("unexpected output %q / %q", stdout, stderr)
	}
}

func TestDialKeyFile(t *testing.T) {
	s := newTestServer(t, map[string]reply{"ls -la": {stdout: ".git\n"}})
	cred := s.credential(t)
	cred.Password = ""
	cred.KeyPath = writeUserKey(t, s)

	client, err := (&SSHDialer{}).Dial(context.Background(), cred)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	stdout, _, err := client.Run(context.Background(), "ls -la")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != ".git\n" {
		t.Fatalf("unexpected stdout %q", stdout)
	}
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	s := newTestServer(t, map[string]reply{
		"cd /missing; ls -la": {stderr: "cd: /missing: No such file or directory\n", status: 1},
	})

	client, err := (&SSHDialer{}).Dial(context.Background(), s.credential(t))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	_, stderr, err := client.Run(context.Background(), "cd /missing; ls -la")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stderr != "cd: /missing: No such file or directory\n" {
		t.Fatalf("unexpected stderr %q", stderr)
	}
}

func TestRunHonoursContext(t *testing.T) {
	s := newTestServer(t, map[string]reply{"sleep": {delay: 2 * time.Second}})

	client, err := (&SSHDialer{}).Dial(context.Background(), s.credential(t))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = client.Run(ctx, "sleep")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDialWrongPassword(t *testing.T) {
	s := newTestServer(t, nil)
	cred := s.credential(t)
	cred.Password = "nope"

	_, err := (&SSHDialer{}).Dial(context.Background(), cred)
	if !errors.Is(err, errs.ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	cred := config.Credential{Hostname: "127.0.0.1", User: "alice", Password: "pw", Port: addr.Port}
	_, err = (&SSHDialer{ConnectTimeout: time.Second}).Dial(context.Background(), cred)
	if !errors.Is(err, errs.ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
}

func TestDialKnownHosts(t *testing.T) {
	s := newTestServer(t, nil)
	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(s.addr)}, s.hostKey)
	if err := os.WriteFile(path, []byte(line+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	client, err := (&SSHDialer{KnownHosts: path}).Dial(context.Background(), s.credential(t))
	if err != nil {
		t.Fatal(err)
	}
	client.Close()
}

func TestDialKnownHostsMismatch(t *testing.T) {
	s := newTestServer(t, nil)
	other := newTestServer(t, nil)
	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(s.addr)}, other.hostKey)
	if err := os.WriteFile(path, []byte(line+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := (&SSHDialer{KnownHosts: path}).Dial(context.Background(), s.credential(t))
	if !errors.Is(err, errs.ErrConnect) || !strings.Contains(err.Error(), "knownhosts: key mismatch") {
		t.Fatalf("expected host key mismatch, got %v", err)
	}
}

func TestDialMissingKeyFile(t *testing.T) {
	cred := config.Credential{Hostname: "127.0.0.1", User: "alice", KeyPath: filepath.Join(t.TempDir(), "nope")}
	_, err := (&SSHDialer{}).Dial(context.Background(), cred)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist error, got %v", err)
	}
}
