package runner

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHRunner executes commands on a remote node over SSH using a private
// key identity, the same auth shape carried in types.AuthConfig. Dialing
// happens once, lazily, on first use, and the connection is reused for
// subsequent commands against the same node. The node updater's
// waiting-for-ssh stage does not dial through it: it probes the SSH port
// with a TCP check (Updater.SSHProbe).
type SSHRunner struct {
	Host           string
	Port           int
	User           string
	PrivateKeyPath string
	DialTimeout    time.Duration

	client *ssh.Client
}

// NewSSHRunner constructs a runner for host:port, deferring the actual
// dial until the first command.
func NewSSHRunner(host string, port int, user, privateKeyPath string) *SSHRunner {
	if port == 0 {
		port = 22
	}
	return &SSHRunner{
		Host:           host,
		Port:           port,
		User:           user,
		PrivateKeyPath: privateKeyPath,
		DialTimeout:    10 * time.Second,
	}
}

// Dial establishes (or reuses) the SSH connection. Exported separately
// from CheckCall so a caller can check that an SSH session can be
// established without running a command.
func (r *SSHRunner) Dial(ctx context.Context) error {
	if r.client != nil {
		return nil
	}
	keyBytes, err := os.ReadFile(r.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("ssh: read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return fmt.Errorf("ssh: parse private key: %w", err)
	}

	cfg := &ssh.ClientConfig{
		User:            r.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // node host keys are not pre-provisioned; fleet nodes are ephemeral
		Timeout:         r.DialTimeout,
	}

	addr := net.JoinHostPort(r.Host, fmt.Sprintf("%d", r.Port))
	dialer := net.Dialer{Timeout: r.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("ssh: dial %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ssh: handshake %s: %w", addr, err)
	}
	r.client = ssh.NewClient(sshConn, chans, reqs)
	return nil
}

// Close closes the underlying SSH connection, if any.
func (r *SSHRunner) Close() error {
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

func (r *SSHRunner) CheckCall(ctx context.Context, argv []string) error {
	_, err := r.exec(ctx, argv)
	return err
}

func (r *SSHRunner) CheckOutput(ctx context.Context, argv []string) ([]byte, error) {
	return r.exec(ctx, argv)
}

func (r *SSHRunner) exec(ctx context.Context, argv []string) ([]byte, error) {
	if err := r.Dial(ctx); err != nil {
		return nil, err
	}
	session, err := r.client.NewSession()
	if err != nil {
		// The connection may have gone stale; force a redial on the next call.
		r.client = nil
		return nil, fmt.Errorf("ssh: new session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	cmd := strings.Join(argv, " ")
	err = session.Run(cmd)
	if err == nil {
		return stdout.Bytes(), nil
	}
	if exitErr, ok := err.(*ssh.ExitError); ok {
		return stdout.Bytes(), &CommandFailed{Argv: argv, ExitCode: exitErr.ExitStatus(), Output: stderr.String()}
	}
	return stdout.Bytes(), &CommandFailed{Argv: argv, ExitCode: -1, Output: err.Error()}
}
