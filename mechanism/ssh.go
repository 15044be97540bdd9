package mechanism

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/yarkm13/fetchopus/transfer"
)

// HostKeyStore remembers host key fingerprints the user accepted during this
// process.
type HostKeyStore struct {
	mu    sync.Mutex
	known map[string]string
}

func NewHostKeyStore() *HostKeyStore {
	return &HostKeyStore{known: make(map[string]string)}
}

func (s *HostKeyStore) Add(hostname, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[hostname] = fingerprint
}

func (s *HostKeyStore) Known(hostname, fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, exists := s.known[hostname]
	return exists && stored == fingerprint
}

// callback asks the user to confirm unknown fingerprints.
func (s *HostKeyStore) callback(p Prompter) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		fingerprint := ssh.FingerprintSHA256(key)
		if s.Known(hostname, fingerprint) {
			return nil
		}

		ok, err := p.Confirm(fmt.Sprintf("\nThe authenticity of host '%s' can't be established.\n"+
			"%s key fingerprint is %s\n"+
			"Are you sure you want to continue connecting (yes/no)? ", hostname, key.Type(), fingerprint))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("host key verification rejected by user")
		}
		s.Add(hostname, fingerprint)
		return nil
	}
}

// sshAuthKind reports "key" when the options ask for private key auth.
func sshAuthKind(opts transfer.Options) string {
	if opts.String("auth") == "key" {
		return "key"
	}
	if _, ok := opts.Get("private_key"); ok {
		return "key"
	}
	return "password"
}

func promptSSH(env *Env, opts transfer.Options) (transfer.Options, error) {
	if sshAuthKind(opts) == "key" {
		return promptSecret(env, opts, "private_key", "Enter base64 encoded private key: ")
	}
	return promptSecret(env, opts, "password", fmt.Sprintf("Enter password for %s: ", opts.String("user")))
}

func sshClientConfig(env *Env, opts transfer.Options) (*ssh.ClientConfig, error) {
	var auth ssh.AuthMethod
	if sshAuthKind(opts) == "key" {
		creds := credentialsFrom(opts, "private_key")
		defer creds.Clear()

		privateKeyBytes, err := base64.StdEncoding.DecodeString(string(creds.password))
		if err != nil {
			return nil, fmt.Errorf("failed to decode private key: %w", err)
		}
		defer secureWipe(privateKeyBytes)

		signer, err := ssh.ParsePrivateKey(privateKeyBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = ssh.PublicKeys(signer)
	} else {
		creds := credentialsFrom(opts, "password")
		password := string(creds.password)
		creds.Clear()
		auth = ssh.Password(password)
	}

	hostKeyCallback := env.HostKeys.callback(env.Prompter)
	if env.InsecureHostKeys || opts.Bool("insecure") {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	return &ssh.ClientConfig{
		User:            opts.String("user"),
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         env.Timeout,
	}, nil
}

// dialSSH connects to the host of u. The context bounds the TCP dial only.
func dialSSH(ctx context.Context, env *Env, opts transfer.Options, u *url.URL) (*ssh.Client, error) {
	config, err := sshClientConfig(env, opts)
	if err != nil {
		return nil, err
	}
	addr := hostPort(u, opts.String("port"), "22")

	d := net.Dialer{Timeout: env.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish ssh connection: %w", err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// hostPort joins the URL host with an explicit port option, the URL port or
// the default, in that order.
func hostPort(u *url.URL, port, defaultPort string) string {
	if port == "" {
		port = u.Port()
	}
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(u.Hostname(), port)
}
