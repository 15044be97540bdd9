package mechanism

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/yarkm13/fetchopus/transfer"
)

// Prompter asks the user for input a mechanism cannot find in its options.
type Prompter interface {
	ReadSecret(prompt string) ([]byte, error)
	Confirm(prompt string) (bool, error)
}

type Credentials struct {
	username string
	password []byte
}

// credentialsFrom copies the user and the secret stored under key.
func credentialsFrom(opts transfer.Options, key string) *Credentials {
	var secret []byte
	switch v, _ := opts.Get(key); s := v.(type) {
	case []byte:
		secret = make([]byte, len(s))
		copy(secret, s)
	case string:
		secret = []byte(s)
	}
	return &Credentials{username: opts.String("user"), password: secret}
}

func (c *Credentials) Clear() {
	secureWipe(c.password)
	c.password = nil
}

// secureWipe overwrites the slice with zeros
func secureWipe(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// TerminalPrompter reads from a terminal without echo, or line by line when
// the input is not a terminal. Prompts are serialized.
type TerminalPrompter struct {
	in  *os.File
	out io.Writer

	mu     sync.Mutex
	reader *bufio.Reader
}

func NewTerminalPrompter(in *os.File, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: in, out: out}
}

// maxSecretLen bounds secrets read from the terminal; base64 keys are long.
const maxSecretLen = 65536

func (p *TerminalPrompter) ReadSecret(prompt string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.out, prompt)
	defer fmt.Fprintln(p.out)

	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		line, err := p.readLine()
		return []byte(line), err
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to set terminal to raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	var secret []byte
	buffer := make([]byte, 4096)
	defer secureWipe(buffer)
	for {
		n, err := p.in.Read(buffer)
		if err != nil {
			secureWipe(secret)
			return nil, fmt.Errorf("error reading secret: %w", err)
		}
		if n > 0 && buffer[n-1] == 3 { // ctrl-c
			secureWipe(secret)
			return nil, fmt.Errorf("input interrupted")
		}
		if n > 0 && (buffer[n-1] == '\r' || buffer[n-1] == '\n') {
			secret = append(secret, buffer[:n-1]...)
			break
		}
		secret = append(secret, buffer[:n]...)

		if len(secret) > maxSecretLen {
			logrus.Warn("Very large secret entered, truncating")
			break
		}
	}
	return secret, nil
}

func (p *TerminalPrompter) Confirm(prompt string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.out, prompt)
	response, err := p.readLine()
	if err != nil {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}
	response = strings.ToLower(response)
	return response == "yes" || response == "y", nil
}

func (p *TerminalPrompter) readLine() (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.in)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptSecret asks for key unless opts already carry it.
func promptSecret(env *Env, opts transfer.Options, key, prompt string) (transfer.Options, error) {
	var user transfer.Options
	if _, ok := opts.Get(key); ok {
		return user, nil
	}
	secret, err := env.Prompter.ReadSecret(prompt)
	if err != nil {
		return user, err
	}
	user.Set(key, secret)
	return user, nil
}
