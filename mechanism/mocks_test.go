package mechanism

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/fatih/color"
)

// fakePrompter answers prompts from fixed values and records what it was asked.
type fakePrompter struct {
	mu      sync.Mutex
	secret  string
	confirm bool
	err     error
	asked   []string
}

func (p *fakePrompter) ReadSecret(prompt string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, prompt)
	if p.err != nil {
		return nil, p.err
	}
	return []byte(p.secret), nil
}

func (p *fakePrompter) Confirm(prompt string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, prompt)
	return p.confirm, p.err
}

func (p *fakePrompter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.asked)
}

var errPrompt = errors.New("prompt closed")

func newTestRegistry(t *testing.T) (*Registry, *fakePrompter, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true
	prompter := &fakePrompter{secret: "s3cret", confirm: true}
	console := &bytes.Buffer{}
	return NewRegistry(WithPrompter(prompter), WithConsole(console)), prompter, console
}
