package transfer

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
)

// stubMechanism writes content to the output path and counts prompts.
type stubMechanism struct {
	content    []byte
	ok         bool
	output     string
	promptOpts Options
	promptErr  error
	panicMsg   string

	prompts   *int32
	mu        sync.Mutex
	updates   []Options
	lastPath  string
	lastRange *Range
}

func (m *stubMechanism) PromptForUserInputOptions() (Options, error) {
	atomic.AddInt32(m.prompts, 1)
	if m.promptErr != nil {
		return Options{}, m.promptErr
	}
	return m.promptOpts.Clone(), nil
}

func (m *stubMechanism) UpdateOptions(opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, opts)
}

func (m *stubMechanism) TransferFile(ctx context.Context, url string, rng *Range, outputPath string, displayOutput bool) (bool, string) {
	m.mu.Lock()
	m.lastPath = outputPath
	m.lastRange = rng
	m.mu.Unlock()
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.content != nil {
		if err := os.WriteFile(outputPath, m.content, 0o644); err != nil {
			return false, err.Error()
		}
	}
	return m.ok, m.output
}

var errUnknown = errors.New("unknown mechanism")

// stubRegistry hands out stubMechanisms built from template.
type stubRegistry struct {
	template stubMechanism
	defaults map[string]Options
	prompts  int32

	mu      sync.Mutex
	created []*stubMechanism
	names   []string
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		template: stubMechanism{ok: true, output: "ok"},
		defaults: map[string]Options{},
	}
}

func (r *stubRegistry) GetMechanism(name string, opts Options) (Mechanism, error) {
	if name != "stub" && name != "other" {
		return nil, errUnknown
	}
	m := &stubMechanism{
		content:    r.template.content,
		ok:         r.template.ok,
		output:     r.template.output,
		promptOpts: r.template.promptOpts,
		promptErr:  r.template.promptErr,
		panicMsg:   r.template.panicMsg,
		prompts:    &r.prompts,
	}
	r.mu.Lock()
	r.created = append(r.created, m)
	r.names = append(r.names, name)
	r.mu.Unlock()
	return m, nil
}

func (r *stubRegistry) DefaultMechanism(url string) (string, Options, error) {
	opts, ok := r.defaults[url]
	if !ok {
		return "", Options{}, errors.New("no default mechanism for " + url)
	}
	return "stub", opts, nil
}

func (r *stubRegistry) promptCount() int {
	return int(atomic.LoadInt32(&r.prompts))
}

func (r *stubRegistry) last() *stubMechanism {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created[len(r.created)-1]
}
