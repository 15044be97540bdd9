package mechanism

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yarkm13/fetchopus/transfer"
)

var (
	ErrUnknownMechanism   = errors.New("unknown mechanism")
	ErrNoDefaultMechanism = errors.New("no mechanism available")
)

// Registry is an open registration table of mechanism factories.
type Registry struct {
	env       *Env
	mu        sync.RWMutex
	factories map[string]Factory
	schemes   map[string]string
}

type RegistryOption func(*Env)

func WithPrompter(p Prompter) RegistryOption {
	return func(e *Env) { e.Prompter = p }
}

func WithConsole(w io.Writer) RegistryOption {
	return func(e *Env) { e.Console = w }
}

func WithTimeout(d time.Duration) RegistryOption {
	return func(e *Env) { e.Timeout = d }
}

func WithInsecureHostKeys(insecure bool) RegistryOption {
	return func(e *Env) { e.InsecureHostKeys = insecure }
}

func WithS3(region, endpoint string) RegistryOption {
	return func(e *Env) {
		e.S3Region = region
		e.S3Endpoint = endpoint
	}
}

// NewRegistry returns a registry with the built-in factories registered.
func NewRegistry(opts ...RegistryOption) *Registry {
	env := &Env{
		Console:  os.Stdout,
		Timeout:  30 * time.Second,
		HostKeys: NewHostKeyStore(),
	}
	for _, opt := range opts {
		opt(env)
	}
	if env.Prompter == nil {
		env.Prompter = NewTerminalPrompter(os.Stdin, os.Stdout)
	}

	r := &Registry{
		env:       env,
		factories: make(map[string]Factory),
		schemes:   make(map[string]string),
	}
	for _, f := range builtinFactories {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}

var builtinFactories = []Factory{
	&FTPFactory{},
	&SCPFactory{},
	&SFTPFactory{},
	&HTTPFactory{},
	&S3Factory{},
	&LocalFactory{},
	// add more
}

// Register adds f under its name and claims its URL schemes.
func (r *Registry) Register(f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := f.Name()
	if name == "" {
		return fmt.Errorf("mechanism name cannot be empty")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("mechanism %q already registered", name)
	}
	r.factories[name] = f
	for _, scheme := range f.Schemes() {
		r.schemes[strings.ToLower(scheme)] = name
	}
	return nil
}

// Names lists the registered mechanisms in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Env() *Env { return r.env }

func (r *Registry) GetMechanism(name string, opts transfer.Options) (transfer.Mechanism, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMechanism, name)
	}
	return f.Create(opts, r.env)
}

// DefaultMechanism picks a mechanism by URL scheme. User, password and port
// found in the URL become mechanism options.
func (r *Registry) DefaultMechanism(rawURL string) (string, transfer.Options, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", transfer.Options{}, fmt.Errorf("%w for %q: %v", ErrNoDefaultMechanism, rawURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "file"
	}

	r.mu.RLock()
	name, ok := r.schemes[scheme]
	r.mu.RUnlock()
	if !ok {
		return "", transfer.Options{}, fmt.Errorf("%w for scheme %q", ErrNoDefaultMechanism, u.Scheme)
	}

	var opts transfer.Options
	if u.User != nil {
		if user := u.User.Username(); user != "" {
			opts.Set("user", user)
		}
		if password, set := u.User.Password(); set {
			opts.Set("password", password)
		}
	}
	if port := u.Port(); port != "" {
		opts.Set("port", port)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "DefaultMechanism",
		"scheme":    scheme,
		"mechanism": name,
	}).Debug("Inferred mechanism from URL")
	return name, opts, nil
}
