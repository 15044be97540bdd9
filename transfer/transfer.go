// Package transfer binds a URL, a transfer mechanism and its options into a
// reusable unit of work.
//
// A Transfer resolves its mechanism through a Registry, collects user options
// (passwords, keys) once per data source through an OptionCache, and then
// either writes the resource to a path (Run) or returns it in memory (GetData).
package transfer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Mechanism performs the actual transfer for one kind of backend.
type Mechanism interface {
	// PromptForUserInputOptions asks the user for whatever the mechanism
	// still needs. It may block on terminal input.
	PromptForUserInputOptions() (Options, error)
	UpdateOptions(opts Options)
	// TransferFile writes url, or the part selected by rng, to outputPath.
	// The returned text is the mechanism's own output.
	TransferFile(ctx context.Context, url string, rng *Range, outputPath string, displayOutput bool) (bool, string)
}

// Registry resolves mechanisms by name and infers them from URLs.
type Registry interface {
	GetMechanism(name string, opts Options) (Mechanism, error)
	DefaultMechanism(url string) (string, Options, error)
}

// Params describe the transfer to build. Mechanism may be left empty to infer
// it, together with Options, from URL. An empty DataSourceID disables caching
// of user options.
type Params struct {
	URL          string
	Mechanism    string
	Options      Options
	Range        *Range
	DataSourceID string
}

// Factory builds transfers sharing one registry and one option cache.
type Factory struct {
	registry Registry
	cache    *OptionCache
	tempDir  string
}

type FactoryOption func(*Factory)

// WithCache replaces DefaultCache.
func WithCache(c *OptionCache) FactoryOption {
	return func(f *Factory) { f.cache = c }
}

// WithTempDir sets where GetData creates its temporary files.
func WithTempDir(dir string) FactoryOption {
	return func(f *Factory) { f.tempDir = dir }
}

func NewFactory(reg Registry, opts ...FactoryOption) *Factory {
	f := &Factory{
		registry: reg,
		cache:    DefaultCache,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.cache == nil {
		f.cache = DefaultCache
	}
	return f
}

// New builds a transfer with DefaultCache.
func New(reg Registry, p Params) (*Transfer, error) {
	return NewFactory(reg).New(p)
}

// Transfer is one resolved unit of work. It is not modified after New returns.
type Transfer struct {
	url           string
	mechanismName string
	mechOpts      Options
	partialRange  *Range
	dataSourceID  string
	userOpts      Options
	mechanism     Mechanism
	tempDir       string
}

// New resolves the mechanism and its user options. Registry errors are
// returned unchanged.
func (f *Factory) New(p Params) (*Transfer, error) {
	if err := p.Range.Validate(); err != nil {
		return nil, err
	}

	t := &Transfer{
		url:           p.URL,
		mechanismName: p.Mechanism,
		mechOpts:      p.Options.Clone(),
		dataSourceID:  p.DataSourceID,
		tempDir:       f.tempDir,
	}
	if p.Range != nil {
		r := *p.Range
		t.partialRange = &r
	}

	if t.url != "" && t.mechanismName == "" {
		name, opts, err := f.registry.DefaultMechanism(t.url)
		if err != nil {
			return nil, err
		}
		t.mechanismName, t.mechOpts = name, opts.Clone()
	}
	if t.mechanismName == "" {
		return nil, ErrNoMechanism
	}

	mech, err := f.registry.GetMechanism(t.mechanismName, t.mechOpts.Clone())
	if err != nil {
		return nil, err
	}
	t.mechanism = mech

	if t.dataSourceID != "" {
		t.userOpts, err = f.cache.Resolve(t.dataSourceID, mech.PromptForUserInputOptions)
	} else {
		t.userOpts, err = mech.PromptForUserInputOptions()
	}
	if err != nil {
		return nil, err
	}
	mech.UpdateOptions(t.userOpts.Clone())

	logrus.WithFields(logrus.Fields{
		"function":    "New",
		"url":         t.url,
		"mechanism":   t.mechanismName,
		"data_source": t.dataSourceID,
		"range":       t.partialRange.String(),
	}).Debug("Transfer resolved")
	return t, nil
}

func (t *Transfer) URL() string           { return t.url }
func (t *Transfer) MechanismName() string { return t.mechanismName }
func (t *Transfer) DataSourceID() string  { return t.dataSourceID }

func (t *Transfer) MechanismOptions() Options { return t.mechOpts.Clone() }

// UserOptions are the options obtained from the cache or the prompt.
func (t *Transfer) UserOptions() Options { return t.userOpts.Clone() }

func (t *Transfer) PartialRange() *Range {
	if t.partialRange == nil {
		return nil
	}
	r := *t.partialRange
	return &r
}

// Run transfers into outputPath and reports the mechanism's result as is.
func (t *Transfer) Run(ctx context.Context, outputPath string, displayOutput bool) (bool, string) {
	return t.mechanism.TransferFile(ctx, t.url, t.partialRange, outputPath, displayOutput)
}

// GetData runs the transfer into a temporary file and returns its contents.
// The temporary file is removed on every return path. A mechanism failure is
// reported as *TransferFailedError.
func (t *Transfer) GetData(ctx context.Context, displayOutput bool) (data []byte, err error) {
	tmp, err := os.CreateTemp(t.tempDir, "fetchopus-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierror.Append(err, fmt.Errorf("failed to remove temporary file: %w", rmErr)).ErrorOrNil()
			data = nil
		}
	}()
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temporary file: %w", err)
	}

	ok, _ := t.Run(ctx, tmpPath, displayOutput)
	if !ok {
		return nil, &TransferFailedError{URL: t.url}
	}
	return os.ReadFile(tmpPath)
}

// Equal compares the url, mechanism, options, user options, range and data
// source of both transfers. The mechanism instances are not compared.
func (t *Transfer) Equal(other *Transfer) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.url == other.url &&
		t.mechanismName == other.mechanismName &&
		t.mechOpts.Equal(other.mechOpts) &&
		t.userOpts.Equal(other.userOpts) &&
		t.partialRange.equal(other.partialRange) &&
		t.dataSourceID == other.dataSourceID
}

func (t *Transfer) String() string {
	var b strings.Builder
	b.WriteString("Transfer:\n")
	fmt.Fprintf(&b, "URL = %s\n", t.url)
	fmt.Fprintf(&b, "mechanism = %s\n", t.mechanismName)
	if t.mechOpts.Len() == 0 {
		b.WriteString("   No options\n")
	}
	for _, k := range t.mechOpts.keys {
		fmt.Fprintf(&b, "   %s: %v\n", k, t.mechOpts.values[k])
	}
	fmt.Fprintf(&b, "partial_range = %s", t.partialRange.String())
	return b.String()
}
