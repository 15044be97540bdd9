package mechanism

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/yarkm13/fetchopus/transfer"
)

type LocalFactory struct{}

func (f *LocalFactory) Name() string { return "file" }

func (f *LocalFactory) Schemes() []string { return []string{"file"} }

func (f *LocalFactory) Create(opts transfer.Options, env *Env) (transfer.Mechanism, error) {
	return &LocalMechanism{base: base{name: f.Name(), opts: opts.Clone(), env: env}}, nil
}

// LocalMechanism copies files reachable through the local filesystem.
type LocalMechanism struct {
	base
}

func (m *LocalMechanism) PromptForUserInputOptions() (transfer.Options, error) {
	return transfer.Options{}, nil
}

// localPath accepts file:// URLs and plain paths.
func localPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "":
		return rawURL, nil
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return "", fmt.Errorf("file url %q names a remote host", rawURL)
		}
		return u.Path, nil
	}
	return "", fmt.Errorf("not a local url: %q", rawURL)
}

func (m *LocalMechanism) TransferFile(ctx context.Context, rawURL string, rng *transfer.Range, outputPath string, displayOutput bool) (bool, string) {
	s := m.newSession(displayOutput)
	path, err := localPath(rawURL)
	if err != nil {
		return s.fail(err)
	}

	s.logf("copying %s", path)
	f, err := os.Open(path)
	if err != nil {
		return s.fail(err)
	}
	defer f.Close()

	skip, limit := rangeBounds(rng)
	if skip > 0 {
		if _, err := f.Seek(skip, io.SeekStart); err != nil {
			return s.fail(err)
		}
	}
	n, err := saveToPath(outputPath, f, 0, limit)
	if err != nil {
		return s.fail(err)
	}
	return s.done(n, outputPath)
}
