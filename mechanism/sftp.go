package mechanism

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/pkg/sftp"

	"github.com/yarkm13/fetchopus/transfer"
)

type SFTPFactory struct{}

func (f *SFTPFactory) Name() string { return "sftp" }

func (f *SFTPFactory) Schemes() []string { return []string{"sftp"} }

func (f *SFTPFactory) Create(opts transfer.Options, env *Env) (transfer.Mechanism, error) {
	return &SFTPMechanism{base: base{name: f.Name(), opts: opts.Clone(), env: env}}, nil
}

// SFTPMechanism seeks on the remote file for partial ranges.
type SFTPMechanism struct {
	base
}

func (m *SFTPMechanism) PromptForUserInputOptions() (transfer.Options, error) {
	return promptSSH(m.env, m.opts)
}

func (m *SFTPMechanism) TransferFile(ctx context.Context, rawURL string, rng *transfer.Range, outputPath string, displayOutput bool) (bool, string) {
	s := m.newSession(displayOutput)
	u, err := url.Parse(rawURL)
	if err != nil {
		return s.fail(err)
	}

	s.logf("connecting to %s", u.Host)
	conn, err := dialSSH(ctx, m.env, m.opts, u)
	if err != nil {
		return s.fail(err)
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return s.fail(fmt.Errorf("failed to start sftp subsystem: %w", err))
	}
	defer client.Close()

	f, err := client.Open(u.Path)
	if err != nil {
		return s.fail(err)
	}
	defer f.Close()

	skip, limit := rangeBounds(rng)
	if skip > 0 {
		s.logf("seeking %s to offset %d", u.Path, skip)
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
