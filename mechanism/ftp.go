package mechanism

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jlaffaye/ftp"

	"github.com/yarkm13/fetchopus/transfer"
)

type FTPFactory struct{}

func (f *FTPFactory) Name() string { return "ftp" }

func (f *FTPFactory) Schemes() []string { return []string{"ftp"} }

func (f *FTPFactory) Create(opts transfer.Options, env *Env) (transfer.Mechanism, error) {
	return &FTPMechanism{base: base{name: f.Name(), opts: opts.Clone(), env: env}}, nil
}

// FTPMechanism fetches files with RETR, using REST for partial ranges.
type FTPMechanism struct {
	base
}

func (m *FTPMechanism) anonymous() bool {
	user := m.opts.String("user")
	return user == "" || user == "anonymous"
}

func (m *FTPMechanism) PromptForUserInputOptions() (transfer.Options, error) {
	if m.anonymous() {
		return transfer.Options{}, nil
	}
	return promptSecret(m.env, m.opts, "password", fmt.Sprintf("Enter FTP password for %s: ", m.opts.String("user")))
}

func (m *FTPMechanism) TransferFile(ctx context.Context, rawURL string, rng *transfer.Range, outputPath string, displayOutput bool) (bool, string) {
	s := m.newSession(displayOutput)
	u, err := url.Parse(rawURL)
	if err != nil {
		return s.fail(err)
	}

	addr := hostPort(u, m.opts.String("port"), "21")
	s.logf("connecting to %s", addr)
	c, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(m.env.Timeout))
	if err != nil {
		return s.fail(err)
	}
	defer c.Quit()

	creds := credentialsFrom(m.opts, "password")
	if m.anonymous() {
		creds = &Credentials{username: "anonymous", password: []byte("anonymous")}
	}
	err = c.Login(creds.username, string(creds.password))
	creds.Clear()
	if err != nil {
		return s.fail(fmt.Errorf("login as %s: %w", creds.username, err))
	}

	var r *ftp.Response
	skip, limit := rangeBounds(rng)
	if skip > 0 {
		s.logf("retrieving %s from offset %d", u.Path, skip)
		r, err = c.RetrFrom(u.Path, uint64(skip))
	} else {
		s.logf("retrieving %s", u.Path)
		r, err = c.Retr(u.Path)
	}
	if err != nil {
		return s.fail(err)
	}

	n, err := saveToPath(outputPath, r, 0, limit)
	// closing a range read early makes the server report an aborted transfer
	if closeErr := r.Close(); err == nil && closeErr != nil && limit < 0 {
		err = closeErr
	}
	if err != nil {
		return s.fail(err)
	}
	return s.done(n, outputPath)
}
