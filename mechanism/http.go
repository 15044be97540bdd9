package mechanism

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/yarkm13/fetchopus/transfer"
)

type HTTPFactory struct{}

func (f *HTTPFactory) Name() string { return "http" }

func (f *HTTPFactory) Schemes() []string { return []string{"http", "https"} }

func (f *HTTPFactory) Create(opts transfer.Options, env *Env) (transfer.Mechanism, error) {
	client := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: env.Timeout}).DialContext,
			TLSHandshakeTimeout:   env.Timeout,
			ResponseHeaderTimeout: env.Timeout,
		},
	}
	return &HTTPMechanism{base: base{name: f.Name(), opts: opts.Clone(), env: env}, client: client}, nil
}

// HTTPMechanism issues a GET with a Range header for partial ranges. Servers
// that ignore the header are handled by skipping locally.
type HTTPMechanism struct {
	base
	client *http.Client
}

// PromptForUserInputOptions asks for a basic auth password when a user is set.
func (m *HTTPMechanism) PromptForUserInputOptions() (transfer.Options, error) {
	if m.opts.String("user") == "" {
		return transfer.Options{}, nil
	}
	return promptSecret(m.env, m.opts, "password", fmt.Sprintf("Enter HTTP password for %s: ", m.opts.String("user")))
}

func (m *HTTPMechanism) TransferFile(ctx context.Context, rawURL string, rng *transfer.Range, outputPath string, displayOutput bool) (bool, string) {
	s := m.newSession(displayOutput)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return s.fail(err)
	}
	if user := m.opts.String("user"); user != "" {
		creds := credentialsFrom(m.opts, "password")
		req.SetBasicAuth(creds.username, string(creds.password))
		creds.Clear()
	}
	if rng != nil {
		req.Header.Set("Range", rng.HTTPHeader())
	}

	s.logf("GET %s", req.URL.Redacted())
	resp, err := m.client.Do(req)
	if err != nil {
		return s.fail(err)
	}
	defer resp.Body.Close()

	skip, limit := rangeBounds(rng)
	switch {
	case resp.StatusCode == http.StatusPartialContent && rng != nil:
		skip = 0
	case resp.StatusCode == http.StatusOK:
		if rng != nil {
			s.logf("server ignored range, skipping %d bytes locally", skip)
		}
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && rng != nil:
		s.logf("range %s starts past the end of the resource", rng)
		return saveEmpty(s, outputPath)
	default:
		return s.fail(fmt.Errorf("bad http response %v", resp.Status))
	}

	n, err := saveToPath(outputPath, resp.Body, skip, limit)
	if err != nil {
		return s.fail(err)
	}
	return s.done(n, outputPath)
}
