package mechanism

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yarkm13/fetchopus/transfer"
)

const httpBody = "the quick brown fox jumps over the lazy dog"

func newHTTPServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/file", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "file", time.Time{}, strings.NewReader(httpBody))
	})
	mux.HandleFunc("/norange", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, httpBody)
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bob" || pass != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "private")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func httpFetch(t *testing.T, m transfer.Mechanism, url string, rng *transfer.Range) (bool, string, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out")
	ok, text := m.TransferFile(context.Background(), url, rng, out, false)
	data, _ := os.ReadFile(out)
	return ok, text, string(data)
}

func TestHTTPTransfer(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	srv := newHTTPServer(t)
	m, err := reg.GetMechanism("http", transfer.Options{})
	require.NoError(t, err)

	ok, text, data := httpFetch(t, m, srv.URL+"/file", nil)
	require.True(t, ok, text)
	assert.Equal(t, httpBody, data)
	assert.Contains(t, text, "GET "+srv.URL+"/file")
}

func TestHTTPTransferRange(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	srv := newHTTPServer(t)
	m, err := reg.GetMechanism("http", transfer.Options{})
	require.NoError(t, err)
	rng := &transfer.Range{Offset: 4, Length: 5}

	ok, text, data := httpFetch(t, m, srv.URL+"/file", rng)
	require.True(t, ok, text)
	assert.Equal(t, "quick", data)

	ok, text, data = httpFetch(t, m, srv.URL+"/norange", rng)
	require.True(t, ok, text)
	assert.Equal(t, "quick", data)
	assert.Contains(t, text, "server ignored range")
}

func TestHTTPTransferRangePastEnd(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	srv := newHTTPServer(t)
	m, err := reg.GetMechanism("http", transfer.Options{})
	require.NoError(t, err)

	ok, text, data := httpFetch(t, m, srv.URL+"/file", &transfer.Range{Offset: 1000, Length: 5})
	require.True(t, ok, text)
	assert.Equal(t, "", data)
	assert.Contains(t, text, "past the end")

	// short read at the tail
	ok, text, data = httpFetch(t, m, srv.URL+"/file", &transfer.Range{Offset: 40, Length: 100})
	require.True(t, ok, text)
	assert.Equal(t, "dog", data)
}

func TestHTTPTransferFailure(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	srv := newHTTPServer(t)
	m, err := reg.GetMechanism("http", transfer.Options{})
	require.NoError(t, err)

	ok, text, _ := httpFetch(t, m, srv.URL+"/missing", nil)
	assert.False(t, ok)
	assert.Contains(t, text, "404")
}

func TestHTTPBasicAuth(t *testing.T) {
	reg, prompter, _ := newTestRegistry(t)
	srv := newHTTPServer(t)

	m, err := reg.GetMechanism("http", transfer.NewOptions("user", "bob"))
	require.NoError(t, err)
	userOpts, err := m.PromptForUserInputOptions()
	require.NoError(t, err)
	assert.Equal(t, 1, prompter.count())
	m.UpdateOptions(userOpts)

	ok, text, data := httpFetch(t, m, srv.URL+"/private", nil)
	require.True(t, ok, text)
	assert.Equal(t, "private", data)
}

func TestHTTPWithoutUserDoesNotPrompt(t *testing.T) {
	reg, prompter, _ := newTestRegistry(t)
	m, err := reg.GetMechanism("http", transfer.Options{})
	require.NoError(t, err)

	opts, err := m.PromptForUserInputOptions()
	require.NoError(t, err)
	assert.Equal(t, 0, opts.Len())
	assert.Equal(t, 0, prompter.count())
}
