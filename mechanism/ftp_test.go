package mechanism

import (
	"net"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yarkm13/fetchopus/transfer"
)

// ftpServer is a single-file FTP server speaking just enough of the protocol
// for login, EPSV, REST and RETR. It records every command it receives.
type ftpServer struct {
	addr string

	mu       sync.Mutex
	commands []string
}

func newFTPServer(t *testing.T) *ftpServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	s := &ftpServer{addr: ln.Addr().String()}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *ftpServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *ftpServer) serve(conn net.Conn) {
	tp := textproto.NewConn(conn)
	defer tp.Close()

	var (
		user   string
		offset int64
		data   net.Listener
	)
	defer func() {
		if data != nil {
			data.Close()
		}
	}()

	_ = tp.PrintfLine("220 fetchopus test server")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(cmd) {
		case "FEAT":
			_ = tp.PrintfLine("211 no features")
		case "USER":
			user = arg
			_ = tp.PrintfLine("331 password required")
		case "PASS":
			if user == "anonymous" || (user == "bob" && arg == "s3cret") {
				_ = tp.PrintfLine("230 logged in")
			} else {
				_ = tp.PrintfLine("530 Login incorrect")
			}
		case "TYPE":
			_ = tp.PrintfLine("200 type set")
		case "EPSV":
			if data != nil {
				data.Close()
			}
			data, err = net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				_ = tp.PrintfLine("425 cannot open data connection")
				continue
			}
			_ = tp.PrintfLine("229 Entering Extended Passive Mode (|||%d|)", data.Addr().(*net.TCPAddr).Port)
		case "REST":
			offset, _ = strconv.ParseInt(arg, 10, 64)
			_ = tp.PrintfLine("350 restarting at %d", offset)
		case "RETR":
			s.retr(tp, data, arg, offset)
			offset = 0
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func (s *ftpServer) retr(tp *textproto.Conn, data net.Listener, path string, offset int64) {
	content, err := os.ReadFile(path)
	if err != nil || data == nil {
		_ = tp.PrintfLine("550 %s: no such file", path)
		return
	}
	_ = tp.PrintfLine("150 opening data connection")
	dc, err := data.Accept()
	if err != nil {
		_ = tp.PrintfLine("425 no data connection")
		return
	}
	if offset < int64(len(content)) {
		_, _ = dc.Write(content[offset:])
	}
	dc.Close()
	_ = tp.PrintfLine("226 transfer complete")
}

func TestFTPTransfer(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	srv := newFTPServer(t)
	url := "ftp://bob@" + srv.addr + writeRemoteFile(t)

	m, err := reg.GetMechanism("ftp", bobOptions())
	require.NoError(t, err)

	ok, text, data := remoteFetch(t, m, url, nil)
	require.True(t, ok, text)
	assert.Equal(t, remoteBody, data)
	assert.Contains(t, srv.received(), "USER bob")
	assert.NotContains(t, strings.Join(srv.received(), "\n"), "REST")
}

func TestFTPTransferRange(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	srv := newFTPServer(t)
	url := "ftp://bob@" + srv.addr + writeRemoteFile(t)

	m, err := reg.GetMechanism("ftp", bobOptions())
	require.NoError(t, err)

	ok, text, data := remoteFetch(t, m, url, &transfer.Range{Offset: 4, Length: 6})
	require.True(t, ok, text)
	assert.Equal(t, "456789", data)
	assert.Contains(t, srv.received(), "REST 4")

	ok, text, data = remoteFetch(t, m, url, &transfer.Range{Offset: 100, Length: 5})
	require.True(t, ok, text)
	assert.Equal(t, "", data)
}

func TestFTPAnonymousTransfer(t *testing.T) {
	reg, prompter, _ := newTestRegistry(t)
	srv := newFTPServer(t)

	m, err := reg.GetMechanism("ftp", transfer.Options{})
	require.NoError(t, err)
	opts, err := m.PromptForUserInputOptions()
	require.NoError(t, err)
	m.UpdateOptions(opts)

	ok, text, data := remoteFetch(t, m, "ftp://"+srv.addr+writeRemoteFile(t), nil)
	require.True(t, ok, text)
	assert.Equal(t, remoteBody, data)
	assert.Contains(t, srv.received(), "USER anonymous")
	assert.Equal(t, 0, prompter.count())
}

func TestFTPTransferFailures(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	srv := newFTPServer(t)

	m, err := reg.GetMechanism("ftp", transfer.NewOptions("user", "bob", "password", "nope"))
	require.NoError(t, err)
	ok, text, _ := remoteFetch(t, m, "ftp://bob@"+srv.addr+writeRemoteFile(t), nil)
	assert.False(t, ok)
	assert.Contains(t, text, "login as bob")

	m, err = reg.GetMechanism("ftp", bobOptions())
	require.NoError(t, err)
	ok, text, _ = remoteFetch(t, m, "ftp://bob@"+srv.addr+"/does/not/exist", nil)
	assert.False(t, ok)
	assert.Contains(t, text, "550")
}
