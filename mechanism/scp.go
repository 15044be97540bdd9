package mechanism

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"golang.org/x/crypto/ssh"

	"github.com/yarkm13/fetchopus/transfer"
)

type SCPFactory struct{}

func (f *SCPFactory) Name() string { return "scp" }

func (f *SCPFactory) Schemes() []string { return []string{"scp"} }

func (f *SCPFactory) Create(opts transfer.Options, env *Env) (transfer.Mechanism, error) {
	return &SCPMechanism{base: base{name: f.Name(), opts: opts.Clone(), env: env}}, nil
}

// SCPMechanism runs "scp -f" on the remote host. Partial ranges are cut
// locally since the protocol always sends whole files.
type SCPMechanism struct {
	base
}

func (m *SCPMechanism) PromptForUserInputOptions() (transfer.Options, error) {
	return promptSSH(m.env, m.opts)
}

func (m *SCPMechanism) TransferFile(ctx context.Context, rawURL string, rng *transfer.Range, outputPath string, displayOutput bool) (bool, string) {
	s := m.newSession(displayOutput)
	u, err := url.Parse(rawURL)
	if err != nil {
		return s.fail(err)
	}

	s.logf("connecting to %s", u.Host)
	client, err := dialSSH(ctx, m.env, m.opts, u)
	if err != nil {
		return s.fail(err)
	}
	defer client.Close()

	skip, limit := rangeBounds(rng)
	n, err := scpFetch(client, u.Path, func(r io.Reader) (int64, error) {
		return saveToPath(outputPath, r, skip, limit)
	})
	if err != nil {
		return s.fail(err)
	}
	return s.done(n, outputPath)
}

// scpFetch speaks the sink side of the scp protocol for a single file and
// hands the file body to save.
func scpFetch(client *ssh.Client, remotePath string, save func(io.Reader) (int64, error)) (int64, error) {
	session, err := client.NewSession()
	if err != nil {
		return 0, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	if err := session.Start(shellquote.Join("scp", "-f", remotePath)); err != nil {
		return 0, fmt.Errorf("failed to start scp command: %w", err)
	}

	writer := bufio.NewWriter(stdin)
	reader := bufio.NewReader(stdout)

	if err := writeByte(writer, 0); err != nil {
		return 0, fmt.Errorf("failed to write initial null byte: %w", err)
	}

	// file metadata line (C0664 999999999 test.txt)
	//                     └─┬─┘ └───┬───┘ └───┬───┘
	//                       │       │         │
	//                      mode    size    filename
	line, err := reader.ReadString('\n')
	if err != nil {
		slurp, _ := io.ReadAll(stderr)
		return 0, fmt.Errorf("failed to read file metadata: %w (%s)", err, strings.TrimSpace(string(slurp)))
	}
	size, err := parseSCPHeader(line)
	if err != nil {
		return 0, err
	}

	if err := writeByte(writer, 0); err != nil {
		return 0, fmt.Errorf("failed to acknowledge metadata: %w", err)
	}

	limited := io.LimitReader(reader, size)
	n, err := save(limited)
	if err != nil {
		return n, err
	}
	// a partial range leaves the rest of the body unread
	if _, err := io.Copy(io.Discard, limited); err != nil {
		return n, fmt.Errorf("failed to drain file body: %w", err)
	}

	if b, err := reader.ReadByte(); err != nil || b != 0 {
		return n, fmt.Errorf("unexpected trailing byte: %v", b)
	}
	if err := writeByte(writer, 0); err != nil {
		return n, fmt.Errorf("failed to send final null byte: %w", err)
	}
	return n, session.Wait()
}

// parseSCPHeader returns the size announced by a "C<mode> <size> <name>" line.
// Error lines (leading 0x01 or 0x02) are reported with their message.
func parseSCPHeader(line string) (int64, error) {
	if len(line) > 0 && (line[0] == 1 || line[0] == 2) {
		return 0, fmt.Errorf("remote scp: %s", strings.TrimSpace(line[1:]))
	}
	fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(fields) != 3 || !strings.HasPrefix(fields[0], "C") {
		return 0, fmt.Errorf("unexpected SCP metadata format: %q", line)
	}
	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid file size: %w", err)
	}
	return size, nil
}

func writeByte(w *bufio.Writer, b byte) error {
	if _, err := w.Write([]byte{b}); err != nil {
		return err
	}
	return w.Flush()
}
