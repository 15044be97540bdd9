// Package mechanism provides the transfer backends (FTP, SCP, SFTP, HTTP,
// S3 and local files) and the registry that selects between them.
package mechanism

import (
	"io"
	"time"

	"github.com/yarkm13/fetchopus/transfer"
)

// Factory creates mechanisms of one kind.
type Factory interface {
	Name() string
	// Schemes lists the URL schemes DefaultMechanism maps to this factory.
	Schemes() []string
	Create(opts transfer.Options, env *Env) (transfer.Mechanism, error)
}

// Env is shared by every mechanism created through the same Registry.
type Env struct {
	Prompter Prompter
	// Console receives mechanism output when a transfer displays it.
	Console  io.Writer
	Timeout  time.Duration
	HostKeys *HostKeyStore

	// InsecureHostKeys skips SSH host key verification.
	InsecureHostKeys bool

	S3Region   string
	S3Endpoint string
}

// base holds what every mechanism keeps: its name, its options and the env.
type base struct {
	name string
	opts transfer.Options
	env  *Env
}

func (b *base) UpdateOptions(opts transfer.Options) {
	b.opts = b.opts.Merge(opts)
}

func (b *base) newSession(displayOutput bool) *session {
	var console io.Writer
	if displayOutput {
		console = b.env.Console
	}
	return &session{name: b.name, console: console}
}
