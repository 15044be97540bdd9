package mechanism

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	stepColor = color.New(color.FgCyan)
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed, color.Bold)
)

// session collects the output of one TransferFile call and echoes it to the
// console when the caller asked to display it.
type session struct {
	name    string
	buf     strings.Builder
	console io.Writer
}

func (s *session) line(c *color.Color, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.buf.WriteString(msg)
	s.buf.WriteByte('\n')
	if s.console != nil {
		c.Fprintf(s.console, "[%s] %s\n", s.name, msg)
	}
}

func (s *session) logf(format string, args ...any) {
	s.line(stepColor, format, args...)
}

func (s *session) fail(err error) (bool, string) {
	s.line(failColor, "error: %v", err)
	return false, s.buf.String()
}

func (s *session) done(n int64, outputPath string) (bool, string) {
	s.line(okColor, "transferred %d bytes to %s", n, outputPath)
	return true, s.buf.String()
}
