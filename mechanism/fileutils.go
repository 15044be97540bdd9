package mechanism

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yarkm13/fetchopus/transfer"
)

// rangeBounds converts rng into the number of bytes to skip and the number to
// keep; a limit of -1 keeps everything.
func rangeBounds(rng *transfer.Range) (skip, limit int64) {
	if rng == nil {
		return 0, -1
	}
	return rng.Offset, rng.Length
}

// saveToPath writes reader to outputPath, creating parent directories. skip
// bytes are discarded first; a skip past the end yields an empty file.
func saveToPath(outputPath string, reader io.Reader, skip, limit int64) (int64, error) {
	if skip > 0 {
		if _, err := io.CopyN(io.Discard, reader, skip); err != nil {
			if !errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("failed to skip to offset %d: %w", skip, err)
			}
		}
	}
	if limit >= 0 {
		reader = io.LimitReader(reader, limit)
	}

	// @todo receive mode from caller
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	destFile, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file: %w", err)
	}

	n, err := io.Copy(destFile, reader)
	if err != nil {
		_ = destFile.Close()
		return n, fmt.Errorf("failed to copy file contents: %w", err)
	}
	if err := destFile.Close(); err != nil {
		return n, fmt.Errorf("failed to close destination file: %w", err)
	}
	return n, nil
}

// saveEmpty finishes a session whose range selected no bytes.
func saveEmpty(s *session, outputPath string) (bool, string) {
	n, err := saveToPath(outputPath, strings.NewReader(""), 0, -1)
	if err != nil {
		return s.fail(err)
	}
	return s.done(n, outputPath)
}
