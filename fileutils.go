package main

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/yarkm13/fetchopus/mechanism"
)

// resolveOutputPath maps a URL to <targetDir>/<host>/<path>. The path is
// cleaned so it cannot climb out of targetDir.
func resolveOutputPath(rawURL, targetDir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	remotePath := path.Clean("/" + u.Path)
	if remotePath == "/" {
		return "", fmt.Errorf("url %q names no file", rawURL)
	}
	relativePath := strings.TrimPrefix(remotePath, "/")
	if u.Hostname() != "" {
		relativePath = path.Join(u.Hostname(), relativePath)
	}

	absolutePath, err := filepath.Abs(filepath.Join(targetDir, filepath.FromSlash(relativePath)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	return absolutePath, nil
}

func promptToContinue(job *Job, prompter mechanism.Prompter) (bool, error) {
	if len(job.Items) == 0 {
		return false, fmt.Errorf("no files to download")
	}

	first := job.Items[0]
	localPath, err := resolveOutputPath(first.URL, job.TargetDir)
	if err != nil {
		return false, err
	}

	return prompter.Confirm(fmt.Sprintf("\nFile %s will become %s (%d files in total)\nDo you want to continue? (y/n): ",
		redact(first.URL), localPath, len(job.Items)))
}

func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Redacted()
}
