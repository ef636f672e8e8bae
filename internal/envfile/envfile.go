// Package envfile reads dotenv-style environment files.
package envfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// DefaultPath is the environment file loaded by the launcher, relative to
// the working directory.
const DefaultPath = ".env"

// Entry is a single KEY=VALUE assignment. Entries keep file order so that
// later assignments of the same key win when merged into an environment.
type Entry struct {
	Key   string
	Value string
}

// Load reads and parses the environment file at path. A missing file is not
// an error: the launcher treats an absent file as an empty one.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening env file %s: %w", path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads KEY=VALUE entries from r.
//
// Whitespace around keys and values is trimmed, and a matching pair of
// single or double quotes around a value is stripped. Blank lines, comment
// lines starting with '#', and lines without '=' are skipped.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			// Malformed line: skipped rather than fatal, matching the
			// shell's treatment of non-assignment lines.
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		entries = append(entries, Entry{
			Key:   key,
			Value: unquote(strings.TrimSpace(value)),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	return entries, nil
}

// unquote strips one matching pair of surrounding quotes.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
