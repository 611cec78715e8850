package cmd

import (
	"bufio"
	"io"
	"os"
	"strings"

	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
)

// resolveSubjects merges positional subjects with one-per-line subjects read
// from file ("-" is stdin). Blank lines and # comments are ignored.
func resolveSubjects(positional []string, file string, stdin io.Reader) ([]string, error) {
	var subjects []string
	add := func(raw string) {
		if s := strings.TrimSpace(raw); s != "" && !strings.HasPrefix(s, "#") {
			subjects = append(subjects, s)
		}
	}

	for _, raw := range positional {
		add(raw)
	}

	if file = strings.TrimSpace(file); file != "" {
		r, closeFn, err := openSubjects(file, stdin)
		if err != nil {
			return nil, err
		}
		defer closeFn()

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			add(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(subjects) == 0 {
		return nil, apperrors.NewInvalidInputError("at least one account is required")
	}
	return subjects, nil
}

func openSubjects(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path) // #nosec G304 -- path comes from --file
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
