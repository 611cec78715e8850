package store

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hibp-mcp/hibp-mcp/internal/config"
)

const memoryPath = ":memory:"

// target is a resolved libsql connection string.
type target struct {
	dsn   string
	local bool
}

// redacted hides any authToken query value.
func (t target) redacted() string {
	u, err := url.Parse(t.dsn)
	if err != nil || u.RawQuery == "" {
		return t.dsn
	}
	q := u.Query()
	if q.Has("authToken") {
		q.Set("authToken", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// resolveTarget turns store config into a DSN. A URL wins over a path; local
// paths get their parent directory created.
func resolveTarget(cfg config.StoreConfig) (target, error) {
	if remote := strings.TrimSpace(cfg.URL); remote != "" {
		dsn, err := withAuthToken(remote, cfg.AuthToken)
		return target{dsn: dsn}, err
	}

	p := strings.TrimSpace(cfg.Path)
	switch {
	case p == "":
		return target{}, errors.New("store path or url is required")
	case p == memoryPath:
		return target{dsn: p, local: true}, nil
	case strings.HasPrefix(p, "libsql:"):
		return target{dsn: p}, nil
	case strings.HasPrefix(p, "file:"):
		local, err := fileURLPath(p)
		if err != nil {
			return target{}, err
		}
		return target{dsn: p, local: true}, mkParent(local)
	default:
		return target{dsn: "file:" + filepath.Clean(p), local: true}, mkParent(p)
	}
}

func withAuthToken(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return raw, nil
	}
	q := u.Query()
	if q.Get("authToken") != "" {
		return raw, nil
	}
	q.Set("authToken", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func fileURLPath(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	return strings.TrimPrefix(p, "//"), nil
}

func mkParent(p string) error {
	if p == "" || p == memoryPath {
		return nil
	}
	dir := filepath.Dir(filepath.Clean(p))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- cache directory shared with the CLI
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
