package hibp

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha1" // #nosec G505 -- the Pwned Passwords range API is keyed by SHA-1
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
)

const prefixLength = 5

// hashPassword returns the uppercase SHA-1 hex digest split into the range
// prefix sent upstream and the suffix matched locally.
func hashPassword(password string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(password)) // #nosec G401
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	return digest[:prefixLength], digest[prefixLength:]
}

// PasswordExposure checks password against the Pwned Passwords range API
// using k-anonymity: only the first five hash characters leave the process.
// The range API is unmetered and needs no key, so the governor is bypassed.
func (c *Client) PasswordExposure(ctx context.Context, password string) (*core.LookupResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	const op = core.OperationPasswordRange
	requestedAt := c.now()
	prefix, suffix := hashPassword(password)
	reqURL := strings.TrimRight(c.passwordsURL(), "/") + "/" + prefix
	cacheKey := prefix

	var (
		body      []byte
		fromCache *core.CachedResponse
	)
	if cached := c.cached(ctx, op, cacheKey); cached != nil {
		body = cached.Body
		fromCache = cached
	} else {
		headers := http.Header{}
		headers.Set("Add-Padding", "true")

		resp, err := c.fetch(ctx, op, reqURL, headers)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, apperrors.WithDetails(
				apperrors.NewExternalServiceError(apiErrorMessage(resp)),
				map[string]interface{}{"url": reqURL, "status_code": resp.StatusCode},
			)
		}
		body = resp.Body
		c.store(ctx, op, cacheKey, resp)
	}

	count := matchSuffix(body, suffix)
	result := c.result(op, "", count > 0, http.StatusOK, nil, requestedAt, reqURL, passwordsSource)
	result.Count = count
	if fromCache != nil {
		expires := fromCache.ExpiresAt
		result.Provenance.FromCache = true
		result.Provenance.CacheExpiresAt = &expires
	}
	return result, nil
}

// matchSuffix scans SUFFIX:COUNT lines and returns the count for suffix.
// Padding entries carry a zero count and therefore read as not found.
func matchSuffix(body []byte, suffix string) int64 {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		hashSuffix, rawCount, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(hashSuffix, suffix) {
			continue
		}
		count, err := strconv.ParseInt(strings.TrimSpace(rawCount), 10, 64)
		if err != nil || count < 0 {
			return 0
		}
		return count
	}
	return 0
}
