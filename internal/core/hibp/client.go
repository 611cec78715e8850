// Package hibp implements lookups against the Have I Been Pwned v3 API and
// the Pwned Passwords range API.
package hibp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
	"github.com/hibp-mcp/hibp-mcp/internal/metrics"
)

const (
	DefaultBaseURL      = "https://haveibeenpwned.com/api/v3"
	DefaultPasswordsURL = "https://api.pwnedpasswords.com/range"
	DefaultUserAgent    = "HIBP-MCP-Server"

	hibpSource      = "hibp"
	passwordsSource = "pwnedpasswords"
)

// Admitter paces metered requests. *engine.Governor implements it.
type Admitter interface {
	Admit()
}

// ResponseCache stores public upstream responses. *store.Store implements it.
type ResponseCache interface {
	GetCachedResponse(ctx context.Context, operation core.Operation, key string) (*core.CachedResponse, error)
	SetCachedResponse(ctx context.Context, operation core.Operation, key string, resp core.CachedResponse, ttl time.Duration) error
}

// BreachQuery holds the parameters of the breaches tool.
type BreachQuery struct {
	Operation         core.Operation
	Account           string
	Domain            string
	Name              string
	IncludeUnverified *bool
	TruncateResponse  *bool
}

// Client performs HIBP lookups. Metered calls pass through Governor before
// any request leaves the process.
type Client struct {
	BaseURL      string
	PasswordsURL string
	APIKey       string
	UserAgent    string
	HTTPClient   *http.Client
	Governor     Admitter
	Breaker      *Breaker
	Cache        ResponseCache
	CachePolicy  CachePolicy
	UseCache     bool
	ToolVersion  string
	Logger       core.Logger
	Clock        func() time.Time
}

// Breaches runs one of the breach catalogue or account operations.
func (c *Client) Breaches(ctx context.Context, query BreachQuery) (*core.LookupResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.requireAPIKey(); err != nil {
		return nil, err
	}

	path, params, subject, err := breachRequest(query)
	if err != nil {
		return nil, err
	}

	return c.metered(ctx, query.Operation, subject, path, params)
}

// Pastes lists pastes that contain account.
func (c *Client) Pastes(ctx context.Context, account string) (*core.LookupResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.requireAPIKey(); err != nil {
		return nil, err
	}

	account = strings.TrimSpace(account)
	if account == "" {
		return nil, apperrors.NewInvalidInputError("Account parameter is required for pastes lookup")
	}

	return c.metered(ctx, core.OperationPastesForAccount, account, "/pasteaccount/"+url.PathEscape(account), nil)
}

func breachRequest(query BreachQuery) (string, url.Values, string, error) {
	params := url.Values{}

	switch query.Operation {
	case core.OperationBreachesForAccount:
		account := strings.TrimSpace(query.Account)
		if account == "" {
			return "", nil, "", apperrors.NewInvalidInputError("Account parameter is required for getAllBreachesForAccount operation")
		}
		if query.Domain != "" {
			params.Set("domain", query.Domain)
		}
		if query.IncludeUnverified != nil {
			params.Set("includeUnverified", strconv.FormatBool(*query.IncludeUnverified))
		}
		if query.TruncateResponse != nil {
			params.Set("truncateResponse", strconv.FormatBool(*query.TruncateResponse))
		}
		return "/breachedaccount/" + url.PathEscape(account), params, account, nil
	case core.OperationBreachedSites:
		if query.Domain != "" {
			params.Set("domain", query.Domain)
		}
		return "/breaches", params, query.Domain, nil
	case core.OperationBreachByName:
		name := strings.TrimSpace(query.Name)
		if name == "" {
			return "", nil, "", apperrors.NewInvalidInputError("Name parameter is required for getBreachByName operation")
		}
		return "/breach/" + url.PathEscape(name), params, name, nil
	case core.OperationDataClasses:
		return "/dataclasses", params, "", nil
	default:
		return "", nil, "", apperrors.NewInvalidInputError(fmt.Sprintf("Unsupported operation: %s", query.Operation))
	}
}

func (c *Client) metered(ctx context.Context, op core.Operation, subject, path string, params url.Values) (*core.LookupResult, error) {
	requestedAt := c.now()

	reqURL := strings.TrimRight(c.baseURL(), "/") + path
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}
	cacheKey := strings.TrimPrefix(reqURL, strings.TrimRight(c.baseURL(), "/"))

	if cached := c.cached(ctx, op, cacheKey); cached != nil {
		return c.jsonResult(op, subject, cached.StatusCode, cached.Body, requestedAt, reqURL, cached)
	}

	if c.Governor != nil {
		c.Governor.Admit()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("hibp-api-key", c.APIKey)

	resp, err := c.fetch(ctx, op, reqURL, headers)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		if op == core.OperationBreachesForAccount || op == core.OperationPastesForAccount {
			return c.result(op, subject, false, resp.StatusCode, nil, requestedAt, reqURL, hibpSource), nil
		}
		return nil, apperrors.WithDetails(
			apperrors.NewNotFoundError("Resource not found: "+reqURL),
			map[string]interface{}{"url": reqURL, "status_code": resp.StatusCode},
		)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, statusError(resp, reqURL)
	}

	result, err := c.jsonResult(op, subject, resp.StatusCode, resp.Body, requestedAt, reqURL, nil)
	if err != nil {
		return nil, err
	}
	c.store(ctx, op, cacheKey, resp)
	return result, nil
}

func (c *Client) jsonResult(op core.Operation, subject string, status int, body []byte, requestedAt time.Time, reqURL string, cached *core.CachedResponse) (*core.LookupResult, error) {
	data := bytes.TrimSpace(body)
	if len(data) == 0 {
		data = []byte("{}")
	}
	if !json.Valid(data) {
		return nil, apperrors.WithDetails(
			apperrors.NewExternalServiceError("HIBP API returned an invalid JSON response"),
			map[string]interface{}{"url": reqURL, "status_code": status},
		)
	}

	result := c.result(op, subject, true, status, json.RawMessage(data), requestedAt, reqURL, hibpSource)
	if cached != nil {
		expires := cached.ExpiresAt
		result.Provenance.FromCache = true
		result.Provenance.CacheExpiresAt = &expires
	}
	return result, nil
}

// fetch issues a GET through the circuit breaker and reads the full body.
func (c *Client) fetch(ctx context.Context, op core.Operation, reqURL string, headers http.Header) (*upstreamResponse, error) {
	if c.Logger != nil {
		c.Logger.Info("Making HIBP API request",
			zap.String("operation", string(op)),
			zap.String("url", reqURL))
	}

	started := time.Now()
	resp, err := c.breaker().Execute(func() (*upstreamResponse, error) {
		return c.roundTrip(ctx, reqURL, headers)
	})

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	metrics.RecordRequest(string(op), status, time.Since(started))

	if err != nil {
		if resp != nil && isServerStatus(err) {
			return resp, nil
		}
		return nil, transportError(ctx, err, reqURL)
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, reqURL string, headers http.Header) (*upstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("User-Agent", c.userAgent())

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	return readResponse(resp)
}

func (c *Client) requireAPIKey() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return apperrors.NewConfigInvalidError("Missing required environment variable: HIBP_API_KEY")
	}
	return nil
}

func (c *Client) result(op core.Operation, subject string, found bool, status int, data json.RawMessage, requestedAt time.Time, reqURL, source string) *core.LookupResult {
	return &core.LookupResult{
		Operation:  op,
		Subject:    subject,
		Found:      found,
		StatusCode: status,
		Data:       data,
		Provenance: core.Provenance{
			LookupID:    uuid.New().String(),
			RequestedAt: requestedAt,
			ResolvedAt:  c.now(),
			Source:      source,
			URL:         reqURL,
			ToolVersion: c.ToolVersion,
		},
	}
}

func (c *Client) breaker() *Breaker {
	if c.Breaker != nil {
		return c.Breaker
	}
	return passthroughBreaker
}

func (c *Client) baseURL() string {
	if strings.TrimSpace(c.BaseURL) != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) passwordsURL() string {
	if strings.TrimSpace(c.PasswordsURL) != "" {
		return c.PasswordsURL
	}
	return DefaultPasswordsURL
}

func (c *Client) userAgent() string {
	if strings.TrimSpace(c.UserAgent) != "" {
		return c.UserAgent
	}
	return DefaultUserAgent
}

func (c *Client) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}
