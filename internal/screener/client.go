package screener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"finsheet/internal/config"
)

var (
	// ErrLoginFailed is returned when the login round trip yields no session cookie
	ErrLoginFailed = errors.New("screener login failed")
	// ErrCompanyNotFound is returned when the search API has no match for a symbol
	ErrCompanyNotFound = errors.New("company not found")
	// ErrExportButtonMissing is returned when the company page has no export form action
	ErrExportButtonMissing = errors.New("export button not found on company page")
	// ErrCSRFTokenMissing is returned when the login form token or csrftoken cookie is absent
	ErrCSRFTokenMissing = errors.New("csrf token not found")
)

const (
	loginPath  = "/login/"
	searchPath = "/api/company/search/"

	sessionCookie = "sessionid"
	csrfCookie    = "csrftoken"

	exportButtonSelector = `button[aria-label="Export to Excel"]`
	csrfInputSelector    = `input[name="csrfmiddlewaretoken"]`
)

// Client downloads statement export workbooks from a logged-in source session.
// A Client is not safe for concurrent use.
type Client struct {
	cfg         config.ScreenerConfig
	base        *url.URL
	http        *http.Client
	downloadDir string
	logger      *slog.Logger
}

// SearchResult is one entry of the company search API
type SearchResult struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// NewClient creates a client writing workbooks into downloadDir
func NewClient(cfg config.ScreenerConfig, downloadDir string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultScreenerBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = config.DefaultUserAgent
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}

	return &Client{
		cfg:         cfg,
		base:        base,
		http:        &http.Client{Jar: jar, Timeout: timeout},
		downloadDir: downloadDir,
		logger:      logger.With(slog.String("component", "screener")),
	}, nil
}

// LoggedIn reports whether the session cookie is held
func (c *Client) LoggedIn() bool {
	return c.cookie(sessionCookie) != ""
}

func (c *Client) cookie(name string) string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", ref, err)
	}
	return c.base.ResolveReference(u), nil
}

func (c *Client) newRequest(ctx context.Context, method string, u *url.URL, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-IN,en-GB;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Origin", strings.TrimSuffix(c.base.String(), "/"))
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	return req, nil
}

func (c *Client) getDocument(ctx context.Context, u *url.URL) (*goquery.Document, error) {
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", u.Path, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u.Path, err)
	}
	return doc, nil
}

// Login opens a session. It is a no-op when a session cookie is already held.
func (c *Client) Login(ctx context.Context) error {
	if c.LoggedIn() {
		c.logger.DebugContext(ctx, "Already logged in")
		return nil
	}
	if !c.cfg.HasCredentials() {
		return fmt.Errorf("%w: credentials not configured", ErrLoginFailed)
	}

	loginURL, err := c.resolve(loginPath)
	if err != nil {
		return err
	}

	doc, err := c.getDocument(ctx, loginURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	token, ok := doc.Find(csrfInputSelector).First().Attr("value")
	if !ok || token == "" {
		return fmt.Errorf("login form: %w", ErrCSRFTokenMissing)
	}

	form := url.Values{
		"username":            {c.cfg.Email},
		"password":            {c.cfg.Password},
		"csrfmiddlewaretoken": {token},
	}
	req, err := c.newRequest(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", loginURL.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}
	if !c.LoggedIn() {
		return fmt.Errorf("%w: no session cookie", ErrLoginFailed)
	}

	c.logger.InfoContext(ctx, "Logged in", slog.Int("status", resp.StatusCode))
	return nil
}

// SearchCompany returns the company page path of the first search match
func (c *Client) SearchCompany(ctx context.Context, symbol string) (string, error) {
	u, err := c.resolve(searchPath)
	if err != nil {
		return "", err
	}
	u.RawQuery = url.Values{"q": {symbol}, "v": {"3"}, "fts": {"1"}}.Encode()

	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("search %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search %s: unexpected status %d", symbol, resp.StatusCode)
	}

	var results []SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", fmt.Errorf("decode search results for %s: %w", symbol, err)
	}
	if len(results) == 0 || results[0].URL == "" {
		return "", fmt.Errorf("search %s: %w", symbol, ErrCompanyNotFound)
	}

	c.logger.DebugContext(ctx, "Fetched company url", slog.String("url", results[0].URL))
	return results[0].URL, nil
}

// Download logs in, locates the company and saves its export workbook.
// It returns the path of the saved file.
func (c *Client) Download(ctx context.Context, symbol string) (string, error) {
	if err := c.Login(ctx); err != nil {
		return "", err
	}

	companyPath, err := c.SearchCompany(ctx, symbol)
	if err != nil {
		return "", err
	}
	companyURL, err := c.resolve(companyPath)
	if err != nil {
		return "", err
	}

	doc, err := c.getDocument(ctx, companyURL)
	if err != nil {
		return "", err
	}

	action, ok := doc.Find(exportButtonSelector).First().Attr("formaction")
	if !ok || action == "" {
		return "", fmt.Errorf("%s: %w", companyURL.Path, ErrExportButtonMissing)
	}
	exportURL, err := c.resolve(action)
	if err != nil {
		return "", err
	}

	csrf := c.cookie(csrfCookie)
	if csrf == "" {
		return "", fmt.Errorf("export request: %w", ErrCSRFTokenMissing)
	}

	req, err := c.newRequest(ctx, http.MethodPost, exportURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Referer", companyURL.String())
	req.Header.Set("X-CSRFToken", csrf)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return "", fmt.Errorf("export %s: status %d: %s", symbol, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	path := filepath.Join(c.downloadDir, config.ExportWorkbookName(companySlug(companyPath, symbol)))
	written, err := saveBody(path, resp.Body)
	if err != nil {
		return "", err
	}

	c.logger.InfoContext(ctx, "Export downloaded",
		slog.String("url", exportURL.Path),
		slog.String("path", path),
		slog.Int64("bytes", written))
	return path, nil
}

// companySlug extracts the company segment of /company/<slug>/...
func companySlug(companyPath, fallback string) string {
	parts := strings.Split(strings.Trim(companyPath, "/"), "/")
	if len(parts) >= 2 && parts[0] == "company" && parts[1] != "" {
		return parts[1]
	}
	return fallback
}

// saveBody streams r into path through a temporary file in the same directory
func saveBody(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create download directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.xlsx")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("failed to move export into place: %w", err)
	}
	return n, nil
}
