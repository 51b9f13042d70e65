// Package github is the content-hosting collaborator: raw file fetches and
// repository id lookups against the public GitHub API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
)

const userAgent = "rule-mirror/v0.1"

// ErrNotText reports content that is not valid UTF-8 and therefore cannot be
// mirrored into chat messages.
var ErrNotText = errors.New("file is not valid UTF-8 text")

// FileRef identifies a file on GitHub. Path includes the ref (branch or
// commit) segment, exactly as it appears in raw content URLs.
type FileRef struct {
	User string
	Repo string
	Path string
}

// RawURL is the authoritative content URL for the referenced file.
func (f FileRef) RawURL() string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s", f.User, f.Repo, f.Path)
}

// ParseFileURL accepts the two URL shapes users paste into the mirror
// command: the repository browser form
// https://github.com/{user}/{repo}/blob/{ref/path} and the raw form
// https://raw.githubusercontent.com/{user}/{repo}/{ref/path}.
func ParseFileURL(url string) (FileRef, bool) {
	if rest, ok := strings.CutPrefix(url, "https://github.com/"); ok {
		parts := strings.SplitN(rest, "/", 4)
		if len(parts) < 4 || parts[0] == "" || parts[1] == "" || parts[2] != "blob" || parts[3] == "" {
			return FileRef{}, false
		}
		return FileRef{User: parts[0], Repo: parts[1], Path: parts[3]}, true
	}
	if rest, ok := strings.CutPrefix(url, "https://raw.githubusercontent.com/"); ok {
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return FileRef{}, false
		}
		return FileRef{User: parts[0], Repo: parts[1], Path: parts[2]}, true
	}
	return FileRef{}, false
}

// Client talks to github.com with bounded retries and a hard per-request
// timeout, so an upstream outage fails an individual update instead of
// stalling the pipeline.
type Client struct {
	http    *http.Client
	apiBase string
}

// NewClient builds a client with production defaults.
func NewClient() *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil
	return &Client{http: rc.StandardClient(), apiBase: "https://api.github.com"}
}

// NewClientWith overrides the HTTP client and API base, for tests.
func NewClientWith(httpClient *http.Client, apiBase string) *Client {
	return &Client{http: httpClient, apiBase: apiBase}
}

// FetchRaw downloads the content at url and validates it as UTF-8 text.
func (c *Client) FetchRaw(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	if !utf8.Valid(body) {
		return "", fmt.Errorf("%s: %w", url, ErrNotText)
	}
	return string(body), nil
}

// LookupRepoID resolves the stable numeric id GitHub assigns to a repository.
func (c *Client) LookupRepoID(ctx context.Context, user, repo string) (int64, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", c.apiBase, user, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("lookup repo %s/%s: %w", user, repo, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("lookup repo %s/%s: unexpected status %s", user, repo, resp.Status)
	}

	var payload struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode repo %s/%s: %w", user, repo, err)
	}
	if payload.ID == 0 {
		return 0, fmt.Errorf("repo %s/%s: missing id in API response", user, repo)
	}
	return payload.ID, nil
}
