// Package version checks the published cipherlink releases feed and
// compares release tags against the running build.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// latestReleaseURL is the GitHub endpoint describing the newest
// published cipherlink release.
const latestReleaseURL = "https://api.github.com/repos/cipherlink/cipherlink/releases/latest"

const (
	requestTimeout  = 30 * time.Second
	maxBodyBytes    = 64 * 1024
	maxErrBodyBytes = 1024
)

// ErrReleaseFeed reports a failed or non-OK releases request.
var ErrReleaseFeed = errors.New("release feed request failed")

// Release is the subset of the GitHub release object the update check
// needs.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Checker fetches the latest published release.
type Checker struct {
	url        string
	httpClient *http.Client
	userAgent  string
}

// CheckerOption customizes a Checker.
type CheckerOption func(*Checker)

// WithReleaseURL points the checker at a different releases endpoint.
func WithReleaseURL(url string) CheckerOption {
	return func(c *Checker) { c.url = url }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) CheckerOption {
	return func(c *Checker) { c.httpClient = client }
}

// NewChecker creates a Checker bound to the cipherlink releases feed.
func NewChecker(opts ...CheckerOption) *Checker {
	c := &Checker{
		url:        latestReleaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		userAgent:  fmt.Sprintf("cipherlink (%s/%s)", runtime.GOOS, runtime.GOARCH),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Latest fetches the newest published release.
func (c *Checker) Latest(ctx context.Context) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodyBytes))
		return nil, fmt.Errorf("%w: status %d: %s", ErrReleaseFeed, resp.StatusCode, string(body))
	}

	var release Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}
	return &release, nil
}

// Latest fetches the newest published release with a default checker.
func Latest(ctx context.Context) (*Release, error) {
	return NewChecker().Latest(ctx)
}

// IsNewer reports whether the latest release tag is ahead of the
// running version. Development builds are always behind a published
// release.
func IsNewer(current, latest string) bool {
	return compare(latest, current) > 0
}

// compare orders two version strings: 1 if a is newer, -1 if b is
// newer, 0 when equal. Development builds sort below every release and
// equal to each other.
func compare(a, b string) int {
	aDev := isDevBuild(a)
	bDev := isDevBuild(b)
	switch {
	case aDev && bDev:
		return 0
	case aDev:
		return -1
	case bDev:
		return 1
	}

	av := parseParts(a)
	bv := parseParts(b)
	for i := 0; i < 3; i++ {
		var x, y int
		if i < len(av) {
			x = av[i]
		}
		if i < len(bv) {
			y = bv[i]
		}
		if x > y {
			return 1
		}
		if x < y {
			return -1
		}
	}
	return 0
}

// parseParts extracts the numeric major.minor.patch components,
// ignoring a leading "v" and any pre-release or build suffix.
func parseParts(version string) []int {
	version = strings.TrimPrefix(version, "v")
	if idx := strings.IndexAny(version, "-+"); idx != -1 {
		version = version[:idx]
	}

	var parts []int
	for _, p := range strings.Split(version, ".") {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		parts = append(parts, n)
	}
	return parts
}

// isDevBuild reports whether the version names an unreleased build: the
// literal "dev", an empty string, or a bare commit hash.
func isDevBuild(version string) bool {
	version = strings.TrimPrefix(version, "v")
	if version == "" || version == "dev" {
		return true
	}
	return isCommitHash(strings.TrimSuffix(version, "-dirty"))
}

// isCommitHash matches 7 to 40 hex characters with at least one
// letter, so purely numeric versions are not mistaken for hashes.
func isCommitHash(s string) bool {
	if len(s) < 7 || len(s) > 40 {
		return false
	}

	hasLetter := false
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
			hasLetter = true
		default:
			return false
		}
	}
	return hasLetter
}
