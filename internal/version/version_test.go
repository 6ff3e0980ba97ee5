package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckerLatest(t *testing.T) {
	t.Parallel()

	t.Run("valid release", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.Header.Get("User-Agent"), "cipherlink")
			assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
			_, _ = w.Write([]byte(`{
				"tag_name": "v1.2.3",
				"name": "Release v1.2.3",
				"prerelease": false,
				"published_at": "2026-01-01T12:00:00Z"
			}`))
		}))
		defer server.Close()

		release, err := NewChecker(WithReleaseURL(server.URL)).Latest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "v1.2.3", release.TagName)
		assert.False(t, release.Prerelease)
		assert.Equal(t, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), release.PublishedAt)
	})

	t.Run("non-ok status", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message": "rate limit exceeded"}`))
		}))
		defer server.Close()

		_, err := NewChecker(WithReleaseURL(server.URL)).Latest(context.Background())
		require.ErrorIs(t, err, ErrReleaseFeed)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{invalid json`))
		}))
		defer server.Close()

		_, err := NewChecker(WithReleaseURL(server.URL)).Latest(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding release")
	})

	t.Run("error body is truncated", func(t *testing.T) {
		t.Parallel()

		largeBody := strings.Repeat("x", maxErrBodyBytes*4)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(largeBody))
		}))
		defer server.Close()

		_, err := NewChecker(WithReleaseURL(server.URL)).Latest(context.Background())
		require.Error(t, err)
		assert.Less(t, len(err.Error()), len(largeBody))
	})

	t.Run("context cancellation", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(100 * time.Millisecond)
			_, _ = w.Write([]byte(`{"tag_name": "v1.0.0"}`))
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := NewChecker(WithReleaseURL(server.URL)).Latest(ctx)
		assert.Error(t, err)
	})
}

func TestIsNewer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
	}{
		{name: "patch ahead", current: "1.2.2", latest: "1.2.3", want: true},
		{name: "same version", current: "1.2.3", latest: "1.2.3", want: false},
		{name: "current ahead", current: "1.2.4", latest: "1.2.3", want: false},
		{name: "major ahead", current: "1.9.9", latest: "2.0.0", want: true},
		{name: "v prefixes ignored", current: "v1.2.2", latest: "v1.2.3", want: true},
		{name: "mixed prefixes equal", current: "1.2.3", latest: "v1.2.3", want: false},
		{name: "dev build needs upgrade", current: "dev", latest: "v1.2.3", want: true},
		{name: "empty version needs upgrade", current: "", latest: "v1.2.3", want: true},
		{name: "commit hash needs upgrade", current: "abc123def456", latest: "v1.2.3", want: true},
		{name: "dirty hash needs upgrade", current: "abc123d-dirty", latest: "v1.2.3", want: true},
		{name: "both dev builds", current: "dev", latest: "", want: false},
		{name: "suffix stripped", current: "1.2.3", latest: "1.2.3-rc1", want: false},
		{name: "short form padded", current: "1.2", latest: "1.2.0", want: false},
		{name: "two part ahead", current: "1.2", latest: "1.3", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsNewer(tt.current, tt.latest))
		})
	}
}

func TestIsDevBuild(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		want    bool
	}{
		{"dev", true},
		{"", true},
		{"abc123d", true},
		{"abc123def456789012345678901234567890abcd", true},
		{"abc123d-dirty", true},
		{"1.2.3", false},
		{"v1.2.3", false},
		{"1234567", false},
		{"2024010100", false},
		{"abc12", false},
		{"abcdefghijk", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isDevBuild(tt.version), "version %q", tt.version)
	}
}

func TestParseParts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		want    []int
	}{
		{"1.2.3", []int{1, 2, 3}},
		{"v1.2.3", []int{1, 2, 3}},
		{"1.2.3-rc1", []int{1, 2, 3}},
		{"1.2.3+build123", []int{1, 2, 3}},
		{"1.2", []int{1, 2}},
		{"abc.def", nil},
		{"1.abc.3", []int{1, 3}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseParts(tt.version), "version %q", tt.version)
	}
}
