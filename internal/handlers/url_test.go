// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/plugin"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>Test Page</title><style>body { color: red; }</style></head>
<body>
<nav>Home | About</nav>
<header>Site Header</header>
<main>
  <h1>Main Heading</h1>
  <p>First paragraph.</p>
  <script>var tracking = true;</script>
  <p>Second    paragraph.</p>
</main>
<footer>Copyright</footer>
</body>
</html>`

func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "no agent", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(testPage))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("  line one  \n\n  line two\n"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testURL(opts URLOptions) *URL {
	opts.RequestsPerSecond = 1000
	return NewURL(opts)
}

func TestURL_FetchHTML(t *testing.T) {
	srv := newPageServer(t)

	text, err := testURL(URLOptions{}).Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)

	assert.Contains(t, text, "Test Page")
	assert.Contains(t, text, "Main Heading")
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second\nparagraph.")
	for _, hidden := range []string{"tracking", "color: red", "Home | About", "Site Header", "Copyright"} {
		assert.NotContains(t, text, hidden)
	}
	for _, line := range strings.Split(text, "\n") {
		assert.Equal(t, strings.TrimSpace(line), line)
		assert.NotEmpty(t, line)
	}
}

func TestURL_FetchPlainText(t *testing.T) {
	srv := newPageServer(t)

	text, err := testURL(URLOptions{}).Fetch(context.Background(), srv.URL+"/plain")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", text)
}

func TestURL_FetchErrors(t *testing.T) {
	srv := newPageServer(t)

	tests := []struct {
		name string
		url  string
		want error
	}{
		{"not found", srv.URL + "/missing", ErrFetchFailed},
		{"bad scheme", "ftp://example.com/file", ErrInvalidURL},
		{"no host", "https://", ErrInvalidURL},
		{"garbage", "://nope", ErrInvalidURL},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := testURL(URLOptions{}).Fetch(context.Background(), tc.url)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestURL_FetchTruncates(t *testing.T) {
	srv := newPageServer(t)

	text, err := testURL(URLOptions{MaxChars: 5}).Fetch(context.Background(), srv.URL+"/plain")
	require.NoError(t, err)
	assert.Equal(t, "line ", text)
}

func TestURL_FetchCancelled(t *testing.T) {
	srv := newPageServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testURL(URLOptions{}).Fetch(ctx, srv.URL+"/page")
	assert.Error(t, err)
}

func TestURL_Expand(t *testing.T) {
	srv := newPageServer(t)
	target := srv.URL + "/plain"

	conv := conversation.New()
	req := plugin.NewRequest("")
	out, err := testURL(URLOptions{}).Expand(context.Background(), "@"+target, conv, req)
	require.NoError(t, err)
	assert.Equal(t, "RESOURCE:url", out)

	b := conv.BlockBySource(target)
	require.NotNil(t, b)
	assert.Equal(t, conversation.TypeURL, b.Type)
	assert.Equal(t, "line one\nline two", b.Text())
}

func TestURL_ResolvesBothSchemes(t *testing.T) {
	reg, err := plugin.NewRegistry(plugin.WithHandlers(testURL(URLOptions{})))
	require.NoError(t, err)

	for _, tag := range []string{"@http://a.example", "@https://b.example/x"} {
		h, _, ok := reg.Resolve(tag)
		require.True(t, ok, tag)
		assert.Equal(t, "url", h.Name())
	}
	_, _, ok := reg.Resolve("@ftp://c.example")
	assert.False(t, ok)
}
