// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/plugin"
	"github.com/jeranaias/tagctx/internal/util"
)

// URL handler defaults.
const (
	DefaultURLTimeout     = 15 * time.Second
	DefaultMaxBodyBytes   = 2 << 20 // 2MB
	DefaultMaxURLChars    = 50000
	DefaultUserAgent      = "Mozilla/5.0 (compatible; tagctx/1.0)"
	DefaultRequestsPerSec = 2.0
)

// skippedElements hold no readable page text.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"header": true, "footer": true, "nav": true,
	"svg": true, "iframe": true,
}

// URLOptions configures the URL handler.
type URLOptions struct {
	Client            *http.Client
	Timeout           time.Duration
	MaxBodyBytes      int64
	MaxChars          int
	UserAgent         string
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// URL resolves @http:// and @https:// tags.
type URL struct {
	client    *http.Client
	timeout   time.Duration
	maxBody   int64
	maxChars  int
	userAgent string
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewURL returns a URL handler.
func NewURL(opts URLOptions) *URL {
	u := &URL{
		client:    opts.Client,
		timeout:   opts.Timeout,
		maxBody:   opts.MaxBodyBytes,
		maxChars:  opts.MaxChars,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
	if u.client == nil {
		u.client = &http.Client{}
	}
	if u.timeout <= 0 {
		u.timeout = DefaultURLTimeout
	}
	if u.maxBody <= 0 {
		u.maxBody = DefaultMaxBodyBytes
	}
	if u.maxChars <= 0 {
		u.maxChars = DefaultMaxURLChars
	}
	if u.userAgent == "" {
		u.userAgent = DefaultUserAgent
	}
	if u.logger == nil {
		u.logger = zap.NewNop()
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSec
	}
	u.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	return u
}

// Name implements plugin.Handler.
func (u *URL) Name() string { return "url" }

// Prefixes implements plugin.Handler.
func (u *URL) Prefixes() []string { return []string{"@http://", "@https://"} }

// Expand fetches the page and stores its text as a url block.
func (u *URL) Expand(ctx context.Context, tag string, conv *conversation.Conversation, req *plugin.Request) (string, error) {
	target := strings.TrimPrefix(tag, "@")
	text, err := u.Fetch(ctx, target)
	if err != nil {
		return "", err
	}
	name := conv.AddContext("url", target, conversation.TypeURL, []byte(text), "🌐")
	return req.Reference(name), nil
}

// Fetch downloads rawURL and returns its readable text.
func (u *URL) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	if err := u.limiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	httpReq.Header.Set("User-Agent", u.userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := u.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: HTTP %d from %s", ErrFetchFailed, resp.StatusCode, parsed.Host)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, u.maxBody))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	var text string
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/plain") || strings.Contains(contentType, "text/markdown") {
		text = cleanLines(string(body))
	} else {
		text, err = htmlToText(string(body))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}
	}
	text = util.TruncateRunesNoEllipsis(text, u.maxChars)

	u.logger.Debug("url fetched",
		zap.String("url", parsed.String()),
		zap.Int("status", resp.StatusCode),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

// htmlToText extracts the visible text of an HTML document.
func htmlToText(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	extractText(root, &sb)
	return cleanLines(sb.String()), nil
}

func extractText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if skippedElements[n.Data] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb)
	}
	if n.Type == html.ElementNode {
		sb.WriteString("\n")
	}
}

// cleanLines trims every line, splits runs on double spaces and drops
// blank chunks.
func cleanLines(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, chunk := range strings.Split(strings.TrimSpace(line), "  ") {
			if chunk = strings.TrimSpace(chunk); chunk != "" {
				out = append(out, chunk)
			}
		}
	}
	return strings.Join(out, "\n")
}
