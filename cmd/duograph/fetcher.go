package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/poiesic/duograph/crawl"
)

const maxPageBytes = 4 << 20 // 4 MiB per page

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// httpFetcher fetches the root URL as a single page. It does not follow
// links; link discovery belongs to an external crawler feeding IngestPages.
type httpFetcher struct {
	client *http.Client
}

func newHTTPFetcher() *httpFetcher {
	return &httpFetcher{client: http.DefaultClient}
}

func (f *httpFetcher) Fetch(ctx context.Context, rootURL string) ([]crawl.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rootURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", rootURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}

	content := string(body)
	title := rootURL
	if m := titlePattern.FindStringSubmatch(content); m != nil {
		if t := strings.TrimSpace(m[1]); t != "" {
			title = t
		}
	}

	return []crawl.Page{{
		URL:     rootURL,
		Title:   title,
		Content: content,
		Depth:   0,
	}}, nil
}
