package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// maxFeedSize bounds how much of a feed body is read.
const maxFeedSize = 32 << 20

// Source yields the raw bytes of one feed.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// FileSource reads a feed from the local filesystem.
type FileSource struct {
	Path string
}

// Fetch reads the whole file.
func (s FileSource) Fetch(_ context.Context) ([]byte, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxFeedSize))
}

func (s FileSource) String() string { return s.Path }

// HTTPSource fetches a feed with a GET request.
type HTTPSource struct {
	Client *http.Client
	URL    string
}

// Fetch issues the request; any non-2xx status is an error.
func (s HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("server error: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (s HTTPSource) String() string { return s.URL }

// SourceFor picks an HTTPSource for http(s) URLs and a FileSource for
// anything else. An empty location yields nil.
func SourceFor(location string, client *http.Client) Source {
	switch {
	case location == "":
		return nil
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return HTTPSource{Client: client, URL: location}
	default:
		return FileSource{Path: location}
	}
}
