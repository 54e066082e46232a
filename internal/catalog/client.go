// Package catalog is a thin client for the Patchwork archive API, the
// upstream catalog clips are pulled from for bulk analysis.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/pkg/log"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.httpClient = client
	return c
}

// Stream is one archived channel in the catalog.
type Stream struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Platform string `json:"platform,omitempty"`
}

// Clip is one archived clip entry. VideoLink is the field the analysis
// pipeline consumes.
type Clip struct {
	ID           string `json:"id"`
	VideoLink    string `json:"video_link"`
	StreamerName string `json:"streamer_name,omitempty"`
	Platform     string `json:"platform,omitempty"`
	Title        string `json:"title,omitempty"`
}

type clipPage struct {
	Data  []Clip `json:"data"`
	Pages int    `json:"pages"`
}

func (c *Client) ListStreams(ctx context.Context) ([]Stream, error) {
	body, err := c.get(ctx, "/streams", nil)
	if err != nil {
		return nil, err
	}

	var streams []Stream
	if err := json.Unmarshal(body, &streams); err != nil {
		// Some deployments wrap the list the same way clips are wrapped.
		var wrapped struct {
			Data []Stream `json:"data"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode streams response: %w", err)
		}
		streams = wrapped.Data
	}
	return streams, nil
}

// ListClips fetches up to limit clips, optionally filtered by streamer.
// A limit of zero means no cap.
func (c *Client) ListClips(ctx context.Context, streamer string, limit int) ([]Clip, error) {
	params := url.Values{}
	if streamer != "" {
		params.Set("streamer", streamer)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, "/clips", params)
	if err != nil {
		return nil, err
	}

	var page clipPage
	if err := json.Unmarshal(body, &page); err != nil {
		var flat []Clip
		if err2 := json.Unmarshal(body, &flat); err2 != nil {
			return nil, fmt.Errorf("decode clips response: %w", err)
		}
		page.Data = flat
	}

	clips := page.Data
	if limit > 0 && len(clips) > limit {
		clips = clips[:limit]
	}
	log.Debug("catalog returned %d clips (pages=%d)", len(clips), page.Pages)
	return clips, nil
}

// References converts catalog clips into pipeline inputs, dropping
// entries with no video link.
func References(clips []Clip) []analysis.ClipReference {
	refs := make([]analysis.ClipReference, 0, len(clips))
	for _, clip := range clips {
		if strings.TrimSpace(clip.VideoLink) == "" {
			continue
		}
		refs = append(refs, analysis.ClipReference{
			ID:        clip.ID,
			SourceURL: clip.VideoLink,
			Streamer:  clip.StreamerName,
			Platform:  clip.Platform,
		})
	}
	return refs
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned HTTP %d", resp.StatusCode)
	}
	return body, nil
}
