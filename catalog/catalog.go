// Package catalog is a typed client for the catalog backend's H5 API: title details, download
// listings, search, recommendations, and the ranking list shown on the home page.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/boxrelay/boxrelay/constant"
)

// StatusError reports a non-200 answer from the backend.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog returned status %d", e.Code)
}

// APIError reports a non-zero application code inside a 200 envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog error %d: %s", e.Code, e.Message)
}

// ErrShape is returned when the payload does not have the expected structure.
var ErrShape = errors.New("unexpected catalog payload")

// Client talks to the catalog backend.
type Client struct {
	// BaseURL is the backend host, e.g. https://h5.aoneroom.com.
	BaseURL string
	// APIURL hosts the ranking list endpoint.
	APIURL string
	// TrendingID selects the ranking list returned by Trending.
	TrendingID string
	// HTTP performs metadata calls.
	HTTP *http.Client
}

// Detail fetches the metadata record of a title.
func (c *Client) Detail(ctx context.Context, id string) (*Detail, error) {
	q := url.Values{"subjectId": {id}}
	data, err := c.do(ctx, c.HTTP, http.MethodGet, c.BaseURL+constant.DetailPath+"?"+q.Encode(), nil, jsonHeader())
	if err != nil {
		return nil, err
	}

	var payload struct {
		Subject *Subject `json:"subject"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShape, err)
	}
	if payload.Subject == nil {
		return nil, fmt.Errorf("%w: no subject", ErrShape)
	}

	return &Detail{Subject: *payload.Subject, Raw: data}, nil
}

// DownloadURL returns the download endpoint for a title, with the default season and episode.
func (c *Client) DownloadURL(id string) string {
	q := url.Values{"subjectId": {id}, "se": {"0"}, "ep": {"0"}}
	return c.BaseURL + constant.DownloadPath + "?" + q.Encode()
}

// Downloads fetches the download listing of a title through client, with the caller's headers.
// The caller picks the client so the same call serves authenticated and anonymous attempts.
func (c *Client) Downloads(ctx context.Context, client *http.Client, id string, header http.Header) (*Downloads, error) {
	data, err := c.do(ctx, client, http.MethodGet, c.DownloadURL(id), nil, header)
	if err != nil {
		return nil, err
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil || payload == nil {
		return nil, fmt.Errorf("%w: data is not an object", ErrShape)
	}

	raw, ok := payload["downloads"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return &Downloads{}, nil
	}

	var items []Download
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: downloads: %v", ErrShape, err)
	}

	return &Downloads{Items: items, Present: true}, nil
}

// Search runs a keyword search across all subject types.
func (c *Client) Search(ctx context.Context, keyword string, page, perPage int) (*Listing, error) {
	body := map[string]any{
		"keyword":     keyword,
		"page":        page,
		"perPage":     perPage,
		"subjectType": 0,
	}
	data, err := c.do(ctx, c.HTTP, http.MethodPost, c.BaseURL+constant.SearchPath, body, jsonHeader())
	if err != nil {
		return nil, err
	}
	return listing(data, "list")
}

// Recommendations lists titles related to id.
func (c *Client) Recommendations(ctx context.Context, id string, page, perPage int) (*Listing, error) {
	body := map[string]any{
		"subjectId": id,
		"page":      page,
		"perPage":   perPage,
	}
	data, err := c.do(ctx, c.HTTP, http.MethodPost, c.BaseURL+constant.RecommendationsPath, body, jsonHeader())
	if err != nil {
		return nil, err
	}
	return listing(data, "items")
}

// Trending returns the first page of the configured ranking list.
func (c *Client) Trending(ctx context.Context) (*Listing, error) {
	q := url.Values{
		"id":      {c.TrendingID},
		"page":    {"1"},
		"perPage": {strconv.Itoa(20)},
	}
	data, err := c.do(ctx, c.HTTP, http.MethodGet, c.APIURL+constant.TrendingPath+"?"+q.Encode(), nil, jsonHeader())
	if err != nil {
		return nil, err
	}
	return listing(data, "subjectList")
}

func listing(data json.RawMessage, field string) (*Listing, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShape, err)
	}

	l := &Listing{Raw: data}
	if raw, ok := payload[field]; ok {
		if err := json.Unmarshal(raw, &l.Items); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrShape, field, err)
		}
	}
	return l, nil
}

func jsonHeader() http.Header {
	h := http.Header{}
	h.Set("User-Agent", constant.DesktopUserAgent)
	h.Set("Accept", "application/json")
	return h
}

// do performs a call and unwraps the envelope, returning the data member.
func (c *Client) do(ctx context.Context, client *http.Client, method, target string, body any, header http.Header) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShape, err)
	}
	if env.Code != nil && *env.Code != 0 {
		return nil, &APIError{Code: *env.Code, Message: env.Message}
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil, fmt.Errorf("%w: no data", ErrShape)
	}

	return env.Data, nil
}
