// Package emby talks to an Emby media server: item lookup, library
// enumeration, and tag write-back.
package emby

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
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pipi20xx/emby-auto-tags/internal/config"
)

var (
	// ErrNotConfigured indicates the server connection is missing its
	// URL, API key, or user id.
	ErrNotConfigured = errors.New("emby server is not configured")
	// ErrItemNotFound indicates the requested item does not exist.
	ErrItemNotFound = errors.New("item not found")
	// ErrUpstream indicates the server returned an error or was unreachable.
	ErrUpstream = errors.New("emby API error")
)

// enumeration is restricted to the kinds the tagging pipeline handles
const includeItemTypes = "Movie,Series"

// itemFields are the extra fields requested on enumeration so tag
// diffs can be computed without a second fetch per item.
const itemFields = "ProviderIds,Tags,TagItems,LockedFields"

// Client is an Emby HTTP API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userID     string
	pageSize   int
	logger     zerolog.Logger
}

// NewClient creates a new Emby client.
func NewClient(cfg config.EmbyConfig, logger zerolog.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize < 1 {
		pageSize = 200
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/"),
		apiKey:     cfg.APIKey,
		userID:     cfg.UserID,
		pageSize:   pageSize,
		logger:     logger.With().Str("component", "emby").Logger(),
	}
}

// IsConfigured returns true when the connection settings are complete.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != "" && c.userID != ""
}

// PageSize returns the enumeration page size.
func (c *Client) PageSize() int {
	return c.pageSize
}

// Test verifies connectivity by fetching the server's system info.
func (c *Client) Test(ctx context.Context) (*SystemInfo, error) {
	var info SystemInfo
	if err := c.doGet(ctx, "/emby/System/Info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetItem fetches a single item with the fields the pipeline needs.
func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	var item Item
	endpoint := fmt.Sprintf("/emby/Users/%s/Items/%s", url.PathEscape(c.userID), url.PathEscape(itemID))
	if err := c.doGet(ctx, endpoint, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItemRaw fetches the full item representation as returned by the
// server. The writer round-trips this map so fields outside the tag
// surface are preserved on update.
func (c *Client) GetItemRaw(ctx context.Context, itemID string) (map[string]any, error) {
	var raw map[string]any
	endpoint := fmt.Sprintf("/emby/Users/%s/Items/%s", url.PathEscape(c.userID), url.PathEscape(itemID))
	if err := c.doGet(ctx, endpoint, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// UpdateItem posts an updated item representation back to the server.
func (c *Client) UpdateItem(ctx context.Context, itemID string, payload map[string]any) error {
	endpoint := fmt.Sprintf("/emby/Items/%s", url.PathEscape(itemID))
	return c.doPost(ctx, endpoint, payload)
}

// ListPage fetches one page of the movie/series library, recursively
// across all libraries. When favoritesOnly is set the enumeration is
// restricted to items marked favorite.
func (c *Client) ListPage(ctx context.Context, startIndex, limit int, favoritesOnly bool) (*ItemsResult, error) {
	params := url.Values{}
	params.Set("Recursive", "true")
	params.Set("IncludeItemTypes", includeItemTypes)
	params.Set("Fields", itemFields)
	params.Set("StartIndex", strconv.Itoa(startIndex))
	params.Set("Limit", strconv.Itoa(limit))
	if favoritesOnly {
		params.Set("Filters", "IsFavorite")
	}

	var result ItemsResult
	endpoint := fmt.Sprintf("/emby/Users/%s/Items", url.PathEscape(c.userID))
	if err := c.doGet(ctx, endpoint, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FindByProviderID returns all library items carrying the given TMDB id.
// Multiple copies of the same title each come back as a distinct item.
func (c *Client) FindByProviderID(ctx context.Context, providerID string) ([]Item, error) {
	params := url.Values{}
	params.Set("Recursive", "true")
	params.Set("IncludeItemTypes", includeItemTypes)
	params.Set("Fields", itemFields)
	params.Set("AnyProviderIdEquals", "tmdb."+providerID)

	var result ItemsResult
	endpoint := fmt.Sprintf("/emby/Users/%s/Items", url.PathEscape(c.userID))
	if err := c.doGet(ctx, endpoint, params, &result); err != nil {
		return nil, err
	}

	// The query matches loosely on some server versions, keep only
	// exact provider-id matches.
	exact := make([]Item, 0, len(result.Items))
	for _, item := range result.Items {
		if item.TMDBID() == providerID {
			exact = append(exact, item)
		}
	}
	return exact, nil
}

// doGet performs a GET request against the server and decodes the
// response into result.
func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values, result any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("endpoint", endpoint).Msg("emby API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp, endpoint); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", ErrUpstream, err)
	}
	return nil
}

// doPost performs a POST request with a JSON body. The server answers
// item updates with 204 No Content.
func (c *Client) doPost(ctx context.Context, endpoint string, body any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Str("endpoint", endpoint).Int("bytes", len(payload)).Msg("emby API update")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return c.checkStatus(resp, endpoint)
}

func (c *Client) checkStatus(resp *http.Response, endpoint string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Str("endpoint", endpoint).
		Msg("emby API error response")

	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrItemNotFound
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API key", ErrUpstream)
	default:
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
}
