// Package jellyfin is a minimal client for the Jellyfin REST API covering
// library listing and collection management.
package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/config"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/media"
)

var (
	ErrNotConfigured  = errors.New("jellyfin url is not configured")
	ErrNoUser         = errors.New("no jellyfin user id available; set jellyfin.user_id")
	ErrNoCollectionID = errors.New("collection create returned no id")
)

// maxErrorBody caps how much of a failed response is kept for reporting.
const maxErrorBody = 4096

// movieFields are the extra fields requested when listing the library.
var movieFields = []string{
	"ProviderIds", "Path", "Genres", "Tags", "Studios",
	"ProductionYear", "PremiereDate", "SortName", "OriginalTitle",
	"CommunityRating", "RunTimeTicks",
	"OfficialRating", "Overview", "Taglines",
}

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jellyfin %s: status %d", e.Op, e.StatusCode)
}

// ServerInfo is the public system information of a server.
type ServerInfo struct {
	ID         string `json:"Id"`
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
}

// Client is a Jellyfin API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     zerolog.Logger

	mu     sync.Mutex
	userID string
}

// NewClient creates a new Jellyfin client.
func NewClient(cfg config.JellyfinConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		userID:  cfg.UserID,
		logger:  logger.With().Str("component", "jellyfin").Logger(),
	}
}

// IsConfigured returns true if a server URL is set.
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

// Ping fetches the unauthenticated server info.
func (c *Client) Ping(ctx context.Context) (ServerInfo, error) {
	var info ServerInfo
	err := c.do(ctx, "ping", http.MethodGet, "/System/Info/Public", nil, nil, &info)
	return info, err
}

// FetchMovies lists every movie in the library in a single call.
func (c *Client) FetchMovies(ctx context.Context) ([]media.Item, error) {
	params := url.Values{}
	params.Set("IncludeItemTypes", "Movie")
	params.Set("Recursive", "true")
	params.Set("Fields", strings.Join(movieFields, ","))

	var resp struct {
		Items            []media.Item `json:"Items"`
		TotalRecordCount int          `json:"TotalRecordCount"`
	}
	if err := c.do(ctx, "fetch movies", http.MethodGet, "/Items", params, nil, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("items", len(resp.Items)).
		Int("total", resp.TotalRecordCount).
		Msg("Fetched movies")
	return resp.Items, nil
}

// CreateCollection creates an empty collection and returns its identifier.
func (c *Client) CreateCollection(ctx context.Context, name string) (string, error) {
	params := url.Values{}
	params.Set("Name", name)

	var resp struct {
		ID string `json:"Id"`
	}
	if err := c.do(ctx, "create collection", http.MethodPost, "/Collections", params, nil, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", ErrNoCollectionID
	}

	c.logger.Info().Str("name", name).Str("collectionId", resp.ID).Msg("Created collection")
	return resp.ID, nil
}

// AddItemsToCollection attaches items to an existing collection.
func (c *Client) AddItemsToCollection(ctx context.Context, collectionID string, itemIDs []string) error {
	params := url.Values{}
	params.Set("Ids", strings.Join(itemIDs, ","))

	path := "/Collections/" + url.PathEscape(collectionID) + "/Items"
	return c.do(ctx, "add collection items", http.MethodPost, path, params, nil, nil)
}

// EnsureUserID returns the configured user, falling back to the first
// user the server lists.
func (c *Client) EnsureUserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.userID != "" {
		return c.userID, nil
	}

	var users []struct {
		ID   string `json:"Id"`
		Name string `json:"Name"`
	}
	if err := c.do(ctx, "list users", http.MethodGet, "/Users", nil, nil, &users); err != nil {
		return "", err
	}
	if len(users) == 0 || users[0].ID == "" {
		return "", ErrNoUser
	}

	c.userID = users[0].ID
	c.logger.Info().Str("user", users[0].Name).Msg("Using first server user")
	return c.userID, nil
}

// GetItemForUser fetches a single item as seen by the active user.
func (c *Client) GetItemForUser(ctx context.Context, itemID string) (media.Item, error) {
	uid, err := c.EnsureUserID(ctx)
	if err != nil {
		return media.Item{}, err
	}

	var item media.Item
	path := "/Users/" + url.PathEscape(uid) + "/Items/" + url.PathEscape(itemID)
	err = c.do(ctx, "get item", http.MethodGet, path, nil, nil, &item)
	return item, err
}

// UpdateItemTags replaces an item's tags. Server versions disagree on the
// endpoint, so each known one is tried in turn.
func (c *Client) UpdateItemTags(ctx context.Context, itemID string, tags []string) error {
	body := map[string][]string{"Tags": tags}
	paths := []string{
		"/Items/" + url.PathEscape(itemID) + "/Metadata",
		"/Items/" + url.PathEscape(itemID),
	}

	var errs []error
	for _, p := range paths {
		err := c.do(ctx, "update tags", http.MethodPost, p, nil, body, nil)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p, err))
	}
	return errors.Join(errs...)
}

// AddTagToItem appends tag to an item's tags. It reports true if the tag
// was already present.
func (c *Client) AddTagToItem(ctx context.Context, itemID, tag string) (bool, error) {
	item, err := c.GetItemForUser(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("get item %s: %w", itemID, err)
	}

	for _, t := range item.Tags {
		if t == tag {
			return true, nil
		}
	}

	tags := append([]string{}, item.Tags...)
	return false, c.UpdateItemTags(ctx, itemID, append(tags, tag))
}

func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body, result any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Emby-Token", c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("op", op).Str("path", path).Msg("HTTP request failed")
		return fmt.Errorf("jellyfin %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn().
			Str("op", op).
			Int("status", resp.StatusCode).
			Msg("Jellyfin API error")
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if result == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("jellyfin %s: failed to read response: %w", op, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("jellyfin %s: failed to decode response: %w", op, err)
	}
	return nil
}
