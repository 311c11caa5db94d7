package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/pace"
	"github.com/linkarr/linkarr/internal/providers"
)

const baseURL = "https://api4.thetvdb.com/v4"

var (
	ErrAPIKeyMissing = errors.New("TVDB API key is not configured")
	ErrNotFound      = errors.New("TVDB result not found")
	ErrAPIError      = errors.New("TVDB API error")
	ErrAuthFailed    = errors.New("TVDB authentication failed")
)

// Client is a TVDB v4 API client. Tokens from /login are cached and
// refreshed lazily.
type Client struct {
	paced  *pace.Client
	apiKey string
	pin    string
	logger zerolog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a TVDB v4 client. pin is the optional user PIN for
// user-supported keys.
func NewClient(paced *pace.Client, apiKey, pin string, logger zerolog.Logger) *Client {
	return &Client{
		paced:  paced,
		apiKey: apiKey,
		pin:    pin,
		logger: logger.With().Str("component", "tvdb").Logger(),
	}
}

// Name returns the provider ID.
func (c *Client) Name() string { return providers.TVDB }

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool { return c.apiKey != "" }

// SeriesResult is one entry from /search.
type SeriesResult struct {
	TVDBID     string `json:"tvdb_id"`
	Name       string `json:"name"`
	Year       string `json:"year"`
	ImageURL   string `json:"image_url"`
	FirstAired string `json:"first_air_time"`
}

// Episode is one record from the episodes endpoint.
type Episode struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Aired  string `json:"aired"`
	Season int    `json:"seasonNumber"`
	Number int    `json:"number"`
}

// SearchSeries searches TVDB for series by name.
func (c *Client) SearchSeries(ctx context.Context, query string) ([]SeriesResult, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "series")

	var response struct {
		Data []SeriesResult `json:"data"`
	}
	if err := c.doRequest(ctx, "/search", params, &response); err != nil {
		return nil, err
	}

	c.logger.Debug().Str("query", query).Int("results", len(response.Data)).Msg("series search completed")
	return response.Data, nil
}

// GetSeries fetches extended series details by TVDB ID.
func (c *Client) GetSeries(ctx context.Context, id int) (*SeriesResult, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}
	var response struct {
		Data struct {
			ID         int    `json:"id"`
			Name       string `json:"name"`
			FirstAired string `json:"firstAired"`
			Image      string `json:"image"`
			Year       string `json:"year"`
		} `json:"data"`
	}
	if err := c.doRequest(ctx, fmt.Sprintf("/series/%d/extended", id), url.Values{}, &response); err != nil {
		return nil, err
	}
	return &SeriesResult{
		TVDBID:     strconv.Itoa(response.Data.ID),
		Name:       response.Data.Name,
		Year:       response.Data.Year,
		ImageURL:   response.Data.Image,
		FirstAired: response.Data.FirstAired,
	}, nil
}

// GetEpisode returns the episode record for (series, season, episode),
// or ErrNotFound.
func (c *Client) GetEpisode(ctx context.Context, seriesID, season, episode int) (*Episode, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	params := url.Values{}
	params.Set("season", strconv.Itoa(season))
	params.Set("episodeNumber", strconv.Itoa(episode))

	var response struct {
		Data struct {
			Episodes []Episode `json:"episodes"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/series/%d/episodes/default", seriesID)
	if err := c.doRequest(ctx, path, params, &response); err != nil {
		return nil, err
	}

	for _, ep := range response.Data.Episodes {
		if ep.Season == season && ep.Number == episode {
			return &ep, nil
		}
	}
	return nil, ErrNotFound
}

// Candidate converts a series result to the shared candidate form.
func Candidate(s SeriesResult) providers.SeriesCandidate {
	raw, _ := json.Marshal(s)
	return providers.SeriesCandidate{
		Provider:     providers.TVDB,
		ID:           s.TVDBID,
		Title:        providers.TitleVariants{English: s.Name},
		Year:         s.Year,
		Format:       "TV",
		SourceDetail: "TVDB " + s.TVDBID,
		Raw:          raw,
	}
}

// login obtains a bearer token. Tokens are valid for a month; refresh
// after a conservative 14 days.
func (c *Client) login(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	payload := map[string]string{"apikey": c.apiKey}
	if c.pin != "" {
		payload["pin"] = c.pin
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.paced.Do(ctx, req, 10*time.Second)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if result.Data.Token == "" {
		return "", ErrAuthFailed
	}

	c.token = result.Data.Token
	c.tokenExpiry = time.Now().Add(14 * 24 * time.Hour)
	c.logger.Debug().Msg("obtained TVDB token")
	return c.token, nil
}

func (c *Client) doRequest(ctx context.Context, path string, params url.Values, result any) error {
	token, err := c.login(ctx)
	if err != nil {
		return err
	}

	reqURL := baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.paced.Do(ctx, req, 10*time.Second)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		// Token expired early; drop it so the next call re-authenticates.
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return fmt.Errorf("%w: unauthorized", ErrAPIError)
	default:
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
