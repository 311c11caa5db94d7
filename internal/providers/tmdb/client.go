package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/pace"
	"github.com/linkarr/linkarr/internal/providers"
)

const baseURL = "https://api.themoviedb.org/3"

var (
	ErrAPIKeyMissing = errors.New("TMDB API key is not configured")
	ErrNotFound      = errors.New("TMDB result not found")
	ErrAPIError      = errors.New("TMDB API error")
	ErrRateLimited   = errors.New("TMDB API rate limited")
)

// titleAliases maps regional release titles onto each other so a search
// for one finds the other.
var titleAliases = map[string]string{
	"harry potter and the philosopher's stone": "Harry Potter and the Sorcerer's Stone",
	"harry potter and the sorcerer's stone":    "Harry Potter and the Philosopher's Stone",
}

// Client is a TMDB API client.
type Client struct {
	paced  *pace.Client
	apiKey string
	logger zerolog.Logger
}

// NewClient creates a TMDB client.
func NewClient(paced *pace.Client, apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		paced:  paced,
		apiKey: apiKey,
		logger: logger.With().Str("component", "tmdb").Logger(),
	}
}

// Name returns the provider ID.
func (c *Client) Name() string { return providers.TMDB }

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool { return c.apiKey != "" }

// TVResult is one entry from /search/tv.
type TVResult struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	FirstAirDate string `json:"first_air_date"`
	Overview     string `json:"overview"`
	PosterPath   string `json:"poster_path"`
}

// MovieResult is one entry from /search/movie.
type MovieResult struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"`
	Overview      string `json:"overview"`
	PosterPath    string `json:"poster_path"`
}

// Episode is /tv/{id}/season/{s}/episode/{e}.
type Episode struct {
	Name          string `json:"name"`
	AirDate       string `json:"air_date"`
	EpisodeNumber int    `json:"episode_number"`
	SeasonNumber  int    `json:"season_number"`
	Overview      string `json:"overview"`
}

// SearchTV searches for TV series, following title aliases.
func (c *Client) SearchTV(ctx context.Context, query string) ([]TVResult, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	var response struct {
		Results []TVResult `json:"results"`
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	if err := c.doRequest(ctx, "/search/tv", params, &response); err != nil {
		return nil, err
	}

	if len(response.Results) == 0 {
		if alias, ok := titleAliases[strings.ToLower(strings.TrimSpace(query))]; ok {
			params.Set("query", alias)
			if err := c.doRequest(ctx, "/search/tv", params, &response); err != nil {
				return nil, err
			}
		}
	}

	c.logger.Debug().Str("query", query).Int("results", len(response.Results)).Msg("TV search completed")
	return response.Results, nil
}

// SearchMovie searches for movies, following title aliases.
func (c *Client) SearchMovie(ctx context.Context, query string, year string) ([]MovieResult, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	var response struct {
		Results []MovieResult `json:"results"`
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	if year != "" {
		params.Set("year", year)
	}
	if err := c.doRequest(ctx, "/search/movie", params, &response); err != nil {
		return nil, err
	}

	if len(response.Results) == 0 {
		if alias, ok := titleAliases[strings.ToLower(strings.TrimSpace(query))]; ok {
			params.Set("query", alias)
			if err := c.doRequest(ctx, "/search/movie", params, &response); err != nil {
				return nil, err
			}
		}
	}

	c.logger.Debug().Str("query", query).Int("results", len(response.Results)).Msg("movie search completed")
	return response.Results, nil
}

// GetTV fetches series details by TMDB ID.
func (c *Client) GetTV(ctx context.Context, id int) (*TVResult, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}
	var result struct {
		ID           int    `json:"id"`
		Name         string `json:"name"`
		OriginalName string `json:"original_name"`
		FirstAirDate string `json:"first_air_date"`
		PosterPath   string `json:"poster_path"`
	}
	if err := c.doRequest(ctx, fmt.Sprintf("/tv/%d", id), url.Values{}, &result); err != nil {
		return nil, err
	}
	return &TVResult{
		ID:           result.ID,
		Name:         result.Name,
		OriginalName: result.OriginalName,
		FirstAirDate: result.FirstAirDate,
		PosterPath:   result.PosterPath,
	}, nil
}

// GetEpisode fetches one episode record.
func (c *Client) GetEpisode(ctx context.Context, seriesID, season, episode int) (*Episode, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}
	var result Episode
	path := fmt.Sprintf("/tv/%d/season/%d/episode/%d", seriesID, season, episode)
	if err := c.doRequest(ctx, path, url.Values{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetEpisodeTranslation looks for an English episode name among the
// episode's translations. Used when the default name is non-Latin or a
// numbering placeholder.
func (c *Client) GetEpisodeTranslation(ctx context.Context, seriesID, season, episode int) (string, error) {
	if !c.IsConfigured() {
		return "", ErrAPIKeyMissing
	}
	var result struct {
		Translations []struct {
			ISO6391 string `json:"iso_639_1"`
			Data    struct {
				Name string `json:"name"`
			} `json:"data"`
		} `json:"translations"`
	}
	path := fmt.Sprintf("/tv/%d/season/%d/episode/%d/translations", seriesID, season, episode)
	if err := c.doRequest(ctx, path, url.Values{}, &result); err != nil {
		return "", err
	}
	for _, tr := range result.Translations {
		if tr.ISO6391 == "en" && tr.Data.Name != "" {
			return tr.Data.Name, nil
		}
	}
	return "", nil
}

// PosterURL composes a w500 image URL from a poster path.
func PosterURL(posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return "https://image.tmdb.org/t/p/w500" + posterPath
}

// TVCandidate converts a TV search result to the shared candidate form.
func TVCandidate(tv TVResult) providers.SeriesCandidate {
	year := ""
	if len(tv.FirstAirDate) >= 4 {
		year = tv.FirstAirDate[:4]
	}
	raw, _ := json.Marshal(tv)
	return providers.SeriesCandidate{
		Provider:     providers.TMDB,
		ID:           strconv.Itoa(tv.ID),
		Title:        providers.TitleVariants{English: tv.Name, Native: tv.OriginalName},
		Year:         year,
		Format:       "TV",
		SourceDetail: fmt.Sprintf("TMDB tv %d", tv.ID),
		Raw:          raw,
	}
}

// MovieCandidate converts a movie search result to the shared candidate form.
func MovieCandidate(m MovieResult) providers.SeriesCandidate {
	year := ""
	if len(m.ReleaseDate) >= 4 {
		year = m.ReleaseDate[:4]
	}
	raw, _ := json.Marshal(m)
	return providers.SeriesCandidate{
		Provider:     providers.TMDB,
		ID:           strconv.Itoa(m.ID),
		Title:        providers.TitleVariants{English: m.Title, Native: m.OriginalTitle},
		Year:         year,
		Format:       "MOVIE",
		SourceDetail: fmt.Sprintf("TMDB movie %d", m.ID),
		Raw:          raw,
	}
}

// doRequest performs an HTTP GET request and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values, result any) error {
	params.Set("api_key", c.apiKey)
	reqURL := fmt.Sprintf("%s%s?%s", baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.paced.Do(ctx, req, 6*time.Second)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API key", ErrAPIError)
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
