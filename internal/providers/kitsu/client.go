package kitsu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/pace"
	"github.com/linkarr/linkarr/internal/providers"
)

const baseURL = "https://kitsu.io/api/edge"

var (
	ErrNotFound = errors.New("kitsu result not found")
	ErrAPIError = errors.New("kitsu API error")
)

// Client talks to the Kitsu JSON:API.
type Client struct {
	paced  *pace.Client
	logger zerolog.Logger
}

// NewClient creates a Kitsu client. No key is required.
func NewClient(paced *pace.Client, logger zerolog.Logger) *Client {
	return &Client{
		paced:  paced,
		logger: logger.With().Str("component", "kitsu").Logger(),
	}
}

// Name returns the provider ID.
func (c *Client) Name() string { return providers.Kitsu }

// IsConfigured is always true.
func (c *Client) IsConfigured() bool { return true }

// Anime is one anime resource from /anime.
type Anime struct {
	ID         string
	Canonical  string
	English    string
	Japanese   string
	StartDate  string
	Subtype    string
	PosterURL  string
	EpisodeCnt int
}

// Episode is one episode resource from /anime/{id}/episodes.
type Episode struct {
	Number  int
	Season  int
	Title   string
	Airdate string
}

type resource struct {
	ID         string `json:"id"`
	Attributes struct {
		CanonicalTitle string `json:"canonicalTitle"`
		Titles         struct {
			En   string `json:"en"`
			EnJp string `json:"en_jp"`
			Ja   string `json:"ja_jp"`
		} `json:"titles"`
		StartDate    string `json:"startDate"`
		Subtype      string `json:"subtype"`
		EpisodeCount int    `json:"episodeCount"`
		PosterImage  struct {
			Original string `json:"original"`
			Large    string `json:"large"`
		} `json:"posterImage"`

		// Episode attributes.
		Number       int    `json:"number"`
		SeasonNumber int    `json:"seasonNumber"`
		Airdate      string `json:"airdate"`
	} `json:"attributes"`
}

// SearchAnime searches Kitsu anime by text.
func (c *Client) SearchAnime(ctx context.Context, query string) ([]Anime, error) {
	params := url.Values{}
	params.Set("filter[text]", query)
	params.Set("page[limit]", "5")

	var response struct {
		Data []resource `json:"data"`
	}
	if err := c.doRequest(ctx, "/anime", params, &response); err != nil {
		return nil, err
	}

	out := make([]Anime, 0, len(response.Data))
	for _, r := range response.Data {
		out = append(out, animeFromResource(r))
	}
	c.logger.Debug().Str("query", query).Int("results", len(out)).Msg("anime search completed")
	return out, nil
}

// EpisodeTitle finds the episode title for (series, season, episode) via
// search-then-episodes. English titles are preferred over romanized or
// native ones.
func (c *Client) EpisodeTitle(ctx context.Context, series string, season, episode int) (*providers.EpisodeHit, error) {
	results, err := c.SearchAnime(ctx, series)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	// The top search hit is the best text match Kitsu offers.
	anime := results[0]
	ep, err := c.getEpisode(ctx, anime.ID, season, episode)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(map[string]any{
		"animeId": anime.ID,
		"anime":   anime.Canonical,
		"episode": ep,
	})
	return &providers.EpisodeHit{
		Title:   ep.Title,
		AirDate: ep.Airdate,
		Source:  providers.Kitsu,
		Detail:  fmt.Sprintf("Kitsu %s ep %d", anime.ID, episode),
		Raw:     raw,
	}, nil
}

func (c *Client) getEpisode(ctx context.Context, animeID string, season, episode int) (*Episode, error) {
	params := url.Values{}
	params.Set("filter[number]", strconv.Itoa(episode))
	params.Set("page[limit]", "20")

	var response struct {
		Data []resource `json:"data"`
	}
	if err := c.doRequest(ctx, "/anime/"+animeID+"/episodes", params, &response); err != nil {
		return nil, err
	}

	for _, r := range response.Data {
		if r.Attributes.Number != episode {
			continue
		}
		// Kitsu season numbers are often absent; only reject an explicit
		// mismatch.
		if season > 0 && r.Attributes.SeasonNumber > 0 && r.Attributes.SeasonNumber != season {
			continue
		}
		title := r.Attributes.Titles.En
		if title == "" {
			title = r.Attributes.CanonicalTitle
		}
		if title == "" {
			title = r.Attributes.Titles.EnJp
		}
		if title == "" || providers.IsPlaceholderTitle(title) {
			continue
		}
		return &Episode{
			Number:  r.Attributes.Number,
			Season:  r.Attributes.SeasonNumber,
			Title:   title,
			Airdate: r.Attributes.Airdate,
		}, nil
	}
	return nil, ErrNotFound
}

func animeFromResource(r resource) Anime {
	poster := r.Attributes.PosterImage.Original
	if poster == "" {
		poster = r.Attributes.PosterImage.Large
	}
	return Anime{
		ID:         r.ID,
		Canonical:  r.Attributes.CanonicalTitle,
		English:    r.Attributes.Titles.En,
		Japanese:   r.Attributes.Titles.Ja,
		StartDate:  r.Attributes.StartDate,
		Subtype:    r.Attributes.Subtype,
		PosterURL:  poster,
		EpisodeCnt: r.Attributes.EpisodeCount,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, params url.Values, result any) error {
	reqURL := baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.api+json")

	resp, err := c.paced.Do(ctx, req, 8*time.Second)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
