package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/pace"
	"github.com/linkarr/linkarr/internal/providers"
	"github.com/linkarr/linkarr/internal/store"
)

const apiURL = "https://en.wikipedia.org/w/api.php"

const (
	// cacheTTL is how long a cached episode title is served at all.
	cacheTTL = 30 * 24 * time.Hour
	// revalidateAfter is the age past which a cached entry is re-checked
	// against the live page before being served.
	revalidateAfter = 7 * 24 * time.Hour
)

var (
	ErrNotFound = errors.New("wikipedia page not found")
	ErrAPIError = errors.New("wikipedia API error")
)

// CacheEntry is one cached episode title.
type CacheEntry struct {
	Name string `json:"name"`
	Raw  struct {
		Page     string `json:"page"`
		Original string `json:"original"`
	} `json:"raw"`
	TS time.Time `json:"ts"`
}

// Client resolves episode titles from Wikipedia episode-list pages.
type Client struct {
	paced  *pace.Client
	store  *store.Store
	logger zerolog.Logger
}

// NewClient creates a Wikipedia client backed by the wiki cache map.
func NewClient(paced *pace.Client, st *store.Store, logger zerolog.Logger) *Client {
	return &Client{
		paced:  paced,
		store:  st,
		logger: logger.With().Str("component", "wikipedia").Logger(),
	}
}

// Name returns the provider ID.
func (c *Client) Name() string { return providers.Wikipedia }

// IsConfigured is always true: Wikipedia needs no key.
func (c *Client) IsConfigured() bool { return true }

// CacheKey composes the wiki cache key for a lookup.
func CacheKey(series string, season, episode int) string {
	return fmt.Sprintf("%s|s%d|e%d", normalizeSeries(series), season, episode)
}

// EpisodeTitle returns the episode title for (series, season, episode),
// consulting the cache first. A nil hit with nil error means the page
// exists but holds no usable title.
func (c *Client) EpisodeTitle(ctx context.Context, series string, season, episode int) (*providers.EpisodeHit, error) {
	key := CacheKey(series, season, episode)

	var cached CacheEntry
	ok, err := c.store.Get(store.MapWiki, key, &cached)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("wiki cache read failed")
		ok = false
	}
	if ok {
		age := time.Since(cached.TS)
		switch {
		case age < revalidateAfter:
			return c.hitFromCache(cached), nil
		case age < cacheTTL:
			// Revalidate: re-parse the page; when the page's highest
			// episode number is below the requested one the cached title
			// was from a stale or wrong table, so evict.
			hit, maxEp, err := c.lookup(ctx, series, season, episode)
			if err != nil {
				// Serve stale on revalidation failure.
				return c.hitFromCache(cached), nil
			}
			if hit == nil && maxEp < episode {
				if err := c.store.Delete(store.MapWiki, key); err != nil {
					c.logger.Warn().Err(err).Str("key", key).Msg("wiki cache evict failed")
				}
				c.logger.Debug().Str("key", key).Int("maxEpisode", maxEp).Msg("evicted stale wiki entry")
				return nil, nil
			}
			if hit != nil {
				c.cachePut(key, hit)
			}
			return hit, nil
		default:
			// Expired outright.
			if err := c.store.Delete(store.MapWiki, key); err != nil {
				c.logger.Warn().Err(err).Str("key", key).Msg("wiki cache evict failed")
			}
		}
	}

	hit, _, err := c.lookup(ctx, series, season, episode)
	if err != nil {
		return nil, err
	}
	if hit != nil {
		c.cachePut(key, hit)
	}
	return hit, nil
}

func (c *Client) hitFromCache(e CacheEntry) *providers.EpisodeHit {
	if e.Name == "" {
		return nil
	}
	raw, _ := json.Marshal(e.Raw)
	return &providers.EpisodeHit{
		Title:  e.Name,
		Source: providers.Wikipedia,
		Detail: e.Raw.Page,
		Raw:    raw,
	}
}

func (c *Client) cachePut(key string, hit *providers.EpisodeHit) {
	entry := CacheEntry{Name: hit.Title, TS: time.Now()}
	entry.Raw.Page = hit.Detail
	entry.Raw.Original = hit.Title
	if err := c.store.Set(store.MapWiki, key, entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("wiki cache write failed")
	}
}

// lookup fetches candidate pages and parses the season section. maxEp is
// the highest episode number observed in the matched section, used by
// cache revalidation.
func (c *Client) lookup(ctx context.Context, series string, season, episode int) (*providers.EpisodeHit, int, error) {
	candidates := []string{
		fmt.Sprintf("List of %s episodes", series),
		fmt.Sprintf("%s (TV series)", series),
		series,
	}

	var lastErr error
	for _, page := range candidates {
		html, resolved, err := c.fetchPage(ctx, page)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			lastErr = err
			continue
		}

		// Only trust pages whose resolved title still looks like the
		// intended series; generic disambiguation pages fail this.
		if !pageMatchesSeries(resolved, series) {
			continue
		}

		title, maxEp, found := ParseSeasonSection(html, season, episode)
		if found {
			return &providers.EpisodeHit{
				Title:  title,
				Source: providers.Wikipedia,
				Detail: resolved,
			}, maxEp, nil
		}
		if maxEp > 0 {
			// Right page, episode not present.
			return nil, maxEp, nil
		}
	}
	if lastErr != nil {
		return nil, 0, lastErr
	}
	return nil, 0, nil
}

// fetchPage retrieves the rendered HTML of a page through the parse API,
// following redirects. Returns the resolved page title.
func (c *Client) fetchPage(ctx context.Context, page string) (string, string, error) {
	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", page)
	params.Set("prop", "text")
	params.Set("format", "json")
	params.Set("redirects", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.paced.Do(ctx, req, 10*time.Second)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	var result struct {
		Parse struct {
			Title string `json:"title"`
			Text  struct {
				Content string `json:"*"`
			} `json:"text"`
		} `json:"parse"`
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		if result.Error.Code == "missingtitle" {
			return "", "", ErrNotFound
		}
		return "", "", fmt.Errorf("%w: %s", ErrAPIError, result.Error.Code)
	}
	return result.Parse.Text.Content, result.Parse.Title, nil
}

var nonWord = regexp.MustCompile(`[^a-z0-9 ]+`)

func normalizeSeries(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWord.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// pageMatchesSeries requires at least half of the series words to appear
// in the resolved page title.
func pageMatchesSeries(pageTitle, series string) bool {
	want := strings.Fields(normalizeSeries(series))
	if len(want) == 0 {
		return false
	}
	have := " " + normalizeSeries(pageTitle) + " "
	matched := 0
	for _, w := range want {
		if strings.Contains(have, " "+w+" ") {
			matched++
		}
	}
	return matched*2 >= len(want)
}
