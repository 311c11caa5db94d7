package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/pace"
	"github.com/linkarr/linkarr/internal/providers"
)

const endpoint = "https://graphql.anilist.co"

var (
	ErrNotFound = errors.New("anilist media not found")
	ErrAPIError = errors.New("anilist API error")
)

const mediaFields = `
id
title { english romaji native }
format
startDate { year }
seasonYear
episodes
nextAiringEpisode { episode }
coverImage { large medium }
bannerImage
externalLinks { site url }
relations {
  edges {
    relationType
    node {
      id
      title { english romaji native }
      format
      startDate { year }
    }
  }
}`

const searchQuery = `query ($search: String) {
  Page(page: 1, perPage: 10) {
    media(search: $search, type: ANIME) {` + mediaFields + `}
  }
}`

const byIDQuery = `query ($id: Int) {
  Media(id: $id, type: ANIME) {` + mediaFields + `}
}`

// Client talks to the AniList GraphQL API.
type Client struct {
	paced  *pace.Client
	token  string
	logger zerolog.Logger
}

// NewClient creates an AniList client. token is optional; when set it is
// sent as a Bearer header.
func NewClient(paced *pace.Client, token string, logger zerolog.Logger) *Client {
	return &Client{
		paced:  paced,
		token:  token,
		logger: logger.With().Str("component", "anilist").Logger(),
	}
}

// Name returns the provider ID.
func (c *Client) Name() string { return providers.AniList }

// IsConfigured is always true: AniList needs no key for reads.
func (c *Client) IsConfigured() bool { return true }

// Media is the decoded AniList media record.
type Media struct {
	ID    int `json:"id"`
	Title struct {
		English string `json:"english"`
		Romaji  string `json:"romaji"`
		Native  string `json:"native"`
	} `json:"title"`
	Format    string `json:"format"`
	StartDate struct {
		Year int `json:"year"`
	} `json:"startDate"`
	SeasonYear        int `json:"seasonYear"`
	Episodes          int `json:"episodes"`
	NextAiringEpisode *struct {
		Episode int `json:"episode"`
	} `json:"nextAiringEpisode"`
	CoverImage struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"coverImage"`
	BannerImage   string `json:"bannerImage"`
	ExternalLinks []struct {
		Site string `json:"site"`
		URL  string `json:"url"`
	} `json:"externalLinks"`
	Relations struct {
		Edges []struct {
			RelationType string `json:"relationType"`
			Node         struct {
				ID    int `json:"id"`
				Title struct {
					English string `json:"english"`
					Romaji  string `json:"romaji"`
					Native  string `json:"native"`
				} `json:"title"`
				Format    string `json:"format"`
				StartDate struct {
					Year int `json:"year"`
				} `json:"startDate"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"relations"`
}

// Search returns up to ten media candidates for a search string.
func (c *Client) Search(ctx context.Context, search string) ([]Media, error) {
	var out struct {
		Data struct {
			Page struct {
				Media []Media `json:"media"`
			} `json:"Page"`
		} `json:"data"`
	}
	if err := c.do(ctx, searchQuery, map[string]any{"search": search}, &out); err != nil {
		return nil, err
	}
	c.logger.Debug().Str("search", search).Int("results", len(out.Data.Page.Media)).Msg("anilist search completed")
	return out.Data.Page.Media, nil
}

// GetByID fetches one media record.
func (c *Client) GetByID(ctx context.Context, id int) (*Media, error) {
	var out struct {
		Data struct {
			Media *Media `json:"Media"`
		} `json:"data"`
	}
	if err := c.do(ctx, byIDQuery, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.Data.Media == nil {
		return nil, ErrNotFound
	}
	return out.Data.Media, nil
}

// Candidate converts a Media into the shared candidate form.
func Candidate(m *Media) providers.SeriesCandidate {
	year := ""
	if m.StartDate.Year > 0 {
		year = strconv.Itoa(m.StartDate.Year)
	} else if m.SeasonYear > 0 {
		year = strconv.Itoa(m.SeasonYear)
	}

	next := 0
	if m.NextAiringEpisode != nil {
		next = m.NextAiringEpisode.Episode
	}

	relations := make([]providers.RelatedMedia, 0, len(m.Relations.Edges))
	for _, e := range m.Relations.Edges {
		relations = append(relations, providers.RelatedMedia{
			Relation: providers.RelationType(e.RelationType),
			ID:       e.Node.ID,
			Title: providers.TitleVariants{
				English: e.Node.Title.English,
				Romaji:  e.Node.Title.Romaji,
				Native:  e.Node.Title.Native,
			},
			Format: e.Node.Format,
			Year:   e.Node.StartDate.Year,
		})
	}

	raw, _ := json.Marshal(m)
	return providers.SeriesCandidate{
		Provider: providers.AniList,
		ID:       strconv.Itoa(m.ID),
		Title: providers.TitleVariants{
			English: m.Title.English,
			Romaji:  m.Title.Romaji,
			Native:  m.Title.Native,
		},
		Year:              year,
		Format:            m.Format,
		SeasonYear:        m.SeasonYear,
		NextAiringEpisode: next,
		Relations:         relations,
		SourceDetail:      fmt.Sprintf("AniList %d", m.ID),
		Raw:               raw,
	}
}

func (c *Client) do(ctx context.Context, query string, variables map[string]any, result any) error {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.paced.Do(ctx, req, 8*time.Second)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
