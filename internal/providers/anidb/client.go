package anidb

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/pace"
	"github.com/linkarr/linkarr/internal/providers"
)

const (
	httpAPIURL = "http://api.anidb.net:9001/httpapi"
	cdnBaseURL = "https://cdn.anidb.net/images/main/"

	// lookupCeiling bounds one full file lookup. Hashing plus paced UDP
	// exchanges can take tens of seconds on large files.
	lookupCeiling = 60 * time.Second
)

var ErrNotFound = errors.New("anidb result not found")

// Credentials hold the UDP auth settings. ClientName and ClientVersion
// identify the registered client to both the UDP and HTTP APIs.
type Credentials struct {
	Username      string
	Password      string
	ClientName    string
	ClientVersion string
}

// Client combines the AniDB UDP API (file identification by ED2K hash)
// with the HTTP API (anime info by AID).
type Client struct {
	paced  *pace.Client
	creds  Credentials
	udp    *udpClient
	logger zerolog.Logger
}

// NewClient creates an AniDB client.
func NewClient(paced *pace.Client, creds Credentials, logger zerolog.Logger) *Client {
	l := logger.With().Str("component", "anidb").Logger()
	return &Client{
		paced:  paced,
		creds:  creds,
		udp:    newUDPClient(creds.Username, creds.Password, creds.ClientName, creds.ClientVersion, l),
		logger: l,
	}
}

// Name returns the provider ID.
func (c *Client) Name() string { return providers.AniDB }

// IsConfigured reports whether UDP credentials are complete.
func (c *Client) IsConfigured() bool { return c.udp.configured() }

// Close logs out the UDP session.
func (c *Client) Close(ctx context.Context) { c.udp.Logout(ctx) }

// FileLookup is the merged result of a hash-based identification.
type FileLookup struct {
	File  *FileRecord
	Anime *Anime
}

// LookupFile hashes the file and identifies it via the UDP FILE command,
// then fetches the anime record over HTTP. The whole operation is capped
// at sixty seconds.
func (c *Client) LookupFile(ctx context.Context, path string) (*FileLookup, error) {
	if !c.IsConfigured() {
		return nil, errNoCredential
	}

	ctx, cancel := context.WithTimeout(ctx, lookupCeiling)
	defer cancel()

	start := time.Now()
	hash, size, err := ED2KHash(path)
	if err != nil {
		return nil, fmt.Errorf("ed2k hash: %w", err)
	}
	c.logger.Debug().Str("path", path).Int64("size", size).Dur("took", time.Since(start)).Msg("hashed file")

	file, err := c.udp.FileByHash(ctx, hash, size)
	if err != nil {
		if errors.Is(err, ErrFileUnknown) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	anime, err := c.AnimeByAID(ctx, file.AID)
	if err != nil {
		// The file record alone still names the episode.
		c.logger.Warn().Err(err).Int("aid", file.AID).Msg("anime fetch failed after file match")
		return &FileLookup{File: file}, nil
	}
	return &FileLookup{File: file, Anime: anime}, nil
}

// EpisodeByID fetches one episode record by EID over UDP. Used for
// manual episode overrides.
func (c *Client) EpisodeByID(ctx context.Context, eid int) (*providers.EpisodeHit, error) {
	if !c.IsConfigured() {
		return nil, errNoCredential
	}

	ctx, cancel := context.WithTimeout(ctx, lookupCeiling)
	defer cancel()

	ep, err := c.udp.EpisodeByID(ctx, eid)
	if err != nil {
		return nil, err
	}

	title := ep.NameEnglish
	if title == "" || providers.IsPlaceholderTitle(title) {
		title = ep.NameRomaji
	}
	if title == "" {
		return nil, ErrNotFound
	}

	raw, _ := json.Marshal(ep)
	return &providers.EpisodeHit{
		Title:  title,
		Source: providers.AniDB,
		Detail: fmt.Sprintf("AniDB eid %d", eid),
		Raw:    raw,
	}, nil
}

// Anime is the decoded HTTP API anime record.
type Anime struct {
	AID       int
	Titles    providers.TitleVariants
	Type      string
	StartDate string
	Picture   string
}

// PictureURL returns the CDN URL for the anime's main picture, or "".
func (a *Anime) PictureURL() string {
	if a == nil || a.Picture == "" {
		return ""
	}
	return cdnBaseURL + a.Picture
}

type animeXML struct {
	ID     int    `xml:"id,attr"`
	Type   string `xml:"type"`
	Start  string `xml:"startdate"`
	Pic    string `xml:"picture"`
	Titles []struct {
		Lang  string `xml:"lang,attr"`
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"titles>title"`
}

// AnimeByAID fetches an anime record from the HTTP API. Responses are
// gzip compressed XML.
func (c *Client) AnimeByAID(ctx context.Context, aid int) (*Anime, error) {
	params := url.Values{}
	params.Set("request", "anime")
	params.Set("client", strings.ToLower(c.creds.ClientName))
	params.Set("clientver", c.creds.ClientVersion)
	params.Set("protover", "1")
	params.Set("aid", strconv.Itoa(aid))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.paced.Do(ctx, req, 15*time.Second)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anidb http api: status %d", resp.StatusCode)
	}

	body, err := decompressBody(resp.Body)
	if err != nil {
		return nil, err
	}

	var decoded animeXML
	if err := xml.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode anime XML: %w", err)
	}
	if decoded.ID == 0 {
		return nil, ErrNotFound
	}

	anime := &Anime{
		AID:       decoded.ID,
		Type:      decoded.Type,
		StartDate: decoded.Start,
		Picture:   decoded.Pic,
	}
	for _, t := range decoded.Titles {
		switch {
		case t.Type == "official" && t.Lang == "en":
			anime.Titles.English = t.Value
		case t.Type == "main":
			anime.Titles.Romaji = t.Value
		case t.Type == "official" && t.Lang == "ja":
			anime.Titles.Native = t.Value
		}
	}
	return anime, nil
}

// Candidate converts a file lookup into the shared candidate form.
func Candidate(l *FileLookup) providers.SeriesCandidate {
	raw, _ := json.Marshal(l)
	cand := providers.SeriesCandidate{
		Provider:     providers.AniDB,
		ID:           strconv.Itoa(l.File.AID),
		SourceDetail: fmt.Sprintf("AniDB aid %d", l.File.AID),
		Raw:          raw,
	}
	if l.Anime != nil {
		cand.Title = l.Anime.Titles
		cand.Format = l.Anime.Type
		if len(l.Anime.StartDate) >= 4 {
			cand.Year = l.Anime.StartDate[:4]
		}
	}
	if cand.Year == "" && len(l.File.Year) >= 4 {
		cand.Year = l.File.Year[:4]
	}
	return cand
}

// decompressBody sniffs for a gzip magic header; the HTTP API compresses
// unconditionally but errors come back plain.
func decompressBody(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(magic) == 2 && bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return io.ReadAll(gz)
	}
	return io.ReadAll(br)
}
