package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkarr/linkarr/internal/apply"
	"github.com/linkarr/linkarr/internal/artwork"
	"github.com/linkarr/linkarr/internal/config"
	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/render"
	"github.com/linkarr/linkarr/internal/resolver"
	"github.com/linkarr/linkarr/internal/scanner"
	"github.com/linkarr/linkarr/internal/testutil"
	"github.com/linkarr/linkarr/internal/users"
)

func newTestServer(t *testing.T) (*Server, *enrich.Manager) {
	t.Helper()

	st := testutil.NewTestStore(t)
	logger := testutil.NewTestLogger(t)
	cache, err := enrich.NewManager(st, logger)
	require.NoError(t, err)

	cfg := &config.Config{}
	us := users.NewService(st, logger)
	sc := scanner.New(st, cache, logger)
	res := resolver.New(cache, st, resolver.Clients{}, logger)
	ap := apply.New(cache, sc, logger)
	aw := artwork.New(st, cache, cfg, us.All, nil, nil, nil, logger)

	return NewServer(cfg, st, cache, us, sc, res, ap, aw, render.Aliases{}, logger), cache
}

func doRequest(t *testing.T, s *Server, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Username", user)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSettingsRoundTripPerUser(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPut, "/api/v1/settings", "alice", `{"client_os":"mac"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/settings", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got config.UserSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "mac", got.ClientOS)

	// Another user still sees the zero profile.
	rec = doRequest(t, s, http.MethodGet, "/api/v1/settings", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var other config.UserSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &other))
	assert.Empty(t, other.ClientOS)
}

func TestPreview(t *testing.T) {
	s, cache := newTestServer(t)

	season, episode := 1, 2
	cache.Update("/lib/Show S01E02.mkv", func(e *enrich.Entry) {
		e.SeriesTitle = "Show"
		e.Year = "2020"
		e.Season = &season
		e.Episode = &episode
		e.EpisodeTitle = "Second"
	})

	rec := doRequest(t, s, http.MethodPost, "/api/v1/preview", "",
		`{"paths":["/lib/Show S01E02.mkv"],"outputPath":"/out"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var plans []previewPlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	require.Len(t, plans, 1)
	assert.Empty(t, plans[0].Error)
	assert.Equal(t, "/out/Show/Season 01/Show (2020) - S01E02 - Second.mkv", plans[0].ToPath)
}

func TestPreviewUnknownPath(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/preview", "",
		`{"paths":["/lib/nothing.mkv"],"outputPath":"/out"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var plans []previewPlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	require.Len(t, plans, 1)
	assert.Equal(t, "no cache entry", plans[0].Error)
}

func TestPreviewRequiresOutputPath(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/preview", "", `{"paths":["/lib/a.mkv"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDuplicates(t *testing.T) {
	s, cache := newTestServer(t)

	for _, path := range []string{"/lib/a.mkv", "/lib/b.mkv"} {
		cache.Update(path, func(e *enrich.Entry) {
			e.SeriesTitle = "Show"
			e.Provider = &enrich.ProviderBlock{
				Provider:     "anilist",
				Matched:      true,
				RenderedName: "Show - S01E01",
			}
		})
	}
	cache.Update("/lib/c.mkv", func(e *enrich.Entry) {
		e.SeriesTitle = "Other"
		e.Provider = &enrich.ProviderBlock{
			Provider:     "anilist",
			Matched:      true,
			RenderedName: "Other - S01E01",
		}
	})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/entries/duplicates", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var dupes map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dupes))
	require.Len(t, dupes, 1)
	assert.ElementsMatch(t, []string{"/lib/a.mkv", "/lib/b.mkv"}, dupes["Show - S01E01"])
}

func TestManualSeriesIDs(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/manual-ids/series?title=Show", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/api/v1/manual-ids/series", "",
		`{"title":"Show","anilist":123}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/manual-ids/series?title=show", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ids resolver.SeriesIDs
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	assert.Equal(t, 123, ids.AniList)
}

func TestEnrichCustom(t *testing.T) {
	s, cache := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/enrich/custom", "",
		`{"path":"/lib/file.mkv","title":"My Show","year":"2021","season":1,"episode":3,"episodeTitle":"Third"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	entry := cache.Get("/lib/file.mkv")
	require.NotNil(t, entry)
	assert.Equal(t, "My Show", entry.SeriesTitle)
	require.NotNil(t, entry.Provider)
	assert.Equal(t, "custom", entry.Provider.Provider)
	assert.True(t, entry.Provider.Matched)
	assert.Equal(t, "My Show (2021) - S01E03 - Third", entry.Provider.RenderedName)
}

func TestFetchArtworkDefaultsOutputKey(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPut, "/api/v1/settings", "alice", `{"scan_output_path":"/out"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// No provider clients are wired, so the fetch itself fails; the
	// handler must still resolve the output key from user settings.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/artwork/fetch", "alice", `{"series":"Show"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "anilist client not available")
}

func TestScanWithoutLibraryPath(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/scan", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetScanNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/scans/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
