package pipeline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipi20xx/emby-auto-tags/internal/config"
	"github.com/pipi20xx/emby-auto-tags/internal/mediaserver/emby"
	"github.com/pipi20xx/emby-auto-tags/internal/metadata/tmdb"
	"github.com/pipi20xx/emby-auto-tags/internal/rules"
	"github.com/pipi20xx/emby-auto-tags/internal/tagging"
)

func previewCall(t *testing.T, h *Handlers, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/rules/preview", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, h.Preview(c)
}

func TestPreviewEndpoint(t *testing.T) {
	f := newFixture(t, testRules(), matrixItem(), nil)
	h := NewHandlers(f.processor)

	rec, err := previewCall(t, h, `{"tmdb_id":"603","media_type":"movie"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var preview Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))

	assert.Equal(t, "603", preview.ProviderID)
	assert.Equal(t, "The Matrix", preview.Title)
	assert.Equal(t, rules.KindMovie, preview.Kind)
	assert.Equal(t, tagging.ModeMerge, preview.Mode)
	assert.Equal(t, []string{"US"}, preview.Countries)
	assert.Equal(t, []int{28}, preview.GenreIDs)
	require.NotNil(t, preview.Year)
	assert.Equal(t, 1999, *preview.Year)
	assert.Equal(t, []string{"Action", "US-Movies"}, preview.GeneratedTags)

	require.Len(t, preview.Items, 1)
	assert.True(t, preview.Items[0].WouldChange)
	assert.Equal(t, []string{"Existing"}, preview.Items[0].OriginalTags)
	assert.Equal(t, []string{"Action", "Existing", "US-Movies"}, preview.Items[0].FinalTags)

	assert.Equal(t, 0, f.emby.updateCount(), "preview must not write")
}

func TestPreviewEndpointOverwriteMode(t *testing.T) {
	f := newFixture(t, testRules(), matrixItem(), nil)
	h := NewHandlers(f.processor)

	rec, err := previewCall(t, h, `{"tmdb_id":"603","media_type":"movie","mode":"overwrite"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var preview Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))

	assert.Equal(t, tagging.ModeOverwrite, preview.Mode)
	require.Len(t, preview.Items, 1)
	// Overwrite replaces the existing tag set outright.
	assert.Equal(t, []string{"Action", "US-Movies"}, preview.Items[0].FinalTags)
	assert.True(t, preview.Items[0].WouldChange)
}

func TestPreviewEndpointValidation(t *testing.T) {
	f := newFixture(t, testRules(), matrixItem(), nil)
	h := NewHandlers(f.processor)

	tests := []struct {
		name string
		body string
	}{
		{"missing provider id", `{"media_type":"movie"}`},
		{"unknown media type", `{"tmdb_id":"603","media_type":"album"}`},
		{"unknown mode", `{"tmdb_id":"603","media_type":"movie","mode":"append"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := previewCall(t, h, tt.body)
			var httpErr *echo.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		})
	}

	assert.Equal(t, int32(0), f.tmdbCalls.Load(), "rejected requests must not hit the catalog")
}

func TestPreviewEndpointUpstreamFailure(t *testing.T) {
	f := newFixture(t, testRules(), matrixItem(), nil)
	f.tmdbFail.Store(true)
	h := NewHandlers(f.processor)

	_, err := previewCall(t, h, `{"tmdb_id":"603","media_type":"movie"}`)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.Code)
}

func TestPreviewEndpointTitleNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	catalog := tmdb.NewClient(config.TMDBConfig{APIKey: "k", BaseURL: srv.URL, Timeout: 5}, zerolog.Nop())
	server := emby.NewClient(config.EmbyConfig{ServerURL: srv.URL, APIKey: "k", UserID: "u1", Timeout: 5}, zerolog.Nop())
	writer := emby.NewWriter(server, zerolog.Nop())
	store := rules.NewStore(filepath.Join(t.TempDir(), "rules.json"), zerolog.Nop())
	h := NewHandlers(NewProcessor(catalog, server, writer, store, nil, nil, zerolog.Nop()))

	_, err := previewCall(t, h, `{"tmdb_id":"999999","media_type":"movie"}`)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestPreviewRegisterRoutes(t *testing.T) {
	f := newFixture(t, nil, matrixItem(), nil)
	h := NewHandlers(f.processor)

	e := echo.New()
	h.RegisterRoutes(e.Group("/api/rules"))

	found := false
	for _, route := range e.Routes() {
		if route.Method == http.MethodPost && route.Path == "/api/rules/preview" {
			found = true
		}
	}
	assert.True(t, found, "preview route not registered")
}
