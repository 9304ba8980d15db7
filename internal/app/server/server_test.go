package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xwp/ga4-extensions/internal/config"
	"github.com/xwp/ga4-extensions/internal/settings"
	"github.com/xwp/ga4-extensions/internal/storage"
)

const fixtures = `
options:
  ga4_measurement_id: G-TEST123
users:
  - id: 1
    login: alice
posts:
  - id: 10
    slug: hello-world
    title: Hello world
    author_id: 1
    categories: [news, tech]
`

func writeFixtures(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtures), 0o600))
	return path
}

func TestOpenMemory(t *testing.T) {
	var cfg config.Config

	mem, err := OpenMemory(cfg)
	require.NoError(t, err)
	posts, _ := mem.ListPosts(context.Background(), 10)
	assert.Empty(t, posts)

	cfg.Site.Fixtures = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = OpenMemory(cfg)
	assert.NoError(t, err, "missing fixtures start empty")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("posts: {"), 0o600))
	cfg.Site.Fixtures = bad
	_, err = OpenMemory(cfg)
	assert.Error(t, err)

	cfg.Site.Fixtures = writeFixtures(t)
	mem, err = OpenMemory(cfg)
	require.NoError(t, err)
	id, err := mem.GetOption(context.Background(), settings.MeasurementIDOption)
	require.NoError(t, err)
	assert.Equal(t, "G-TEST123", id)
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestNewHandler_EndToEnd(t *testing.T) {
	var cfg config.Config
	cfg.Site.Fixtures = writeFixtures(t)
	mem, err := OpenMemory(cfg)
	require.NoError(t, err)

	options := storage.NewOptionCache(mem)
	h, err := NewHandler(mem, options, "https://example.com")
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	defer srv.Close()

	code, body := get(t, srv.URL+"/posts/hello-world")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"post_author":"alice","post_category":"news tech","post_tags":""`)
	assert.Contains(t, body, `gtag("config", "G-TEST123"`)

	// the option cache only sees writes made through it, or after a refresh
	require.NoError(t, mem.SetOption(context.Background(), settings.MeasurementIDOption, ""))
	_, body = get(t, srv.URL+"/")
	assert.Contains(t, body, "gtag/js")

	require.NoError(t, options.Refresh(context.Background()))
	_, body = get(t, srv.URL+"/")
	assert.NotContains(t, body, "gtag/js")
	assert.Contains(t, body, "window.dataLayer.push(")

	code, _ = get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
}
