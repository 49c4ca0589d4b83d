package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkrank/internal/app"
	"github.com/JakeFAU/linkrank/internal/config"
)

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/one":
			fmt.Fprintf(w, `<a href="%s/two">two</a>`, srv.URL)
		case "/two":
			fmt.Fprintf(w, `<a href="%s/one">one</a><a href="%s/three">three</a>`, srv.URL, srv.URL)
		case "/three":
			fmt.Fprintf(w, `<a href="%s/two">two</a>`, srv.URL)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeFixture(t *testing.T, srv *httptest.Server) (string, string) {
	t.Helper()
	dir := t.TempDir()
	seeds := filepath.Join(dir, "urls.txt")
	require.NoError(t, os.WriteFile(seeds, []byte(strings.Join([]string{
		srv.URL + "/one", srv.URL + "/two", srv.URL + "/three",
	}, "\n")), 0o600))

	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := fmt.Sprintf(`
seeds:
  path: %s
storage:
  backend: local
  dir: %s
crawler:
  concurrency: 2
  request_spacing: 0s
report:
  path: %s
logging:
  development: false
`, seeds, filepath.Join(dir, "docs"), filepath.Join(dir, "output", "pagerank.txt"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o600))
	return cfgPath, dir
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&strings.Builder{})
	root.SetErr(&strings.Builder{})
	return root.ExecuteContext(context.Background())
}

func TestCrawlAndRankCommands(t *testing.T) {
	srv := newTestSite(t)
	cfgPath, dir := writeFixture(t, srv)

	require.NoError(t, execute(t, "crawl", "--config", cfgPath))
	for id := range 3 {
		_, err := os.Stat(filepath.Join(dir, "docs", fmt.Sprintf("%d.html", id)))
		require.NoError(t, err)
	}

	require.NoError(t, execute(t, "rank", "--config", cfgPath))
	data, err := os.ReadFile(filepath.Join(dir, "output", "pagerank.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "[1] "), "the hub page ranks first: %q", lines[0])
}

func TestRunCommandWithFlagOverrides(t *testing.T) {
	srv := newTestSite(t)
	cfgPath, dir := writeFixture(t, srv)
	reportPath := filepath.Join(dir, "custom", "rank.txt")

	require.NoError(t, execute(t, "run", "--config", cfgPath, "--backend", "memory", "--report", reportPath))
	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)
	_, err = os.Stat(filepath.Join(dir, "docs", "0.html"))
	assert.True(t, os.IsNotExist(err), "memory backend leaves the local dir untouched")
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	srv := newTestSite(t)
	cfgPath, _ := writeFixture(t, srv)

	err := execute(t, "crawl", "--config", cfgPath, "--backend", "s3")
	require.ErrorContains(t, err, "storage.backend")
}

func TestRootUsesAppFactory(t *testing.T) {
	srv := newTestSite(t)
	cfgPath, _ := writeFixture(t, srv)

	var built *app.App
	orig := newApp
	newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
		a, err := app.Build(ctx, cfg, logger)
		built = a
		return a, err
	}
	t.Cleanup(func() { newApp = orig })

	require.NoError(t, execute(t, "crawl", "--config", cfgPath, "--concurrency", "1"))
	require.NotNil(t, built)
}

func TestResolveAppWithoutApp(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
