package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/fwindex/pkg/fwindex/catalog"
	"github.com/jamesainslie/fwindex/pkg/fwindex/fetch"
	"github.com/jamesainslie/fwindex/pkg/fwindex/indexer"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/klauspost/compress/zip"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// firmwareTree writes a small served root and returns it with its catalog.
func firmwareTree(t *testing.T) (string, *types.Catalog) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"A/ISP1/f1.xml":          `<?xml version="1.0"?><config/>`,
		"A/ISP 2/f2.bin":         "\x7fELF-firmware",
		"A/ISP 2/boot/busybox":   "bb",
		"TG789vac/Telia/cfg.xml": "<telia/>",
	}
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	opts := indexer.DefaultOptions()
	opts.Root = root
	opts.Output = filepath.Join(root, "catalog.json")
	opts.Aliases = map[string]string{"TG-789": "TG789vac"}
	c, _, err := indexer.New(opts).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, catalog.Write(opts.Output, c))
	return root, c
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root, _ := firmwareTree(t)
	s := New(Options{
		Catalog: filepath.Join(root, "catalog.json"),
		Fetcher: fetch.NewLocal(root),
		Metrics: true,
	})
	require.NoError(t, s.Reload(context.Background()))
	return s, root
}

func do(t *testing.T, s *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env errorEnvelope
	decode(t, rec, &env)
	assert.Equal(t, rec.Code, env.Error.StatusCode)
	return env.Error.Code
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestCatalogUnavailable(t *testing.T) {
	s := New(Options{Catalog: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, s.Reload(context.Background()))
	assert.Nil(t, s.Engine())

	for _, target := range []string{"/catalog.json", "/api/list", "/api/facets", "/api/search?q=x", "/api/archive?path=A"} {
		rec := do(t, s, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
		assert.Equal(t, "catalog_unavailable", errorCode(t, rec), target)
	}

	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"catalog":false`)
}

func TestFailedReloadKeepsCatalog(t *testing.T) {
	s, root := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "catalog.json"), []byte("{broken"), 0o644))

	assert.Error(t, s.Reload(context.Background()))
	assert.NotNil(t, s.Engine())
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/facets", nil).Code)
}

func TestCatalogJSON(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/catalog.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	c, err := catalog.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 4, c.TotalFiles)
}

func TestList(t *testing.T) {
	s, _ := newTestServer(t)

	var resp listResponse
	rec := do(t, s, http.MethodGet, "/api/list?path=A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)

	var names []string
	for _, e := range resp.Entries {
		names = append(names, e.Name)
	}
	require.Len(t, names, 3)
	assert.Equal(t, "..", names[0])
	assert.ElementsMatch(t, []string{"ISP 2", "ISP1"}, names[1:])
	assert.Equal(t, 3, resp.Stats.Count)

	resp = listResponse{}
	decode(t, do(t, s, http.MethodGet, "/api/list?path=A&ext=.xml", nil), &resp)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "ISP1", resp.Entries[1].Name)
	assert.Equal(t, 1, resp.Stats.Count)
}

func TestListBadSort(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/list?sort=color", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_parameter", errorCode(t, rec))
}

func TestStats(t *testing.T) {
	s, _ := newTestServer(t)
	var st struct {
		Count int   `json:"count"`
		Size  int64 `json:"size"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/stats?path=A/ISP%202", nil), &st)
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, int64(len("\x7fELF-firmware")+2), st.Size)
}

func TestFacetsIncludeAliases(t *testing.T) {
	s, _ := newTestServer(t)
	var resp facetsResponse
	decode(t, do(t, s, http.MethodGet, "/api/facets", nil), &resp)
	assert.Equal(t, []string{"A", "TG789vac"}, resp.Devices)
	assert.Contains(t, resp.DeviceChoices, "TG-789")
	assert.Equal(t, 4, resp.TotalFiles)
}

func TestSearch(t *testing.T) {
	s, _ := newTestServer(t)

	var resp searchResponse
	decode(t, do(t, s, http.MethodGet, "/api/search?q=f1", nil), &resp)
	require.NotEmpty(t, resp.Hits)
	assert.Equal(t, "A/ISP1/f1.xml", resp.Hits[0].Record.Path)

	decode(t, do(t, s, http.MethodGet, "/api/search?q=xml&device=TG-789", nil), &resp)
	for _, h := range resp.Hits {
		assert.Equal(t, "TG789vac", h.Record.Device)
	}

	rec := do(t, s, http.MethodGet, "/api/search?q=f1&limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFiles(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/files/A/ISP%202/f2.bin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\x7fELF-firmware", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/files/A/ISP1/f1.xml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "xml")

	rec = do(t, s, http.MethodGet, "/files/A/ISP1/nope.bin", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	rec = do(t, s, http.MethodGet, "/files/catalog.json", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "only indexed files are served")
}

func TestDirectoryArchive(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/archive?path=A/ISP%202", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="ISP 2.zip"`)
	assert.ElementsMatch(t, []string{"boot/busybox", "f2.bin"}, zipNames(t, rec.Body.Bytes()))

	rec = do(t, s, http.MethodGet, "/api/archive?path=Nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelectionArchive(t *testing.T) {
	s, _ := newTestServer(t)

	body := strings.NewReader(`{"paths":["A/ISP1/f1.xml","TG789vac/Telia/cfg.xml","missing.bin"]}`)
	rec := do(t, s, http.MethodPost, "/api/archive", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "firmware-selection-")
	assert.Equal(t, []string{"A/ISP1/f1.xml", "TG789vac/Telia/cfg.xml"}, zipNames(t, rec.Body.Bytes()))

	rec = do(t, s, http.MethodPost, "/api/archive?sel=A/ISP1/f1.xml", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"A/ISP1/f1.xml"}, zipNames(t, rec.Body.Bytes()))

	rec = do(t, s, http.MethodPost, "/api/archive", strings.NewReader(`{"paths":[]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_selection", errorCode(t, rec))
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodGet, "/api/facets", nil)
	do(t, s, http.MethodGet, "/api/archive?path=A", nil)

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `fwindex_http_requests_total{method="GET",path="/api/facets",status="200"} 1`)
	assert.Contains(t, body, `fwindex_fetches_total{source="local",status="ok"} 3`)
	assert.Contains(t, body, `fwindex_archives_total{kind="directory",status="ok"} 1`)
	assert.Contains(t, body, "fwindex_catalog_files 4")
}

func TestMetricsDisabled(t *testing.T) {
	root, c := firmwareTree(t)
	s := New(Options{Fetcher: fetch.NewLocal(root)})
	require.NoError(t, s.SetCatalog(c))
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/metrics", nil).Code)
}
