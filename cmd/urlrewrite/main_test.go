package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
	"github.com/yanizio/adept-urlrewrite/internal/config"
	"github.com/yanizio/adept-urlrewrite/internal/importer"
	"github.com/yanizio/adept-urlrewrite/internal/routing"
)

func TestProcessorOptions(t *testing.T) {
	opts := processorOptions(config.Import{
		ProductURLSuffix: "",
		Strict:           true,
		MaxProbes:        10,
		ContinueOnFatal:  true,
	}, 10)

	assert.Equal(t, "", opts.ProductURLSuffix)
	assert.True(t, opts.Strict)
	assert.True(t, opts.ContinueOnFatal)
	assert.False(t, opts.UpdateMode)
	assert.Equal(t, 10, opts.MaxProbes)
	assert.Equal(t, 10, opts.EntityTypeID)
}

func TestWriteReport(t *testing.T) {
	rep := &importer.Report{Rows: 2, Succeeded: 1, Failed: 1}

	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, writeReport(rep, path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "rows: 2")
	assert.Contains(t, string(raw), "failed: 1")

	assert.Error(t, writeReport(rep, filepath.Join(t.TempDir(), "missing", "report.yaml")))

	if _, err := os.Stat("/dev/full"); err == nil {
		assert.Error(t, writeReport(rep, "/dev/full"), "a full device must fail the report")
	}
}

func TestNormalizerLocale(t *testing.T) {
	n, err := normalizer("de")
	require.NoError(t, err)
	assert.Equal(t, "gruene-schuhe", n.Normalize("Grüne Schuhe"))

	_, err = normalizer("not a locale!")
	assert.Error(t, err)
}

type oneStore struct{}

func (oneStore) StoreByCode(_ context.Context, code string) (catalog.Store, error) {
	if code != "default" {
		return catalog.Store{}, catalog.ErrNotFound
	}
	return catalog.Store{ID: 1, Code: code}, nil
}

func (oneStore) FindByStoreID(context.Context, int64) ([]catalog.URLRewrite, error) {
	return []catalog.URLRewrite{
		{RequestPath: "red-shoe.html", TargetPath: "catalog/product/view/id/42", StoreID: 1},
		{RequestPath: "old.html", TargetPath: "red-shoe.html", RedirectType: catalog.RedirectTemporary, StoreID: 1},
	}, nil
}

func TestFrontRouterWithoutUpstream(t *testing.T) {
	terminal, err := terminalHandler("")
	require.NoError(t, err)
	h := frontRouter(routing.NewTables(oneStore{}, time.Minute, 2, nil),
		routing.Options{DefaultStore: "default"}, terminal, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/red-shoe.html", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/catalog/product/view/id/42", rr.Header().Get("X-Rewrite-Target"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/old.html", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/red-shoe.html", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope.html", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFrontRouterProxiesRewrites(t *testing.T) {
	var seen string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Path
		w.WriteHeader(http.StatusTeapot)
	}))
	defer upstream.Close()

	terminal, err := terminalHandler(upstream.URL)
	require.NoError(t, err)
	h := frontRouter(routing.NewTables(oneStore{}, time.Minute, 2, nil),
		routing.Options{DefaultStore: "default"}, terminal, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/red-shoe.html", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "/catalog/product/view/id/42", seen)
}
