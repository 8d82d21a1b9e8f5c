package api

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsync/shelfsync-server/internal/tree"
)

func childNames(n TreeNode) []string {
	out := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, c.Name)
	}
	return out
}

func TestTree_BySeries(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/tree/bySeries", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	root := decode[TreeNode](t, rec).Data
	assert.Equal(t, tree.KindRoot, root.Kind)
	assert.Equal(t, tree.RootBySeries, root.ID)
	assert.Equal(t, []string{"Dune Chronicles"}, childNames(root))

	series := root.Children[0]
	require.Len(t, series.Children, 1)
	leaf := series.Children[0]
	assert.Equal(t, tree.KindBook, leaf.Kind)
	require.NotNil(t, leaf.Book)
	assert.Equal(t, "Dune", leaf.Book.Title)
}

func TestTree_FavoritesReloadOnView(t *testing.T) {
	ts := setupTestServer(t)

	root := decode[TreeNode](t, ts.do(http.MethodGet, "/api/v1/tree/favorites", nil)).Data
	assert.Empty(t, root.Children)

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodPut, "/api/v1/books/"+ts.bookID("Dune")+"/favorite", nil).Code)

	root = decode[TreeNode](t, ts.do(http.MethodGet, "/api/v1/tree/favorites", nil)).Data
	require.Len(t, root.Children, 1)
	assert.Equal(t, "Dune", root.Children[0].Book.Title)
}

func TestTree_FoundWithPattern(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/tree/found?pattern=hyper", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	root := decode[TreeNode](t, rec).Data
	var titles []string
	var walk func(TreeNode)
	walk = func(n TreeNode) {
		if n.Book != nil {
			titles = append(titles, n.Book.Title)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	assert.Equal(t, []string{"Hyperion"}, titles)
}

func TestTree_UnknownRoot(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/tree/nope", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, decode[any](t, rec).Success)
}

func TestBuild_Status(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/build", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	state := decode[BuildResponse](t, rec).Data
	assert.Equal(t, "finished", string(state.Status))
	assert.False(t, state.Building)
	assert.Equal(t, 3, state.Books)
	require.NotNil(t, state.LastResult)
}

func TestBuild_StartAndRejectWhileRunning(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/build", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.True(t, decode[BuildResponse](t, rec).Success)
	ts.waitBuild()

	// The second request usually lands while this build is in flight.
	require.True(t, ts.lib.StartBuild())
	rec = ts.do(http.MethodPost, "/api/v1/build", nil)
	if rec.Code == http.StatusConflict {
		assert.Equal(t, "CONFLICT", decode[any](t, rec).Code)
	} else {
		assert.Equal(t, http.StatusAccepted, rec.Code)
		ts.waitBuild()
	}
	ts.waitBuild()
}

func TestRescan_AddsNewFile(t *testing.T) {
	ts := setupTestServer(t)
	path := filepath.Join(ts.root, "foundation.fb2")
	writeFile(t, path, fb2("Foundation", "Asimov", "", ""))

	rec := ts.do(http.MethodPost, "/api/v1/rescan", RescanRequest{Path: path})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	assert.Eventually(t, func() bool { return ts.lib.Size() == 4 }, 5*time.Second, 10*time.Millisecond)
}

func TestRescan_RejectsRelativePath(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/rescan", RescanRequest{Path: "relative/book.fb2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[any](t, rec).Code)
}

func TestSearch(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/search?q=dune&facets=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[SearchResponse](t, rec).Data
	assert.Equal(t, "dune", resp.Query)
	require.NotEmpty(t, resp.Hits)
	assert.Equal(t, "Dune", resp.Hits[0].Book.Title)
	assert.NotNil(t, resp.Facets)
}

func TestSearch_FallsBackToLibraryMatcher(t *testing.T) {
	ts := setupTestServer(t)
	bare := NewServer(&Services{Library: ts.lib}, nil, Options{}, discardLogger())

	rec := httptestGet(bare, "/api/v1/search?q=hyper")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[SearchResponse](t, rec).Data
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "Hyperion", resp.Hits[0].Book.Title)
}

func TestSearch_RequiresQuery(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
