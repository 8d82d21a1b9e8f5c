package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/shelfsync/shelfsync-server/internal/domain"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string // User's search query

	// Filters
	TagPath  string // Books carrying this tag or a descendant of it
	Language string

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "title"
	SortOrder string // "asc", "desc"

	// Options
	IncludeFacets bool
	Highlight     bool
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets,omitempty"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Title      string            `json:"title"`
	Series     string            `json:"series,omitempty"`
	File       string            `json:"file,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts.
type SearchFacets struct {
	Tags      []FacetCount `json:"tags,omitempty"`
	Languages []FacetCount `json:"languages,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(searchRequest, params)

	if params.IncludeFacets {
		searchRequest.AddFacet("tag_paths", bleve.NewFacetRequest("tag_paths", 20))
		searchRequest.AddFacet("language", bleve.NewFacetRequest("language", 20))
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("title")
		searchRequest.Highlight.AddField("author")
		searchRequest.Highlight.AddField("series")
	}

	searchRequest.Fields = []string{"title", "series", "file"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}
		if t, ok := hit.Fields["title"].(string); ok {
			searchHit.Title = t
		}
		if sn, ok := hit.Fields["series"].(string); ok {
			searchHit.Series = sn
		}
		if f, ok := hit.Fields["file"].(string); ok {
			searchHit.File = f
		}

		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	if params.IncludeFacets {
		result.Facets = SearchFacets{
			Tags:      facetCounts(searchResult, "tag_paths"),
			Languages: facetCounts(searchResult, "language"),
		}
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if params.Query != "" {
		textQueries := []query.Query{}

		titleMatch := bleve.NewMatchQuery(params.Query)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)
		textQueries = append(textQueries, titleMatch)

		authorMatch := bleve.NewMatchQuery(params.Query)
		authorMatch.SetField("author")
		authorMatch.SetBoost(2.0)
		textQueries = append(textQueries, authorMatch)

		seriesMatch := bleve.NewMatchQuery(params.Query)
		seriesMatch.SetField("series")
		seriesMatch.SetBoost(1.5)
		textQueries = append(textQueries, seriesMatch)

		tagsMatch := bleve.NewMatchQuery(params.Query)
		tagsMatch.SetField("tags")
		textQueries = append(textQueries, tagsMatch)

		descMatch := bleve.NewMatchQuery(params.Query)
		descMatch.SetField("description")
		descMatch.SetBoost(0.5)
		textQueries = append(textQueries, descMatch)

		folded := domain.Fold(params.Query)

		// Typo tolerance on title
		fuzzyQuery := bleve.NewFuzzyQuery(folded)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("title")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Autocomplete (minimum 2 chars)
		if len(folded) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(folded)
			prefixQuery.SetField("title")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.TagPath != "" {
		tq := bleve.NewTermQuery(domain.Fold(params.TagPath))
		tq.SetField("tag_paths")
		queries = append(queries, tq)
	}

	if params.Language != "" {
		lq := bleve.NewTermQuery(domain.Fold(params.Language))
		lq.SetField("language")
		queries = append(queries, lq)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	switch params.SortBy {
	case "title", "name":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-sort_title", "_id"})
		} else {
			req.SortBy([]string{"sort_title", "_id"})
		}
	default:
		req.SortBy([]string{"-_score", "_id"})
	}
}

func facetCounts(result *bleve.SearchResult, field string) []FacetCount {
	facet, ok := result.Facets[field]
	if !ok || facet.Terms == nil {
		return nil
	}
	var out []FacetCount
	for _, term := range facet.Terms.Terms() {
		out = append(out, FacetCount{Value: term.Term, Count: term.Count})
	}
	return out
}

// Searcher adapts the index to the library's free-text search.
type Searcher struct {
	index *SearchIndex
}

// Searcher returns the id-only view of the index used by the library.
func (s *SearchIndex) Searcher() Searcher {
	return Searcher{index: s}
}

// Search returns the ids of the books matching text, best match first.
func (s Searcher) Search(ctx context.Context, text string, limit int) ([]string, error) {
	params := SearchParams{Query: text, Limit: limit, SortBy: "relevance"}
	if params.Limit <= 0 {
		params.Limit = 50
	}
	result, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
