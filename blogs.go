package bdsmlr

import (
	"context"
	"encoding/json"
	"sync"
)

// resolveConcurrency bounds parallel lookups in Resolve.
const resolveConcurrency = 4

// BlogsService covers blog lookup, search and batch resolution.
type BlogsService struct {
	client *Client
}

// Get fetches one blog by ID or name. Blog records are small and mostly
// static: plain TTL caching, with not-found markers so repeated lookups of a
// deleted blog stay off the network.
func (s *BlogsService) Get(ctx context.Context, blogID string) (*Result, error) {
	return s.client.DoWithOptions(ctx, EndpointGetBlog, map[string]interface{}{
		"blogId": blogID,
	}, RequestOptions{
		Cache: CacheTTL,
		meta:  entryMeta{BlogIDs: []string{blogID}},
	})
}

// SearchBlogsRequest is a blog directory search.
type SearchBlogsRequest struct {
	Query string `json:"query"`
	Page  int    `json:"page"`
}

// Search runs a blog search. The backend merges several indexes for this, so
// it carries the longest timeout budget; results revalidate via HTTP
// validators since the server emits ETags for directory pages.
func (s *BlogsService) Search(ctx context.Context, req SearchBlogsRequest) (*Result, error) {
	return s.client.DoWithOptions(ctx, EndpointSearchBlogs, map[string]interface{}{
		"query": req.Query,
		"page":  req.Page,
	}, RequestOptions{
		Cache: CacheConditional,
		meta:  entryMeta{Query: req.Query, Page: req.Page},
	})
}

// ResolvedBlog pairs one requested ID with its outcome.
type ResolvedBlog struct {
	BlogID string
	Data   json.RawMessage
	Err    error
}

// Resolve fetches many blogs with bounded concurrency, preserving input
// order. Individual failures do not abort the batch; each slot carries its
// own error.
func (s *BlogsService) Resolve(ctx context.Context, blogIDs []string) []ResolvedBlog {
	out := make([]ResolvedBlog, len(blogIDs))
	sem := make(chan struct{}, resolveConcurrency)

	var wg sync.WaitGroup
	for i, id := range blogIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := s.Get(ctx, id)
			out[i] = ResolvedBlog{BlogID: id, Err: err}
			if err == nil {
				out[i].Data = res.Data
			}
		}(i, id)
	}
	wg.Wait()
	return out
}

// Blog is the decoded shape of a blog payload.
type Blog struct {
	ID          json.Number `json:"id"`
	Name        string      `json:"name"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	PostCount   int         `json:"postCount"`
}

// DecodeBlog unmarshals a blog payload.
func DecodeBlog(data json.RawMessage) (*Blog, error) {
	var payload struct {
		Blog *Blog `json:"blog"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.Blog != nil {
		return payload.Blog, nil
	}
	// Some deployments return the blog at the top level.
	var b Blog
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
