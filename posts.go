package bdsmlr

import (
	"context"
	"encoding/json"
)

// PostsService covers the post listing and search operations.
type PostsService struct {
	client *Client
}

// ListPostsRequest selects a page of posts from one or more blogs.
type ListPostsRequest struct {
	BlogIDs []string `json:"blogIds"`
	Page    int      `json:"page"`
	PerPage int      `json:"perPage,omitempty"`
}

// List fetches a page of posts. Post lists change often but tolerate brief
// staleness, so they ride the stale-while-revalidate strategy; the response
// array is eligible for truncated-body salvage.
func (s *PostsService) List(ctx context.Context, req ListPostsRequest) (*Result, error) {
	return s.client.DoWithOptions(ctx, EndpointListPosts, map[string]interface{}{
		"blogIds": req.BlogIDs,
		"page":    req.Page,
		"perPage": req.PerPage,
	}, RequestOptions{
		Cache:           CacheSWR,
		PartialRecovery: true,
		meta:            entryMeta{BlogIDs: req.BlogIDs, Page: req.Page},
	})
}

// SearchPostsRequest is a free-text post search.
type SearchPostsRequest struct {
	Query   string   `json:"query"`
	BlogIDs []string `json:"blogIds,omitempty"`
	Page    int      `json:"page"`
}

// Search runs a post search. Search results are expensive upstream and keyed
// by query, so they use the TTL strategy; salvage applies to the result
// array.
func (s *PostsService) Search(ctx context.Context, req SearchPostsRequest) (*Result, error) {
	return s.client.DoWithOptions(ctx, EndpointSearchPosts, map[string]interface{}{
		"query":   req.Query,
		"blogIds": req.BlogIDs,
		"page":    req.Page,
	}, RequestOptions{
		Cache:           CacheTTL,
		PartialRecovery: true,
		meta:            entryMeta{BlogIDs: req.BlogIDs, Query: req.Query, Page: req.Page},
	})
}

// Post is the decoded shape callers usually want from a list payload.
type Post struct {
	ID     json.Number `json:"id"`
	BlogID json.Number `json:"blogId"`
	Title  string      `json:"title"`
	Body   string      `json:"body"`
	Type   string      `json:"type"`
}

// DecodePosts extracts the posts array from a list or search payload.
func DecodePosts(data json.RawMessage) ([]Post, error) {
	var payload struct {
		Posts []Post `json:"posts"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload.Posts, nil
}
