package bdsmlr

import (
	"context"
	"encoding/json"
)

// GraphService covers the follow-graph operations.
type GraphService struct {
	client *Client
}

// FollowGraphRequest selects one page of a blog's followers or following
// list. Direction accepts the numeric codes or the strings "followers" /
// "following"; normalization coerces either form.
type FollowGraphRequest struct {
	BlogID    string      `json:"blogId"`
	Direction interface{} `json:"direction"`
	Page      int         `json:"page"`
}

// Followers fetches a page of the blog's followers.
func (s *GraphService) Followers(ctx context.Context, blogID string, page int) (*Result, error) {
	return s.Fetch(ctx, FollowGraphRequest{BlogID: blogID, Direction: DirectionFollowers, Page: page})
}

// Following fetches a page of the blogs this blog follows.
func (s *GraphService) Following(ctx context.Context, blogID string, page int) (*Result, error) {
	return s.Fetch(ctx, FollowGraphRequest{BlogID: blogID, Direction: DirectionFollowing, Page: page})
}

// Fetch runs a follow-graph query through the TTL cache. A known backend bug
// occasionally returns an empty first page while reporting a positive total;
// such responses are served but never cached, so the next call gets another
// chance at real data.
func (s *GraphService) Fetch(ctx context.Context, req FollowGraphRequest) (*Result, error) {
	return s.client.DoWithOptions(ctx, EndpointFollowGraph, map[string]interface{}{
		"blogId":    req.BlogID,
		"direction": req.Direction,
		"page":      req.Page,
	}, RequestOptions{
		Cache:       CacheTTL,
		meta:        entryMeta{BlogIDs: []string{req.BlogID}, Page: req.Page},
		storeFilter: cacheableGraphPage(req.Page),
	})
}

// cacheableGraphPage rejects the suspicious empty-first-page shape: page one,
// zero entries, but a reported total above zero.
func cacheableGraphPage(page int) func(payload json.RawMessage) bool {
	return func(payload json.RawMessage) bool {
		if page > 1 {
			return true
		}
		var body struct {
			Entries []json.RawMessage `json:"entries"`
			Total   int               `json:"total"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return false
		}
		if len(body.Entries) == 0 && body.Total > 0 {
			return false
		}
		return true
	}
}

// FollowEntry is one edge in the follow graph.
type FollowEntry struct {
	BlogID json.Number `json:"blogId"`
	Name   string      `json:"name"`
	Since  string      `json:"since,omitempty"`
}

// DecodeFollowEntries extracts the entries array plus the reported total.
func DecodeFollowEntries(data json.RawMessage) ([]FollowEntry, int, error) {
	var payload struct {
		Entries []FollowEntry `json:"entries"`
		Total   int           `json:"total"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, 0, err
	}
	return payload.Entries, payload.Total, nil
}
