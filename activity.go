package bdsmlr

import (
	"context"
	"encoding/json"
)

// ActivityService covers the recent-activity feed.
type ActivityService struct {
	client *Client
}

// RecentActivityRequest selects a page of the account's activity feed.
type RecentActivityRequest struct {
	Page    int `json:"page"`
	PerPage int `json:"perPage,omitempty"`
}

// Recent fetches recent activity. The feed is the most latency-tolerant
// surface: stale-while-revalidate with salvage, and responses claiming items
// while delivering none are not cached.
func (s *ActivityService) Recent(ctx context.Context, req RecentActivityRequest) (*Result, error) {
	return s.client.DoWithOptions(ctx, EndpointRecentActivity, map[string]interface{}{
		"page":    req.Page,
		"perPage": req.PerPage,
	}, RequestOptions{
		Cache:           CacheSWR,
		PartialRecovery: true,
		meta:            entryMeta{Page: req.Page},
		storeFilter:     cacheableItemsPage,
	})
}

// cacheableItemsPage rejects payloads whose reported total contradicts an
// empty items array.
func cacheableItemsPage(payload json.RawMessage) bool {
	var body struct {
		Items []json.RawMessage `json:"items"`
		Total int               `json:"total"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return false
	}
	return !(len(body.Items) == 0 && body.Total > 0)
}

// ActivityItem is one feed entry.
type ActivityItem struct {
	ID        json.Number `json:"id"`
	Type      string      `json:"type"`
	BlogID    json.Number `json:"blogId"`
	PostID    json.Number `json:"postId,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// DecodeActivity extracts the items array from a feed payload.
func DecodeActivity(data json.RawMessage) ([]ActivityItem, error) {
	var payload struct {
		Items []ActivityItem `json:"items"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}
