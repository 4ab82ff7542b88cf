package bdsmlr

import (
	"context"
	"fmt"
)

// EngagementService covers likes, comments, reblogs and the like mutation.
type EngagementService struct {
	client *Client
}

// EngagementRequest selects one page of engagement data for a post.
type EngagementRequest struct {
	PostID string `json:"postId"`
	BlogID string `json:"blogId"`
	Page   int    `json:"page"`
}

// Likes fetches who liked a post. Engagement reads prefer availability over
// freshness: live first, last-good fallback on transient failure.
func (s *EngagementService) Likes(ctx context.Context, req EngagementRequest) (*Result, error) {
	return s.engagementRead(ctx, EndpointLikes, req, true)
}

// Comments fetches a post's comments.
func (s *EngagementService) Comments(ctx context.Context, req EngagementRequest) (*Result, error) {
	return s.engagementRead(ctx, EndpointComments, req, false)
}

// Reblogs fetches who reblogged a post.
func (s *EngagementService) Reblogs(ctx context.Context, req EngagementRequest) (*Result, error) {
	return s.engagementRead(ctx, EndpointReblogs, req, true)
}

func (s *EngagementService) engagementRead(ctx context.Context, endpoint Endpoint, req EngagementRequest, recover bool) (*Result, error) {
	var blogIDs []string
	if req.BlogID != "" {
		blogIDs = []string{req.BlogID}
	}
	return s.client.DoWithOptions(ctx, endpoint, map[string]interface{}{
		"postId": req.PostID,
		"blogId": req.BlogID,
		"page":   req.Page,
	}, RequestOptions{
		Cache:           CacheStaleIfError,
		PartialRecovery: recover,
		meta:            entryMeta{BlogIDs: blogIDs, Page: req.Page},
	})
}

// Like toggles a like on a post. On success every cached entry for the
// post's blog is invalidated so engagement counts refetch. When the client is
// offline the mutation is queued for replay on reconnect; the returned error
// is still the offline error so callers know it has not happened yet.
func (s *EngagementService) Like(ctx context.Context, postID, blogID string, liked bool) error {
	do := func(ctx context.Context) error {
		_, err := s.client.DoWithOptions(ctx, EndpointLike, map[string]interface{}{
			"postId": postID,
			"liked":  liked,
		}, RequestOptions{Cache: CacheNone})
		if err != nil {
			return err
		}
		if blogID != "" {
			s.client.InvalidateBlogs(blogID)
		}
		return nil
	}

	err := do(ctx)
	if err == nil {
		return nil
	}

	s.client.QueueIfOffline(err, &QueuedRequest{
		Description: fmt.Sprintf("like post %s (liked=%t)", postID, liked),
		Execute:     do,
	})
	return err
}
