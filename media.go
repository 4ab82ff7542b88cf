package bdsmlr

import (
	"context"
	"encoding/json"
	"time"
)

// signedURLTTL keeps cached signed URLs comfortably inside their server-side
// validity.
const signedURLTTL = 2 * time.Minute

// MediaService covers media URL signing.
type MediaService struct {
	client *Client
}

// SignURL exchanges a media path for a time-limited signed URL. Signatures
// expire server-side, so the cache window is deliberately short.
func (s *MediaService) SignURL(ctx context.Context, mediaPath string) (string, error) {
	res, err := s.client.DoWithOptions(ctx, EndpointSignURL, map[string]interface{}{
		"path": mediaPath,
	}, RequestOptions{
		Cache: CacheTTL,
		TTL:   signedURLTTL,
	})
	if err != nil {
		return "", err
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(res.Data, &payload); err != nil {
		return "", &APIError{
			Kind:      ErrorKindParse,
			Message:   "sign-url response missing url",
			Cause:     err,
			Endpoint:  string(EndpointSignURL),
			Timestamp: time.Now(),
		}
	}
	return payload.URL, nil
}
