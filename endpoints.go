package bdsmlr

import "time"

// Endpoint identifies one remote API operation. Every call is an
// authenticated POST with a JSON body to a fixed /v2 path.
type Endpoint string

const (
	EndpointLogin Endpoint = "/v2/auth/login"

	EndpointListPosts   Endpoint = "/v2/posts/list"
	EndpointSearchPosts Endpoint = "/v2/posts/search"

	EndpointGetBlog     Endpoint = "/v2/blogs/get"
	EndpointSearchBlogs Endpoint = "/v2/blogs/search"

	EndpointFollowGraph Endpoint = "/v2/graph/follow"

	EndpointRecentActivity Endpoint = "/v2/activity/recent"

	EndpointLikes    Endpoint = "/v2/engagement/likes"
	EndpointComments Endpoint = "/v2/engagement/comments"
	EndpointReblogs  Endpoint = "/v2/engagement/reblogs"
	EndpointLike     Endpoint = "/v2/engagement/like"

	EndpointSignURL Endpoint = "/v2/media/sign-url"
)

// defaultEndpointTimeout applies to endpoints missing from the table.
const defaultEndpointTimeout = 15 * time.Second

// endpointTimeouts is the static per-endpoint timeout budget: fast lookups
// get a short leash, list endpoints a standard one, search and merge-heavy
// endpoints the longest. The timing estimator adapts around these values.
var endpointTimeouts = map[Endpoint]time.Duration{
	EndpointLogin:   5 * time.Second,
	EndpointGetBlog: 5 * time.Second,
	EndpointSignURL: 5 * time.Second,
	EndpointLike:    5 * time.Second,

	EndpointListPosts:      15 * time.Second,
	EndpointLikes:          15 * time.Second,
	EndpointComments:       15 * time.Second,
	EndpointReblogs:        15 * time.Second,
	EndpointFollowGraph:    15 * time.Second,
	EndpointRecentActivity: 30 * time.Second,

	EndpointSearchPosts: 30 * time.Second,
	EndpointSearchBlogs: 45 * time.Second,
}

// ConfiguredTimeout returns the static timeout budget for an endpoint.
func ConfiguredTimeout(ep Endpoint) time.Duration {
	if t, ok := endpointTimeouts[ep]; ok {
		return t
	}
	return defaultEndpointTimeout
}

// recoveryFields lists the endpoints eligible for partial-response recovery:
// those whose response is dominated by a single array field. Everything else
// goes through the standard executor unmodified.
var recoveryFields = map[Endpoint]string{
	EndpointListPosts:      "posts",
	EndpointSearchPosts:    "posts",
	EndpointRecentActivity: "items",
	EndpointLikes:          "likes",
	EndpointReblogs:        "reblogs",
}

// RecoveryField returns the dominant array field for ep and whether partial
// recovery is supported at all.
func RecoveryField(ep Endpoint) (string, bool) {
	field, ok := recoveryFields[ep]
	return field, ok
}
