package bdsmlr

import (
	"testing"
)

func TestNormalizeBodySnakeToCamel(t *testing.T) {
	out := NormalizeBody(EndpointListPosts, map[string]interface{}{
		"blog_ids": []string{"1"},
		"per_page": 20,
		"page":     1,
	})

	if _, ok := out["blogIds"]; !ok {
		t.Error("Expected blog_ids converted to blogIds")
	}
	if _, ok := out["perPage"]; !ok {
		t.Error("Expected per_page converted to perPage")
	}
	if _, ok := out["blog_ids"]; ok {
		t.Error("Snake variant must not survive")
	}
	if out["page"] != 1 {
		t.Error("Plain keys must pass through")
	}
}

func TestNormalizeBodyDirectionCoercion(t *testing.T) {
	cases := []struct {
		in   interface{}
		want interface{}
	}{
		{"followers", DirectionFollowers},
		{"Following", DirectionFollowing},
		{" FOLLOWERS ", DirectionFollowers},
		{"2", 2},
		{float64(1), 1},
		{"sideways", "sideways"},
	}

	for _, tc := range cases {
		out := NormalizeBody(EndpointFollowGraph, map[string]interface{}{"direction": tc.in})
		if out["direction"] != tc.want {
			t.Errorf("coerceDirection(%v) = %v, want %v", tc.in, out["direction"], tc.want)
		}
	}
}

func TestNormalizeBodyDirectionOnlyOnGraph(t *testing.T) {
	out := NormalizeBody(EndpointListPosts, map[string]interface{}{"direction": "followers"})
	if out["direction"] != "followers" {
		t.Error("Direction coercion must apply only to the follow-graph endpoint")
	}
}

func TestRequestKeyDeterministic(t *testing.T) {
	a, err := canonicalBody(map[string]interface{}{"page": 1, "blogId": "x"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := canonicalBody(map[string]interface{}{"blogId": "x", "page": 1})
	if err != nil {
		t.Fatal(err)
	}

	if requestKey(EndpointGetBlog, a) != requestKey(EndpointGetBlog, b) {
		t.Error("Key must not depend on map iteration order")
	}
	if requestKey(EndpointGetBlog, a) == requestKey(EndpointSearchBlogs, a) {
		t.Error("Key must depend on the endpoint")
	}
}

func TestRequestKeyNilBody(t *testing.T) {
	canonical, err := canonicalBody(nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(canonical) != "{}" {
		t.Errorf("Expected empty object for nil body, got %s", canonical)
	}
}
