package bdsmlr

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Directional codes the backend expects on follow-graph requests. The UI
// historically sent friendly strings; the shim below coerces them.
const (
	DirectionFollowers = 1
	DirectionFollowing = 2
)

// NormalizeBody produces the single canonical request shape from the loose
// unions callers may pass: snake_case keys become camelCase and the
// follow-graph direction field is coerced to its numeric code. Applied once
// at the boundary; nothing downstream tolerates variant shapes.
func NormalizeBody(endpoint Endpoint, body map[string]interface{}) map[string]interface{} {
	if body == nil {
		return map[string]interface{}{}
	}

	out := make(map[string]interface{}, len(body))
	for k, v := range body {
		out[camelKey(k)] = v
	}

	if endpoint == EndpointFollowGraph {
		if dir, ok := out["direction"]; ok {
			out["direction"] = coerceDirection(dir)
		}
	}

	return out
}

// coerceDirection maps friendly direction values onto the backend's numeric
// codes. Unknown values pass through untouched so the backend can reject
// them; this is a narrow compatibility shim, not a validator.
func coerceDirection(v interface{}) interface{} {
	switch d := v.(type) {
	case string:
		switch strings.ToLower(strings.TrimSpace(d)) {
		case "followers":
			return DirectionFollowers
		case "following":
			return DirectionFollowing
		}
		if n, err := strconv.Atoi(d); err == nil {
			return n
		}
		return v
	case float64:
		return int(d)
	default:
		return v
	}
}

// camelKey converts a snake_case key to camelCase. Keys without underscores
// come back unchanged.
func camelKey(k string) string {
	if !strings.Contains(k, "_") {
		return k
	}
	parts := strings.Split(k, "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() == 0 && i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// canonicalBody marshals a normalized body deterministically. encoding/json
// writes map keys in sorted order, so equal bodies always produce equal
// bytes.
func canonicalBody(body map[string]interface{}) ([]byte, error) {
	if body == nil {
		body = map[string]interface{}{}
	}
	return json.Marshal(body)
}

// requestKey derives the deterministic cache key for (endpoint, canonical
// body).
func requestKey(endpoint Endpoint, canonical []byte) string {
	h := fnv.New64a()
	h.Write([]byte(endpoint))
	h.Write([]byte{':'})
	h.Write(canonical)
	return fmt.Sprintf("%x", h.Sum64())
}
