package bdsmlr

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestSalvageTruncatedMidItem(t *testing.T) {
	partial := []byte(`{"posts": [{"id": 1, "title": "First"}, {"id": 2, "title": "Second"}, {"id": 3, "tit`)

	data, items, ok := salvageTruncated(partial, "posts")
	if !ok {
		t.Fatal("Expected salvage to succeed")
	}
	if items != 2 {
		t.Fatalf("Expected 2 complete items, got %d", items)
	}

	var out struct {
		Posts []struct {
			ID    int    `json:"id"`
			Title string `json:"title"`
		} `json:"posts"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Salvaged document is not valid JSON: %v", err)
	}
	if out.Posts[0].Title != "First" || out.Posts[1].Title != "Second" {
		t.Errorf("Unexpected salvaged items: %+v", out.Posts)
	}
}

func TestSalvagePreservesPrefixFields(t *testing.T) {
	partial := []byte(`{"total": 40, "page": 2, "items": [{"id": 10}, {"id": 11}, {"id`)

	data, items, ok := salvageTruncated(partial, "items")
	if !ok || items != 2 {
		t.Fatalf("Expected 2 items, got ok=%v items=%d", ok, items)
	}

	var out struct {
		Total int `json:"total"`
		Page  int `json:"page"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 40 || out.Page != 2 {
		t.Errorf("Prefix fields lost: %+v", out)
	}
}

func TestSalvageZeroItemsFails(t *testing.T) {
	partial := []byte(`{"posts": [{"id": 1, "ti`)
	if _, _, ok := salvageTruncated(partial, "posts"); ok {
		t.Fatal("Zero complete items must not salvage")
	}
}

func TestSalvageMissingArrayFails(t *testing.T) {
	partial := []byte(`{"total": 3`)
	if _, _, ok := salvageTruncated(partial, "posts"); ok {
		t.Fatal("Absent array field must not salvage")
	}
}

func TestSalvageNestedStructures(t *testing.T) {
	partial := []byte(`{"posts": [{"id": 1, "tags": ["a", "b"], "meta": {"likes": 3}}, {"id": 2, "body": "brace } in string", "nested": {"deep": [1, 2`)

	data, items, ok := salvageTruncated(partial, "posts")
	if !ok {
		t.Fatal("Expected salvage to succeed")
	}
	if items != 1 {
		t.Fatalf("Expected 1 complete item, got %d", items)
	}
	if !json.Valid(data) {
		t.Fatal("Salvaged document is not valid JSON")
	}
	if !strings.Contains(string(data), `"tags":`) && !strings.Contains(string(data), `"tags": `) {
		t.Errorf("First item lost its nested fields: %s", data)
	}
}

// slowReader emits its chunks with a delay between them, never finishing
// within the test's body timeout.
type slowReader struct {
	chunks []string
	idx    int
	delay  time.Duration
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.idx >= len(r.chunks) {
		time.Sleep(r.delay)
		return 0, io.EOF
	}
	if r.idx > 0 {
		time.Sleep(r.delay)
	}
	n := copy(p, r.chunks[r.idx])
	r.idx++
	return n, nil
}

func TestReadBodyWithRecoveryCompletes(t *testing.T) {
	body := strings.NewReader(`{"posts": [{"id": 1}]}`)
	rec, err := readBodyWithRecovery(body, "posts", time.Second)
	if err != nil {
		t.Fatalf("readBodyWithRecovery returned error: %v", err)
	}
	if !rec.IsComplete {
		t.Error("Expected complete body")
	}
	if string(rec.Data) != `{"posts": [{"id": 1}]}` {
		t.Errorf("Unexpected data: %s", rec.Data)
	}
}

func TestReadBodyWithRecoverySalvagesOnTimeout(t *testing.T) {
	r := &slowReader{
		chunks: []string{`{"posts": [{"id": 1}, {"id": 2}, {"id`, `": 3}]}`},
		delay:  500 * time.Millisecond,
	}
	rec, err := readBodyWithRecovery(r, "posts", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Expected salvage, got error: %v", err)
	}
	if rec.IsComplete {
		t.Error("Expected partial result")
	}
	if rec.Items != 2 {
		t.Errorf("Expected 2 salvaged items, got %d", rec.Items)
	}
}

func TestReadBodyWithRecoveryNothingToSalvage(t *testing.T) {
	r := &slowReader{
		chunks: []string{`{"posts": [{"id`, `": 1}]}`},
		delay:  500 * time.Millisecond,
	}
	_, err := readBodyWithRecovery(r, "posts", 50*time.Millisecond)
	if !errors.Is(err, errNoSalvage) {
		t.Fatalf("Expected errNoSalvage, got %v", err)
	}
}
