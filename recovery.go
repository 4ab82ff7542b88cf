package bdsmlr

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// errNoSalvage means the truncated body yielded zero complete items; the
// caller reports a hard timeout instead of a partial success.
var errNoSalvage = errors.New("bdsmlr: no complete items in truncated body")

// recoveredBody is the outcome of reading a response body with recovery.
type recoveredBody struct {
	Data          json.RawMessage
	IsComplete    bool
	BytesReceived int64
	Items         int
}

// readBodyWithRecovery reads r incrementally. If the body completes within
// bodyTimeout the full bytes are returned. If the deadline elapses first,
// the read is abandoned and the truncated buffer is salvaged: complete
// objects inside the named array field are extracted individually, with any
// fields preceding the array recovered best-effort.
//
// The caller must close the underlying body; closing unblocks the abandoned
// reader.
func readBodyWithRecovery(r io.Reader, arrayField string, bodyTimeout time.Duration) (*recoveredBody, error) {
	var mu sync.Mutex
	var buf bytes.Buffer

	done := make(chan error, 1)
	go func() {
		tmp := make([]byte, 32*1024)
		for {
			n, err := r.Read(tmp)
			if n > 0 {
				mu.Lock()
				buf.Write(tmp[:n])
				mu.Unlock()
			}
			if err != nil {
				if err == io.EOF {
					done <- nil
				} else {
					done <- err
				}
				return
			}
		}
	}()

	timer := time.NewTimer(bodyTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		mu.Lock()
		data := append([]byte(nil), buf.Bytes()...)
		mu.Unlock()
		if err != nil {
			return nil, err
		}
		return &recoveredBody{Data: data, IsComplete: true, BytesReceived: int64(len(data))}, nil

	case <-timer.C:
		mu.Lock()
		partial := append([]byte(nil), buf.Bytes()...)
		mu.Unlock()

		data, items, ok := salvageTruncated(partial, arrayField)
		if !ok {
			return nil, errNoSalvage
		}
		return &recoveredBody{
			Data:          data,
			IsComplete:    false,
			BytesReceived: int64(len(partial)),
			Items:         items,
		}, nil
	}
}

// salvageTruncated rebuilds a response object from a truncated JSON body:
// every object that closes at depth zero inside the named array becomes an
// item; an item that fails to parse is skipped rather than aborting the
// salvage. Top-level fields other than the array are recovered via a
// permissive scan of the truncated document.
func salvageTruncated(partial []byte, arrayField string) (json.RawMessage, int, bool) {
	items, arrayStart, ok := salvageArrayItems(partial, arrayField)
	if !ok || len(items) == 0 {
		return nil, 0, false
	}

	var out bytes.Buffer
	out.WriteByte('{')

	for key, raw := range salvagePrefixFields(partial, arrayField, arrayStart) {
		keyJSON, err := json.Marshal(key)
		if err != nil {
			continue
		}
		out.Write(keyJSON)
		out.WriteByte(':')
		out.Write(raw)
		out.WriteByte(',')
	}

	fieldJSON, _ := json.Marshal(arrayField)
	out.Write(fieldJSON)
	out.WriteString(":[")
	for i, item := range items {
		if i > 0 {
			out.WriteByte(',')
		}
		out.Write(item)
	}
	out.WriteString("]}")

	return out.Bytes(), len(items), true
}

// salvageArrayItems locates the named array textually, then scans
// character-by-character (string-aware, escape-aware) tracking nesting
// depth. Returns the complete items, the byte offset of the array, and
// whether the array was found at all.
func salvageArrayItems(partial []byte, arrayField string) ([]json.RawMessage, int, bool) {
	marker := []byte(`"` + arrayField + `"`)
	idx := bytes.Index(partial, marker)
	if idx < 0 {
		return nil, 0, false
	}

	// Skip to the opening bracket after the field name and colon.
	i := idx + len(marker)
	for i < len(partial) && partial[i] != '[' {
		if partial[i] != ':' && partial[i] != ' ' && partial[i] != '\t' &&
			partial[i] != '\n' && partial[i] != '\r' {
			return nil, 0, false
		}
		i++
	}
	if i >= len(partial) {
		return nil, 0, false
	}
	arrayStart := i
	i++

	var items []json.RawMessage
	depth := 0
	start := -1
	inString := false
	escaped := false

	for ; i < len(partial); i++ {
		ch := partial[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '[':
			depth++
		case '}', ']':
			if depth == 0 {
				// Closing bracket of the array itself: done.
				return items, arrayStart, true
			}
			depth--
			if depth == 0 && ch == '}' && start >= 0 {
				candidate := partial[start : i+1]
				if json.Valid(candidate) {
					items = append(items, append(json.RawMessage(nil), candidate...))
				}
				start = -1
			}
		}
	}

	return items, arrayStart, true
}

// salvagePrefixFields recovers top-level fields appearing before the array
// via gjson's forgiving parser. Fields that did not survive truncation
// intact are skipped. Best effort only: deeply nested prefix structures may
// be misparsed and dropped.
func salvagePrefixFields(partial []byte, arrayField string, arrayStart int) map[string]json.RawMessage {
	fields := make(map[string]json.RawMessage)

	parsed := gjson.Parse(string(partial[:arrayStart]) + "null}")
	if !parsed.IsObject() {
		parsed = gjson.Parse(string(partial))
	}

	parsed.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if name == "" || name == arrayField {
			return true
		}
		raw := []byte(value.Raw)
		if value.Type == gjson.String {
			encoded, err := json.Marshal(value.String())
			if err != nil {
				return true
			}
			raw = encoded
		}
		if json.Valid(raw) {
			fields[name] = raw
		}
		return true
	})

	return fields
}
