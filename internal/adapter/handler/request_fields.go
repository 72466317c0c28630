package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var jsonNull = []byte("null")

// quantity accepts a JSON integer or a string holding one. Browser forms post their raw
// input state, so "5" and 5 mean the same thing. An empty string or null decodes to zero.
type quantity int64

func (q *quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, jsonNull) {
		*q = 0
		return nil
	}
	raw := string(b)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*q = 0
			return nil
		}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("quantity must be a whole number, got %s", b)
	}
	*q = quantity(n)
	return nil
}

// refID accepts an id as a JSON string or integer. Clients that keep numeric ids post
// 0 for an unselected field, so 0 and null decode to an empty id.
type refID string

func (r *refID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, jsonNull) {
		*r = ""
		return nil
	}
	if bytes.HasPrefix(b, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = refID(strings.TrimSpace(s))
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("id must be a string or an integer, got %s", b)
	}
	if n == 0 {
		*r = ""
		return nil
	}
	*r = refID(strconv.FormatInt(n, 10))
	return nil
}
