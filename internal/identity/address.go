// Package identity normalizes email header fields into addresses and domains.
package identity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ExtractAddress pulls a normalized address out of a single header value such
// as "Jane Doe <jane@acme.io>" or "jane@acme.io". Blank input yields false.
func ExtractAddress(field string) (string, bool) {
	addr := field
	if lt := strings.Index(field, "<"); lt >= 0 {
		if gt := strings.Index(field[lt+1:], ">"); gt >= 0 {
			addr = field[lt+1 : lt+1+gt]
		}
	}
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return "", false
	}
	return addr, true
}

// ExtractAddresses returns the sorted, de-duplicated addresses held by raw.
// raw may be a header string, a JSON-encoded array of header strings, a
// json.RawMessage, or a []string / []any. Anything it cannot read yields nil.
func ExtractAddresses(raw any) []string {
	set := make(map[string]struct{})
	collect(raw, set)
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func collect(raw any, set map[string]struct{}) {
	switch v := raw.(type) {
	case nil:
	case string:
		collectString(v, set)
	case json.RawMessage:
		collectString(string(v), set)
	case []byte:
		collectString(string(v), set)
	case []string:
		for _, item := range v {
			add(item, set)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s, set)
			} else if item != nil {
				add(fmt.Sprint(item), set)
			}
		}
	}
}

func collectString(s string, set map[string]struct{}) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return
	}
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "\"") {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			switch p := parsed.(type) {
			case []any:
				collect(p, set)
			case string:
				add(p, set)
			}
			return
		}
	}
	add(trimmed, set)
}

func add(field string, set map[string]struct{}) {
	if addr, ok := ExtractAddress(field); ok {
		set[addr] = struct{}{}
	}
}

// Domain returns the lower-cased part after the first "@", or "".
func Domain(email string) string {
	i := strings.Index(email, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(email[i+1:])
}

// LocalPart returns the lower-cased part before the first "@". An address
// without "@" is returned whole.
func LocalPart(email string) string {
	i := strings.Index(email, "@")
	if i < 0 {
		return strings.ToLower(email)
	}
	return strings.ToLower(email[:i])
}
