package exchange

import (
	"fmt"
	"strconv"
	"strings"
)

// segment is a map key or, when isIndex is set, an array index.
type segment struct {
	key     string
	index   int
	isIndex bool
}

// parsePath accepts "$.a.b", "$['a']['b']", "$.a[0]" and mixtures. The
// leading "$" is optional.
func parsePath(p string) ([]segment, error) {
	s := strings.TrimSpace(p)
	s = strings.TrimPrefix(s, "$")
	var out []segment
	for len(s) > 0 {
		switch s[0] {
		case '.':
			s = s[1:]
			end := strings.IndexAny(s, ".[")
			if end < 0 {
				end = len(s)
			}
			if end == 0 {
				return nil, fmt.Errorf("invalid path %q: empty segment", p)
			}
			out = append(out, segment{key: s[:end]})
			s = s[end:]
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return nil, fmt.Errorf("invalid path %q: unclosed bracket", p)
			}
			inner := strings.TrimSpace(s[1:end])
			s = s[end+1:]
			if len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0] {
				out = append(out, segment{key: inner[1 : len(inner)-1]})
				continue
			}
			n, err := strconv.Atoi(inner)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid path %q: bad index %q", p, inner)
			}
			out = append(out, segment{index: n, isIndex: true})
		default:
			if len(out) > 0 {
				return nil, fmt.Errorf("invalid path %q", p)
			}
			// bare leading key, as in "credentialSubject.name"
			s = "." + s
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("invalid path %q: no segments", p)
	}
	return out, nil
}

// resolve walks doc along the path. A null value counts as unresolved.
func resolve(doc any, p string) (any, bool) {
	segs, err := parsePath(p)
	if err != nil {
		return nil, false
	}
	cur := doc
	for _, seg := range segs {
		if seg.isIndex {
			arr, ok := cur.([]any)
			if !ok || seg.index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.index]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg.key]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}
