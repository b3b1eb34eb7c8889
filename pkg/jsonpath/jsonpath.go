// Package jsonpath resolves single-path queries like $.response.body.upper
// or $.nodes[2].type against nested documents of map[string]any and []any.
//
// It is deliberately not a JSONPath implementation: no wildcards, no
// filters, no recursive descent. A query either resolves to a value or
// reports absent; malformed queries and type mismatches are absent, never
// errors.
package jsonpath

import (
	"strconv"
	"strings"
)

type segment struct {
	raw     string
	field   string
	index   int
	indexed bool
	numeric bool
	bad     bool
}

// Query is a parsed path, reusable across documents.
type Query struct {
	rooted   bool
	segments []segment
}

// Parse compiles a query string. The boolean is false when the query is
// empty or lacks the leading root marker; such queries resolve to absent.
func Parse(raw string) (Query, bool) {
	if raw == "" || !strings.HasPrefix(raw, "$") {
		return Query{}, false
	}

	parts := make([]string, 0, 4)
	for _, p := range strings.Split(raw, ".") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return Query{}, false
	}

	segments := make([]segment, 0, len(parts)-1)
	for _, part := range parts[1:] {
		segments = append(segments, parseSegment(part))
	}
	return Query{rooted: true, segments: segments}, true
}

func parseSegment(part string) segment {
	seg := segment{raw: part, field: part}

	if strings.HasSuffix(part, "]") && strings.Contains(part, "[") {
		open := strings.Index(part, "[")
		inner := part[open+1 : len(part)-1]
		idx, err := strconv.Atoi(inner)
		if err != nil {
			seg.bad = true
			return seg
		}
		seg.field = part[:open]
		seg.index = idx
		seg.indexed = true
		return seg
	}

	if idx, err := strconv.Atoi(part); err == nil {
		seg.index = idx
		seg.numeric = true
	}
	return seg
}

// Resolve walks the document along the parsed path. The boolean is false
// whenever the path misses: unknown key, out-of-bounds or negative index,
// or a step applied to a value of the wrong shape.
func (q Query) Resolve(doc any) (any, bool) {
	if !q.rooted {
		return nil, false
	}

	cur := doc
	for _, seg := range q.segments {
		if seg.bad {
			return nil, false
		}

		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[seg.field]
			if !ok {
				return nil, false
			}
			cur = next
			if seg.indexed {
				cur, ok = elementAt(cur, seg.index)
				if !ok {
					return nil, false
				}
			}
		case []any:
			if seg.indexed {
				cur = c
				if seg.field != "" {
					fieldIdx, err := strconv.Atoi(seg.field)
					if err != nil {
						return nil, false
					}
					next, ok := elementAt(cur, fieldIdx)
					if !ok {
						return nil, false
					}
					cur = next
				}
				next, ok := elementAt(cur, seg.index)
				if !ok {
					return nil, false
				}
				cur = next
				continue
			}
			if !seg.numeric {
				return nil, false
			}
			next, ok := elementAt(c, seg.index)
			if !ok {
				return nil, false
			}
			cur = next
		default:
			return nil, false
		}
	}
	return cur, true
}

// Extract parses and resolves in one step for callers that do not reuse
// queries.
func Extract(doc any, raw string) (any, bool) {
	q, ok := Parse(raw)
	if !ok {
		return nil, false
	}
	return q.Resolve(doc)
}

func elementAt(v any, i int) (any, bool) {
	seq, ok := v.([]any)
	if !ok {
		return nil, false
	}
	if i < 0 || i >= len(seq) {
		return nil, false
	}
	return seq[i], true
}
