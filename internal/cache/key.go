package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// KeyPrefix starts every lineage cache key.
const KeyPrefix = "lineage"

// MakeKey builds the canonical cache key for a lineage request:
//
//	lineage:{table}:{direction}:{depth}[:k1=v1:k2=v2...]
//
// table and direction are lower-cased and trimmed; extra entries are sorted by
// key so argument order never changes the result. The format is a stable
// contract shared with anything that inspects cache keys.
func MakeKey(table, direction string, depth int, extra map[string]any) string {
	var b strings.Builder
	b.WriteString(KeyPrefix)
	b.WriteByte(':')
	b.WriteString(normalize(table))
	b.WriteByte(':')
	b.WriteString(normalize(direction))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(depth))

	if len(extra) > 0 {
		keys := make([]string, 0, len(extra))
		for k := range extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte(':')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(fmt.Sprint(extra[k]))
		}
	}
	return b.String()
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
