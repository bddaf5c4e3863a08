package routine

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases a display string and collapses non-alphanumeric runs to
// single hyphens, trimming leading/trailing hyphens. Used as a key fragment.
func Slug(name string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// hashID is a 32-bit FNV-1a over the input, rendered base36. Collision
// resistance only needs to hold over low hundreds of rows per routine.
func hashID(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}

// contentKey identifies a row by its prescription, not its position.
func contentKey(r Row) string {
	return fmt.Sprintf("%d|%d|%s|%s|%d", r.Week, r.Day, Slug(r.Exercise), strings.TrimSpace(r.Target), r.Sets)
}

// EnsureRowIDs assigns a stable rowId to every row lacking one, without
// disturbing existing ids. Duplicate prescriptions are disambiguated by an
// occurrence counter in row order, so ids depend on row order at first
// assignment only; once assigned they survive reordering.
func EnsureRowIDs(rt *Routine) {
	if rt == nil {
		return
	}
	counts := make(map[string]int)
	for i := range rt.Rows {
		row := &rt.Rows[i]
		if row.RowID != "" {
			continue
		}
		key := contentKey(*row)
		counts[key]++
		row.RowID = hashID(fmt.Sprintf("%s|%s|%d", rt.ID, key, counts[key]))
	}
}
