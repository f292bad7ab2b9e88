package sharding

import "github.com/shardkit/proxy/pkg/sqlast"

// edit is one pending (span, replacement) substitution, expressed in
// original-SQL coordinates.
type edit struct {
	span sqlast.Span
	text string
}

// ChangeSQL replaces the text covered by span (translated by offset,
// the cumulative byte-length delta of every edit already applied to
// target) with replacement, and returns the offset the next edit must
// use. Every rewriter component in this package shares this single
// running-offset discipline: edits are always expressed in the
// original statement's coordinates, never the mutated string's.
func ChangeSQL(target *string, span sqlast.Span, replacement string, offset int) int {
	start := span.Start + offset
	end := span.End() + offset
	s := *target
	*target = s[:start] + replacement + s[end:]
	return offset + len(replacement) - span.Length
}

// applyEdits applies every edit to sql in ascending original-span
// order, carrying one running offset across the whole sequence. This
// is the only ordering under which a single shared offset stays
// correct regardless of which rewriter component produced which edit:
// an edit whose span precedes another in the original text is always
// applied first, so a later edit's offset only ever reflects changes
// that actually occurred to its left.
func applyEdits(sql string, edits []edit) string {
	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].span.Start > sorted[j].span.Start; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	target := sql
	offset := 0
	for _, e := range sorted {
		offset = ChangeSQL(&target, e.span, e.text, offset)
	}
	return target
}
