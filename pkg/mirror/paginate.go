// Package mirror implements the synchronization engine: mapping file content
// onto a fixed set of pre-allocated chat messages, the background worker that
// applies bus updates, and the interactive group-creation flow.
package mirror

import (
	"fmt"
	"unicode/utf8"
)

// Placeholder is rendered into pre-allocated message slots that currently
// hold no content. Slots are edited to this text rather than skipped, so a
// shrinking file visibly releases its spare pages.
const Placeholder = "*(message reserved for expansion)*"

// truncationSuffix points readers at the full file when the content exceeds
// the group's total budget.
func truncationSuffix(url string) string {
	return fmt.Sprintf("…\nSee <%s> for more", url)
}

// Truncate fits text into what Paginate can actually place across the
// slots. Text that only fits the byte budget by splitting a rune at a slot
// boundary is treated as not fitting. Oversized text is cut at a rune
// boundary with the suffix appended, shrinking further until the result is
// fully placeable.
func Truncate(text string, slots, capacity int, url string) string {
	if fitLength(text, slots, capacity) == len(text) {
		return text
	}
	suffix := truncationSuffix(url)
	cut := slots*capacity - len(suffix)
	if cut < 0 {
		cut = 0
	}
	for {
		cut = runeBoundary(text, cut)
		out := text[:cut] + suffix
		if cut == 0 || fitLength(out, slots, capacity) == len(out) {
			return out
		}
		cut--
	}
}

// Paginate partitions text into slots consecutive, non-overlapping slices of
// at most capacity bytes each, in order. Slice boundaries back off to rune
// boundaries; trailing slots beyond the text length are empty strings.
func Paginate(text string, slots, capacity int) []string {
	pages := make([]string, slots)
	rest := text
	for i := range pages {
		if len(rest) <= capacity {
			pages[i] = rest
			rest = ""
			continue
		}
		cut := runeBoundary(rest, capacity)
		pages[i] = rest[:cut]
		rest = rest[cut:]
	}
	return pages
}

// fitLength is the number of leading bytes of text that Paginate places
// into slots pages of capacity bytes. Less than len(text) means the tail
// would be discarded: rune-boundary backoff at slot boundaries can leave a
// remainder even when len(text) <= slots*capacity.
func fitLength(text string, slots, capacity int) int {
	offset := 0
	for i := 0; i < slots; i++ {
		rest := text[offset:]
		if len(rest) <= capacity {
			return len(text)
		}
		offset += runeBoundary(rest, capacity)
	}
	return offset
}

// PageCount is the minimum number of capacity-sized messages needed to hold
// length bytes. Zero-length content still occupies one page.
func PageCount(length, capacity int) int {
	if length <= 0 {
		return 1
	}
	return (length + capacity - 1) / capacity
}

// runeBoundary returns the largest rune-start offset not exceeding max.
func runeBoundary(s string, max int) int {
	if max >= len(s) {
		return len(s)
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return max
}
