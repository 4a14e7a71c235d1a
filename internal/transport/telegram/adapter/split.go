package adapter

import (
	"strings"

	kit "slabot/internal/transport"
)

const textLimit = 4000

// splitText cuts s into chunks of at most limit runes. It prefers a blank
// line (the gap between two issues in Markdown reports), then any newline,
// and never produces a chunk shorter than a third of the limit on purpose.
func splitText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = textLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			floor := start + limit/3
			cut := -1
			if parseMode == kit.Markdown {
				cut = lastBreak(rs, floor, end, true)
			}
			if cut == -1 {
				cut = lastBreak(rs, floor, end, false)
			}
			if cut != -1 {
				end = cut
			}
		}

		if chunk := strings.TrimRight(string(rs[start:end]), "\n"); chunk != "" {
			out = append(out, chunk)
		}
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

// lastBreak returns the index just after the last newline (or blank line)
// in rs[floor:end], or -1.
func lastBreak(rs []rune, floor, end int, blank bool) int {
	for i := end - 1; i > floor; i-- {
		if rs[i] != '\n' {
			continue
		}
		if !blank || rs[i-1] == '\n' {
			return i + 1
		}
	}
	return -1
}
