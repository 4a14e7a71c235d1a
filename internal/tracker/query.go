package tracker

import (
	"fmt"
	"regexp"
	"strings"
)

var keyRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-[0-9]+$`)

// KeysQuery builds `key in (A-1, B-2)` from user supplied keys. Keys are
// upper-cased, deduplicated and must look like issue keys.
func KeysQuery(keys ...string) (string, error) {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.ToUpper(strings.Trim(strings.TrimSpace(k), ","))
		if k == "" || seen[k] {
			continue
		}
		if !keyRe.MatchString(k) {
			return "", fmt.Errorf("invalid issue key %q", k)
		}
		seen[k] = true
		out = append(out, k)
	}
	if len(out) == 0 {
		return "", ErrEmptyQuery
	}
	return "key in (" + strings.Join(out, ", ") + ")", nil
}
