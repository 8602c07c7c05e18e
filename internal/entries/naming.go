package entries

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"drive-service/internal/domain/entry"
)

// Disambiguate returns name when no sibling uses it, otherwise "base (n)ext" with the smallest free n.
// Only files split off an extension; a leading dot alone does not start one. The base is shortened so
// the result never exceeds entry.MaxNameLength.
func Disambiguate(name string, isDirectory bool, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, t := range taken {
		used[t] = struct{}{}
	}
	if _, ok := used[name]; !ok {
		return name
	}

	base, ext := name, ""
	if !isDirectory {
		base, ext = splitExt(name)
	}

	for n := 1; ; n++ {
		candidate := withCounter(base, ext, n)
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}

func splitExt(name string) (string, string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

func withCounter(base, ext string, n int) string {
	suffix := fmt.Sprintf(" (%d)%s", n, ext)
	room := entry.MaxNameLength - utf8.RuneCountInString(suffix)
	if room < 1 {
		// Extension too long to keep; count it as part of the base.
		return withCounter(base+ext, "", n)
	}
	return truncateRunes(base, room) + suffix
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
