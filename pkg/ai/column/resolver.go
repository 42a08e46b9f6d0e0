package column

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

const minFuzzyLength = 3

var separators = strings.NewReplacer(" ", "", "_", "", "-", "", "\t", "")

// Normalize lowercases and strips spaces, underscores and hyphens.
func Normalize(s string) string {
	return separators.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// Resolve maps a free-text variable name onto one of the available columns.
// Stages run in strict priority order and each is exhausted before the next:
// normalized exact, raw case-insensitive exact, prefix, substring,
// whole-word match of every search word, then reverse containment.
func Resolve(search string, columns []string) (string, bool) {
	if strings.TrimSpace(search) == "" || len(columns) == 0 {
		return "", false
	}

	ns := Normalize(search)

	for _, c := range columns {
		if Normalize(c) == ns {
			return c, true
		}
	}

	for _, c := range columns {
		if strings.EqualFold(c, search) {
			return c, true
		}
	}

	if len(ns) >= minFuzzyLength {
		for _, c := range columns {
			if strings.HasPrefix(Normalize(c), ns) {
				return c, true
			}
		}
		for _, c := range columns {
			if strings.Contains(Normalize(c), ns) {
				return c, true
			}
		}
	}

	if words := strings.Fields(search); len(words) > 0 {
		patterns := make([]*regexp.Regexp, len(words))
		for i, w := range words {
			patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
		}
		for _, c := range columns {
			all := true
			for _, p := range patterns {
				if !p.MatchString(c) {
					all = false
					break
				}
			}
			if all {
				return c, true
			}
		}
	}

	if ns != "" {
		for _, c := range columns {
			nc := Normalize(c)
			if len(nc) >= minFuzzyLength && strings.Contains(ns, nc) {
				return c, true
			}
		}
	}

	return "", false
}

// ResolveAll resolves each name, dropping misses and duplicates.
func ResolveAll(names []string, columns []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		if c, ok := Resolve(n, columns); ok && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// Mentioned returns the columns whose name appears in the text, longest names first
// so that "Revenue Growth" wins over "Revenue".
func Mentioned(text string, columns []string) []string {
	lower := strings.ToLower(text)
	sorted := append([]string(nil), columns...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	var out []string
	for _, c := range sorted {
		lc := strings.ToLower(c)
		if lc == "" {
			continue
		}
		p := regexp.MustCompile(`(?i)(^|[^\pL\pN])` + regexp.QuoteMeta(lc) + `($|[^\pL\pN])`)
		if p.MatchString(lower) {
			out = append(out, c)
			lower = strings.ReplaceAll(lower, lc, " ")
		}
	}
	return out
}

// Suggest ranks close column names for a miss, falling back to the first few columns.
func Suggest(search string, columns []string, limit int) []string {
	if limit <= 0 {
		limit = 5
	}

	ranks := fuzzy.RankFindNormalizedFold(Normalize(search), normalizedTargets(columns))
	sort.Sort(ranks)

	seen := make(map[string]bool)
	var out []string
	for _, r := range ranks {
		c := columns[r.OriginalIndex]
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	ns := Normalize(search)
	for _, c := range columns {
		nc := Normalize(c)
		if ns != "" && (strings.Contains(nc, ns) || (len(nc) >= minFuzzyLength && strings.Contains(ns, nc)) || fuzzy.MatchFold(nc, ns)) && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	if len(out) == 0 {
		out = append(out, columns...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func normalizedTargets(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = Normalize(c)
	}
	return out
}
