package experience

import (
	"regexp"
	"sort"
	"strings"
)

// Composite score weights. Regex hits dominate because a matching error
// pattern is near-certain relevance; keywords and context refine the order.
const (
	regexWeight   = 10.0
	keywordWeight = 1.0
	contextWeight = 1.5
	atomBias      = 0.5
)

// Score computes the composite relevance of entry for the given log snippet
// and query context:
//
//	10.0 if any regex matches the snippet
//	+ 1.0 per keyword appearing in the snippet (case-insensitive)
//	+ 1.5 * context agreement (language, tools, version prefix, OS)
//	+ 0.5 if the entry carries atoms
func Score(e *Entry, snippet string, qc QueryContext) float64 {
	score := 0.0

	if len(e.Signals.Regex) > 0 && matchAnyPattern(snippet, e.Signals.Regex) {
		score += regexWeight
	}

	score += keywordWeight * float64(keywordHits(snippet, e.Signals.Keywords))
	score += contextWeight * float64(contextScore(e, qc))

	if e.HasAtoms() {
		score += atomBias
	}

	return score
}

// matchAnyPattern reports whether any pattern matches the snippet,
// case-insensitively. Invalid patterns are ignored.
func matchAnyPattern(snippet string, patterns []string) bool {
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			continue
		}
		if re.MatchString(snippet) {
			return true
		}
	}
	return false
}

// keywordHits counts keywords appearing as substrings of the snippet,
// case-insensitively.
func keywordHits(snippet string, keywords []string) int {
	text := strings.ToLower(snippet)
	hits := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			hits++
		}
	}
	return hits
}

// contextScore measures structural agreement between an entry's declared
// context and the query context: 2 for an exact language match, 2 for a
// non-empty tool intersection, 1 if any declared version is a prefix match
// for the query version, 1 if the query OS appears in the entry's OS list.
func contextScore(e *Entry, qc QueryContext) int {
	score := 0

	if qc.Lang != "" && e.Context.Lang == qc.Lang {
		score += 2
	}

	if len(qc.Tools) > 0 && len(e.Context.Tools) > 0 {
		entryTools := make(map[string]struct{}, len(e.Context.Tools))
		for _, t := range e.Context.Tools {
			entryTools[t] = struct{}{}
		}
		for _, t := range qc.Tools {
			if _, ok := entryTools[t]; ok {
				score += 2
				break
			}
		}
	}

	if qc.Version != "" {
		for _, v := range e.Context.Versions {
			if strings.HasPrefix(v, qc.Version) {
				score++
				break
			}
		}
	}

	if qc.OS != "" {
		for _, os := range e.Context.OS {
			if os == qc.OS {
				score++
				break
			}
		}
	}

	return score
}

type scoredEntry struct {
	score float64
	entry Entry
}

// Rank selects the top-k entries for the snippet and context by composite
// score, descending. Ties keep the original entry order (stable sort).
//
// With preferRemediable set, atom-bearing entries are ranked first: the
// top-k is drawn from them, padded with atom-less entries only when fewer
// than k qualify. Each sublist is independently score-sorted.
func Rank(entries []Entry, snippet string, qc QueryContext, k int, preferRemediable bool) []Entry {
	if len(entries) == 0 || k <= 0 {
		return nil
	}

	all := make([]scoredEntry, 0, len(entries))
	for i := range entries {
		all = append(all, scoredEntry{
			score: Score(&entries[i], snippet, qc),
			entry: entries[i],
		})
	}

	if !preferRemediable {
		sortByScore(all)
		return takeEntries(all, k)
	}

	var withAtoms, withoutAtoms []scoredEntry
	for _, s := range all {
		if s.entry.HasAtoms() {
			withAtoms = append(withAtoms, s)
		} else {
			withoutAtoms = append(withoutAtoms, s)
		}
	}
	sortByScore(withAtoms)
	sortByScore(withoutAtoms)

	result := takeEntries(withAtoms, k)
	if len(result) < k {
		result = append(result, takeEntries(withoutAtoms, k-len(result))...)
	}
	return result
}

func sortByScore(s []scoredEntry) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].score > s[j].score })
}

func takeEntries(s []scoredEntry, k int) []Entry {
	if k > len(s) {
		k = len(s)
	}
	out := make([]Entry, 0, k)
	for _, sc := range s[:k] {
		out = append(out, sc.entry)
	}
	return out
}
