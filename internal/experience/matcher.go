package experience

import (
	"log/slog"
	"regexp"
	"strings"
)

// HintMarker prefixes every advice line emitted by the Matcher so the agent
// can tell injected hints apart from its own observations.
const HintMarker = "[Knowledge Base Hint]: "

// Matcher performs deterministic signal matching over a fixed entry set.
// It needs no store, no embeddings, and no network; it is the degraded-mode
// retrieval path that must keep working when everything else is down.
//
// A Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	entries  []Entry
	compiled [][]*regexp.Regexp // per entry, invalid patterns dropped
	logger   *slog.Logger
}

// NewMatcher builds a Matcher over entries, preserving their order.
// Regex patterns are compiled case-insensitively up front; patterns that do
// not compile are logged and skipped, never fatal.
func NewMatcher(entries []Entry, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}

	compiled := make([][]*regexp.Regexp, len(entries))
	for i, e := range entries {
		for _, pattern := range e.Signals.Regex {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				logger.Warn("skipping invalid signal pattern",
					"entry_id", e.ID, "pattern", pattern, "error", err)
				continue
			}
			compiled[i] = append(compiled[i], re)
		}
	}

	return &Matcher{entries: entries, compiled: compiled, logger: logger}
}

// Len returns the number of loaded entries.
func (m *Matcher) Len() int {
	return len(m.entries)
}

// Retrieve returns the advice lines of every entry matching the observation
// or the current file listing, in entry load order.
//
// An entry matches if any of its regexes matches observation, any keyword is
// a literal substring of observation, or (predictive path) the intersection
// of currentFiles and its keywords is non-empty. Each entry contributes at
// most once regardless of how many signals hit.
func (m *Matcher) Retrieve(observation string, currentFiles []string) []string {
	fileSet := make(map[string]struct{}, len(currentFiles))
	for _, f := range currentFiles {
		fileSet[f] = struct{}{}
	}

	seen := make(map[string]struct{})
	var advices []string

	for i := range m.entries {
		e := &m.entries[i]
		if _, dup := seen[e.ID]; dup {
			continue
		}
		if !m.entryMatches(i, observation, fileSet) {
			continue
		}

		seen[e.ID] = struct{}{}
		for _, advice := range e.Advice {
			advices = append(advices, HintMarker+advice)
		}
	}

	return advices
}

func (m *Matcher) entryMatches(i int, observation string, fileSet map[string]struct{}) bool {
	e := &m.entries[i]

	if observation != "" {
		for _, re := range m.compiled[i] {
			if re.MatchString(observation) {
				return true
			}
		}
		for _, kw := range e.Signals.Keywords {
			if kw != "" && strings.Contains(observation, kw) {
				return true
			}
		}
	}

	if len(fileSet) > 0 {
		for _, kw := range e.Signals.Keywords {
			if _, ok := fileSet[kw]; ok {
				return true
			}
		}
	}

	return false
}
