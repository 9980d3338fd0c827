package experience

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Telemetry holds per-entry usage counters. Counters are non-negative and
// monotonically non-decreasing; they are mutated only by batched increments
// at the storage layer, never read-modify-write in callers.
type Telemetry struct {
	Hits      int `json:"hits"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// Context describes the structural environment an entry applies to.
// All fields are optional; empty means "no constraint".
type Context struct {
	Lang     string   // language tag, e.g. "python"
	OS       []string // operating systems the fix was observed on
	Versions []string // version prefixes, e.g. "3.8" (wire key "python")
	Tools    []string // build/test tools involved, e.g. "pip", "pytest"
}

type contextWire struct {
	Lang    string   `json:"lang,omitempty"`
	OS      []string `json:"os,omitempty"`
	Python  []any    `json:"python,omitempty"`
	Version []any    `json:"version,omitempty"`
	Tools   []string `json:"tools,omitempty"`
}

// UnmarshalJSON accepts both the historical "python" key and the generic
// "version" key for the version-prefix list, and tolerates numeric versions
// (3.8 instead of "3.8") as produced by some miners.
func (c *Context) UnmarshalJSON(data []byte) error {
	var raw contextWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Lang = raw.Lang
	c.OS = raw.OS
	c.Tools = raw.Tools

	versions := raw.Python
	if len(versions) == 0 {
		versions = raw.Version
	}
	c.Versions = nil
	for _, v := range versions {
		c.Versions = append(c.Versions, versionString(v))
	}
	return nil
}

// MarshalJSON writes the canonical wire form (version list under "python").
func (c Context) MarshalJSON() ([]byte, error) {
	raw := contextWire{
		Lang:  c.Lang,
		OS:    c.OS,
		Tools: c.Tools,
	}
	for _, v := range c.Versions {
		raw.Python = append(raw.Python, v)
	}
	return json.Marshal(raw)
}

func versionString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Signals are the matching predicates used for heuristic retrieval.
type Signals struct {
	Regex    []string `json:"regex,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Atom is a typed remediation primitive. Name selects the rendering rule,
// Args carry the kind-specific payload. Unknown names are preserved on the
// wire and render to nothing.
type Atom struct {
	Name Kind           `json:"name"`
	Args map[string]any `json:"args"`
}

// Entry is a stored remediation experience record. Content fields (Context,
// Signals, Advice, Atoms) are immutable once indexed; updates replace the
// whole entry.
type Entry struct {
	ID        string    `json:"id"`
	Context   Context   `json:"context"`
	Signals   Signals   `json:"signals"`
	Advice    []string  `json:"advice_nl"`
	Atoms     []Atom    `json:"atoms,omitempty"`
	Telemetry Telemetry `json:"telemetry"`
}

// HasAtoms reports whether the entry carries at least one remediation atom.
func (e *Entry) HasAtoms() bool {
	return len(e.Atoms) > 0
}

// SearchText builds the canonical text representation used to embed an entry
// for similarity search. The layout matches what the indexing pipeline has
// always produced, so re-indexing stays stable across versions.
func (e *Entry) SearchText() string {
	var parts []string

	if e.Context.Lang != "" {
		parts = append(parts, "Language: "+e.Context.Lang)
	}
	if len(e.Context.Tools) > 0 {
		parts = append(parts, "Tools: "+strings.Join(e.Context.Tools, ", "))
	}
	if len(e.Context.Versions) > 0 {
		parts = append(parts, "Python versions: "+strings.Join(e.Context.Versions, ", "))
	}
	if len(e.Context.OS) > 0 {
		parts = append(parts, "OS: "+strings.Join(e.Context.OS, ", "))
	}

	if len(e.Signals.Keywords) > 0 {
		parts = append(parts, "Keywords: "+strings.Join(e.Signals.Keywords, ", "))
	}
	if len(e.Signals.Regex) > 0 {
		parts = append(parts, "Error patterns: "+strings.Join(e.Signals.Regex, ", "))
	}

	if len(e.Advice) > 0 {
		parts = append(parts, "Advice: "+strings.Join(e.Advice, " "))
	}

	return strings.Join(parts, "\n")
}

// QueryContext is the ephemeral, request-scoped counterpart of Context:
// the environment of the failure currently being diagnosed. Never persisted.
type QueryContext struct {
	Lang    string
	OS      string
	Version string
	Tools   []string
}
