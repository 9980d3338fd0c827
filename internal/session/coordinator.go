package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/fixlore/fixlore/internal/embed"
	"github.com/fixlore/fixlore/internal/experience"
	"github.com/fixlore/fixlore/internal/store"
)

// TruncationMarker separates the head and tail halves of an over-long
// observation.
const TruncationMarker = "\n... [TRUNCATED] ...\n"

// DefaultMaxSnippetChars bounds the observation text handed to the
// embedding service and the store.
const DefaultMaxSnippetChars = 4000

// errorKeywords classify an observation as containing a failure signal.
// Matched case-insensitively.
var errorKeywords = []string{
	"module not found",
	"modulenotfounderror",
	"importerror",
	"no module named",
	"could not find a version",
	"command not found",
	"permission denied",
	"error:",
	"failed",
	"traceback",
	"exception",
}

// SearchStore is the slice of store behavior the coordinator needs.
type SearchStore interface {
	Search(ctx context.Context, queryEmbedding []float32, qc experience.QueryContext, k int, minSimilarity float64) ([]store.Candidate, error)
}

// Options tune a Coordinator. Zero values take defaults.
type Options struct {
	// QueryContext is the structural context of the current run, used to
	// filter store search results (e.g. Lang: "python").
	QueryContext experience.QueryContext

	// TopK is the number of candidates requested per query. Default 3.
	TopK int

	// MinSimilarity drops weakly similar candidates. Default 0.3.
	MinSimilarity float64

	// MaxSnippetChars bounds observation length. Default 4000.
	MaxSnippetChars int
}

// Coordinator runs the retrieval side of one agent turn: prepare the
// observation, decide whether to query, retrieve and render candidates,
// and feed the Tracker. Holds per-session mutable state (the last-query
// memo); never share one across concurrent sessions.
type Coordinator struct {
	id       string
	store    SearchStore
	embedder embed.Embedder
	tracker  *Tracker
	opts     Options
	logger   *slog.Logger

	lastQuery string
}

// NewCoordinator creates a per-run Coordinator. st and embedder may both be
// nil, in which case every turn degrades to an empty block (heuristic
// retrieval lives outside the coordinator, see experience.Matcher).
func NewCoordinator(st SearchStore, embedder embed.Embedder, tracker *Tracker, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = 0.3
	}
	if opts.MaxSnippetChars <= 0 {
		opts.MaxSnippetChars = DefaultMaxSnippetChars
	}

	id := uuid.NewString()
	return &Coordinator{
		id:       id,
		store:    st,
		embedder: embedder,
		tracker:  tracker,
		opts:     opts,
		logger:   logger.With("session_id", id),
	}
}

// ID returns the session run identifier.
func (c *Coordinator) ID() string {
	return c.id
}

// RetrieveHints processes one observation and returns the rendered
// candidate block (possibly empty) plus the selected entry ids. The caller
// passes the ids into Tracker.Update on the next turn.
//
// Retrieval failures never fail the turn: embedding or store errors degrade
// to ("", nil) with a warning log.
func (c *Coordinator) RetrieveHints(ctx context.Context, observation string) (string, []string) {
	snippet := Truncate(strings.TrimSpace(observation), c.opts.MaxSnippetChars)

	if !c.shouldQuery(snippet) {
		return "", nil
	}

	queryEmbedding, err := c.embedder.Embed(ctx, snippet)
	if err != nil {
		c.logger.Warn("embedding failed, skipping retrieval", "error", err)
		return "", nil
	}

	candidates, err := c.store.Search(ctx, queryEmbedding, c.opts.QueryContext, c.opts.TopK, c.opts.MinSimilarity)
	if err != nil {
		c.logger.Warn("store search failed, skipping retrieval", "error", err)
		return "", nil
	}

	// Memoize after a successful query so an unchanged error is never
	// re-counted, even when nothing matched.
	c.lastQuery = snippet

	if len(candidates) == 0 {
		c.logger.Debug("no similar entries found", "min_similarity", c.opts.MinSimilarity)
		return "", nil
	}

	entries := make([]experience.Entry, 0, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		entries = append(entries, cand.Entry)
		ids = append(ids, cand.Entry.ID)
	}

	c.logger.Info("selected candidates", "ids", ids)
	if c.tracker != nil {
		c.tracker.RecordSelection(ctx, ids)
	}

	return experience.RenderCandidatesBlock(entries), ids
}

// shouldQuery applies the skip rules: no store or embedder configured,
// empty snippet, no error signal, or an exact repeat of the last query.
func (c *Coordinator) shouldQuery(snippet string) bool {
	if c.store == nil || c.embedder == nil {
		return false
	}
	if snippet == "" {
		return false
	}
	if !HasErrorSignal(snippet) {
		return false
	}
	if snippet == c.lastQuery {
		c.logger.Debug("duplicate query suppressed")
		return false
	}
	return true
}

// Close tears the session down. It only clears local state: no other
// session depends on it, and forgetting to call it cannot corrupt anything
// shared.
func (c *Coordinator) Close() {
	c.lastQuery = ""
}

// HasErrorSignal reports whether text contains any known failure keyword,
// case-insensitively.
func HasErrorSignal(text string) bool {
	if text == "" {
		return false
	}
	lowered := strings.ToLower(text)
	for _, kw := range errorKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// Truncate bounds text to maxChars characters by keeping the head and tail
// halves verbatim around a single TruncationMarker. The cut points land on
// rune boundaries so multibyte observations stay valid UTF-8. Text at or
// under the bound is returned unchanged.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	half := maxChars / 2
	return string(runes[:half]) + TruncationMarker + string(runes[len(runes)-half:])
}
