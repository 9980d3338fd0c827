package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fixlore/fixlore/internal/experience"
	"github.com/fixlore/fixlore/internal/store"
)

type mockSearchStore struct {
	candidates []store.Candidate
	searchErr  error
	calls      int
	lastK      int
	lastMinSim float64
}

func (m *mockSearchStore) Search(_ context.Context, _ []float32, _ experience.QueryContext, k int, minSimilarity float64) ([]store.Candidate, error) {
	m.calls++
	m.lastK = k
	m.lastMinSim = minSimilarity
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.candidates, nil
}

type mockEmbedder struct {
	embedErr  error
	calls     int
	lastInput string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls++
	m.lastInput = text
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func candidatesFor(ids ...string) []store.Candidate {
	out := make([]store.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, store.Candidate{
			Entry:      experience.Entry{ID: id, Advice: []string{"advice for " + id}},
			Similarity: 0.9,
		})
	}
	return out
}

func TestRetrieveHints(t *testing.T) {
	st := &mockSearchStore{candidates: candidatesFor("exp_1", "exp_2")}
	emb := &mockEmbedder{}
	c := NewCoordinator(st, emb, nil, Options{}, nil)

	block, ids := c.RetrieveHints(context.Background(), "ModuleNotFoundError: No module named 'numpy'")

	if len(ids) != 2 || ids[0] != "exp_1" || ids[1] != "exp_2" {
		t.Errorf("ids = %v, want [exp_1 exp_2]", ids)
	}
	if !strings.HasPrefix(block, experience.CandidateBlockHeader) {
		t.Errorf("block = %q, want candidate block", block)
	}
	if !strings.Contains(block, "id=exp_1") || !strings.Contains(block, "advice for exp_2") {
		t.Errorf("block missing candidate content: %q", block)
	}
	if st.lastK != 3 || st.lastMinSim != 0.3 {
		t.Errorf("search params k=%d minSim=%v, want defaults 3 and 0.3", st.lastK, st.lastMinSim)
	}
}

func TestRetrieveHintsSkipsWithoutErrorSignal(t *testing.T) {
	st := &mockSearchStore{candidates: candidatesFor("exp_1")}
	emb := &mockEmbedder{}
	c := NewCoordinator(st, emb, nil, Options{}, nil)

	block, ids := c.RetrieveHints(context.Background(), "all 42 tests passed")
	if block != "" || ids != nil {
		t.Errorf("RetrieveHints() = (%q, %v), want empty for a healthy observation", block, ids)
	}
	if emb.calls != 0 || st.calls != 0 {
		t.Error("no embedding or search should happen without an error signal")
	}
}

func TestRetrieveHintsSuppressesDuplicateQuery(t *testing.T) {
	st := &mockSearchStore{candidates: candidatesFor("exp_1")}
	emb := &mockEmbedder{}
	c := NewCoordinator(st, emb, nil, Options{}, nil)

	obs := "build failed with exit code 1"
	if block, ids := c.RetrieveHints(context.Background(), obs); block == "" || len(ids) != 1 {
		t.Fatalf("first call = (%q, %v), want a hit", block, ids)
	}

	block, ids := c.RetrieveHints(context.Background(), obs)
	if block != "" || ids != nil {
		t.Errorf("second identical call = (%q, %v), want (\"\", nil)", block, ids)
	}
	if st.calls != 1 {
		t.Errorf("store searched %d times, want 1", st.calls)
	}

	// A different observation queries again.
	if _, ids := c.RetrieveHints(context.Background(), "tests failed: 3 errors"); len(ids) != 1 {
		t.Errorf("changed observation should query again, got ids=%v", ids)
	}
}

func TestRetrieveHintsMemoizesZeroHitQueries(t *testing.T) {
	st := &mockSearchStore{} // no candidates
	emb := &mockEmbedder{}
	c := NewCoordinator(st, emb, nil, Options{}, nil)

	obs := "command not found: tox"
	c.RetrieveHints(context.Background(), obs)
	c.RetrieveHints(context.Background(), obs)

	if st.calls != 1 {
		t.Errorf("store searched %d times, want 1: an unmatched query must still be memoized", st.calls)
	}
}

func TestRetrieveHintsDegradesOnEmbedError(t *testing.T) {
	st := &mockSearchStore{candidates: candidatesFor("exp_1")}
	emb := &mockEmbedder{embedErr: errors.New("upstream down")}
	c := NewCoordinator(st, emb, nil, Options{}, nil)

	obs := "ImportError: cannot import name 'urlparse'"
	block, ids := c.RetrieveHints(context.Background(), obs)
	if block != "" || ids != nil {
		t.Errorf("RetrieveHints() = (%q, %v), want degraded empty result", block, ids)
	}
	if st.calls != 0 {
		t.Error("store must not be searched when embedding fails")
	}

	// A failed turn is not memoized: the same observation retries.
	emb.embedErr = nil
	if _, ids := c.RetrieveHints(context.Background(), obs); len(ids) != 1 {
		t.Errorf("retry after embed failure should query, got ids=%v", ids)
	}
}

func TestRetrieveHintsDegradesOnSearchError(t *testing.T) {
	st := &mockSearchStore{searchErr: store.ErrUnavailable}
	emb := &mockEmbedder{}
	c := NewCoordinator(st, emb, nil, Options{}, nil)

	block, ids := c.RetrieveHints(context.Background(), "fatal error: connection refused")
	if block != "" || ids != nil {
		t.Errorf("RetrieveHints() = (%q, %v), want degraded empty result", block, ids)
	}
}

func TestRetrieveHintsNilBackends(t *testing.T) {
	c := NewCoordinator(nil, nil, nil, Options{}, nil)
	block, ids := c.RetrieveHints(context.Background(), "error: something failed")
	if block != "" || ids != nil {
		t.Errorf("RetrieveHints() = (%q, %v), want empty without backends", block, ids)
	}
}

func TestRetrieveHintsTruncatesBeforeEmbedding(t *testing.T) {
	st := &mockSearchStore{}
	emb := &mockEmbedder{}
	c := NewCoordinator(st, emb, nil, Options{MaxSnippetChars: 100}, nil)

	long := "error: " + strings.Repeat("x", 500)
	c.RetrieveHints(context.Background(), long)

	if len(emb.lastInput) != 100+len(TruncationMarker) {
		t.Errorf("embedded input length = %d, want %d", len(emb.lastInput), 100+len(TruncationMarker))
	}
	if !strings.Contains(emb.lastInput, TruncationMarker) {
		t.Error("embedded input missing truncation marker")
	}
}

func TestRetrieveHintsFeedsTracker(t *testing.T) {
	telemetry := &mockTelemetryStore{}
	tracker := NewTracker(telemetry, false, nil)
	st := &mockSearchStore{candidates: candidatesFor("exp_9")}
	c := NewCoordinator(st, &mockEmbedder{}, tracker, Options{}, nil)

	c.RetrieveHints(context.Background(), "Traceback (most recent call last):")

	if got := tracker.UsedIDs(); len(got) != 1 || got[0] != "exp_9" {
		t.Errorf("UsedIDs() = %v, want [exp_9]", got)
	}
	if n := telemetry.count(store.FieldHits, "exp_9"); n != 1 {
		t.Errorf("hits for exp_9 = %d, want 1", n)
	}
}

func TestCoordinatorCloseResetsMemo(t *testing.T) {
	st := &mockSearchStore{}
	c := NewCoordinator(st, &mockEmbedder{}, nil, Options{}, nil)

	obs := "error: disk full"
	c.RetrieveHints(context.Background(), obs)
	c.Close()
	c.RetrieveHints(context.Background(), obs)

	if st.calls != 2 {
		t.Errorf("store searched %d times, want 2 after Close()", st.calls)
	}
}

func TestCoordinatorIDsAreUnique(t *testing.T) {
	a := NewCoordinator(nil, nil, nil, Options{}, nil)
	b := NewCoordinator(nil, nil, nil, Options{}, nil)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("session ids must be unique and non-empty: %q vs %q", a.ID(), b.ID())
	}
}

func TestHasErrorSignal(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", false},
		{"all tests passed", false},
		{"ModuleNotFoundError: No module named 'six'", true},
		{"PERMISSION DENIED", true},
		{"error: invalid syntax", true},
		{"the build Failed after 3 retries", true},
		{"Traceback (most recent call last):", true},
		{"warning: deprecated API", false},
	}
	for _, tt := range tests {
		if got := HasErrorSignal(tt.text); got != tt.want {
			t.Errorf("HasErrorSignal(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 4000); got != "short" {
		t.Errorf("Truncate() = %q, want unchanged", got)
	}
	if got := Truncate("anything", 0); got != "anything" {
		t.Errorf("Truncate() with zero bound = %q, want unchanged", got)
	}

	text := strings.Repeat("a", 5000) + strings.Repeat("z", 5000)
	got := Truncate(text, 4000)

	if len(got) != 4000+len(TruncationMarker) {
		t.Errorf("len = %d, want %d", len(got), 4000+len(TruncationMarker))
	}
	if !strings.HasPrefix(got, strings.Repeat("a", 2000)) {
		t.Error("head half must be the first 2000 characters verbatim")
	}
	if !strings.HasSuffix(got, strings.Repeat("z", 2000)) {
		t.Error("tail half must be the last 2000 characters verbatim")
	}
	if !strings.Contains(got, TruncationMarker) {
		t.Error("missing truncation marker")
	}
}

func TestTruncateMultibyte(t *testing.T) {
	// The bound counts characters, not bytes: a CJK observation must keep
	// 2000 runes per half and the cuts must not split a rune.
	text := strings.Repeat("模", 5000)
	got := Truncate(text, 4000)

	if !utf8.ValidString(got) {
		t.Fatal("truncated text is not valid UTF-8")
	}
	wantRunes := 4000 + utf8.RuneCountInString(TruncationMarker)
	if n := utf8.RuneCountInString(got); n != wantRunes {
		t.Errorf("rune count = %d, want %d", n, wantRunes)
	}
	half := strings.Repeat("模", 2000)
	if !strings.HasPrefix(got, half+TruncationMarker) {
		t.Error("head half must be the first 2000 characters verbatim")
	}
	if !strings.HasSuffix(got, TruncationMarker+half) {
		t.Error("tail half must be the last 2000 characters verbatim")
	}

	mixed := "error: " + strings.Repeat("ü", 300)
	got = Truncate(mixed, 100)
	if !utf8.ValidString(got) {
		t.Error("mixed-width truncation produced invalid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != 100+len(TruncationMarker) {
		t.Errorf("rune count = %d, want %d", n, 100+len(TruncationMarker))
	}
}
