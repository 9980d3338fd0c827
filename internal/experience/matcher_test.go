package experience

import (
	"strings"
	"testing"
)

func testEntries() []Entry {
	return []Entry{
		{
			ID: "exp_1",
			Signals: Signals{
				Regex:    []string{`ModuleNotFoundError: No module named '(\w+)'`},
				Keywords: []string{"numpy"},
			},
			Advice: []string{"pin numpy to a version compatible with the interpreter"},
		},
		{
			ID: "exp_2",
			Signals: Signals{
				Keywords: []string{"setup.py", "legacy build"},
			},
			Advice: []string{"upgrade setuptools before running legacy builds"},
		},
		{
			ID: "exp_3",
			Signals: Signals{
				Regex: []string{`PermissionError: \[Errno 13\]`},
			},
			Advice: []string{"relax the umask", "check directory ownership"},
		},
	}
}

func TestMatcherRetrieveRegex(t *testing.T) {
	m := NewMatcher(testEntries(), nil)

	obs := "Traceback (most recent call last):\nModuleNotFoundError: No module named 'numpy'"
	got := m.Retrieve(obs, nil)

	if len(got) != 1 {
		t.Fatalf("Retrieve() returned %d hints, want 1: %v", len(got), got)
	}
	want := HintMarker + "pin numpy to a version compatible with the interpreter"
	if got[0] != want {
		t.Errorf("Retrieve()[0] = %q, want %q", got[0], want)
	}
}

func TestMatcherRegexCaseInsensitive(t *testing.T) {
	m := NewMatcher(testEntries(), nil)

	got := m.Retrieve("MODULENOTFOUNDERROR: NO MODULE NAMED 'SCIPY'", nil)
	if len(got) != 1 {
		t.Errorf("Retrieve() returned %d hints, want 1 (patterns match case-insensitively)", len(got))
	}
}

func TestMatcherKeywordSubstring(t *testing.T) {
	m := NewMatcher(testEntries(), nil)

	got := m.Retrieve("running python setup.py install failed", nil)
	if len(got) != 1 {
		t.Fatalf("Retrieve() returned %d hints, want 1", len(got))
	}
	if !strings.Contains(got[0], "setuptools") {
		t.Errorf("Retrieve()[0] = %q, want the setuptools advice", got[0])
	}
}

func TestMatcherKeywordIsCaseSensitive(t *testing.T) {
	m := NewMatcher(testEntries(), nil)

	// Keyword matching is literal substring; "NUMPY" must not hit "numpy".
	if got := m.Retrieve("installing NUMPY failed", nil); len(got) != 0 {
		t.Errorf("Retrieve() = %v, want no hints for case-mismatched keyword", got)
	}
}

func TestMatcherFileListing(t *testing.T) {
	m := NewMatcher(testEntries(), nil)

	got := m.Retrieve("", []string{"README.md", "setup.py", "requirements.txt"})
	if len(got) != 1 {
		t.Fatalf("Retrieve() returned %d hints, want 1", len(got))
	}
	if !strings.Contains(got[0], "setuptools") {
		t.Errorf("Retrieve()[0] = %q, want the setuptools advice", got[0])
	}
}

func TestMatcherDeduplicatesPerEntry(t *testing.T) {
	// Both the regex and the keyword hit; the entry must contribute once.
	m := NewMatcher(testEntries(), nil)

	got := m.Retrieve("ModuleNotFoundError: No module named 'numpy' while importing numpy", nil)
	if len(got) != 1 {
		t.Errorf("Retrieve() returned %d hints, want 1 per matching entry", len(got))
	}
}

func TestMatcherPreservesLoadOrder(t *testing.T) {
	m := NewMatcher(testEntries(), nil)

	obs := "PermissionError: [Errno 13] after ModuleNotFoundError: No module named 'numpy'"
	got := m.Retrieve(obs, nil)

	if len(got) != 3 {
		t.Fatalf("Retrieve() returned %d hints, want 3: %v", len(got), got)
	}
	if !strings.Contains(got[0], "numpy") {
		t.Errorf("first hint = %q, want the exp_1 advice (load order)", got[0])
	}
	if !strings.Contains(got[1], "umask") || !strings.Contains(got[2], "ownership") {
		t.Errorf("exp_3 advice lines out of order: %v", got[1:])
	}
}

func TestMatcherEmptyInputs(t *testing.T) {
	m := NewMatcher(testEntries(), nil)

	if got := m.Retrieve("", nil); len(got) != 0 {
		t.Errorf("Retrieve(\"\", nil) = %v, want empty", got)
	}
	if got := m.Retrieve("all tests passed", nil); len(got) != 0 {
		t.Errorf("Retrieve() = %v, want empty for non-matching observation", got)
	}
}

func TestMatcherSkipsInvalidPatterns(t *testing.T) {
	entries := []Entry{
		{
			ID: "bad_regex",
			Signals: Signals{
				Regex:    []string{`(`, `ImportError`},
				Keywords: nil,
			},
			Advice: []string{"valid pattern still works"},
		},
	}

	m := NewMatcher(entries, nil)
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}

	got := m.Retrieve("ImportError: cannot import name 'x'", nil)
	if len(got) != 1 {
		t.Errorf("Retrieve() returned %d hints, want 1 (invalid pattern dropped, valid kept)", len(got))
	}
}

func TestMatcherEmptyKeywordNeverMatches(t *testing.T) {
	entries := []Entry{
		{
			ID:      "empty_kw",
			Signals: Signals{Keywords: []string{""}},
			Advice:  []string{"should never fire"},
		},
	}
	m := NewMatcher(entries, nil)
	if got := m.Retrieve("anything at all", nil); len(got) != 0 {
		t.Errorf("Retrieve() = %v, want empty for empty keyword", got)
	}
}
