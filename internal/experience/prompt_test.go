package experience

import (
	"strings"
	"testing"
)

func TestRenderCandidatesBlockEmpty(t *testing.T) {
	if got := RenderCandidatesBlock(nil); got != "" {
		t.Errorf("RenderCandidatesBlock(nil) = %q, want empty", got)
	}
	if got := RenderCandidatesBlock([]Entry{}); got != "" {
		t.Errorf("RenderCandidatesBlock([]) = %q, want empty", got)
	}
}

func TestRenderCandidatesBlock(t *testing.T) {
	entries := []Entry{
		{
			ID:     "exp_1",
			Advice: []string{"pin numpy", "rerun the build"},
			Atoms: []Atom{
				{Name: KindPipPin, Args: map[string]any{"name": "numpy", "spec": "==1.19.5"}},
			},
		},
		{
			ID:     "exp_2",
			Advice: []string{"upgrade setuptools"},
		},
	}

	got := RenderCandidatesBlock(entries)

	want := strings.Join([]string{
		CandidateBlockHeader,
		"- Fix (id=exp_1):",
		"  Advice:",
		"    - pin numpy",
		"    - rerun the build",
		"  Bash snippet:",
		"    pip install 'numpy==1.19.5'",
		"- Fix (id=exp_2):",
		"  Advice:",
		"    - upgrade setuptools",
	}, "\n")

	if got != want {
		t.Errorf("RenderCandidatesBlock() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderCandidatesBlockOmitsEmptySections(t *testing.T) {
	got := RenderCandidatesBlock([]Entry{{ID: "bare"}})

	if !strings.HasPrefix(got, CandidateBlockHeader) {
		t.Errorf("block must open with the fixed header, got %q", got)
	}
	if strings.Contains(got, "Advice:") {
		t.Errorf("block should omit Advice for an entry without advice: %q", got)
	}
	if strings.Contains(got, "Bash snippet:") {
		t.Errorf("block should omit Bash snippet for an entry without atoms: %q", got)
	}
}
