package experience

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestContextJSONRoundTrip(t *testing.T) {
	in := []byte(`{"lang":"python","os":["linux"],"python":[3.8,"3.9.2"],"tools":["pip","pytest"]}`)

	var c Context
	if err := json.Unmarshal(in, &c); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if c.Lang != "python" || len(c.Versions) != 2 || c.Versions[0] != "3.8" {
		t.Errorf("decoded context = %+v", c)
	}

	out, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	// The canonical wire form keeps versions under "python", as strings.
	if !strings.Contains(string(out), `"python":["3.8","3.9.2"]`) {
		t.Errorf("Marshal() = %s, want version list under python key", out)
	}
}

func TestContextVersionKeyFallback(t *testing.T) {
	var c Context
	if err := json.Unmarshal([]byte(`{"version":["3.10"]}`), &c); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(c.Versions) != 1 || c.Versions[0] != "3.10" {
		t.Errorf("Versions = %v, want [3.10]", c.Versions)
	}

	// When both keys are present, "python" wins.
	c = Context{}
	if err := json.Unmarshal([]byte(`{"python":["3.8"],"version":["2.7"]}`), &c); err != nil {
		t.Fatal(err)
	}
	if len(c.Versions) != 1 || c.Versions[0] != "3.8" {
		t.Errorf("Versions = %v, want [3.8]", c.Versions)
	}
}

func TestSearchTextLayout(t *testing.T) {
	e := Entry{
		ID: "exp_1",
		Context: Context{
			Lang:     "python",
			OS:       []string{"linux"},
			Versions: []string{"3.8"},
			Tools:    []string{"pip", "pytest"},
		},
		Signals: Signals{
			Regex:    []string{`No module named`},
			Keywords: []string{"numpy"},
		},
		Advice: []string{"pin numpy", "then rerun"},
	}

	want := strings.Join([]string{
		"Language: python",
		"Tools: pip, pytest",
		"Python versions: 3.8",
		"OS: linux",
		"Keywords: numpy",
		"Error patterns: No module named",
		"Advice: pin numpy then rerun",
	}, "\n")

	if got := e.SearchText(); got != want {
		t.Errorf("SearchText() =\n%s\nwant\n%s", got, want)
	}
}

func TestSearchTextSkipsEmptySections(t *testing.T) {
	e := Entry{ID: "min", Advice: []string{"just advice"}}
	if got := e.SearchText(); got != "Advice: just advice" {
		t.Errorf("SearchText() = %q", got)
	}

	empty := Entry{ID: "none"}
	if got := empty.SearchText(); got != "" {
		t.Errorf("SearchText() = %q, want empty", got)
	}
}

func TestEntryJSONAdviceKey(t *testing.T) {
	data, err := json.Marshal(Entry{ID: "e", Advice: []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"advice_nl":["a"]`) {
		t.Errorf("Marshal() = %s, want advice under advice_nl", data)
	}
}
