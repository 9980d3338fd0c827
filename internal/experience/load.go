package experience

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxLineBytes bounds a single NDJSON line. Mined entries with long advice
// and many atoms stay well under this.
const maxLineBytes = 4 * 1024 * 1024

// LoadEntries reads newline-delimited JSON entries from r, one Entry per
// line. Blank lines are skipped. A malformed line aborts the load with its
// line number; partially read entries are discarded.
func LoadEntries(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var entries []Entry
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 || isBlank(line) {
			continue
		}

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parsing entry at line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading entries: %w", err)
	}

	return entries, nil
}

// LoadEntriesFile reads entries from an NDJSON file on disk.
func LoadEntriesFile(path string) ([]Entry, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("opening entry file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	entries, err := LoadEntries(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return entries, nil
}

func isBlank(line []byte) bool {
	for _, b := range line {
		if b != ' ' && b != '\t' && b != '\r' {
			return false
		}
	}
	return true
}
