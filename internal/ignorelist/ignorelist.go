// Package ignorelist reads and writes the persisted ignore-GUID text
// format used by `validate refs --ignore-guid-file` and
// `suggest ignore-guids --out-ignore-guid-file` (§6).
package ignorelist

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// WriteMode selects how Write combines new entries with an existing
// file: replace its contents, or append only the GUIDs not already
// present.
type WriteMode string

const (
	ModeReplace WriteMode = "replace"
	ModeAppend  WriteMode = "append"
)

// Load reads a set of GUIDs from path. Blank lines and lines starting
// with '#' are ignored. A missing file yields an empty set, not an
// error — the ignore file is always optional.
func Load(path string) (map[string]bool, error) {
	set := map[string]bool{}
	if path == "" {
		return set, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, fmt.Errorf("ignorelist: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[line] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ignorelist: scan %s: %w", path, err)
	}
	return set, nil
}

// Write persists guids to path under mode. ModeReplace overwrites the
// file with exactly guids, sorted. ModeAppend merges guids into the
// file's existing entries (skipping ones already present) and rewrites
// the whole file sorted, preserving comment lines from the original.
func Write(path string, guids []string, mode WriteMode) error {
	lines := make([]string, 0, len(guids))
	if mode == ModeAppend {
		existing, comments, err := readRaw(path)
		if err != nil {
			return err
		}
		merged := map[string]bool{}
		for g := range existing {
			merged[g] = true
		}
		for _, g := range guids {
			merged[g] = true
		}
		lines = append(lines, comments...)
		for g := range merged {
			lines = append(lines, g)
		}
	} else {
		set := map[string]bool{}
		for _, g := range guids {
			set[g] = true
		}
		for g := range set {
			lines = append(lines, g)
		}
	}

	sort.Strings(lines)

	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("ignorelist: write %s: %w", path, err)
	}
	return nil
}

func readRaw(path string) (guids map[string]bool, comments []string, err error) {
	guids = map[string]bool{}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return guids, nil, nil
		}
		return nil, nil, fmt.Errorf("ignorelist: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			comments = append(comments, line)
		default:
			guids[line] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("ignorelist: scan %s: %w", path, err)
	}
	return guids, comments, nil
}
