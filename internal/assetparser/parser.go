// Package assetparser extracts the reference tuples and internal local
// identifiers a serialized Unity-style asset contains, without attempting
// to understand (or rewrite) the asset's full YAML structure.
package assetparser

import (
	"bufio"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Reference is a single (guid, file_id) occurrence found inside an
// asset, plus where it was found.
type Reference struct {
	GUID     string
	FileID   int64
	Line     int
	Evidence string
}

// flowMapping matches a Unity PPtr-style flow mapping such as
// "{fileID: 100100000, guid: aaaaaaaa..., type: 3}", tolerating either
// key order and additional keys.
var flowMapping = regexp.MustCompile(`\{[^{}]*\}`)
var fileIDKey = regexp.MustCompile(`fileID:\s*(-?\d+)`)
var guidKey = regexp.MustCompile(`guid:\s*([0-9a-fA-F]{32})`)

// docHeader matches the start of a Unity YAML document declaring a
// local object: "--- !u!<classID> &<fileID>".
var docHeader = regexp.MustCompile(`^--- !u!\d+ &(-?\d+)`)

// arraySizeLine matches "Array.size: N" entries and arrayDataLine matches
// "Array.data[i]" entries, used to cross-check override and array-op
// bookkeeping.
var arraySizeLine = regexp.MustCompile(`Array\.size:\s*(\d+)`)
var arrayDataLine = regexp.MustCompile(`Array\.data\[(\d+)\]`)

// ExtractReferences scans text line by line for flow mappings carrying
// both a guid and a fileID key. Mappings with a guid but no explicit
// fileID are treated as referencing the main asset (file_id == 0), per
// the AssetReference invariant.
func ExtractReferences(text string) []Reference {
	var refs []Reference
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		for _, m := range flowMapping.FindAllString(line, -1) {
			gm := guidKey.FindStringSubmatch(m)
			if gm == nil {
				continue
			}
			fileID := int64(0)
			if fm := fileIDKey.FindStringSubmatch(m); fm != nil {
				if v, err := strconv.ParseInt(fm[1], 10, 64); err == nil {
					fileID = v
				}
			}
			refs = append(refs, Reference{
				GUID:     strings.ToLower(gm[1]),
				FileID:   fileID,
				Line:     i + 1,
				Evidence: strings.TrimSpace(m),
			})
		}
	}
	return refs
}

// ExtractReferencesFile reads path and delegates to ExtractReferences.
func ExtractReferencesFile(path string) ([]Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ExtractReferences(string(data)), nil
}

// LocalFileIDsFile reads path and delegates to LocalFileIDs.
func LocalFileIDsFile(path string) (map[int64]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LocalFileIDs(string(data))
}

// LocalFileIDs returns the set of fileIDs declared as top-level objects
// within a serialized asset (the "--- !u!<classID> &<fileID>" document
// headers), used to validate that a cross-reference's file_id actually
// exists inside the asset it names.
func LocalFileIDs(text string) (map[int64]bool, error) {
	ids := make(map[int64]bool)
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if m := docHeader.FindStringSubmatch(scanner.Text()); m != nil {
			if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				ids[v] = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// ArrayConsistency describes one Array.size/.data block and whether the
// stated size matches the enumerated elements.
type ArrayConsistency struct {
	Line        int
	StatedSize  int
	MaxIndex    int // -1 if no elements observed
	ElementLine map[int]int
}

// OK reports whether the stated Array.size matches the highest observed
// Array.data[i] index, per the invariant "for any array property, the
// element count stated by Array.size matches the enumerated
// Array.data[i] entries".
func (a ArrayConsistency) OK() bool {
	if a.MaxIndex < 0 {
		return a.StatedSize == 0
	}
	return a.StatedSize == a.MaxIndex+1
}

// FindArrayBlocks scans text for Array.size declarations and the
// Array.data[i] entries that immediately follow them (until the next
// Array.size or the first non-blank line that is not an Array.data
// entry), pairing each size with its observed elements.
func FindArrayBlocks(text string) []ArrayConsistency {
	lines := strings.Split(text, "\n")
	var blocks []ArrayConsistency
	var current *ArrayConsistency

	flush := func() {
		if current != nil {
			blocks = append(blocks, *current)
			current = nil
		}
	}

	for i, line := range lines {
		if m := arraySizeLine.FindStringSubmatch(line); m != nil {
			flush()
			size, _ := strconv.Atoi(m[1])
			current = &ArrayConsistency{Line: i + 1, StatedSize: size, MaxIndex: -1, ElementLine: map[int]int{}}
			continue
		}
		if m := arrayDataLine.FindStringSubmatch(line); m != nil && current != nil {
			idx, _ := strconv.Atoi(m[1])
			current.ElementLine[idx] = i + 1
			if idx > current.MaxIndex {
				current.MaxIndex = idx
			}
			continue
		}
		if current != nil && strings.TrimSpace(line) == "" {
			continue
		}
		if current != nil && !strings.Contains(line, "Array.data") {
			flush()
		}
	}
	flush()
	return blocks
}
