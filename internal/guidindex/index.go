// Package guidindex builds the project-wide map from asset GUID to asset
// path by walking .meta sidecar files. The index is built fresh for every
// invocation (§3 Lifecycle: "not persisted") and is read-only once built.
package guidindex

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/recinq/unitytool/internal/project"
)

// Record describes a single indexed asset.
type Record struct {
	GUID      string
	Path      string // relative to project root
	Extension string
}

// Index is the immutable, read-only-after-build guid -> Record map.
type Index struct {
	ProjectRoot string
	byGUID      map[string]Record

	// Duplicates records guids seen more than once across .meta files,
	// sorted by GUID, for the "ambiguous duplicate" warning.
	Duplicates []DuplicateWarning
}

// DuplicateWarning records a guid whose first-seen asset wins over one
// or more later sightings.
type DuplicateWarning struct {
	GUID    string
	Kept    string
	Ignored []string
}

var guidLine = regexp.MustCompile(`(?m)^\s*guid:\s*([0-9a-fA-F]{32})\s*$`)

// IsBuiltinGUID reports whether guid lies in one of Unity's reserved GUID
// spaces: an all-zero prefix, or an "f" followed by zeros, both of which
// denote built-in engine assets that can never be "missing".
func IsBuiltinGUID(guid string) bool {
	if len(guid) != 32 {
		return false
	}
	lower := strings.ToLower(guid)
	if strings.HasPrefix(lower, "0000000000000000") {
		return true
	}
	if strings.HasPrefix(lower, "f") && strings.TrimLeft(lower[1:], "0") == "" {
		return true
	}
	return false
}

// Lookup resolves a guid to its Record, if indexed.
func (ix *Index) Lookup(guid string) (Record, bool) {
	r, ok := ix.byGUID[guid]
	return r, ok
}

// LookupByPath resolves a project-root-relative asset path to its
// Record, for callers (like `inspect where-used`) that are handed a
// path rather than a GUID. It is O(n) in index size since the reverse
// map is only ever needed for single lookups, not on the scan hot path.
func (ix *Index) LookupByPath(relPath string) (Record, bool) {
	relPath = strings.TrimPrefix(filepath.ToSlash(relPath), "./")
	for _, r := range ix.byGUID {
		if r.Path == relPath {
			return r, true
		}
	}
	return Record{}, false
}

// Len returns the number of distinct GUIDs indexed.
func (ix *Index) Len() int { return len(ix.byGUID) }

// metaHit is the per-file parse result, carrying the file's walk index
// so the merge step can restore deterministic first-seen order despite
// concurrent scanning (§5: "deterministic because aggregation happens in
// a post-merge step that sorts by scope-walk order").
type metaHit struct {
	walkIndex int
	guid      string
	assetPath string // relative to project root, .meta suffix stripped
}

// Build walks projectRoot for .meta files and returns the GUID index.
// Work is fanned out across a bounded worker pool; results are merged in
// scope-walk order so the index (and its duplicate warnings) are
// deterministic regardless of goroutine scheduling.
func Build(projectRoot string, excludeGlobs []string) (*Index, error) {
	files, err := project.WalkFiles(projectRoot, excludeGlobs)
	if err != nil {
		return nil, fmt.Errorf("guidindex: walk project root: %w", err)
	}

	var metaFiles []string
	for _, f := range files {
		if strings.HasSuffix(f, ".meta") {
			metaFiles = append(metaFiles, f)
		}
	}

	hits := make([]*metaHit, len(metaFiles))

	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, f := range metaFiles {
		i, f := i, f
		g.Go(func() error {
			hit, err := parseMetaFile(projectRoot, f)
			if err != nil {
				return err
			}
			if hit != nil {
				hit.walkIndex = i
				hits[i] = hit
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("guidindex: %w", err)
	}

	ix := &Index{ProjectRoot: projectRoot, byGUID: make(map[string]Record, len(hits))}
	for _, hit := range hits {
		if hit == nil {
			continue
		}
		ext := filepath.Ext(hit.assetPath)
		if existing, ok := ix.byGUID[hit.guid]; ok {
			ix.recordDuplicate(hit.guid, existing.Path, hit.assetPath)
			continue // first-seen wins
		}
		ix.byGUID[hit.guid] = Record{GUID: hit.guid, Path: hit.assetPath, Extension: ext}
	}

	sort.Slice(ix.Duplicates, func(i, j int) bool { return ix.Duplicates[i].GUID < ix.Duplicates[j].GUID })

	return ix, nil
}

func (ix *Index) recordDuplicate(guid, kept, ignored string) {
	for i := range ix.Duplicates {
		if ix.Duplicates[i].GUID == guid {
			ix.Duplicates[i].Ignored = append(ix.Duplicates[i].Ignored, ignored)
			return
		}
	}
	ix.Duplicates = append(ix.Duplicates, DuplicateWarning{GUID: guid, Kept: kept, Ignored: []string{ignored}})
}

func parseMetaFile(projectRoot, metaPath string) (*metaHit, error) {
	f, err := os.Open(metaPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", metaPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var guid string
	for scanner.Scan() {
		line := scanner.Text()
		if m := guidLine.FindStringSubmatch(line); m != nil {
			guid = strings.ToLower(m[1])
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", metaPath, err)
	}
	if guid == "" {
		return nil, nil
	}

	siblingAbs := strings.TrimSuffix(metaPath, ".meta")
	rel, err := filepath.Rel(projectRoot, siblingAbs)
	if err != nil {
		return nil, fmt.Errorf("relativize %s: %w", siblingAbs, err)
	}
	return &metaHit{guid: guid, assetPath: filepath.ToSlash(rel)}, nil
}
