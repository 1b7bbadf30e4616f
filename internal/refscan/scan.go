// Package refscan implements the reference-integrity engine: scanning a
// scope for references to foreign GUIDs and local file identifiers and
// producing structured, noise-controlled diagnostics (C5).
package refscan

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/recinq/unitytool/internal/assetparser"
	"github.com/recinq/unitytool/internal/envelope"
	"github.com/recinq/unitytool/internal/guidindex"
	"github.com/recinq/unitytool/internal/project"
)

// Options configures a scan.
type Options struct {
	Scope          string
	ExcludeGlobs   []string
	IgnoreGUIDs    map[string]bool
	Details        bool
	MaxDiagnostics int
	TopN           int // default 10

	// OnFileScanned, if set, is called after each file finishes scanning
	// (from whichever worker goroutine finished it) so a caller can drive
	// a live progress display. It must be safe for concurrent calls.
	OnFileScanned func(done, total int, path string)
}

// GUIDCount is one entry of the top-missing-GUIDs ranking.
type GUIDCount struct {
	GUID  string `json:"guid"`
	Count int    `json:"count"`
}

// Result is the structured, noise-controlled output of a scan.
type Result struct {
	ScanProjectRoot                    string            `json:"scan_project_root"`
	Categories                        map[string]int    `json:"categories"`
	CategoriesOccurrences              map[string]int    `json:"categories_occurrences"`
	BrokenOccurrences                  int               `json:"broken_occurrences"`
	TopMissingAssetGUIDs               []GUIDCount       `json:"top_missing_asset_guids"`
	IgnoredMissingAssetOccurrences     int               `json:"ignored_missing_asset_occurrences"`
	SkippedExternalPrefabFileIDChecks  int               `json:"skipped_external_prefab_fileid_checks"`
	Diagnostics                        []envelope.Diagnostic `json:"diagnostics,omitempty"`
	TruncatedDiagnostics               bool              `json:"truncated_diagnostics,omitempty"`
}

type fileHit struct {
	walkIndex int
	diags     []envelope.Diagnostic
	missing   map[string]int // guid -> occurrence count, this file
	ignored   int
	skippedFK int
}

// Severity classifies the scan outcome: any broken reference is an
// integrity error (§7), a clean scope is informational.
func (r *Result) Severity() envelope.Severity {
	if r.BrokenOccurrences > 0 {
		return envelope.SeverityError
	}
	return envelope.SeverityInfo
}

// Scan runs the reference scanner described in spec §4.2.
func Scan(ix *guidindex.Index, opts Options) (*Result, error) {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	files, err := project.WalkFiles(opts.Scope, opts.ExcludeGlobs)
	if err != nil {
		return nil, fmt.Errorf("refscan: walk scope: %w", err)
	}

	hits := make([]*fileHit, len(files))
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(workers)

	var completed int64
	total := len(files)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			hit, err := scanFile(ix, f, opts)
			if err != nil {
				return err
			}
			hit.walkIndex = i
			hits[i] = hit
			if opts.OnFileScanned != nil {
				done := atomic.AddInt64(&completed, 1)
				opts.OnFileScanned(int(done), total, f)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("refscan: %w", err)
	}

	result := &Result{
		ScanProjectRoot:       ix.ProjectRoot,
		Categories:            map[string]int{},
		CategoriesOccurrences: map[string]int{},
	}
	missingTotals := map[string]int{}

	var allDiags []envelope.Diagnostic
	for _, hit := range hits {
		if hit == nil {
			continue
		}
		allDiags = append(allDiags, hit.diags...)
		result.IgnoredMissingAssetOccurrences += hit.ignored
		result.SkippedExternalPrefabFileIDChecks += hit.skippedFK
		for guid, n := range hit.missing {
			missingTotals[guid] += n
		}
	}

	for _, d := range allDiags {
		result.CategoriesOccurrences[categoryName(d.Code)]++
		result.BrokenOccurrences++
	}
	result.Categories[categoryName(envelope.CodeMissingAsset)] = len(missingTotals)
	result.Categories[categoryName(envelope.CodeMissingLocalID)] = countDistinctLocalID(allDiags)

	result.TopMissingAssetGUIDs = topN(missingTotals, opts.TopN)

	if opts.Details {
		if opts.MaxDiagnostics > 0 && len(allDiags) > opts.MaxDiagnostics {
			result.Diagnostics = allDiags[:opts.MaxDiagnostics]
			result.TruncatedDiagnostics = true
		} else {
			result.Diagnostics = allDiags
		}
	}

	return result, nil
}

func categoryName(code envelope.Code) string {
	switch code {
	case envelope.CodeMissingAsset:
		return "missing_asset"
	case envelope.CodeMissingLocalID:
		return "missing_local_id"
	default:
		return strings.ToLower(string(code))
	}
}

func countDistinctLocalID(diags []envelope.Diagnostic) int {
	seen := map[string]bool{}
	for _, d := range diags {
		if d.Code == envelope.CodeMissingLocalID {
			seen[d.Path+"|"+d.Location] = true
		}
	}
	return len(seen)
}

func topN(totals map[string]int, n int) []GUIDCount {
	list := make([]GUIDCount, 0, len(totals))
	for guid, count := range totals {
		list = append(list, GUIDCount{GUID: guid, Count: count})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].GUID < list[j].GUID
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}

func relPath(root, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func scanFile(ix *guidindex.Index, path string, opts Options) (*fileHit, error) {
	hit := &fileHit{missing: map[string]int{}}

	refs, err := assetparser.ExtractReferencesFile(path)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	if len(refs) == 0 {
		return hit, nil
	}

	// Lazily loaded local-identifier sets of referenced assets, keyed by
	// guid, so we only pay parse cost for assets actually cited.
	localIDCache := map[string]map[int64]bool{}

	for _, ref := range refs {
		if guidindex.IsBuiltinGUID(ref.GUID) {
			continue
		}
		if opts.IgnoreGUIDs[ref.GUID] {
			hit.ignored++
			continue
		}
		rec, ok := ix.Lookup(ref.GUID)
		if !ok {
			hit.missing[ref.GUID]++
			hit.diags = append(hit.diags, envelope.Diagnostic{
				Path:     ref.GUID,
				Location: fmt.Sprintf("%s:%d", path, ref.Line),
				Detail:   "missing_asset",
				Evidence: ref.Evidence,
				Code:     envelope.CodeMissingAsset,
			})
			continue
		}

		if rec.Extension == ".prefab" && rec.Path != relPath(ix.ProjectRoot, path) {
			hit.skippedFK++
			continue
		}

		if ref.FileID == 0 {
			continue
		}

		ids, cached := localIDCache[ref.GUID]
		if !cached {
			target := filepath.Join(ix.ProjectRoot, filepath.FromSlash(rec.Path))
			parsed, err := assetparser.LocalFileIDsFile(target)
			if err != nil {
				// Target unreadable: treat its local-id set as unknown,
				// which per spec means we cannot validate file_id.
				localIDCache[ref.GUID] = nil
				continue
			}
			localIDCache[ref.GUID] = parsed
			ids = parsed
		}
		if ids == nil {
			continue // local-identifier set unknown; cannot validate
		}
		if !ids[ref.FileID] {
			hit.diags = append(hit.diags, envelope.Diagnostic{
				Path:     ref.GUID,
				Location: fmt.Sprintf("%s:%d", path, ref.Line),
				Detail:   "missing_local_id",
				Evidence: ref.Evidence,
				Code:     envelope.CodeMissingLocalID,
			})
		}
	}

	return hit, nil
}
