package refscan

import (
	"fmt"

	"github.com/recinq/unitytool/internal/assetparser"
	"github.com/recinq/unitytool/internal/guidindex"
	"github.com/recinq/unitytool/internal/project"
)

// Usage is one citation of the target asset found during a where-used
// scan.
type Usage struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	FileID int64  `json:"file_id"`
}

// WhereUsedResult is the output of `inspect where-used`.
type WhereUsedResult struct {
	GUID      string  `json:"guid"`
	Usages    []Usage `json:"usages"`
	Truncated bool    `json:"truncated,omitempty"`
}

// WhereUsed resolves assetOrGUID (either a 32-hex GUID or a
// project-root-relative asset path) and scans scope for every reference
// to it, reusing the same extraction C4 provides to the reference
// scanner.
func WhereUsed(ix *guidindex.Index, assetOrGUID, scope string, excludeGlobs []string, maxUsages int) (*WhereUsedResult, error) {
	guid := assetOrGUID
	if !isHexGUID(assetOrGUID) {
		rec, ok := ix.LookupByPath(assetOrGUID)
		if !ok {
			return nil, fmt.Errorf("refscan: %q is not a GUID and does not match any indexed asset path", assetOrGUID)
		}
		guid = rec.GUID
	}

	files, err := project.WalkFiles(scope, excludeGlobs)
	if err != nil {
		return nil, fmt.Errorf("refscan: walk scope: %w", err)
	}

	result := &WhereUsedResult{GUID: guid}
	for _, f := range files {
		refs, err := assetparser.ExtractReferencesFile(f)
		if err != nil {
			return nil, fmt.Errorf("refscan: scan %s: %w", f, err)
		}
		for _, ref := range refs {
			if ref.GUID != guid {
				continue
			}
			if maxUsages > 0 && len(result.Usages) >= maxUsages {
				result.Truncated = true
				return result, nil
			}
			result.Usages = append(result.Usages, Usage{Path: f, Line: ref.Line, FileID: ref.FileID})
		}
	}
	return result, nil
}

func isHexGUID(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
