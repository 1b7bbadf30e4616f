// Package override implements the override-inspection engine: parsing a
// prefab variant to enumerate its Base->Variant chain, its override
// entries, and stale-override candidates (C6).
package override

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/recinq/unitytool/internal/envelope"
	"github.com/recinq/unitytool/internal/guidindex"
)

// AssetReference is the (guid, file_id) pair addressing an asset or a
// sub-object within one.
type AssetReference struct {
	GUID   string `json:"guid" yaml:"guid"`
	FileID int64  `json:"file_id" yaml:"fileID"`
}

// OverrideEntry is one recorded modification a variant applies over its
// base.
type OverrideEntry struct {
	TargetRef      AssetReference  `json:"target_ref"`
	PropertyPath   string          `json:"property_path"`
	Value          any             `json:"value"`
	ObjectRef      *AssetReference `json:"object_reference,omitempty"`
}

// StaleCandidate flags an override entry that is likely obsolete.
type StaleCandidate struct {
	Code         envelope.Code `json:"code"`
	PropertyPath string        `json:"property_path"`
	Detail       string        `json:"detail"`
	Location     string        `json:"location"`
	DecisionOnly bool          `json:"decision_required"`
}

// Result is the structured output of an override inspection.
type Result struct {
	PrefabChain     []AssetReference `json:"prefab_chain"` // root-to-variant order, excludes the variant itself
	Overrides       []OverrideEntry  `json:"overrides"`
	StaleCandidates []StaleCandidate `json:"stale_candidates"`
}

// Severity classifies the inspection outcome: a stale candidate is an
// integrity finding (error); otherwise informational. Ambiguous stale
// classification remains decision_required and never escalates to
// critical on its own.
func (r *Result) Severity() envelope.Severity {
	if len(r.StaleCandidates) > 0 {
		return envelope.SeverityError
	}
	return envelope.SeverityInfo
}

type yamlRef struct {
	FileID int64  `yaml:"fileID"`
	GUID   string `yaml:"guid"`
	Type   int    `yaml:"type"`
}

type rawModification struct {
	Target          yamlRef  `yaml:"target"`
	PropertyPath    string   `yaml:"propertyPath"`
	Value           any      `yaml:"value"`
	ObjectReference *yamlRef `yaml:"objectReference"`
}

type prefabInstanceDoc struct {
	PrefabInstance struct {
		Modification struct {
			TransformParent yamlRef            `yaml:"m_TransformParent"`
			Modifications   []rawModification  `yaml:"m_Modifications"`
		} `yaml:"m_Modification"`
		SourcePrefab yamlRef `yaml:"m_SourcePrefab"`
	} `yaml:"PrefabInstance"`
}

var docSeparator = regexp.MustCompile(`(?m)^--- !u!\d+ &-?\d+\s*$`)

// Inspect parses the variant asset at path. If ix is non-nil, the Base
// chain is followed recursively through the project's GUID index; with a
// nil index, the chain contains only the variant's immediate source
// prefab.
func Inspect(path string, ix *guidindex.Index) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("override: read %s: %w", path, err)
	}

	doc, err := parsePrefabInstance(string(data))
	if err != nil {
		return nil, fmt.Errorf("override: parse %s: %w", path, err)
	}
	if doc == nil {
		return &Result{}, nil
	}

	result := &Result{}

	immediate := AssetReference{GUID: doc.PrefabInstance.SourcePrefab.GUID, FileID: doc.PrefabInstance.SourcePrefab.FileID}
	chain := []AssetReference{immediate}
	if ix != nil {
		chain = followChain(ix, immediate, 32)
	}
	// Reverse to root-to-variant order (followChain appends nearest-first).
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	result.PrefabChain = chain

	seenByTarget := map[string]map[string]int{} // targetKey -> propertyPath -> index in Overrides (last-seen)
	for _, mod := range doc.PrefabInstance.Modification.Modifications {
		entry := OverrideEntry{
			TargetRef:    AssetReference{GUID: mod.Target.GUID, FileID: mod.Target.FileID},
			PropertyPath: mod.PropertyPath,
			Value:        mod.Value,
		}
		if mod.ObjectReference != nil {
			entry.ObjectRef = &AssetReference{GUID: mod.ObjectReference.GUID, FileID: mod.ObjectReference.FileID}
		}

		targetKey := fmt.Sprintf("%s#%d", entry.TargetRef.GUID, entry.TargetRef.FileID)
		byPath := seenByTarget[targetKey]
		if byPath == nil {
			byPath = map[string]int{}
			seenByTarget[targetKey] = byPath
		}
		if prevIdx, dup := byPath[entry.PropertyPath]; dup {
			result.StaleCandidates = append(result.StaleCandidates, StaleCandidate{
				Code:         envelope.CodeStaleOverride,
				PropertyPath: entry.PropertyPath,
				Detail:       "duplicate property_path within target; earlier entry superseded",
				Location:     fmt.Sprintf("overrides[%d]", prevIdx),
			})
		}
		byPath[entry.PropertyPath] = len(result.Overrides)
		result.Overrides = append(result.Overrides, entry)
	}

	result.StaleCandidates = append(result.StaleCandidates, detectArraySizeMismatches(result.Overrides)...)

	return result, nil
}

// parsePrefabInstance locates the PrefabInstance document within a
// multi-document Unity YAML asset and decodes its body. Documents are
// delimited by "--- !u!<classID> &<fileID>" headers, which are not
// themselves valid YAML node syntax, so the header line is stripped
// before handing the remainder to yaml.v3.
func parsePrefabInstance(text string) (*prefabInstanceDoc, error) {
	bodies := splitDocuments(text)
	for _, body := range bodies {
		if !strings.Contains(body, "PrefabInstance:") {
			continue
		}
		var doc prefabInstanceDoc
		if err := yaml.Unmarshal([]byte(body), &doc); err != nil {
			return nil, err
		}
		return &doc, nil
	}
	return nil, nil
}

func splitDocuments(text string) []string {
	locs := docSeparator.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}
	var bodies []string
	for i, loc := range locs {
		start := loc[1]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		bodies = append(bodies, text[start:end])
	}
	return bodies
}

// followChain walks Base prefabs through the GUID index, nearest-first,
// stopping at cycles, missing assets, or non-variant bases.
func followChain(ix *guidindex.Index, start AssetReference, maxDepth int) []AssetReference {
	var chain []AssetReference
	seen := map[string]bool{}
	current := start

	for depth := 0; depth < maxDepth; depth++ {
		if current.GUID == "" || seen[current.GUID] {
			break
		}
		seen[current.GUID] = true
		chain = append(chain, current)

		rec, ok := ix.Lookup(current.GUID)
		if !ok {
			break
		}
		path := rec.Path
		abs := path
		if ix.ProjectRoot != "" {
			abs = ix.ProjectRoot + string(os.PathSeparator) + path
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			break
		}
		doc, err := parsePrefabInstance(string(data))
		if err != nil || doc == nil || doc.PrefabInstance.SourcePrefab.GUID == "" {
			break
		}
		current = AssetReference{GUID: doc.PrefabInstance.SourcePrefab.GUID, FileID: doc.PrefabInstance.SourcePrefab.FileID}
	}
	return chain
}

// detectArraySizeMismatches groups overrides by (target, array base path)
// and flags any group whose stated ".Array.size" disagrees with the
// highest observed ".Array.data[i]" index.
func detectArraySizeMismatches(overrides []OverrideEntry) []StaleCandidate {
	type group struct {
		statedSize *int
		maxIndex   int
		sizeIdx    int
	}
	groups := map[string]*group{}
	var order []string

	for i, o := range overrides {
		base, idx, isData := arrayDataBase(o.PropertyPath)
		if isData {
			key := fmt.Sprintf("%s#%d|%s", o.TargetRef.GUID, o.TargetRef.FileID, base)
			g, ok := groups[key]
			if !ok {
				g = &group{maxIndex: -1}
				groups[key] = g
				order = append(order, key)
			}
			if idx > g.maxIndex {
				g.maxIndex = idx
			}
			continue
		}
		if base, isSize := arraySizeBase(o.PropertyPath); isSize {
			key := fmt.Sprintf("%s#%d|%s", o.TargetRef.GUID, o.TargetRef.FileID, base)
			g, ok := groups[key]
			if !ok {
				g = &group{maxIndex: -1}
				groups[key] = g
				order = append(order, key)
			}
			if size, ok := toInt(o.Value); ok {
				g.statedSize = &size
				g.sizeIdx = i
			}
		}
	}

	var stale []StaleCandidate
	for _, key := range order {
		g := groups[key]
		if g.statedSize == nil {
			continue
		}
		expected := g.maxIndex + 1
		if expected < 0 {
			expected = 0
		}
		if *g.statedSize != expected {
			stale = append(stale, StaleCandidate{
				Code:         envelope.CodeStaleOverride,
				PropertyPath: overrides[g.sizeIdx].PropertyPath,
				Detail:       fmt.Sprintf("Array.size=%d inconsistent with observed max index %d", *g.statedSize, g.maxIndex),
				Location:     fmt.Sprintf("overrides[%d]", g.sizeIdx),
				DecisionOnly: true,
			})
		}
	}
	return stale
}

var arrayDataRe = regexp.MustCompile(`^(.*)\.Array\.data\[(\d+)\]$`)
var arraySizeRe = regexp.MustCompile(`^(.*)\.Array\.size$`)

func arrayDataBase(propertyPath string) (string, int, bool) {
	m := arrayDataRe.FindStringSubmatch(propertyPath)
	if m == nil {
		return "", 0, false
	}
	idx, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], idx, true
}

func arraySizeBase(propertyPath string) (string, bool) {
	m := arraySizeRe.FindStringSubmatch(propertyPath)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
