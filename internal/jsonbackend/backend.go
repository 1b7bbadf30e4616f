// Package jsonbackend implements the built-in apply backend for targets
// with extension .json (C9).
package jsonbackend

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/recinq/unitytool/internal/patchplan"
)

// DiffEntry is one before/after pair produced by a dry run or apply.
type DiffEntry struct {
	Path   string `json:"path"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// UnsupportedValueError is returned when an op carries a value this
// backend cannot represent, per the Open Question resolution: a
// value_kind=json ObjectReference payload is only meaningful through the
// bridge and is rejected here rather than guessed at.
type UnsupportedValueError struct {
	Path   string
	Detail string
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Detail)
}

// DryRun computes the diff of applying ops against targetPath without
// writing anything.
func DryRun(targetPath string, ops []patchplan.PatchOp) ([]DiffEntry, error) {
	doc, err := readDoc(targetPath)
	if err != nil {
		return nil, err
	}
	_, diff, err := applyOps(doc, ops)
	return diff, err
}

// Commit applies ops to targetPath and writes the result atomically
// (temp file + rename, so a crash mid-write never leaves a truncated
// target).
func Commit(targetPath string, ops []patchplan.PatchOp) ([]DiffEntry, error) {
	doc, err := readDoc(targetPath)
	if err != nil {
		return nil, err
	}
	newDoc, diff, err := applyOps(doc, ops)
	if err != nil {
		return nil, err
	}

	out, err := json.MarshalIndent(newDoc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("jsonbackend: marshal %s: %w", targetPath, err)
	}
	if err := writeAtomic(targetPath, out); err != nil {
		return nil, err
	}
	return diff, nil
}

func readDoc(targetPath string) (any, error) {
	data, err := os.ReadFile(targetPath)
	if err != nil {
		return nil, fmt.Errorf("jsonbackend: read %s: %w", targetPath, err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("jsonbackend: parse %s: %w", targetPath, err)
	}
	return doc, nil
}

func writeAtomic(targetPath string, data []byte) error {
	dir := filepath.Dir(targetPath)
	tmp, err := os.CreateTemp(dir, ".unitytool-tmp-*")
	if err != nil {
		return fmt.Errorf("jsonbackend: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonbackend: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonbackend: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		return fmt.Errorf("jsonbackend: rename into place: %w", err)
	}
	return nil
}

func applyOps(doc any, ops []patchplan.PatchOp) (any, []DiffEntry, error) {
	var diff []DiffEntry
	for _, op := range ops {
		var (
			d   DiffEntry
			err error
		)
		doc, d, err = applyOne(doc, op)
		if err != nil {
			return nil, nil, err
		}
		diff = append(diff, d)
	}
	return doc, diff, nil
}

func applyOne(doc any, op patchplan.PatchOp) (any, DiffEntry, error) {
	switch op.Op {
	case patchplan.OpSet:
		return applySet(doc, op)
	case patchplan.OpInsert:
		return applyInsert(doc, op)
	case patchplan.OpRemove:
		return applyRemove(doc, op)
	default:
		return nil, DiffEntry{}, fmt.Errorf("jsonbackend: unknown op kind %q", op.Op)
	}
}

func applySet(doc any, op patchplan.PatchOp) (any, DiffEntry, error) {
	value, err := decodeValue(op.ValueKind, op.Value)
	if err != nil {
		return nil, DiffEntry{}, err
	}
	before, newDoc, err := setPath(doc, splitPath(op.Path), value)
	if err != nil {
		return nil, DiffEntry{}, fmt.Errorf("jsonbackend: set %s: %w", op.Path, err)
	}
	return newDoc, DiffEntry{Path: op.Path, Before: before, After: value}, nil
}

func applyInsert(doc any, op patchplan.PatchOp) (any, DiffEntry, error) {
	basePath := strings.TrimSuffix(op.Path, ".Array.data")
	segs := splitPath(basePath)

	arr, err := getPath(doc, segs)
	if err != nil {
		return nil, DiffEntry{}, fmt.Errorf("jsonbackend: insert into %s: %w", op.Path, err)
	}
	list, ok := arr.([]any)
	if !ok {
		if arr == nil {
			list = []any{}
		} else {
			return nil, DiffEntry{}, fmt.Errorf("jsonbackend: insert into %s: not an array", op.Path)
		}
	}
	if op.Index == nil {
		return nil, DiffEntry{}, fmt.Errorf("jsonbackend: insert into %s: missing index", op.Path)
	}
	idx := *op.Index
	if idx < 0 || idx > len(list) {
		return nil, DiffEntry{}, fmt.Errorf("jsonbackend: insert into %s: index %d out of range [0,%d]", op.Path, idx, len(list))
	}

	var value any
	if len(op.Value) > 0 {
		v, err := decodeValue(op.ValueKind, op.Value)
		if err != nil {
			return nil, DiffEntry{}, err
		}
		value = v
	}

	newList := make([]any, 0, len(list)+1)
	newList = append(newList, list[:idx]...)
	newList = append(newList, value)
	newList = append(newList, list[idx:]...)

	_, newDoc, err := setPath(doc, segs, newList)
	if err != nil {
		return nil, DiffEntry{}, fmt.Errorf("jsonbackend: insert into %s: %w", op.Path, err)
	}
	return newDoc, DiffEntry{Path: fmt.Sprintf("%s[%d]", basePath, idx), Before: nil, After: value}, nil
}

func applyRemove(doc any, op patchplan.PatchOp) (any, DiffEntry, error) {
	basePath := strings.TrimSuffix(op.Path, ".Array.data")
	segs := splitPath(basePath)

	arr, err := getPath(doc, segs)
	if err != nil {
		return nil, DiffEntry{}, fmt.Errorf("jsonbackend: remove from %s: %w", op.Path, err)
	}
	list, ok := arr.([]any)
	if !ok {
		return nil, DiffEntry{}, fmt.Errorf("jsonbackend: remove from %s: not an array", op.Path)
	}
	if op.Index == nil {
		return nil, DiffEntry{}, fmt.Errorf("jsonbackend: remove from %s: missing index", op.Path)
	}
	idx := *op.Index
	if idx < 0 || idx >= len(list) {
		return nil, DiffEntry{}, fmt.Errorf("jsonbackend: remove from %s: index %d out of range [0,%d)", op.Path, idx, len(list))
	}

	removed := list[idx]
	newList := make([]any, 0, len(list)-1)
	newList = append(newList, list[:idx]...)
	newList = append(newList, list[idx+1:]...)

	_, newDoc, err := setPath(doc, segs, newList)
	if err != nil {
		return nil, DiffEntry{}, fmt.Errorf("jsonbackend: remove from %s: %w", op.Path, err)
	}
	return newDoc, DiffEntry{Path: fmt.Sprintf("%s[%d]", basePath, idx), Before: removed, After: nil}, nil
}

func decodeValue(kind patchplan.ValueKind, raw json.RawMessage) (any, error) {
	switch kind {
	case patchplan.ValueNull:
		return nil, nil
	case patchplan.ValueInt:
		var v json.Number
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("jsonbackend: decode int value: %w", err)
		}
		i, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("jsonbackend: decode int value: %w", err)
		}
		return i, nil
	case patchplan.ValueFloat:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("jsonbackend: decode float value: %w", err)
		}
		return v, nil
	case patchplan.ValueBool:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("jsonbackend: decode bool value: %w", err)
		}
		return v, nil
	case patchplan.ValueString:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("jsonbackend: decode string value: %w", err)
		}
		return v, nil
	case patchplan.ValueJSON:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("jsonbackend: decode json value: %w", err)
		}
		if looksLikeObjectReference(v) {
			return nil, &UnsupportedValueError{Path: "value", Detail: "value_kind=json ObjectReference payloads are only meaningful through the engine bridge"}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("jsonbackend: unknown value_kind %q", kind)
	}
}

func looksLikeObjectReference(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if t, ok := m["__type"].(string); ok && t == "ObjectReference" {
		return true
	}
	_, hasGUID := m["guid"]
	_, hasFileID := m["fileID"]
	return hasGUID && hasFileID
}

// splitPath splits a dotted JSON-pointer-variant path into segments.
// Purely numeric segments are treated as array indices by getPath/setPath.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func getPath(doc any, segs []string) (any, error) {
	cur := doc
	for _, seg := range segs {
		if idx, err := strconv.Atoi(seg); err == nil {
			list, ok := cur.([]any)
			if !ok {
				return nil, fmt.Errorf("segment %q: not an array", seg)
			}
			if idx < 0 || idx >= len(list) {
				return nil, fmt.Errorf("segment %q: index out of range", seg)
			}
			cur = list[idx]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("segment %q: not an object", seg)
		}
		cur = m[seg]
	}
	return cur, nil
}

// setPath returns the document's previous value at segs and a new
// top-level document with segs set to value. The structure is copied
// along the path so the original doc value passed in is never mutated
// in place, keeping dry-run and apply symmetrical.
func setPath(doc any, segs []string, value any) (any, any, error) {
	if len(segs) == 0 {
		return doc, value, nil
	}
	return setPathRec(doc, segs, value)
}

func setPathRec(doc any, segs []string, value any) (any, any, error) {
	seg := segs[0]
	rest := segs[1:]

	if idx, err := strconv.Atoi(seg); err == nil {
		list, ok := doc.([]any)
		if !ok {
			if doc == nil {
				list = []any{}
			} else {
				return nil, nil, fmt.Errorf("segment %q: not an array", seg)
			}
		}
		for idx >= len(list) {
			list = append(list, nil)
		}
		newList := append([]any(nil), list...)
		if len(rest) == 0 {
			before := newList[idx]
			newList[idx] = value
			return before, newList, nil
		}
		before, newChild, err := setPathRec(newList[idx], rest, value)
		if err != nil {
			return nil, nil, err
		}
		newList[idx] = newChild
		return before, newList, nil
	}

	m, ok := doc.(map[string]any)
	if !ok {
		if doc == nil {
			m = map[string]any{}
		} else {
			return nil, nil, fmt.Errorf("segment %q: not an object", seg)
		}
	}
	newMap := make(map[string]any, len(m)+1)
	for k, v := range m {
		newMap[k] = v
	}
	if len(rest) == 0 {
		before := newMap[seg]
		newMap[seg] = value
		return before, newMap, nil
	}
	before, newChild, err := setPathRec(newMap[seg], rest, value)
	if err != nil {
		return nil, nil, err
	}
	newMap[seg] = newChild
	return before, newMap, nil
}
