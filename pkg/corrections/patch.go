// Package corrections applies CorrectionsSubmitted patches against a
// CanonicalOrder, producing the next version.
package corrections

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"

	orderrs "github.com/orderflow/core/pkg/shared/errors"
)

// Patch is one correction: a gojq query path locating the field to
// replace, plus its new value.
type Patch struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Apply evaluates each patch's path against previous (a CanonicalOrder
// marshaled to a generic JSON value) and replaces the located value,
// returning the new version's JSON representation. An empty patch list
// returns input unchanged — byte-for-byte, satisfying the round-trip
// law that an empty correction produces an identical new version.
func Apply(ctx context.Context, previous []byte, patches []Patch) ([]byte, error) {
	if len(patches) == 0 {
		out := make([]byte, len(previous))
		copy(out, previous)
		return out, nil
	}

	var doc any
	if err := json.Unmarshal(previous, &doc); err != nil {
		return nil, orderrs.WithCode(orderrs.FailedTo("unmarshal canonical order for correction", err), orderrs.CodeInvalidRequest)
	}

	for _, p := range patches {
		updated, err := setAtPath(ctx, doc, p.Path, p.Value)
		if err != nil {
			return nil, err
		}
		doc = updated
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, orderrs.WithCode(orderrs.FailedTo("marshal corrected canonical order", err), orderrs.CodeInvalidRequest)
	}
	return out, nil
}

// setAtPath locates the field named by a gojq query path and replaces
// it with value, using gojq's own path-tracking evaluation
// (`path(query)`) so the same query language that reads a field also
// writes it.
func setAtPath(ctx context.Context, doc any, path string, value any) (any, error) {
	query, err := gojq.Parse(fmt.Sprintf("path(%s)", path))
	if err != nil {
		return nil, orderrs.WithCode(orderrs.FailedToWithDetails("parse correction path", "corrections", path, err), orderrs.CodeInvalidRequest)
	}

	iter := query.RunWithContext(ctx, doc)
	v, ok := iter.Next()
	if !ok {
		return nil, orderrs.New("apply correction", "corrections", path, orderrs.CodeInvalidRequest, fmt.Errorf("path %q does not resolve against the canonical order", path))
	}
	if err, ok := v.(error); ok {
		return nil, orderrs.WithCode(orderrs.FailedToWithDetails("evaluate correction path", "corrections", path, err), orderrs.CodeInvalidRequest)
	}

	segments, ok := v.([]any)
	if !ok {
		return nil, orderrs.New("apply correction", "corrections", path, orderrs.CodeInvalidRequest, fmt.Errorf("path %q did not resolve to a gojq path expression", path))
	}

	return setAtSegments(doc, segments, value)
}

// setAtSegments walks doc along the path segments gojq's path()
// resolved to and replaces the leaf value, returning a new document
// tree (inputs are never mutated in place).
func setAtSegments(doc any, segments []any, value any) (any, error) {
	if len(segments) == 0 {
		return value, nil
	}

	switch key := segments[0].(type) {
	case string:
		m, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object at segment %q, got %T", key, doc)
		}
		child := m[key]
		updatedChild, err := setAtSegments(child, segments[1:], value)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		out[key] = updatedChild
		return out, nil
	case int:
		arr, ok := doc.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array at segment %d, got %T", key, doc)
		}
		if key < 0 || key >= len(arr) {
			return nil, fmt.Errorf("index %d out of range for array of length %d", key, len(arr))
		}
		updatedChild, err := setAtSegments(arr[key], segments[1:], value)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(arr))
		copy(out, arr)
		out[key] = updatedChild
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported path segment type %T", key)
	}
}
