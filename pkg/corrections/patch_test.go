package corrections

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
)

func TestApply_EmptyPatchIsByteIdentical(t *testing.T) {
	input := []byte(`{"customer":{"name":"Acme"},"lines":[{"sku":"A"}]}`)
	out, err := Apply(context.Background(), input, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(out) != string(input) {
		t.Errorf("expected byte-identical output for empty patch, got %s", out)
	}
}

func TestApply_ReplacesNestedField(t *testing.T) {
	input := []byte(`{"customer":{"name":"Acme"},"lines":[{"sku":"A","quantity":1}]}`)
	out, err := Apply(context.Background(), input, []Patch{
		{Path: ".customer.name", Value: "Acme Ltd"},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("Unmarshal result: %v", err)
	}
	customer := doc["customer"].(map[string]any)
	if customer["name"] != "Acme Ltd" {
		t.Errorf("customer.name = %v, want Acme Ltd", customer["name"])
	}
}

func TestApply_ReplacesArrayElementField(t *testing.T) {
	input := []byte(`{"lines":[{"sku":"A","quantity":1},{"sku":"B","quantity":2}]}`)
	out, err := Apply(context.Background(), input, []Patch{
		{Path: ".lines[1].quantity", Value: 5},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("Unmarshal result: %v", err)
	}
	lines := doc["lines"].([]any)
	second := lines[1].(map[string]any)
	if second["quantity"] != float64(5) {
		t.Errorf("lines[1].quantity = %v, want 5", second["quantity"])
	}
	first := lines[0].(map[string]any)
	if first["sku"] != "A" {
		t.Errorf("lines[0] should be untouched, got %v", first)
	}
}

func TestApply_MultiplePatchesApplyInOrder(t *testing.T) {
	input := []byte(`{"lines":[{"sku":"A","quantity":1}]}`)
	out, err := Apply(context.Background(), input, []Patch{
		{Path: ".lines[0].quantity", Value: 3},
		{Path: ".lines[0].sku", Value: "B"},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("Unmarshal result: %v", err)
	}
	line := doc["lines"].([]any)[0].(map[string]any)
	want := map[string]any{"sku": "B", "quantity": float64(3)}
	if !reflect.DeepEqual(line, want) {
		t.Errorf("line = %v, want %v", line, want)
	}
}

func TestApply_UnresolvablePathErrors(t *testing.T) {
	input := []byte(`{"lines":[]}`)
	_, err := Apply(context.Background(), input, []Patch{
		{Path: ".lines[0].quantity", Value: 1},
	})
	if err == nil {
		t.Fatal("expected an error for an out-of-range path")
	}
}
