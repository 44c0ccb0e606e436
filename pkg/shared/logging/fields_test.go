package logging

import (
	"errors"
	"testing"
	"time"
)

func TestNewFields(t *testing.T) {
	f := NewFields()
	if f == nil {
		t.Fatal("NewFields() returned nil")
	}
	if len(f.Slice()) != 0 {
		t.Errorf("NewFields() should be empty, got %d fields", len(f.Slice()))
	}
}

func TestFields_Component(t *testing.T) {
	f := NewFields().Component("committee")
	slice := f.Slice()
	if len(slice) != 1 || slice[0].Key != "component" {
		t.Errorf("unexpected fields: %+v", slice)
	}
}

func TestFields_Resource(t *testing.T) {
	f := NewFields().Resource("case", "C1")
	slice := f.Slice()
	if len(slice) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(slice))
	}
}

func TestFields_ResourceWithoutName(t *testing.T) {
	f := NewFields().Resource("case", "")
	slice := f.Slice()
	if len(slice) != 1 {
		t.Errorf("Resource() with empty name should not set resource_name, got %d fields", len(slice))
	}
}

func TestFields_Duration(t *testing.T) {
	f := NewFields().Duration(150 * time.Millisecond)
	slice := f.Slice()
	if slice[0].Integer != 150 {
		t.Errorf("Duration() = %v, want 150", slice[0].Integer)
	}
}

func TestFields_ErrNil(t *testing.T) {
	f := NewFields().Err(nil)
	if len(f.Slice()) != 0 {
		t.Error("Err(nil) should not append a field")
	}
}

func TestFields_ErrSet(t *testing.T) {
	f := NewFields().Err(errors.New("boom"))
	if len(f.Slice()) != 1 {
		t.Error("Err(err) should append exactly one field")
	}
}

func TestFields_Chaining(t *testing.T) {
	f := NewFields().Component("workflow").Operation("create_draft").CaseID("C1").CorrelationID("corr-1")
	if len(f.Slice()) != 4 {
		t.Errorf("expected 4 chained fields, got %d", len(f.Slice()))
	}
}
