// Package logging provides a standard-fields builder over zap, so every
// component logs the same vocabulary (component, operation, resource,
// case id, correlation id) instead of inventing field names ad hoc.
package logging

import (
	"time"

	"go.uber.org/zap"
)

// Fields accumulates zap.Field values with a fluent builder, mirroring
// the shape of a structured-logging helper rather than a generic map so
// callers get compile-time field typing.
type Fields struct {
	fields []zap.Field
}

// NewFields starts an empty field set.
func NewFields() *Fields {
	return &Fields{fields: make([]zap.Field, 0, 8)}
}

func (f *Fields) Component(name string) *Fields {
	f.fields = append(f.fields, zap.String("component", name))
	return f
}

func (f *Fields) Operation(name string) *Fields {
	f.fields = append(f.fields, zap.String("operation", name))
	return f
}

func (f *Fields) Resource(kind, name string) *Fields {
	f.fields = append(f.fields, zap.String("resource_type", kind))
	if name != "" {
		f.fields = append(f.fields, zap.String("resource_name", name))
	}
	return f
}

func (f *Fields) CaseID(id string) *Fields {
	f.fields = append(f.fields, zap.String("case_id", id))
	return f
}

func (f *Fields) CorrelationID(id string) *Fields {
	f.fields = append(f.fields, zap.String("correlation_id", id))
	return f
}

func (f *Fields) Duration(d time.Duration) *Fields {
	f.fields = append(f.fields, zap.Int64("duration_ms", d.Milliseconds()))
	return f
}

func (f *Fields) Err(err error) *Fields {
	if err == nil {
		return f
	}
	f.fields = append(f.fields, zap.Error(err))
	return f
}

// Slice returns the accumulated zap.Field values for use with a zap
// logger call, e.g. logger.Info("msg", fields.Slice()...).
func (f *Fields) Slice() []zap.Field {
	return f.fields
}
