package request

import (
	"reflect"

	"github.com/bool64/ctxd"
	"github.com/swaggest/jsonform"
)

// DefaultMaxMemory is a default limit of multipart form memory, remaining parts are stored on disk.
const DefaultMaxMemory = 32 << 20

// Property describes binding target.
type Property struct {
	// Container is a type of structure that declares the property,
	// nil for values that are not struct fields.
	Container reflect.Type

	// Name is a Go name of struct field.
	Name string

	// Type is a declared type of struct field.
	Type reflect.Type
}

// Selector decides which properties are bound from JSON form values.
//
// Selector is immutable and safe for concurrent use.
type Selector struct {
	engine    jsonform.Engine
	logger    ctxd.Logger
	maxMemory int64
}

// NewSelector creates binder selector for configured JSON engine.
func NewSelector(engine jsonform.Engine, options ...func(s *Selector)) *Selector {
	s := &Selector{
		engine:    engine,
		logger:    ctxd.NoOpLogger{},
		maxMemory: DefaultMaxMemory,
	}

	for _, o := range options {
		o(s)
	}

	return s
}

// WithLogger is a Selector option to set logger of produced binders.
func WithLogger(l ctxd.Logger) func(s *Selector) {
	return func(s *Selector) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxMemory is a Selector option to set multipart form memory limit of produced binders.
func WithMaxMemory(maxMemory int64) func(s *Selector) {
	return func(s *Selector) {
		if maxMemory > 0 {
			s.maxMemory = maxMemory
		}
	}
}

// Select returns a binder for JSON form property or nil if property should be handled by default decoder.
func (s *Selector) Select(p Property) *ValueBinder {
	// Simple values are never bound from JSON.
	if p.Type == nil || !jsonform.IsComplexType(p.Type) {
		return nil
	}

	// Only struct fields are supported.
	c := p.Container
	for c != nil && c.Kind() == reflect.Ptr {
		c = c.Elem()
	}

	if c == nil || c.Kind() != reflect.Struct || p.Name == "" {
		return nil
	}

	sf, ok := c.FieldByName(p.Name)
	if !ok {
		return nil
	}

	// Files are left for default decoder.
	if isFileType(p.Type) {
		return nil
	}

	if !jsonform.IsMarked(c, sf) {
		return nil
	}

	return &ValueBinder{
		engine:    s.engine,
		logger:    s.logger,
		maxMemory: s.maxMemory,
	}
}
