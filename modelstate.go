package jsonform

import (
	"sort"

	"github.com/swaggest/rest"
)

// ModelState collects raw values and binding errors of JSON form fields for a single request.
//
// Keys are binding names. ModelState is not safe for concurrent use, it belongs to one request.
type ModelState struct {
	values map[string]string
	errors rest.RequestErrors
}

// NewModelState creates an empty ModelState.
func NewModelState() *ModelState {
	return &ModelState{
		values: make(map[string]string),
	}
}

// SetValue records raw payload of a field.
func (ms *ModelState) SetValue(name, raw string) {
	ms.values[name] = raw
}

// Value returns raw payload of a field.
func (ms *ModelState) Value(name string) (string, bool) {
	v, ok := ms.values[name]

	return v, ok
}

// AddError adds a binding error message for a field.
func (ms *ModelState) AddError(name, message string) {
	if ms.errors == nil {
		ms.errors = make(rest.RequestErrors)
	}

	ms.errors[name] = append(ms.errors[name], message)
}

// HasError checks if there are errors for a field.
func (ms *ModelState) HasError(name string) bool {
	return len(ms.errors[name]) > 0
}

// IsValid is true when no errors were added.
func (ms *ModelState) IsValid() bool {
	return len(ms.errors) == 0
}

// Names returns sorted names of fields with recorded values.
func (ms *ModelState) Names() []string {
	names := make([]string, 0, len(ms.values))
	for name := range ms.values {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Errors returns binding errors by field name.
func (ms *ModelState) Errors() rest.RequestErrors {
	return ms.errors
}

// Err returns nil for valid state or rest.RequestErrors that renders as bad request.
func (ms *ModelState) Err() error {
	if ms.IsValid() {
		return nil
	}

	return ms.errors
}

// MergeInto adds errors of model state to a map of other request errors.
func (ms *ModelState) MergeInto(errs map[string][]string) {
	for name, messages := range ms.errors {
		errs[name] = append(errs[name], messages...)
	}
}
