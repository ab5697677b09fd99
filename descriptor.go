package jsonform

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/swaggest/refl"
)

// Field tags recognized in request structures.
const (
	// FromJSONTag marks a field to be bound from a JSON-encoded form value or file part,
	// e.g. `formData:"payload" fromJSON:"true"`.
	FromJSONTag = "fromJSON"

	// FormDataTag provides binding name of a multipart field.
	FormDataTag = "formData"

	// RequiredTag marks a field as required.
	RequiredTag = "required"
)

// These errors may be returned when request structure is described.
var (
	ErrAmbiguousFieldName = errors.New("ambiguous JSON form field name")
	ErrSimpleJSONField    = errors.New("JSON form field must be an object or a collection")
)

// JSONFieldsMarker can be implemented by request structure to mark JSON fields without tags.
type JSONFieldsMarker interface {
	// FormJSONFields returns names of Go struct fields that are bound from JSON.
	FormJSONFields() []string
}

// Field describes a form field of request structure.
type Field struct {
	Name        string // Go struct field name.
	BindingName string // Multipart field name.
	Index       []int
	Type        reflect.Type
	Required    bool
	FromJSON    bool
}

// Descriptor is a reflected shape of request structure.
//
// Please use Describe to obtain an instance, it must not be modified.
type Descriptor struct {
	Type   reflect.Type
	Fields []Field
}

// HasJSONFields indicates if any field is marked to be bound from JSON.
func (d *Descriptor) HasJSONFields() bool {
	for _, f := range d.Fields {
		if f.FromJSON {
			return true
		}
	}

	return false
}

// JSONFields returns fields marked to be bound from JSON.
func (d *Descriptor) JSONFields() []Field {
	var res []Field

	for _, f := range d.Fields {
		if f.FromJSON {
			res = append(res, f)
		}
	}

	return res
}

// Field finds field by binding name, name comparison is case-insensitive.
func (d *Descriptor) Field(bindingName string) (Field, bool) {
	for _, f := range d.Fields {
		if strings.EqualFold(f.BindingName, bindingName) {
			return f, true
		}
	}

	return Field{}, false
}

// JSONField finds JSON-bound field by binding name, name comparison is case-insensitive.
func (d *Descriptor) JSONField(bindingName string) (Field, bool) {
	f, ok := d.Field(bindingName)
	if !ok || !f.FromJSON {
		return Field{}, false
	}

	return f, true
}

// IsRequired checks if field with binding name is marked as required.
func (d *Descriptor) IsRequired(bindingName string) bool {
	f, ok := d.Field(bindingName)

	return ok && f.Required
}

var descriptors sync.Map // map[reflect.Type]*Descriptor

// Describe reflects and caches form fields of request structure.
func Describe(input interface{}) (*Descriptor, error) {
	t := reflect.TypeOf(input)
	if t == nil {
		return nil, errors.New("nil input")
	}

	return DescribeType(t)
}

// DescribeType reflects and caches form fields of request structure type.
func DescribeType(t reflect.Type) (*Descriptor, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if d, ok := descriptors.Load(t); ok {
		return d.(*Descriptor), nil //nolint:forcetypeassert
	}

	d, err := describe(t)
	if err != nil {
		return nil, err
	}

	actual, _ := descriptors.LoadOrStore(t, d)

	return actual.(*Descriptor), nil //nolint:forcetypeassert
}

func describe(t reflect.Type) (*Descriptor, error) {
	d := &Descriptor{Type: t}

	if t.Kind() != reflect.Struct {
		return d, nil
	}

	marked := markedFields(t)

	refl.WalkTaggedFields(reflect.New(t), func(_ reflect.Value, sf reflect.StructField, tag string) {
		// Skip unexported fields.
		if sf.PkgPath != "" {
			return
		}

		full, ok := t.FieldByName(sf.Name)
		if !ok {
			return
		}

		d.Fields = append(d.Fields, Field{
			Name:        sf.Name,
			BindingName: tag,
			Index:       full.Index,
			Type:        sf.Type,
			Required:    sf.Tag.Get(RequiredTag) == "true",
			FromJSON:    sf.Tag.Get(FromJSONTag) == "true" || marked[sf.Name],
		})
	}, FormDataTag)

	if err := checkAmbiguity(d); err != nil {
		return nil, fmt.Errorf("%s: %w", t.String(), err)
	}

	for _, f := range d.Fields {
		if f.FromJSON && !IsComplexType(f.Type) {
			return nil, fmt.Errorf("%s: %w: %s %s", t.String(), ErrSimpleJSONField, f.Name, f.Type.String())
		}
	}

	return d, nil
}

// IsComplexType checks if values of type are decoded from JSON objects or arrays.
//
// Byte slices are excluded as they are JSON strings.
func IsComplexType(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct, reflect.Map, reflect.Array:
		return true
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

// CamelCase returns documented name of a form field, leading capitals are lowercased,
// "URLValue" becomes "urlValue".
func CamelCase(s string) string {
	r := []rune(s)

	for i := 0; i < len(r) && unicode.IsUpper(r[i]); i++ {
		if i > 0 && i+1 < len(r) && unicode.IsLower(r[i+1]) {
			break
		}

		r[i] = unicode.ToLower(r[i])
	}

	return string(r)
}

// IsMarked checks if struct field of container type is marked to be bound from JSON.
func IsMarked(container reflect.Type, sf reflect.StructField) bool {
	if sf.Tag.Get(FromJSONTag) == "true" {
		return true
	}

	return markedFields(container)[sf.Name]
}

func markedFields(container reflect.Type) map[string]bool {
	for container.Kind() == reflect.Ptr {
		container = container.Elem()
	}

	var m JSONFieldsMarker

	if mm, ok := reflect.New(container).Interface().(JSONFieldsMarker); ok {
		m = mm
	} else if mm, ok := reflect.New(container).Elem().Interface().(JSONFieldsMarker); ok {
		m = mm
	}

	if m == nil {
		return nil
	}

	res := make(map[string]bool)
	for _, name := range m.FormJSONFields() {
		res[name] = true
	}

	return res
}

func checkAmbiguity(d *Descriptor) error {
	for _, jf := range d.Fields {
		if !jf.FromJSON {
			continue
		}

		if strings.Contains(jf.BindingName, ".") {
			return fmt.Errorf("%w: %q contains a dot", ErrAmbiguousFieldName, jf.BindingName)
		}

		prefix := strings.ToLower(jf.BindingName) + "."

		for _, f := range d.Fields {
			if strings.HasPrefix(strings.ToLower(f.BindingName), prefix) {
				return fmt.Errorf("%w: %q and %q share a prefix", ErrAmbiguousFieldName, jf.BindingName, f.BindingName)
			}
		}
	}

	return nil
}
