// Package openapi rewrites collected documentation of JSON form fields.
package openapi

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/swaggest/jsonform"
	"github.com/swaggest/jsonschema-go"
	"github.com/swaggest/openapi-go/openapi3"
)

const (
	mimeMultipart      = "multipart/form-data"
	mimeFormURLEncoded = "application/x-www-form-urlencoded"
	mimeJSON           = "application/json"

	componentsSchemasPrefix = "#/components/schemas/"
)

// Rewriter regroups flattened form schemas of JSON form fields into nested object schemas.
//
// Please use NewRewriter to create instance.
type Rewriter struct {
	engine    jsonform.Engine
	reflector *jsonschema.Reflector
	examples  map[reflect.Type]interface{}

	mu    sync.Mutex
	cache map[reflect.Type]openapi3.SchemaOrRef
}

// NewRewriter creates documentation rewriter, engine is used to render examples.
func NewRewriter(engine jsonform.Engine, options ...func(rw *Rewriter)) *Rewriter {
	rw := &Rewriter{
		engine:    engine,
		reflector: &jsonschema.Reflector{},
		examples:  make(map[reflect.Type]interface{}),
		cache:     make(map[reflect.Type]openapi3.SchemaOrRef),
	}

	for _, o := range options {
		o(rw)
	}

	return rw
}

// WithReflector is a Rewriter option to set JSON schema reflector for field types.
func WithReflector(r *jsonschema.Reflector) func(rw *Rewriter) {
	return func(rw *Rewriter) {
		if r != nil {
			rw.reflector = r
		}
	}
}

// WithExample is a Rewriter option to register an example value for JSON form fields of its type.
func WithExample(sample interface{}) func(rw *Rewriter) {
	return func(rw *Rewriter) {
		if sample == nil {
			return
		}

		rw.examples[derefType(reflect.TypeOf(sample))] = sample
	}
}

// RewriteSpec rewrites collected operation of a route if its input has JSON form fields.
//
// Missing operation is not an error.
func (rw *Rewriter) RewriteSpec(spec *openapi3.Spec, method, pattern string, input interface{}) error {
	if spec == nil || input == nil {
		return nil
	}

	d, err := jsonform.Describe(input)
	if err != nil {
		return err
	}

	if !d.HasJSONFields() {
		return nil
	}

	pi, ok := spec.Paths.MapOfPathItemValues[normalizePath(pattern)]
	if !ok {
		return nil
	}

	m := strings.ToLower(method)

	op, ok := pi.MapOfOperationValues[m]
	if !ok {
		return nil
	}

	if err := rw.RewriteOperation(&op, d, spec.Components); err != nil {
		return fmt.Errorf("rewrite %s %s: %w", method, pattern, err)
	}

	pi.MapOfOperationValues[m] = op

	return nil
}

// RewriteOperation replaces form schema of request body with field groups where JSON form fields are
// nested object schemas and have application/json encoding.
//
// Components are only read, referenced request schema is copied into operation.
func (rw *Rewriter) RewriteOperation(op *openapi3.Operation, d *jsonform.Descriptor, components *openapi3.Components) error {
	if op == nil {
		return nil
	}

	return rw.RewriteRequestBody(op.RequestBody, d, components)
}

// RewriteRequestBody is a RewriteOperation for a request body.
func (rw *Rewriter) RewriteRequestBody(rbr *openapi3.RequestBodyOrRef, d *jsonform.Descriptor, components *openapi3.Components) error {
	if rbr == nil || rbr.RequestBody == nil || d == nil || !d.HasJSONFields() {
		return nil
	}

	rb := rbr.RequestBody

	ct, ok := formContentType(rb.Content)
	if !ok {
		return nil
	}

	mt := rb.Content[ct]

	schema, err := resolveSchema(mt.Schema, components)
	if err != nil || schema == nil {
		return err
	}

	groups := make(map[string][]string)

	for name := range schema.Properties {
		key := name
		if i := strings.Index(name, "."); i >= 0 {
			key = name[:i]
		}

		groups[key] = append(groups[key], name)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
		sort.Strings(groups[key])
	}

	sort.Strings(keys)

	encoding := make(map[string]openapi3.Encoding, len(mt.Encoding))
	for k, e := range mt.Encoding {
		encoding[k] = e
	}

	props := make(map[string]openapi3.SchemaOrRef, len(keys))
	schema.Required = nil

	for _, key := range keys {
		name := jsonform.CamelCase(key)

		if d.IsRequired(key) {
			schema.Required = append(schema.Required, name)
		}

		f, ok := d.JSONField(key)
		if !ok {
			props[name] = schema.Properties[groups[key][0]]

			continue
		}

		lk := strings.ToLower(key)

		for k := range encoding {
			if strings.Contains(strings.ToLower(k), lk) {
				delete(encoding, k)
			}
		}

		encoding[name] = jsonEncoding()

		fs, err := rw.fieldSchema(f.Type)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.BindingName, err)
		}

		props[name] = fs
	}

	sort.Strings(schema.Required)

	schema.Properties = props
	mt.Schema = &openapi3.SchemaOrRef{Schema: schema}
	mt.Encoding = encoding
	rb.Content[ct] = mt

	return nil
}

func jsonEncoding() openapi3.Encoding {
	style := openapi3.EncodingStyleForm
	ct := mimeJSON

	return openapi3.Encoding{
		ContentType: &ct,
		Style:       &style,
	}
}

// fieldSchema returns a copy of full schema of field type.
func (rw *Rewriter) fieldSchema(t reflect.Type) (openapi3.SchemaOrRef, error) {
	t = derefType(t)

	rw.mu.Lock()
	defer rw.mu.Unlock()

	s, ok := rw.cache[t]
	if !ok {
		var err error

		if s, err = rw.reflectSchema(t); err != nil {
			return openapi3.SchemaOrRef{}, err
		}

		rw.cache[t] = s
	}

	return copySchemaOrRef(s)
}

func (rw *Rewriter) reflectSchema(t reflect.Type) (openapi3.SchemaOrRef, error) {
	s := openapi3.SchemaOrRef{}

	js, err := rw.reflector.Reflect(reflect.New(t).Elem().Interface(), jsonschema.InlineRefs)
	if err != nil {
		return s, err
	}

	s.FromJSONSchema(js.ToSchemaOrBool())

	if s.Schema == nil {
		return s, nil
	}

	name := t.Name()
	if js.Title != nil && *js.Title != "" {
		name = *js.Title
	} else if name == "" {
		name = t.String()
	}

	note := "See " + name + " model."
	if s.Schema.Description != nil && *s.Schema.Description != "" {
		note = *s.Schema.Description + " " + note
	}

	s.Schema.Description = &note

	if sample, ok := rw.examples[t]; ok {
		data, err := rw.engine.Marshal(sample)
		if err != nil {
			return s, fmt.Errorf("marshal example of %s: %w", t.String(), err)
		}

		var example interface{} = string(data)

		s.Schema.Example = &example
	}

	return s, nil
}

// formContentType finds media type of form request body.
func formContentType(content map[string]openapi3.MediaType) (string, bool) {
	if len(content) == 0 {
		return "", false
	}

	for _, ct := range []string{mimeMultipart, mimeFormURLEncoded} {
		if _, ok := content[ct]; ok {
			return ct, true
		}
	}

	cts := make([]string, 0, len(content))
	for ct := range content {
		cts = append(cts, ct)
	}

	sort.Strings(cts)

	return cts[0], true
}

// resolveSchema returns a copy of media type schema, following references to components.
func resolveSchema(s *openapi3.SchemaOrRef, components *openapi3.Components) (*openapi3.Schema, error) {
	seen := make(map[string]bool)

	for s != nil && s.SchemaReference != nil {
		ref := s.SchemaReference.Ref
		if seen[ref] {
			return nil, fmt.Errorf("circular schema reference %s", ref)
		}

		seen[ref] = true

		if components == nil || components.Schemas == nil || !strings.HasPrefix(ref, componentsSchemasPrefix) {
			return nil, nil
		}

		rs, ok := components.Schemas.MapOfSchemaOrRefValues[strings.TrimPrefix(ref, componentsSchemasPrefix)]
		if !ok {
			return nil, nil
		}

		s = &rs
	}

	if s == nil || s.Schema == nil {
		return nil, nil
	}

	c, err := copySchemaOrRef(*s)
	if err != nil {
		return nil, err
	}

	return c.Schema, nil
}

func copySchemaOrRef(s openapi3.SchemaOrRef) (openapi3.SchemaOrRef, error) {
	var c openapi3.SchemaOrRef

	data, err := json.Marshal(s)
	if err != nil {
		return c, err
	}

	if err := json.Unmarshal(data, &c); err != nil {
		return c, err
	}

	return c, nil
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return t
}

var pathParamRegex = regexp.MustCompile(`{([^}:]+):[^}]+}`)

// normalizePath removes regular expressions from path placeholders, e.g. "/{id:[0-9]+}" becomes "/{id}".
func normalizePath(pattern string) string {
	return pathParamRegex.ReplaceAllString(pattern, "{$1}")
}
