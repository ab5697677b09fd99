package jsonform_test

import (
	"mime/multipart"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggest/jsonform"
)

type Meta struct {
	Author string `formData:"author"`
}

type describedRequest struct {
	Meta
	File    *multipart.FileHeader `formData:"file" required:"true"`
	Payload engineSample          `formData:"payload" fromJSON:"true" required:"true"`
	Extra   engineSample          `formData:"Extra"`
	Note    string                `formData:"note"`
	ignored string                `formData:"ignored"` //nolint:unused
}

func (describedRequest) FormJSONFields() []string {
	return []string{"Extra"}
}

func TestDescribe(t *testing.T) {
	d, err := jsonform.Describe(new(describedRequest))
	require.NoError(t, err)

	assert.Equal(t, reflect.TypeOf(describedRequest{}), d.Type)
	assert.True(t, d.HasJSONFields())

	var names []string
	for _, f := range d.Fields {
		names = append(names, f.BindingName)
	}

	assert.ElementsMatch(t, []string{"author", "file", "payload", "Extra", "note"}, names)

	jf := d.JSONFields()
	require.Len(t, jf, 2)

	f, ok := d.JSONField("PAYLOAD")
	require.True(t, ok)
	assert.Equal(t, "Payload", f.Name)
	assert.Equal(t, "payload", f.BindingName)
	assert.True(t, f.Required)

	f, ok = d.JSONField("extra")
	require.True(t, ok)
	assert.False(t, f.Required)

	_, ok = d.JSONField("note")
	assert.False(t, ok)

	f, ok = d.Field("author")
	require.True(t, ok)
	assert.Equal(t, []int{0, 0}, f.Index)

	assert.True(t, d.IsRequired("file"))
	assert.False(t, d.IsRequired("note"))
	assert.False(t, d.IsRequired("missing"))

	// Descriptors are cached.
	d2, err := jsonform.DescribeType(reflect.TypeOf(describedRequest{}))
	require.NoError(t, err)
	assert.Same(t, d, d2)
}

func TestDescribe_noJSONFields(t *testing.T) {
	d, err := jsonform.Describe(struct {
		Name string `formData:"name"`
	}{})
	require.NoError(t, err)
	assert.False(t, d.HasJSONFields())
	assert.Empty(t, d.JSONFields())

	d, err = jsonform.Describe(42)
	require.NoError(t, err)
	assert.Empty(t, d.Fields)

	_, err = jsonform.Describe(nil)
	assert.Error(t, err)
}

func TestDescribe_ambiguous(t *testing.T) {
	_, err := jsonform.Describe(struct {
		Payload engineSample `formData:"payload" fromJSON:"true"`
		Count   int          `formData:"Payload.count"`
	}{})
	assert.ErrorIs(t, err, jsonform.ErrAmbiguousFieldName)

	_, err = jsonform.Describe(struct {
		Payload engineSample `formData:"pay.load" fromJSON:"true"`
	}{})
	assert.ErrorIs(t, err, jsonform.ErrAmbiguousFieldName)

	// Dotted names of fields that are not bound from JSON are fine.
	_, err = jsonform.Describe(struct {
		Payload engineSample `formData:"payload" fromJSON:"true"`
		Count   int          `formData:"payloads.count"`
	}{})
	assert.NoError(t, err)
}

func TestIsMarked(t *testing.T) {
	rt := reflect.TypeOf(describedRequest{})

	for name, marked := range map[string]bool{
		"Payload": true,
		"Extra":   true,
		"Note":    false,
		"File":    false,
	} {
		sf, ok := rt.FieldByName(name)
		require.True(t, ok)
		assert.Equal(t, marked, jsonform.IsMarked(reflect.PtrTo(rt), sf), name)
	}
}

func TestDescribe_simpleJSONField(t *testing.T) {
	_, err := jsonform.Describe(struct {
		Count int `formData:"count" fromJSON:"true"`
	}{})
	assert.ErrorIs(t, err, jsonform.ErrSimpleJSONField)

	_, err = jsonform.Describe(struct {
		Raw []byte `formData:"raw" fromJSON:"true"`
	}{})
	assert.ErrorIs(t, err, jsonform.ErrSimpleJSONField)

	d, err := jsonform.Describe(struct {
		Items []engineSample       `formData:"items" fromJSON:"true"`
		Tags  map[string]string    `formData:"tags" fromJSON:"true"`
		Pair  *[2]engineSample     `formData:"pair" fromJSON:"true"`
		Ref   *engineSample        `formData:"ref" fromJSON:"true"`
		Files []map[string]float64 `formData:"files" fromJSON:"true"`
	}{})
	require.NoError(t, err)
	assert.Len(t, d.JSONFields(), 5)
}

func TestIsComplexType(t *testing.T) {
	for _, tc := range []struct {
		v           interface{}
		complexType bool
	}{
		{v: engineSample{}, complexType: true},
		{v: new(engineSample), complexType: true},
		{v: []engineSample{}, complexType: true},
		{v: map[string]int{}, complexType: true},
		{v: [3]int{}, complexType: true},
		{v: []string{}, complexType: true},
		{v: []byte{}},
		{v: ""},
		{v: 42},
		{v: new(float64)},
	} {
		rt := reflect.TypeOf(tc.v)
		assert.Equal(t, tc.complexType, jsonform.IsComplexType(rt), rt.String())
	}
}

func TestCamelCase(t *testing.T) {
	for in, out := range map[string]string{
		"payload":  "payload",
		"Payload":  "payload",
		"URLValue": "urlValue",
		"ID":       "id",
		"myField":  "myField",
		"":         "",
	} {
		assert.Equal(t, out, jsonform.CamelCase(in), in)
	}
}
