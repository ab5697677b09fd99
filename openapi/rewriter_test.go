package openapi_test

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggest/assertjson"
	"github.com/swaggest/jsonform"
	"github.com/swaggest/jsonform/openapi"
	"github.com/swaggest/openapi-go/openapi3"
)

type Body struct {
	X int `json:"x"`
}

type docRequest struct {
	ID        int                   `path:"id"`
	Body      Body                  `formData:"Body" fromJSON:"true" required:"true"`
	BodyExtra string                `formData:"bodyExtra"`
	Note      string                `formData:"note"`
	File      *multipart.FileHeader `formData:"File" required:"true"`
}

type plainRequest struct {
	Body Body   `formData:"body"`
	Note string `formData:"note" required:"true"`
}

const flatOperation = `{
  "requestBody":{"content":{"multipart/form-data":{
    "schema":{
      "type":"object",
      "properties":{
        "Body.x":{"type":"integer"},
        "bodyExtra":{"type":"string"},
        "note":{"type":"string"},
        "File":{"type":"string","format":"binary"}
      },
      "required":["Body.x","note","File"]
    },
    "encoding":{
      "Body.x":{"style":"form"},
      "note":{"contentType":"text/plain"}
    }
  }}},
  "responses":{"204":{"description":"No Content"}}
}`

const rewrittenBody = `{"content":{"multipart/form-data":{
  "schema":{
    "type":"object",
    "properties":{
      "body":{"type":"object","properties":{"x":{"type":"integer"}},"description":"See Body model."},
      "bodyExtra":{"type":"string"},
      "file":{"type":"string","format":"binary"},
      "note":{"type":"string"}
    },
    "required":["body","file"]
  },
  "encoding":{
    "body":{"contentType":"application/json","style":"form"},
    "note":{"contentType":"text/plain"}
  }
}}}`

func newEngine(t *testing.T) jsonform.Engine {
	t.Helper()

	e, err := jsonform.NewEngine(jsonform.Native)
	require.NoError(t, err)

	return e
}

func unmarshalOperation(t *testing.T, data string) openapi3.Operation {
	t.Helper()

	var op openapi3.Operation

	require.NoError(t, json.Unmarshal([]byte(data), &op))

	return op
}

func describe(t *testing.T, input interface{}) *jsonform.Descriptor {
	t.Helper()

	d, err := jsonform.Describe(input)
	require.NoError(t, err)

	return d
}

func TestRewriter_RewriteOperation(t *testing.T) {
	rw := openapi.NewRewriter(newEngine(t))
	op := unmarshalOperation(t, flatOperation)
	d := describe(t, new(docRequest))

	require.NoError(t, rw.RewriteOperation(&op, d, nil))
	assertjson.EqualMarshal(t, []byte(rewrittenBody), op.RequestBody)

	mt := op.RequestBody.RequestBody.Content["multipart/form-data"]
	assert.Contains(t, mt.Schema.Schema.Required, "body")
	assert.Len(t, mt.Encoding, 2)
}

func TestRewriter_RewriteOperation_idempotent(t *testing.T) {
	rw := openapi.NewRewriter(newEngine(t))
	op := unmarshalOperation(t, flatOperation)
	d := describe(t, new(docRequest))

	require.NoError(t, rw.RewriteOperation(&op, d, nil))

	once, err := json.Marshal(op)
	require.NoError(t, err)

	require.NoError(t, rw.RewriteOperation(&op, d, nil))

	twice, err := json.Marshal(op)
	require.NoError(t, err)

	assertjson.Equal(t, once, twice)

	// Cached schemas are not shared between operations.
	other := unmarshalOperation(t, flatOperation)
	require.NoError(t, rw.RewriteOperation(&other, d, nil))

	desc := "changed"
	op.RequestBody.RequestBody.Content["multipart/form-data"].Schema.Schema.Properties["body"].Schema.Description = &desc

	assertjson.EqualMarshal(t, []byte(rewrittenBody), other.RequestBody)
}

func TestRewriter_RewriteOperation_noJSONFields(t *testing.T) {
	rw := openapi.NewRewriter(newEngine(t))
	op := unmarshalOperation(t, flatOperation)

	require.NoError(t, rw.RewriteOperation(&op, describe(t, new(plainRequest)), nil))
	assertjson.EqualMarshal(t, []byte(flatOperation), op)

	// Operation without request body.
	op = unmarshalOperation(t, `{"responses":{"204":{"description":"No Content"}}}`)
	require.NoError(t, rw.RewriteOperation(&op, describe(t, new(docRequest)), nil))
	assert.Nil(t, op.RequestBody)
}

func TestRewriter_RewriteOperation_example(t *testing.T) {
	rw := openapi.NewRewriter(newEngine(t), openapi.WithExample(Body{X: 5}))
	op := unmarshalOperation(t, flatOperation)

	require.NoError(t, rw.RewriteOperation(&op, describe(t, new(docRequest)), nil))

	body := op.RequestBody.RequestBody.Content["multipart/form-data"].Schema.Schema.Properties["body"]
	require.NotNil(t, body.Schema)
	require.NotNil(t, body.Schema.Example)
	assert.Equal(t, `{"x":5}`, *body.Schema.Example)
}

func TestRewriter_RewriteSpec(t *testing.T) {
	rw := openapi.NewRewriter(newEngine(t))

	var spec openapi3.Spec

	require.NoError(t, json.Unmarshal([]byte(`{
	  "openapi":"3.0.3","info":{"title":"","version":""},
	  "paths":{"/docs/{id}":{"post":{
	    "requestBody":{"content":{"multipart/form-data":{"schema":{"$ref":"#/components/schemas/FormDataDocRequest"}}}},
	    "responses":{"204":{"description":"No Content"}}
	  }}},
	  "components":{"schemas":{"FormDataDocRequest":{
	    "type":"object",
	    "properties":{
	      "Body":{"$ref":"#/components/schemas/FormDataBody"},
	      "bodyExtra":{"type":"string"},
	      "note":{"type":"string"},
	      "File":{"type":"string","format":"binary"}
	    },
	    "required":["Body","File"]
	  },"FormDataBody":{"type":"object"}}}
	}`), &spec))

	components, err := json.Marshal(spec.Components)
	require.NoError(t, err)

	require.NoError(t, rw.RewriteSpec(&spec, "POST", "/docs/{id:[0-9]+}", new(docRequest)))

	op := spec.Paths.MapOfPathItemValues["/docs/{id}"].MapOfOperationValues["post"]
	assertjson.EqualMarshal(t, []byte(`{"content":{"multipart/form-data":{
	  "schema":{
	    "type":"object",
	    "properties":{
	      "body":{"type":"object","properties":{"x":{"type":"integer"}},"description":"See Body model."},
	      "bodyExtra":{"type":"string"},
	      "file":{"type":"string","format":"binary"},
	      "note":{"type":"string"}
	    },
	    "required":["body","file"]
	  },
	  "encoding":{"body":{"contentType":"application/json","style":"form"}}
	}}}`), op.RequestBody)

	// Shared components are left intact.
	assertjson.EqualMarshal(t, components, spec.Components)

	// Unknown routes are skipped.
	require.NoError(t, rw.RewriteSpec(&spec, "GET", "/docs/{id}", new(docRequest)))
	require.NoError(t, rw.RewriteSpec(&spec, "POST", "/unknown", new(docRequest)))
}

func TestRewriter_RewriteSpec_ambiguous(t *testing.T) {
	rw := openapi.NewRewriter(newEngine(t))
	spec := openapi3.Spec{}

	err := rw.RewriteSpec(&spec, "POST", "/", new(struct {
		Body  Body `formData:"body" fromJSON:"true"`
		Extra int  `formData:"body.extra"`
	}))
	assert.ErrorIs(t, err, jsonform.ErrAmbiguousFieldName)
}

func TestRewriter_Annotation(t *testing.T) {
	r := openapi3.NewReflector()
	rw := openapi.NewRewriter(newEngine(t))

	oc, err := r.NewOperationContext(http.MethodPost, "/docs/{id}")
	require.NoError(t, err)

	oc.AddReqStructure(new(docRequest))

	var rewriteErr error

	require.NoError(t, rw.Annotation(r, func(err error) { rewriteErr = err })(oc))
	require.NoError(t, r.AddOperation(oc))
	require.NoError(t, rewriteErr)

	op, ok := r.Spec.Paths.MapOfPathItemValues["/docs/{id}"].MapOfOperationValues["post"]
	require.True(t, ok)
	require.NotNil(t, op.RequestBody)
	require.NotNil(t, op.RequestBody.RequestBody)

	mt, ok := op.RequestBody.RequestBody.Content["multipart/form-data"]
	require.True(t, ok)
	require.NotNil(t, mt.Schema)
	require.NotNil(t, mt.Schema.Schema)

	assert.Equal(t, []string{"body", "file"}, mt.Schema.Schema.Required)
	assert.Contains(t, mt.Schema.Schema.Properties, "body")
	assert.NotContains(t, mt.Schema.Schema.Properties, "Body")
	require.NotNil(t, mt.Encoding["body"].ContentType)
	assert.Equal(t, "application/json", *mt.Encoding["body"].ContentType)
}

func TestRewriter_Annotation_ambiguous(t *testing.T) {
	r := openapi3.NewReflector()
	rw := openapi.NewRewriter(newEngine(t))

	oc, err := r.NewOperationContext(http.MethodPost, "/")
	require.NoError(t, err)

	oc.AddReqStructure(new(struct {
		Body  Body `formData:"body" fromJSON:"true"`
		Extra int  `formData:"body.extra"`
	}))

	assert.ErrorIs(t, rw.Annotation(r, nil)(oc), jsonform.ErrAmbiguousFieldName)
}
