package request

import (
	"context"
	"net/http"

	"github.com/bool64/ctxd"
	"github.com/swaggest/jsonform"
	"github.com/swaggest/rest"
	"github.com/swaggest/rest/nethttp"
	restrequest "github.com/swaggest/rest/request"
)

var _ restrequest.DecoderMaker = &DecoderFactory{}

// DecoderFactory decodes http requests with JSON form fields.
//
// JSON form fields are bound by Selector, other form data fields are decoded alongside them.
// Path, query, header, cookie, body and file fields are delegated to host decoder factory.
//
// Please use NewDecoderFactory to create instance.
type DecoderFactory struct {
	host           *restrequest.DecoderFactory
	selector       *Selector
	logger         ctxd.Logger
	customDecoders []customDecoder
}

// NewDecoderFactory creates request decoder factory on top of host factory.
//
// Host factory JSONReader is configured with the same engine if not set.
func NewDecoderFactory(host *restrequest.DecoderFactory, selector *Selector) *DecoderFactory {
	if host.JSONReader == nil {
		host.JSONReader = jsonform.Reader(selector.engine)
	}

	return &DecoderFactory{
		host:     host,
		selector: selector,
		logger:   selector.logger,
	}
}

// Host returns underlying host decoder factory.
func (df *DecoderFactory) Host() *restrequest.DecoderFactory {
	return df.host
}

// MakeDecoder creates request decoder for a http method and request structure.
//
// It panics if JSON form field names are ambiguous or if a simple value is marked to be bound from JSON.
func (df *DecoderFactory) MakeDecoder(
	method string,
	input interface{},
	customMapping rest.RequestMapping,
) nethttp.RequestDecoder {
	d, err := jsonform.Describe(input)
	if err != nil {
		panic(err)
	}

	var fields []boundField

	for _, f := range d.Fields {
		b := df.selector.Select(Property{Container: d.Type, Name: f.Name, Type: f.Type})
		if b == nil {
			continue
		}

		fields = append(fields, boundField{Field: f, binder: b})
	}

	if len(fields) == 0 {
		return df.host.MakeDecoder(method, input, customMapping)
	}

	df.logger.Debug(context.Background(), "JSON form fields selected", "type", d.Type.String(), "count", len(fields))

	jsonFields := make(map[string]bool, len(fields))
	for _, f := range fields {
		jsonFields[f.Name] = true
	}

	var mapping map[string]string
	if customMapping != nil {
		mapping = customMapping[rest.ParamInFormData]
	}

	return &decoder{
		host:       df.host.MakeDecoder(method, input, hideFormData(customMapping)),
		form:       df.makeFormDecoder(input, jsonFields, mapping),
		fields:     fields,
		formNames:  bindingNames(d),
		fileFields: fileFields(d),
		maxMemory:  df.selector.maxMemory,
	}
}

// DecoderMiddleware sets up JSON form decoder in suitable handlers.
func (df *DecoderFactory) DecoderMiddleware() func(http.Handler) http.Handler {
	return restrequest.DecoderMiddleware(df)
}
