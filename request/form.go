package request

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/swaggest/form/v5"
	"github.com/swaggest/jsonform"
	"github.com/swaggest/refl"
	"github.com/swaggest/rest"
)

const (
	jsonTag            = "json"
	collectionFormat   = "collectionFormat"
	mimeMultipart      = "multipart/form-data"
	mimeFormURLEncoded = "application/x-www-form-urlencoded"
)

type customDecoder struct {
	types []interface{}
	fn    form.DecodeFunc
}

// RegisterFunc adds custom type handling to host decoders and to form data decoders.
//
// It should be called before any decoder is made.
func (df *DecoderFactory) RegisterFunc(fn form.DecodeFunc, types ...interface{}) {
	df.host.RegisterFunc(fn, types...)

	df.customDecoders = append(df.customDecoders, customDecoder{
		fn:    fn,
		types: types,
	})
}

// makeFormDecoder creates decoder of form data fields that are not bound from JSON.
//
// Mapping is used instead of field tags if not nil.
func (df *DecoderFactory) makeFormDecoder(input interface{}, jsonFields map[string]bool, mapping map[string]string) *form.Decoder {
	dec := form.NewDecoder()
	dec.SetNamespacePrefix("[")
	dec.SetNamespaceSuffix("]")
	dec.SetTagName(string(rest.ParamInFormData))
	dec.SetMode(form.ModeExplicit)

	dec.RegisterTagNameFunc(func(field reflect.StructField) string {
		if jsonFields[field.Name] || isFileType(field.Type) {
			return "-"
		}

		if mapping == nil {
			return field.Tag.Get(string(rest.ParamInFormData))
		}

		n := mapping[field.Name]
		if n == "" && !field.Anonymous {
			return "-"
		}

		return n
	})

	df.jsonParams(dec, input, jsonFields)

	for _, c := range df.customDecoders {
		dec.RegisterFunc(c.fn, c.types...)
	}

	return dec
}

// jsonParams configures decoding of struct values with JSON tags from form values that are not
// explicitly bound from JSON.
func (df *DecoderFactory) jsonParams(dec *form.Decoder, input interface{}, jsonFields map[string]bool) {
	engine := df.selector.engine

	refl.WalkTaggedFields(reflect.ValueOf(input), func(v reflect.Value, sf reflect.StructField, _ string) {
		if sf.PkgPath != "" || jsonFields[sf.Name] {
			return
		}

		fieldVal := v.Interface()

		if sf.Tag.Get(collectionFormat) == "json" ||
			(refl.HasTaggedFields(fieldVal, jsonTag) && !refl.HasTaggedFields(fieldVal, string(rest.ParamInFormData))) {
			dec.RegisterFunc(func(s string) (interface{}, error) {
				f := reflect.New(sf.Type)

				if err := engine.Unmarshal([]byte(s), f.Interface()); err != nil {
					return nil, err
				}

				return reflect.Indirect(f).Interface(), nil
			}, fieldVal)
		}
	}, string(rest.ParamInFormData))
}

// hideFormData prepares custom mapping that leaves no form data fields to host decoder.
func hideFormData(customMapping rest.RequestMapping) rest.RequestMapping {
	cm := make(rest.RequestMapping, len(customMapping)+1)
	for in, m := range customMapping {
		cm[in] = m
	}

	cm[rest.ParamInFormData] = map[string]string{}

	return cm
}

// isFormRequest checks if request body can carry form data, request without content type is a form.
func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}

	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}

	return mt == mimeMultipart || mt == mimeFormURLEncoded
}

// aliasNames renames form values and files submitted with documented camel case names to binding names.
func aliasNames(r *http.Request, names []string) {
	for _, name := range names {
		alias := jsonform.CamelCase(name)
		if alias == name {
			continue
		}

		if r.PostForm != nil {
			if v, ok := r.PostForm[alias]; ok {
				if _, exists := r.PostForm[name]; !exists {
					r.PostForm[name] = v
					delete(r.PostForm, alias)
				}
			}
		}

		if r.MultipartForm != nil && r.MultipartForm.File != nil {
			if v, ok := r.MultipartForm.File[alias]; ok {
				if _, exists := r.MultipartForm.File[name]; !exists {
					r.MultipartForm.File[name] = v
					delete(r.MultipartForm.File, alias)
				}
			}
		}
	}
}

// decodeForm binds JSON form fields and other form data fields, then validates form data.
//
// Binding issues of JSON fields are reported to model state, form decoding and validation
// failures are returned as rest.RequestErrors or rest.ValidationErrors.
func (d *decoder) decodeForm(r *http.Request, input interface{}, validator rest.Validator, ms *jsonform.ModelState) error {
	v := reflect.ValueOf(input).Elem()

	for _, f := range d.fields {
		if err := f.binder.BindRequest(r, f.BindingName, fieldByIndex(v, f.Index), ms); err != nil {
			return err
		}
	}

	values := r.PostForm
	goValues := make(map[string]interface{}, len(values))

	if err := d.form.Decode(input, values, goValues); err != nil {
		var de form.DecodeErrors
		if !errors.As(err, &de) {
			return err
		}

		errs := make(rest.RequestErrors, len(de))
		for name, e := range de {
			errs[string(rest.ParamInFormData)+":"+name] = []string{"#: " + e.Error()}
		}

		return errs
	}

	if validator == nil {
		return nil
	}

	return d.validate(r, values, goValues, validator, ms)
}

// validate checks form data with raw JSON payloads in place of JSON form fields.
//
// Payloads that came from uploaded files are validated as well, fields with binding errors are
// only reported by model state.
func (d *decoder) validate(
	r *http.Request,
	values url.Values,
	data map[string]interface{},
	validator rest.Validator,
	ms *jsonform.ModelState,
) error {
	for k, vv := range values {
		if pos := strings.Index(k, "["); pos > 0 {
			k = k[:pos]
		}

		if _, exists := data[k]; exists {
			continue
		}

		switch len(vv) {
		case 0:
			data[k] = nil
		case 1:
			data[k] = vv[0]
		default:
			data[k] = vv
		}
	}

	for _, f := range d.fields {
		delete(data, f.BindingName)

		if raw, ok := ms.Value(f.BindingName); ok && !ms.HasError(f.BindingName) {
			data[f.BindingName] = json.RawMessage(raw)
		}
	}

	for _, name := range d.presentFiles(r) {
		if _, ok := data[name]; !ok {
			data[name] = ""
		}
	}

	err := validator.ValidateData(rest.ParamInFormData, data)

	var ve rest.ValidationErrors
	if err == nil || !errors.As(err, &ve) {
		return err
	}

	for _, f := range d.fields {
		if ms.HasError(f.BindingName) {
			delete(ve, string(rest.ParamInFormData)+":"+f.BindingName)
		}
	}

	if len(ve) == 0 {
		return nil
	}

	return ve
}

// hostValidator leaves form data validation to decoder, host decoder only validates other parameters.
type hostValidator struct {
	rest.Validator
}

// ValidateData implements rest.Validator.
func (v hostValidator) ValidateData(in rest.ParamIn, namedData map[string]interface{}) error {
	if in == rest.ParamInFormData {
		return nil
	}

	return v.Validator.ValidateData(in, namedData)
}

func withHostValidator(validator rest.Validator) rest.Validator {
	if validator == nil {
		return nil
	}

	return hostValidator{Validator: validator}
}
