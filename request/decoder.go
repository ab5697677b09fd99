package request

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/swaggest/form/v5"
	"github.com/swaggest/jsonform"
	"github.com/swaggest/rest"
	"github.com/swaggest/rest/nethttp"
	restrequest "github.com/swaggest/rest/request"
)

type boundField struct {
	jsonform.Field
	binder *ValueBinder
}

// decoder binds form data fields and delegates the rest to host decoder.
type decoder struct {
	host       nethttp.RequestDecoder
	form       *form.Decoder
	fields     []boundField
	formNames  []string
	fileFields []string
	maxMemory  int64
}

var _ nethttp.RequestDecoder = &decoder{}

// Decode populates and validates input with data from http request.
//
// Errors of JSON form fields are combined with host decoding and validation errors.
func (d *decoder) Decode(r *http.Request, input interface{}, validator rest.Validator) error {
	if _, ok := input.(restrequest.Loader); ok {
		return d.host.Decode(r, input, validator)
	}

	v := reflect.ValueOf(input)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrStructExpected
	}

	if !isFormRequest(r) {
		return d.host.Decode(r, input, withHostValidator(validator))
	}

	if err := parseForm(r, d.maxMemory); err != nil {
		return err
	}

	aliasNames(r, d.formNames)

	// Host decoder goes first, so that request values take precedence over defaults.
	hostErr := d.host.Decode(r, input, withHostValidator(validator))

	ms := jsonform.NewModelState()

	formErr := d.decodeForm(r, input, validator, ms)
	if formErr != nil && !isRequestError(formErr) {
		return formErr
	}

	return mergeErrors(ms, hostErr, formErr)
}

func (d *decoder) presentFiles(r *http.Request) []string {
	if r.MultipartForm == nil {
		return nil
	}

	var res []string

	for _, name := range d.fileFields {
		if len(r.MultipartForm.File[name]) > 0 {
			res = append(res, name)
		}
	}

	return res
}

// fieldByIndex returns nested field, allocating nil embedded pointers on the way.
func fieldByIndex(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}

			v = v.Elem()
		}

		v = v.Field(x)
	}

	return v
}

func isRequestError(err error) bool {
	var (
		re rest.RequestErrors
		ve rest.ValidationErrors
	)

	return errors.As(err, &re) || errors.As(err, &ve)
}

// mergeErrors combines model state with errors of host decoder and form data decoder.
//
// A single error is returned as is, multiple errors are combined in rest.ValidationErrors if all of them
// are validation errors, or in rest.RequestErrors otherwise.
func mergeErrors(ms *jsonform.ModelState, errs ...error) error {
	var found []error

	for _, err := range errs {
		if err != nil {
			found = append(found, err)
		}
	}

	switch {
	case len(found) == 0:
		return ms.Err()
	case len(found) == 1 && ms.IsValid():
		return found[0]
	}

	validationOnly := ms.IsValid()
	res := make(map[string][]string)

	for _, err := range found {
		var (
			re rest.RequestErrors
			ve rest.ValidationErrors
			se rest.ErrWithHTTPStatus
		)

		switch {
		case errors.As(err, &se) && se.HTTPStatus() >= http.StatusInternalServerError:
			return err
		case errors.As(err, &ve):
			mergeMessages(res, ve)
		case errors.As(err, &re):
			validationOnly = false

			mergeMessages(res, re)
		default:
			validationOnly = false
			key := errorKey(err)
			res[key] = append(res[key], err.Error())
		}
	}

	ms.MergeInto(res)

	if validationOnly {
		return rest.ValidationErrors(res)
	}

	return rest.RequestErrors(res)
}

func mergeMessages(dst, src map[string][]string) {
	for k, messages := range src {
		dst[k] = append(dst[k], messages...)
	}
}

// errorKey finds parameter name of a plain host decoding error.
func errorKey(err error) string {
	key := string(rest.ParamInFormData)

	if !errors.Is(err, restrequest.ErrMissingRequiredFile) {
		return key
	}

	name, uerr := strconv.Unquote(strings.TrimPrefix(err.Error(), restrequest.ErrMissingRequiredFile.Error()+": "))
	if uerr != nil {
		return key
	}

	return key + ":" + name
}
