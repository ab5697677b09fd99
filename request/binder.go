package request

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/bool64/ctxd"
	"github.com/swaggest/jsonform"
)

// ValueBinder binds a struct field from JSON text of a form value or of an uploaded file.
//
// Please use Selector to create instance.
type ValueBinder struct {
	engine    jsonform.Engine
	logger    ctxd.Logger
	maxMemory int64
}

// Bind finds raw JSON text by binding name and decodes it into target.
//
// Value can also be submitted under documented camel case name, e.g. "payload" for "Payload".
// Absent or empty value is not an error. Malformed JSON is reported into model state and the target is
// left untouched. Only failure to read uploaded file is returned as error.
func (b *ValueBinder) Bind(
	ctx context.Context,
	values url.Values,
	files map[string][]*multipart.FileHeader,
	name string,
	target reflect.Value,
	ms *jsonform.ModelState,
) error {
	key := formKey(values, files, name)
	raw, source := values.Get(key), "form"

	if raw == "" {
		fh := files[key]
		if len(fh) == 0 {
			return nil
		}

		text, err := readFilePart(fh[0])
		if err != nil {
			return ctxd.WrapError(ctx, StreamError{Name: name, Filename: fh[0].Filename, Err: err},
				"failed to read JSON form file", "name", name)
		}

		raw, source = text, "file"
	}

	if raw == "" {
		return nil
	}

	ms.SetValue(name, raw)

	v := reflect.New(target.Type())

	if err := b.engine.Unmarshal([]byte(raw), v.Interface()); err != nil {
		ms.AddError(name, err.Error())
		b.logger.Warn(ctx, "failed to decode JSON form field",
			"name", name, "source", source, "engine", b.engine.Name(), "error", err.Error())

		return nil
	}

	target.Set(v.Elem())
	b.logger.Debug(ctx, "JSON form field bound", "name", name, "source", source, "engine", b.engine.Name())

	return nil
}

// BindRequest binds a field from form values and uploaded files of http request.
func (b *ValueBinder) BindRequest(r *http.Request, name string, target reflect.Value, ms *jsonform.ModelState) error {
	if err := parseForm(r, b.maxMemory); err != nil {
		return err
	}

	var files map[string][]*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File
	}

	return b.Bind(r.Context(), r.PostForm, files, name, target, ms)
}

// formKey returns binding name if request has it, or documented name if request has that instead.
func formKey(values url.Values, files map[string][]*multipart.FileHeader, name string) string {
	if _, ok := values[name]; ok {
		return name
	}

	if _, ok := files[name]; ok {
		return name
	}

	alias := jsonform.CamelCase(name)
	if alias == name {
		return name
	}

	if _, ok := values[alias]; ok {
		return alias
	}

	if _, ok := files[alias]; ok {
		return alias
	}

	return name
}

func parseForm(r *http.Request, maxMemory int64) error {
	if r.PostForm != nil || r.ContentLength == 0 {
		return nil
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidForm, err)
		}

		return nil
	}

	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}

	return nil
}
