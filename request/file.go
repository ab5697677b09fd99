package request

import (
	"io"
	"mime"
	"mime/multipart"
	"reflect"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	multipartFileType        = reflect.TypeOf((*multipart.File)(nil)).Elem()
	multipartFilesType       = reflect.TypeOf(([]multipart.File)(nil))
	multipartFileHeaderType  = reflect.TypeOf((*multipart.FileHeader)(nil))
	multipartFileHeadersType = reflect.TypeOf(([]*multipart.FileHeader)(nil))
)

// isFileType checks if a value of type can receive an uploaded file.
func isFileType(t reflect.Type) bool {
	if t == multipartFileType || t == multipartFileHeaderType ||
		t == multipartFilesType || t == multipartFileHeadersType {
		return true
	}

	if t == multipartFileHeaderType.Elem() {
		return true
	}

	if t.Implements(multipartFileType) || reflect.PtrTo(t).Implements(multipartFileType) {
		return true
	}

	return multipartFileType.AssignableTo(t) && t.Kind() == reflect.Interface && t.NumMethod() > 0
}

// readFilePart reads whole uploaded file as text.
//
// Text encoding is taken from charset parameter of part Content-Type, UTF-8 is used by default,
// byte order mark overrides both.
func readFilePart(fh *multipart.FileHeader) (text string, err error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}

	defer func() {
		if clErr := f.Close(); clErr != nil && err == nil {
			err = clErr
		}
	}()

	b, err := io.ReadAll(transform.NewReader(f, unicode.BOMOverride(textDecoder(fh.Header.Get("Content-Type")))))
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func textDecoder(contentType string) transform.Transformer {
	var enc encoding.Encoding = unicode.UTF8

	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs := params["charset"]; cs != "" {
			if e, err := htmlindex.Get(cs); err == nil {
				enc = e
			}
		}
	}

	return enc.NewDecoder()
}
