package request

import (
	"github.com/swaggest/jsonform"
)

// fileFields returns binding names of fields that receive uploaded files.
func fileFields(d *jsonform.Descriptor) []string {
	var res []string

	for _, f := range d.Fields {
		if isFileType(f.Type) {
			res = append(res, f.BindingName)
		}
	}

	return res
}

// bindingNames returns binding names of all form data fields.
func bindingNames(d *jsonform.Descriptor) []string {
	res := make([]string, 0, len(d.Fields))

	for _, f := range d.Fields {
		res = append(res, f.BindingName)
	}

	return res
}
