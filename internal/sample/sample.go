// Package sample provides demo use case that accepts a file with JSON form fields.
package sample

import (
	"context"
	"mime/multipart"

	"github.com/swaggest/usecase"
	"github.com/swaggest/usecase/status"
)

// Kind is a category of sample model.
type Kind string

// Kind values.
const (
	KindBasic    Kind = "basic"
	KindAdvanced Kind = "advanced"
)

// Enum returns allowed values.
func (Kind) Enum() []interface{} {
	return []interface{}{KindBasic, KindAdvanced}
}

// Model is submitted as a JSON form field.
type Model struct {
	Name  string `json:"name" description:"Display name."`
	Count *int   `json:"count,omitempty" description:"Optional counter."`
	Kind  Kind   `json:"kind,omitempty"`
}

// ExampleModel returns documentation example of Model.
func ExampleModel() Model {
	cnt := 3

	return Model{Name: "sample", Count: &cnt, Kind: KindBasic}
}

// Request combines an uploaded file with two JSON form fields.
type Request struct {
	ID    int                   `path:"id"`
	File  *multipart.FileHeader `formData:"file" required:"true" description:"Arbitrary file."`
	Model Model                 `formData:"model" fromJSON:"true" required:"true" description:"Main model."`
	Extra Model                 `formData:"extra" fromJSON:"true" required:"true" description:"Additional model."`
}

// Response echoes bound values.
type Response struct {
	ID       int    `json:"id"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	Model    Model  `json:"model"`
	Extra    Model  `json:"extra"`
}

// Upload creates use case interactor that reports received data.
func Upload() usecase.Interactor {
	u := usecase.NewInteractor(func(ctx context.Context, in Request, out *Response) error {
		if in.File == nil {
			return status.InvalidArgument
		}

		out.ID = in.ID
		out.FileName = in.File.Filename
		out.FileSize = in.File.Size
		out.Model = in.Model
		out.Extra = in.Extra

		return nil
	})

	u.SetTitle("Upload Sample")
	u.SetDescription("Accepts a file with two JSON encoded models in one multipart request.")
	u.SetTags("Sample")
	u.SetExpectedErrors(status.InvalidArgument)

	return u
}
