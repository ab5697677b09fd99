package openapi

import (
	"net/http"

	"github.com/swaggest/jsonform"
	oapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/swaggest/rest"
	"github.com/swaggest/rest/nethttp"
	restopenapi "github.com/swaggest/rest/openapi"
)

// Middleware collects use case documentation and rewrites JSON form fields of its request body.
//
// It replaces nethttp.OpenAPIMiddleware, collection or rewrite failure panics during route setup.
func Middleware(c *restopenapi.Collector, rw *Rewriter) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		var (
			withRoute rest.HandlerWithRoute
			handler   *nethttp.Handler
		)

		if !nethttp.HandlerAs(h, &withRoute) || !nethttp.HandlerAs(h, &handler) {
			return h
		}

		var rewriteErr error

		err := c.CollectUseCase(withRoute.RouteMethod(), withRoute.RoutePattern(), handler.UseCase(), handler.HandlerTrait,
			rw.Annotation(c.Reflector(), func(err error) { rewriteErr = err }))
		if err != nil {
			panic(err)
		}

		if rewriteErr != nil {
			panic(rewriteErr)
		}

		return h
	}
}

// Annotation returns operation annotation that rewrites request body during collection.
//
// Invalid request structure fails the annotation, rewrite failure is reported to onError.
func (rw *Rewriter) Annotation(r *openapi3.Reflector, onError func(err error)) func(oc oapi.OperationContext) error {
	return func(oc oapi.OperationContext) error {
		req := oc.Request()

		for i := range req {
			if req[i].Structure == nil {
				continue
			}

			d, err := jsonform.Describe(req[i].Structure)
			if err != nil {
				return err
			}

			if !d.HasJSONFields() {
				continue
			}

			customize := req[i].Customize
			req[i].Customize = func(cor oapi.ContentOrReference) {
				if customize != nil {
					customize(cor)
				}

				rb, ok := cor.(*openapi3.RequestBodyOrRef)
				if !ok {
					return
				}

				if err := rw.RewriteRequestBody(rb, d, r.SpecEns().Components); err != nil && onError != nil {
					onError(err)
				}
			}
		}

		return nil
	}
}
