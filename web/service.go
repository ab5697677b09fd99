// Package web provides default facades for web service bootstrap with JSON form fields.
package web

import (
	"net/http"
	"strings"

	"github.com/bool64/ctxd"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/swaggest/jsonform"
	jfopenapi "github.com/swaggest/jsonform/openapi"
	"github.com/swaggest/jsonform/request"
	oapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/swaggest/rest"
	"github.com/swaggest/rest/chirouter"
	"github.com/swaggest/rest/jsonschema"
	"github.com/swaggest/rest/nethttp"
	"github.com/swaggest/rest/openapi"
	restrequest "github.com/swaggest/rest/request"
	"github.com/swaggest/rest/response"
	"github.com/swaggest/usecase"
)

// NewService initializes router and other basic components of web service.
//
// JSON engine is created from configuration before any route is added, unknown engine is an error.
func NewService(cfg jsonform.EngineConfig, options ...func(s *Service)) (*Service, error) {
	engine, err := jsonform.NewEngine(cfg)
	if err != nil {
		return nil, err
	}

	s := Service{
		Engine: engine,
		Logger: ctxd.NoOpLogger{},
	}

	for _, option := range options {
		option(&s)
	}

	// Init API documentation schema.
	if s.OpenAPICollector == nil {
		c := openapi.NewCollector(openapi3.NewReflector())

		c.DefaultSuccessResponseContentType = response.DefaultSuccessResponseContentType
		c.DefaultErrorResponseContentType = response.DefaultErrorResponseContentType

		s.OpenAPICollector = c
	}

	if s.Rewriter == nil {
		s.Rewriter = jfopenapi.NewRewriter(engine, s.rewriterOptions...)
	}

	if s.Wrapper == nil {
		s.Wrapper = chirouter.NewWrapper(chi.NewRouter())
	}

	if s.DecoderFactory == nil {
		hostFactory := restrequest.NewDecoderFactory()
		hostFactory.ApplyDefaults = true
		hostFactory.JSONSchemaReflector = s.OpenAPICollector.Refl().JSONSchemaReflector()
		hostFactory.SetDecoderFunc(rest.ParamInPath, chirouter.PathToURLValues)

		s.DecoderFactory = request.NewDecoderFactory(hostFactory,
			request.NewSelector(engine, request.WithLogger(s.Logger), request.WithMaxMemory(s.MaxMemory)))
	}

	validatorFactory := jsonschema.NewFactory(s.OpenAPICollector, s.OpenAPICollector)
	validatorFactory.JSONMarshal = engine.Marshal
	s.ResponseValidatorFactory = validatorFactory

	if s.PanicRecoveryMiddleware == nil {
		s.PanicRecoveryMiddleware = middleware.Recoverer
	}

	// Setup middlewares.
	s.Wrapper.Wrap(
		s.PanicRecoveryMiddleware,                            // Panic recovery.
		jfopenapi.Middleware(s.OpenAPICollector, s.Rewriter), // Documentation collector.
		s.DecoderFactory.DecoderMiddleware(),                 // Request decoder setup.
		restrequest.ValidatorMiddleware(validatorFactory),    // Request validator setup.
		response.EncoderMiddleware,                           // Response encoder setup.
	)

	return &s, nil
}

// Service keeps instrumented router and documentation collector.
type Service struct {
	*chirouter.Wrapper

	PanicRecoveryMiddleware func(handler http.Handler) http.Handler // Default is middleware.Recoverer.

	// Engine decodes JSON form fields and renders documentation examples.
	Engine jsonform.Engine

	// Logger receives binding events, default ctxd.NoOpLogger.
	Logger ctxd.Logger

	// MaxMemory limits memory of parsed multipart forms, default request.DefaultMaxMemory.
	// It is applied when decoder factory is created, so it can only be set with an option, see WithMaxMemory.
	MaxMemory int64

	OpenAPICollector *openapi.Collector
	Rewriter         *jfopenapi.Rewriter
	DecoderFactory   *request.DecoderFactory

	// Response validation is not enabled by default for its less justifiable performance impact.
	// This field is populated so that response.ValidatorMiddleware(s.ResponseValidatorFactory) can be
	// added to service via Wrap.
	ResponseValidatorFactory rest.ResponseValidatorFactory

	rewriterOptions []func(rw *jfopenapi.Rewriter)
}

// WithLogger is a Service option to set logger.
func WithLogger(l ctxd.Logger) func(s *Service) {
	return func(s *Service) {
		s.Logger = l
	}
}

// WithMaxMemory is a Service option to limit memory of parsed multipart forms.
func WithMaxMemory(maxMemory int64) func(s *Service) {
	return func(s *Service) {
		s.MaxMemory = maxMemory
	}
}

// WithExample is a Service option to register documentation example of JSON form field type.
//
// It has no effect if Rewriter is provided by another option.
func WithExample(sample interface{}) func(s *Service) {
	return func(s *Service) {
		s.rewriterOptions = append(s.rewriterOptions, jfopenapi.WithExample(sample))
	}
}

// OpenAPISchema returns OpenAPI schema.
func (s *Service) OpenAPISchema() oapi.SpecSchema {
	return s.OpenAPICollector.SpecSchema()
}

// Get adds the route `pattern` that matches a GET http method to invoke use case interactor.
func (s *Service) Get(pattern string, uc usecase.Interactor, options ...func(h *nethttp.Handler)) {
	s.Method(http.MethodGet, pattern, nethttp.NewHandler(uc, options...))
}

// Patch adds the route `pattern` that matches a PATCH http method to invoke use case interactor.
func (s *Service) Patch(pattern string, uc usecase.Interactor, options ...func(h *nethttp.Handler)) {
	s.Method(http.MethodPatch, pattern, nethttp.NewHandler(uc, options...))
}

// Post adds the route `pattern` that matches a POST http method to invoke use case interactor.
func (s *Service) Post(pattern string, uc usecase.Interactor, options ...func(h *nethttp.Handler)) {
	s.Method(http.MethodPost, pattern, nethttp.NewHandler(uc, options...))
}

// Put adds the route `pattern` that matches a PUT http method to invoke use case interactor.
func (s *Service) Put(pattern string, uc usecase.Interactor, options ...func(h *nethttp.Handler)) {
	s.Method(http.MethodPut, pattern, nethttp.NewHandler(uc, options...))
}

// Docs adds the route `pattern` that serves API documentation with Swagger UI.
//
// Swagger UI should be provided by `swgui` handler constructor, for example
// github.com/swaggest/swgui/v5emb.New.
func (s *Service) Docs(pattern string, swgui func(title, schemaURL, basePath string) http.Handler) {
	pattern = strings.TrimRight(pattern, "/")
	s.Method(http.MethodGet, pattern+"/openapi.json", s.OpenAPICollector)
	s.Mount(pattern, swgui(s.OpenAPISchema().Title(), pattern+"/openapi.json", pattern))
}
