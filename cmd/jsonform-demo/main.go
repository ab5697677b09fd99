package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/swaggest/jsonform"
	"github.com/swaggest/jsonform/internal/sample"
	"github.com/swaggest/jsonform/web"
	swgui "github.com/swaggest/swgui/v5emb"
)

// Config defines application settings.
type Config struct {
	HTTPPort   int                   `envconfig:"HTTP_PORT" default:"8010"`
	JSONEngine jsonform.EngineChoice `envconfig:"JSON_ENGINE" default:"native"`
}

func main() {
	// Initialize config from ENV vars.
	cfg := Config{}

	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal(err)
	}

	s, err := web.NewService(cfg.JSONEngine, web.WithExample(sample.ExampleModel()))
	if err != nil {
		log.Fatal(err)
	}

	s.OpenAPISchema().SetTitle("JSON Form Demo")
	s.OpenAPISchema().SetDescription("This app accepts JSON encoded fields next to file uploads.")
	s.OpenAPISchema().SetVersion("v1.0.0")

	s.Post("/api/sample/{id}", sample.Upload())
	s.Docs("/docs", swgui.New)

	srv := http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           s,
		ReadHeaderTimeout: 9 * time.Second,
	}

	log.Printf("starting HTTP server at http://localhost:%d/docs, JSON engine: %s\n", cfg.HTTPPort, cfg.JSONEngine)

	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
