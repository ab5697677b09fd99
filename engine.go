package jsonform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// ErrUnknownEngine is returned for an unrecognized JSON engine configuration.
var ErrUnknownEngine = errors.New("unknown JSON engine")

// Engine serializes JSON form field payloads.
//
// Exactly one engine is configured per service, the same instance is used to
// decode request fields and to render documentation examples.
type Engine interface {
	Name() string
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// EngineConfig selects and configures a JSON engine.
//
// Implemented by EngineChoice (default options), NativeOptions and ThirdPartyOptions.
type EngineConfig interface {
	newEngine() (Engine, error)
}

// NewEngine creates JSON engine from configuration.
func NewEngine(cfg EngineConfig) (Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil configuration", ErrUnknownEngine)
	}

	return cfg.newEngine()
}

// EngineChoice enumerates available JSON engines.
type EngineChoice int

// Available JSON engines.
const (
	// Native is encoding/json.
	Native EngineChoice = iota + 1

	// ThirdParty is github.com/json-iterator/go.
	ThirdParty
)

// String returns configuration name of engine choice.
func (c EngineChoice) String() string {
	switch c {
	case Native:
		return "native"
	case ThirdParty:
		return "third-party"
	}

	return fmt.Sprintf("EngineChoice(%d)", int(c))
}

// ParseEngineChoice converts configuration name to EngineChoice.
func ParseEngineChoice(s string) (EngineChoice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "native", "encoding/json":
		return Native, nil
	case "third-party", "thirdparty", "jsoniter":
		return ThirdParty, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownEngine, s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *EngineChoice) UnmarshalText(text []byte) error {
	v, err := ParseEngineChoice(string(text))
	if err != nil {
		return err
	}

	*c = v

	return nil
}

func (c EngineChoice) newEngine() (Engine, error) {
	switch c {
	case Native:
		return NativeOptions{}.newEngine()
	case ThirdParty:
		return ThirdPartyOptions{Config: jsoniter.Config{
			EscapeHTML:             true,
			SortMapKeys:            true,
			ValidateJsonRawMessage: true,
		}}.newEngine()
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, c)
}

// NativeOptions configures encoding/json engine.
type NativeOptions struct {
	// DisallowUnknownFields rejects payloads with fields that are not present in target type.
	DisallowUnknownFields bool

	// UseNumber decodes numbers into json.Number instead of float64 for interface{} targets.
	UseNumber bool

	// Indent is used as indentation of marshaled values, compact output if empty.
	Indent string
}

func (o NativeOptions) newEngine() (Engine, error) {
	return nativeEngine{opts: o}, nil
}

type nativeEngine struct {
	opts NativeOptions
}

func (nativeEngine) Name() string {
	return Native.String()
}

func (e nativeEngine) Marshal(v interface{}) ([]byte, error) {
	if e.opts.Indent != "" {
		return json.MarshalIndent(v, "", e.opts.Indent)
	}

	return json.Marshal(v)
}

func (e nativeEngine) Unmarshal(data []byte, v interface{}) error {
	d := json.NewDecoder(bytes.NewReader(data))

	if e.opts.DisallowUnknownFields {
		d.DisallowUnknownFields()
	}

	if e.opts.UseNumber {
		d.UseNumber()
	}

	if err := d.Decode(v); err != nil {
		return err
	}

	if _, err := d.Token(); !errors.Is(err, io.EOF) {
		return errors.New("invalid character after top-level value")
	}

	return nil
}

// ThirdPartyOptions configures github.com/json-iterator/go engine.
type ThirdPartyOptions struct {
	Config jsoniter.Config
}

func (o ThirdPartyOptions) newEngine() (Engine, error) {
	return thirdPartyEngine{api: o.Config.Froze()}, nil
}

type thirdPartyEngine struct {
	api jsoniter.API
}

func (thirdPartyEngine) Name() string {
	return ThirdParty.String()
}

func (e thirdPartyEngine) Marshal(v interface{}) ([]byte, error) {
	return e.api.Marshal(v)
}

func (e thirdPartyEngine) Unmarshal(data []byte, v interface{}) error {
	return e.api.Unmarshal(data, v)
}

// Reader adapts engine to a JSON reader function, e.g. for request body decoding.
func Reader(e Engine) func(rd io.Reader, v interface{}) error {
	return func(rd io.Reader, v interface{}) error {
		data, err := io.ReadAll(rd)
		if err != nil {
			return err
		}

		return e.Unmarshal(data, v)
	}
}
