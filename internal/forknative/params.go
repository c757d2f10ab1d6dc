package forknative

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// Params is the second launch parameter: nothing, an argument list with
// optional options, or options alone. Build one with NoParams, WithArgs or
// WithOptions, or from dynamic data with ParamsFromValue.
type Params interface {
	split() ([]string, Options)
}

type noParams struct{}

func (noParams) split() ([]string, Options) { return []string{}, Options{} }

type argsParams struct {
	args []string
	opts Options
}

func (p argsParams) split() ([]string, Options) {
	return append([]string{}, p.args...), p.opts.clone()
}

type optionsParams struct {
	opts Options
}

func (p optionsParams) split() ([]string, Options) { return []string{}, p.opts.clone() }

// NoParams launches with no arguments and default options.
func NoParams() Params { return noParams{} }

// WithArgs launches with args verbatim. The first opts value, if any, is used
// as the options; the rest are ignored.
func WithArgs(args []string, opts ...Options) Params {
	p := argsParams{args: append([]string{}, args...)}
	if len(opts) > 0 {
		p.opts = opts[0].clone()
	}
	return p
}

// WithOptions launches with an empty argument list and opts.
func WithOptions(opts Options) Params {
	return optionsParams{opts: opts.clone()}
}

// Normalize splits p into a fresh argument list and options copy. A nil p is
// treated as NoParams.
func Normalize(p Params) ([]string, Options) {
	if p == nil {
		return noParams{}.split()
	}
	return p.split()
}

// ParamsFromValue resolves a dynamically typed second parameter. Sequences
// of strings become argument lists, in which case opts (if not nil) supplies
// the options. Options values and JSON style objects become options and opts
// is ignored. Empty scalars (nil, false, 0, "") mean no parameter. Any other
// scalar is rejected with an *InvalidArgumentError.
func ParamsFromValue(v any, opts *Options) (Params, error) {
	switch x := v.(type) {
	case nil:
		return NoParams(), nil
	case Params:
		return x, nil
	case []string:
		return argsWith(x, opts), nil
	case []any:
		args := make([]string, len(x))
		for i, a := range x {
			s, ok := a.(string)
			if !ok {
				return nil, &InvalidArgumentError{Value: v}
			}
			args[i] = s
		}
		return argsWith(args, opts), nil
	case Options:
		return WithOptions(x), nil
	case *Options:
		if x == nil {
			return NoParams(), nil
		}
		return WithOptions(*x), nil
	case map[string]any:
		data, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("encode options: %w", err)
		}
		o, err := DecodeOptions(data)
		if err != nil {
			return nil, err
		}
		return WithOptions(o), nil
	case bool:
		if !x {
			return NoParams(), nil
		}
	case string:
		if x == "" {
			return NoParams(), nil
		}
	case int:
		if x == 0 {
			return NoParams(), nil
		}
	case int64:
		if x == 0 {
			return NoParams(), nil
		}
	case float64:
		if x == 0 || math.IsNaN(x) {
			return NoParams(), nil
		}
	case json.Number:
		if f, err := x.Float64(); err == nil && f == 0 {
			return NoParams(), nil
		}
	}
	return nil, &InvalidArgumentError{Value: v}
}

func argsWith(args []string, opts *Options) Params {
	if opts == nil {
		return WithArgs(args)
	}
	return WithArgs(args, *opts)
}

// Request is a launch described as data, e.g. a JSON request file.
type Request struct {
	Path   string
	Params Params
}

// DecodeRequest decodes {"path": ..., "args": ..., "options": {...}}. The
// args value may be anything ParamsFromValue accepts; options only apply
// when args is an array.
func DecodeRequest(data []byte) (Request, error) {
	if !gjson.ValidBytes(data) {
		return Request{}, fmt.Errorf("decode request: invalid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return Request{}, fmt.Errorf("decode request: expected an object")
	}

	path := doc.Get("path")
	if path.Type != gjson.String || path.Str == "" {
		return Request{}, fmt.Errorf("decode request: path is required")
	}

	var opts *Options
	if o := doc.Get("options"); o.Exists() && o.Type != gjson.Null {
		decoded, err := DecodeOptions([]byte(o.Raw))
		if err != nil {
			return Request{}, fmt.Errorf("decode request: %w", err)
		}
		opts = &decoded
	}

	var args any
	if a := doc.Get("args"); a.Exists() {
		if err := json.Unmarshal([]byte(a.Raw), &args); err != nil {
			return Request{}, fmt.Errorf("decode request args: %w", err)
		}
	}

	p, err := ParamsFromValue(args, opts)
	if err != nil {
		return Request{}, err
	}
	return Request{Path: path.Str, Params: p}, nil
}
