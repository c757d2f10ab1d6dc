package forknative

import (
	"fmt"
	"slices"
	"sort"
	"syscall"

	"github.com/tidwall/gjson"

	"github.com/zjrosen/forknative/internal/childprocess"
)

// Options configures a launch. Only Silent and Stdio are interpreted by
// Launch; the remaining fields are passed through to the spawner, except
// Shell which is always cleared.
type Options struct {
	// Silent pipes stdin, stdout and stderr instead of inheriting them. It
	// only applies when Stdio is nil.
	Silent bool

	// Stdio is the descriptor table. Nil selects the default table.
	Stdio childprocess.Stdio

	// ExecPath is recorded on the handle. Empty uses DefaultExecPath.
	ExecPath string

	Env      []string
	Dir      string
	Detached bool

	// KillSignal is the default signal for ChildProcess.Kill.
	KillSignal syscall.Signal

	Serialization   string
	MessageBuffer   int
	DeliverInternal bool

	// Shell is accepted for symmetry with the spawner but never honoured.
	Shell string
}

func (o Options) clone() Options {
	o.Stdio = o.Stdio.Clone()
	if o.Env != nil {
		o.Env = slices.Clone(o.Env)
	}
	return o
}

// DecodeOptions decodes a JSON options object. Keys follow the usual child
// process conventions: silent, stdio, execPath, env, cwd (or dir), detached,
// killSignal, serialization, messageBuffer, deliverInternal and shell.
//
// A stdio value that is not an array is treated as absent. Array entries may
// be "inherit", "pipe", "ignore", "ipc", null or a descriptor number. An env
// object is converted to KEY=VALUE pairs sorted by key.
func DecodeOptions(data []byte) (Options, error) {
	if !gjson.ValidBytes(data) {
		return Options{}, fmt.Errorf("decode options: invalid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return Options{}, fmt.Errorf("decode options: expected an object")
	}

	o := Options{
		Silent:          doc.Get("silent").Bool(),
		ExecPath:        doc.Get("execPath").String(),
		Dir:             doc.Get("cwd").String(),
		Detached:        doc.Get("detached").Bool(),
		Serialization:   doc.Get("serialization").String(),
		MessageBuffer:   int(doc.Get("messageBuffer").Int()),
		DeliverInternal: doc.Get("deliverInternal").Bool(),
		Shell:           doc.Get("shell").String(),
	}
	if o.Dir == "" {
		o.Dir = doc.Get("dir").String()
	}

	stdio, err := decodeStdio(doc.Get("stdio"))
	if err != nil {
		return Options{}, err
	}
	o.Stdio = stdio

	env, err := decodeEnv(doc.Get("env"))
	if err != nil {
		return Options{}, err
	}
	o.Env = env

	if sig := doc.Get("killSignal"); sig.Exists() {
		switch sig.Type {
		case gjson.Number:
			o.KillSignal = syscall.Signal(sig.Int())
		case gjson.String:
			s, err := childprocess.SignalByName(sig.Str)
			if err != nil {
				return Options{}, fmt.Errorf("decode options: killSignal: %w", err)
			}
			o.KillSignal = s
		}
	}
	return o, nil
}

func decodeStdio(v gjson.Result) (childprocess.Stdio, error) {
	if !v.IsArray() {
		return nil, nil
	}
	entries := v.Array()
	table := make(childprocess.Stdio, len(entries))
	for i, e := range entries {
		switch e.Type {
		case gjson.Null:
			if i < 3 {
				table[i] = childprocess.Pipe
			} else {
				table[i] = childprocess.Ignore
			}
		case gjson.String, gjson.Number:
			d, err := childprocess.ParseDescriptor(e.String())
			if err != nil {
				return nil, fmt.Errorf("decode options: stdio[%d]: %w", i, err)
			}
			table[i] = d
		default:
			return nil, fmt.Errorf("decode options: stdio[%d]: unsupported value %s", i, e.Raw)
		}
	}
	return table, nil
}

func decodeEnv(v gjson.Result) ([]string, error) {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return nil, nil
	case v.IsObject():
		m := v.Map()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		env := make([]string, 0, len(keys))
		for _, k := range keys {
			env = append(env, k+"="+m[k].String())
		}
		return env, nil
	case v.IsArray():
		env := []string{}
		for i, e := range v.Array() {
			if e.Type != gjson.String {
				return nil, fmt.Errorf("decode options: env[%d]: expected a string", i)
			}
			env = append(env, e.Str)
		}
		return env, nil
	default:
		return nil, fmt.Errorf("decode options: env must be an object or an array")
	}
}
