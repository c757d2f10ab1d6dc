package forknative

import (
	"encoding/json"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/forknative/internal/childprocess"
)

func TestParams_Split(t *testing.T) {
	args, opts := Normalize(NoParams())
	require.Equal(t, []string{}, args)
	require.Equal(t, Options{}, opts)

	args, opts = Normalize(nil)
	require.Empty(t, args)
	require.Equal(t, Options{}, opts)

	args, opts = Normalize(WithArgs([]string{"--verbose", "x"}, Options{Silent: true}, Options{Dir: "/ignored"}))
	require.Equal(t, []string{"--verbose", "x"}, args)
	require.True(t, opts.Silent)
	require.Empty(t, opts.Dir)

	args, opts = Normalize(WithOptions(Options{Dir: "/tmp"}))
	require.Equal(t, []string{}, args)
	require.Equal(t, "/tmp", opts.Dir)
}

func TestParams_Copies(t *testing.T) {
	args := []string{"a"}
	stdio := childprocess.Stdio{childprocess.Pipe, childprocess.IPC}
	p := WithArgs(args, Options{Stdio: stdio, Env: []string{"A=1"}})

	args[0] = "mutated"
	stdio[0] = childprocess.Ignore

	gotArgs, gotOpts := Normalize(p)
	require.Equal(t, []string{"a"}, gotArgs)
	require.Equal(t, childprocess.Pipe, gotOpts.Stdio[0])

	gotArgs[0] = "again"
	gotOpts.Env[0] = "B=2"
	again, againOpts := Normalize(p)
	require.Equal(t, "a", again[0])
	require.Equal(t, "A=1", againOpts.Env[0])
}

func TestParamsFromValue(t *testing.T) {
	third := &Options{Silent: true}

	tests := []struct {
		name       string
		value      any
		wantArgs   []string
		wantSilent bool
		wantErr    bool
	}{
		{name: "nil", value: nil, wantArgs: []string{}},
		{name: "string slice uses third", value: []string{"a", "b"}, wantArgs: []string{"a", "b"}, wantSilent: true},
		{name: "any slice", value: []any{"a"}, wantArgs: []string{"a"}, wantSilent: true},
		{name: "empty slice", value: []any{}, wantArgs: []string{}, wantSilent: true},
		{name: "options ignore third", value: Options{Dir: "/"}, wantArgs: []string{}},
		{name: "options pointer", value: &Options{}, wantArgs: []string{}},
		{name: "nil options pointer", value: (*Options)(nil), wantArgs: []string{}},
		{name: "object", value: map[string]any{"silent": false}, wantArgs: []string{}},
		{name: "params passthrough", value: WithArgs([]string{"z"}), wantArgs: []string{"z"}},
		{name: "false", value: false, wantArgs: []string{}},
		{name: "empty string", value: "", wantArgs: []string{}},
		{name: "zero", value: 0, wantArgs: []string{}},
		{name: "zero float", value: 0.0, wantArgs: []string{}},
		{name: "zero number", value: json.Number("0"), wantArgs: []string{}},
		{name: "string", value: "--flag", wantErr: true},
		{name: "true", value: true, wantErr: true},
		{name: "number", value: 42, wantErr: true},
		{name: "float", value: 1.5, wantErr: true},
		{name: "mixed slice", value: []any{"a", 1}, wantErr: true},
		{name: "struct", value: struct{}{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParamsFromValue(tt.value, third)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidArgument)
				var invalid *InvalidArgumentError
				require.ErrorAs(t, err, &invalid)
				require.Nil(t, p)
				return
			}
			require.NoError(t, err)
			args, opts := Normalize(p)
			require.Equal(t, tt.wantArgs, args)
			require.Equal(t, tt.wantSilent, opts.Silent)
		})
	}
}

func TestParamsFromValue_NilThird(t *testing.T) {
	p, err := ParamsFromValue([]string{"a"}, nil)
	require.NoError(t, err)
	_, opts := Normalize(p)
	require.Equal(t, Options{}, opts)
}

func TestDecodeOptions(t *testing.T) {
	opts, err := DecodeOptions([]byte(`{
		"silent": true,
		"stdio": ["pipe", 1, null, "ipc", null],
		"execPath": "/usr/bin/node",
		"env": {"B": "2", "A": "1"},
		"cwd": "/srv",
		"detached": true,
		"killSignal": "SIGKILL",
		"serialization": "json",
		"messageBuffer": 8,
		"deliverInternal": true,
		"shell": "/bin/bash"
	}`))
	require.NoError(t, err)

	require.True(t, opts.Silent)
	require.Equal(t, childprocess.Stdio{
		childprocess.Pipe, childprocess.FD(1), childprocess.Pipe, childprocess.IPC, childprocess.Ignore,
	}, opts.Stdio)
	require.Equal(t, "/usr/bin/node", opts.ExecPath)
	require.Equal(t, []string{"A=1", "B=2"}, opts.Env)
	require.Equal(t, "/srv", opts.Dir)
	require.True(t, opts.Detached)
	require.Equal(t, syscall.SIGKILL, opts.KillSignal)
	require.Equal(t, "json", opts.Serialization)
	require.Equal(t, 8, opts.MessageBuffer)
	require.True(t, opts.DeliverInternal)
	require.Equal(t, "/bin/bash", opts.Shell)
}

func TestDecodeOptions_Variants(t *testing.T) {
	opts, err := DecodeOptions([]byte(`{"stdio": "pipe", "env": ["X=1"], "dir": "/d", "killSignal": 9}`))
	require.NoError(t, err)
	require.Nil(t, opts.Stdio, "non-array stdio is treated as absent")
	require.Equal(t, []string{"X=1"}, opts.Env)
	require.Equal(t, "/d", opts.Dir)
	require.Equal(t, syscall.SIGKILL, opts.KillSignal)

	opts, err = DecodeOptions([]byte(`{"env": []}`))
	require.NoError(t, err)
	require.NotNil(t, opts.Env)
	require.Empty(t, opts.Env)
}

func TestDecodeOptions_Errors(t *testing.T) {
	for _, doc := range []string{
		`not json`,
		`[1,2]`,
		`{"stdio": ["bogus"]}`,
		`{"stdio": [{"fd": 1}]}`,
		`{"env": "A=1"}`,
		`{"env": [1]}`,
		`{"killSignal": "SIGNOPE"}`,
	} {
		_, err := DecodeOptions([]byte(doc))
		require.Error(t, err, doc)
	}
}

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"path": "./echoer", "args": ["-v"], "options": {"silent": true}}`))
	require.NoError(t, err)
	require.Equal(t, "./echoer", req.Path)
	args, opts := Normalize(req.Params)
	require.Equal(t, []string{"-v"}, args)
	require.True(t, opts.Silent)

	// Options as the args value; the options key is ignored.
	req, err = DecodeRequest([]byte(`{"path": "./echoer", "args": {"cwd": "/tmp"}, "options": {"silent": true}}`))
	require.NoError(t, err)
	args, opts = Normalize(req.Params)
	require.Empty(t, args)
	require.Equal(t, "/tmp", opts.Dir)
	require.False(t, opts.Silent)

	req, err = DecodeRequest([]byte(`{"path": "./echoer"}`))
	require.NoError(t, err)
	args, _ = Normalize(req.Params)
	require.Empty(t, args)
}

func TestDecodeRequest_Errors(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"path": "./echoer", "args": "oops"}`))
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = DecodeRequest([]byte(`{"args": []}`))
	require.ErrorContains(t, err, "path is required")

	_, err = DecodeRequest([]byte(`{"path": 1}`))
	require.ErrorContains(t, err, "path is required")

	_, err = DecodeRequest([]byte(`[]`))
	require.Error(t, err)

	_, err = DecodeRequest([]byte(`{`))
	require.Error(t, err)

	_, err = DecodeRequest([]byte(`{"path": "x", "options": {"stdio": ["nope"]}}`))
	require.Error(t, err)
}
