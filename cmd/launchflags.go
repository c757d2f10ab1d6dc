package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zjrosen/forknative/internal/childprocess"
	"github.com/zjrosen/forknative/internal/config"
	"github.com/zjrosen/forknative/internal/forknative"
)

// launchFlags are the flags shared by run and resolve. They layer over the
// config file's launch defaults or a named profile.
type launchFlags struct {
	profile    string
	request    string
	silent     bool
	stdio      string
	dir        string
	env        []string
	killSignal string
}

func (f *launchFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.profile, "profile", "p", "", "launch the named profile from the config file")
	fs.StringVarP(&f.request, "request", "r", "", `read {"path","args","options"} from a JSON file`)
	fs.BoolVarP(&f.silent, "silent", "s", false, "pipe the child's stdin, stdout and stderr")
	fs.StringVar(&f.stdio, "stdio", "", `descriptor table, e.g. "pipe,pipe,inherit,ipc"`)
	fs.StringVar(&f.dir, "dir", "", "working directory for the child")
	fs.StringArrayVarP(&f.env, "env", "e", nil, "add KEY=VALUE to the child's environment (repeatable)")
	fs.StringVar(&f.killSignal, "kill-signal", "", "signal used to stop the child (default from config)")
}

// build returns the path, arguments and options to launch. Precedence is
// request file or profile or PATH ARGS, then the config launch defaults,
// then explicit flags.
func (f *launchFlags) build(cmd *cobra.Command, args []string, cfg config.Config) (string, []string, forknative.Options, error) {
	var (
		path string
		argv []string
		opts forknative.Options
		err  error
	)

	switch {
	case f.request != "" && f.profile != "":
		return "", nil, opts, fmt.Errorf("--request and --profile are mutually exclusive")
	case f.request != "":
		if len(args) > 0 {
			return "", nil, opts, fmt.Errorf("--request cannot be combined with PATH arguments")
		}
		data, err := os.ReadFile(f.request)
		if err != nil {
			return "", nil, opts, fmt.Errorf("reading request: %w", err)
		}
		req, err := forknative.DecodeRequest(data)
		if err != nil {
			return "", nil, opts, err
		}
		path = req.Path
		argv, opts = forknative.Normalize(req.Params)
	case f.profile != "":
		p, ok := cfg.Profile(f.profile)
		if !ok {
			return "", nil, opts, fmt.Errorf("unknown profile %q", f.profile)
		}
		if opts, err = p.Options(cfg.Launch); err != nil {
			return "", nil, opts, err
		}
		path = p.Path
		argv = append(slices.Clone(p.Args), args...)
	default:
		if len(args) == 0 {
			return "", nil, opts, fmt.Errorf("requires PATH, --profile or --request")
		}
		if opts, err = cfg.Launch.Options(); err != nil {
			return "", nil, opts, err
		}
		path = args[0]
		argv = args[1:]
	}

	if cmd.Flags().Changed("silent") {
		opts.Silent = f.silent
	}
	if f.stdio != "" {
		stdio, err := childprocess.ParseStdio(f.stdio)
		if err != nil {
			return "", nil, opts, fmt.Errorf("--stdio: %w", err)
		}
		opts.Stdio = stdio
	}
	if f.dir != "" {
		opts.Dir = f.dir
	}
	if len(f.env) > 0 {
		for _, kv := range f.env {
			if !strings.Contains(kv, "=") {
				return "", nil, opts, fmt.Errorf("--env %q: expected KEY=VALUE", kv)
			}
		}
		if opts.Env == nil {
			opts.Env = os.Environ()
		}
		opts.Env = append(opts.Env, f.env...)
	}
	if f.killSignal != "" {
		sig, err := childprocess.SignalByName(f.killSignal)
		if err != nil {
			return "", nil, opts, fmt.Errorf("--kill-signal: %w", err)
		}
		opts.KillSignal = sig
	}
	return path, argv, opts, nil
}
