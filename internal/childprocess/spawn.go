package childprocess

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/zjrosen/forknative/internal/ipc"
	"github.com/zjrosen/forknative/internal/log"
)

// CommandFactoryFunc creates the exec.Cmd for a spawn. Tests use it to
// observe or replace the command without changing descriptor wiring.
type CommandFactoryFunc func(name string, args ...string) *exec.Cmd

// Spawner starts child processes. The zero value is usable.
type Spawner struct {
	// Lookup resolves bare executable names. Nil disables caching.
	Lookup *LookupCache

	// CommandFactory builds the exec.Cmd. Nil uses exec.Command.
	CommandFactory CommandFactoryFunc
}

// DefaultSpawner is used by the package level Spawn and Exec.
var DefaultSpawner = &Spawner{Lookup: NewLookupCache(DefaultLookupTTL)}

// Spawn starts path with args using the package default Spawner.
func Spawn(path string, args []string, opts SpawnOptions) (*ChildProcess, error) {
	return DefaultSpawner.Spawn(path, args, opts)
}

// Spawn starts path with args. It returns an error only when opts are
// invalid; failures to start the executable are reported on the returned
// handle's Errors channel.
func (s *Spawner) Spawn(path string, args []string, opts SpawnOptions) (*ChildProcess, error) {
	if path == "" {
		return nil, fmt.Errorf("spawn: executable path is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	args = append([]string(nil), args...)
	cp := newChildProcess(path, args, opts)

	w, err := wire(opts.Stdio)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", path, err)
	}

	cmd, lookupErr := s.command(path, args, opts)
	w.apply(cmd)
	if w.ipcIndex >= 0 {
		cmd.Env = append(cmd.Env,
			ipc.ChannelFDEnv+"="+strconv.Itoa(w.ipcIndex),
			ipc.SerializationEnv+"="+ipc.SerializationJSON,
		)
	}

	cp.cmd = cmd
	cp.channel = w.channel
	cp.stdin = w.stdin
	cp.stdout = w.stdout
	cp.stderr = w.stderr
	cp.extra = w.extra

	cp.logger.Debug(log.CatProcess, "Spawning process",
		"path", path, "args", strings.Join(args, " "),
		"stdio", opts.Stdio.String(), "ipc", w.ipcIndex, "dir", opts.Dir)

	startErr := lookupErr
	if startErr == nil {
		startErr = cmd.Start()
	}
	w.closeChildEnds()

	if startErr != nil {
		w.closeParentEnds()
		cp.failStart(&SpawnError{Path: path, Args: args, Err: startErr})
		return cp, nil
	}

	cp.started()
	return cp, nil
}

func (s *Spawner) command(path string, args []string, opts SpawnOptions) (*exec.Cmd, error) {
	factory := s.CommandFactory
	if factory == nil {
		factory = exec.Command
	}

	var cmd *exec.Cmd
	var lookupErr error
	if opts.Shell != "" {
		line := strings.Join(append([]string{path}, args...), " ")
		// #nosec G204 -- shell mode is an explicit caller opt-in
		cmd = factory(opts.Shell, "-c", line)
	} else {
		resolved := path
		if s.Lookup != nil {
			resolved, lookupErr = s.Lookup.Resolve(path)
			if lookupErr != nil {
				resolved = path
			}
		}
		cmd = factory(resolved, args...)
		if len(cmd.Args) > 0 {
			cmd.Args[0] = path
		}
	}

	cmd.Dir = opts.Dir
	if opts.Env != nil {
		cmd.Env = append([]string(nil), opts.Env...)
	} else {
		cmd.Env = os.Environ()
	}
	if opts.Detached {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
	return cmd, lookupErr
}

// wiring holds both ends of every descriptor created for one spawn.
type wiring struct {
	files      []*os.File // child side, index is the child descriptor
	childEnds  []*os.File // closed in the parent once the child has started
	parentEnds []io.Closer

	stdin    io.WriteCloser
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	extra    map[int]*os.File
	channel  *ipc.Channel
	ipcIndex int
}

func wire(stdio Stdio) (w *wiring, err error) {
	table := stdio.Clone()
	for len(table) < 3 {
		table = append(table, Pipe)
	}

	w = &wiring{
		files:    make([]*os.File, len(table)),
		extra:    make(map[int]*os.File),
		ipcIndex: -1,
	}
	defer func() {
		if err != nil {
			w.closeChildEnds()
			w.closeParentEnds()
		}
	}()

	for i, d := range table {
		switch d.Kind {
		case KindInherit:
			if err := w.share(i, i); err != nil {
				return nil, err
			}
		case KindFD:
			if err := w.share(i, d.FD); err != nil {
				return nil, err
			}
		case KindFile:
			w.files[i] = d.File
		case KindIgnore:
			// nil: /dev/null for 0-2, closed above
		case KindPipe:
			if err := w.pipe(i); err != nil {
				return nil, err
			}
		case KindIPC:
			parent, child, err := socketpair("ipc")
			if err != nil {
				return nil, err
			}
			w.files[i] = child
			w.childEnds = append(w.childEnds, child)
			ch, err := ipc.FileChannel(parent)
			if err != nil {
				return nil, err
			}
			w.channel = ch
			w.parentEnds = append(w.parentEnds, ch)
			w.ipcIndex = i
		}
	}
	return w, nil
}

// share maps child descriptor i to the parent's descriptor fd.
func (w *wiring) share(i, fd int) error {
	switch fd {
	case 0:
		w.files[i] = os.Stdin
		return nil
	case 1:
		w.files[i] = os.Stdout
		return nil
	case 2:
		w.files[i] = os.Stderr
		return nil
	}
	// Duplicate so that the *os.File finalizer can never close the
	// parent's own descriptor.
	dup, err := unix.Dup(fd)
	if err != nil {
		return fmt.Errorf("stdio[%d]: dup descriptor %d: %w", i, fd, err)
	}
	unix.CloseOnExec(dup)
	f := os.NewFile(uintptr(dup), "fd"+strconv.Itoa(fd))
	w.files[i] = f
	w.childEnds = append(w.childEnds, f)
	return nil
}

func (w *wiring) pipe(i int) error {
	if i >= 3 {
		parent, child, err := socketpair("pipe" + strconv.Itoa(i))
		if err != nil {
			return err
		}
		w.files[i] = child
		w.childEnds = append(w.childEnds, child)
		w.extra[i] = parent
		w.parentEnds = append(w.parentEnds, parent)
		return nil
	}

	r, wr, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("stdio[%d]: pipe: %w", i, err)
	}
	if i == 0 {
		w.files[i] = r
		w.childEnds = append(w.childEnds, r)
		w.stdin = wr
		w.parentEnds = append(w.parentEnds, wr)
		return nil
	}
	w.files[i] = wr
	w.childEnds = append(w.childEnds, wr)
	w.parentEnds = append(w.parentEnds, r)
	if i == 1 {
		w.stdout = r
	} else {
		w.stderr = r
	}
	return nil
}

func (w *wiring) apply(cmd *exec.Cmd) {
	// Only assign non-nil files: a typed nil in the interface would be
	// passed to the child as a closed descriptor instead of /dev/null.
	if f := w.files[0]; f != nil {
		cmd.Stdin = f
	}
	if f := w.files[1]; f != nil {
		cmd.Stdout = f
	}
	if f := w.files[2]; f != nil {
		cmd.Stderr = f
	}
	if len(w.files) > 3 {
		cmd.ExtraFiles = append([]*os.File(nil), w.files[3:]...)
	}
}

func (w *wiring) closeChildEnds() {
	for _, f := range w.childEnds {
		_ = f.Close()
	}
	w.childEnds = nil
}

func (w *wiring) closeParentEnds() {
	for _, c := range w.parentEnds {
		_ = c.Close()
	}
	w.parentEnds = nil
}

func socketpair(name string) (parent, child *os.File, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	return os.NewFile(uintptr(fds[0]), name+"-parent"), os.NewFile(uintptr(fds[1]), name+"-child"), nil
}
